package store

import (
	"sort"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/textutil"
)

// rankByCosine 暴力计算余弦相似度并返回前 topK 条, 相同得分保持写入顺序。
func rankByCosine(records []Record, query []float32, topK int) []Hit {
	hits := make([]Hit, 0, len(records))
	for _, r := range records {
		if len(r.Embedding) != len(query) {
			continue
		}
		hits = append(hits, Hit{Record: r, Similarity: textutil.CosineSimilarity(query, r.Embedding)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
