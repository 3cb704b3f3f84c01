// Package textutil 提供 RAG 相关的向量与文本工具函数。
package textutil

import (
	"math"
	"strings"
	"unicode/utf8"
)

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，1 表示完全相同，-1 表示完全相反。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineDistance 返回 max(0, 1 - similarity)。
func CosineDistance(similarity float64) float64 {
	return math.Max(0, 1-similarity)
}

// ScoreFromDistance 将距离映射到 (0, 1], 距离为 0 时得分为 1。
func ScoreFromDistance(distance float64) float64 {
	return 1 / (1 + math.Max(0, distance))
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// EncodeIdentifier 将任意字符串可逆地编码为仅含 [A-Za-z0-9_] 的标识符。
// 字母数字原样保留, '_' 编码为 "__", 其余字节编码为 "_xHH"。不同输入得到不同输出。
func EncodeIdentifier(s string) string {
	const hex = "0123456789abcdef"
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
			sb.WriteByte(b)
		case b == '_':
			sb.WriteString("__")
		default:
			sb.WriteString("_x")
			sb.WriteByte(hex[b>>4])
			sb.WriteByte(hex[b&0x0f])
		}
	}
	return sb.String()
}
