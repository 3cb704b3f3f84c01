package textutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/textutil"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{
			name:     "相同向量",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{1.0, 0.0, 0.0},
			expected: 1.0,
		},
		{
			name:     "正交向量",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{0.0, 1.0, 0.0},
			expected: 0.0,
		},
		{
			name:     "相反向量",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{-1.0, 0.0, 0.0},
			expected: -1.0,
		},
		{
			name:     "空向量",
			a:        []float32{},
			b:        []float32{},
			expected: 0.0,
		},
		{
			name:     "长度不匹配",
			a:        []float32{1.0, 2.0},
			b:        []float32{1.0},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := textutil.CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.expected, result, 0.0001)
		})
	}
}

func TestScoreFromDistance(t *testing.T) {
	tests := []struct {
		name       string
		similarity float64
		expected   float64
	}{
		{"完全相同", 1.0, 1.0},
		{"正交", 0.0, 0.5},
		{"相反", -1.0, 1.0 / 3.0},
		{"浮点误差", 1.0000001, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := textutil.ScoreFromDistance(textutil.CosineDistance(tt.similarity))
			assert.InDelta(t, tt.expected, score, 0.0001)
			assert.Greater(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hello", textutil.TruncateString("hello", 10))
	assert.Equal(t, "你好", textutil.TruncateString("你好世界", 2))
}

func TestEncodeIdentifier(t *testing.T) {
	assert.Equal(t, "abc42", textutil.EncodeIdentifier("abc42"))
	assert.Equal(t, "doc__42", textutil.EncodeIdentifier("doc_42"))
	assert.Equal(t, "a_x2db_x2ec_x20d", textutil.EncodeIdentifier("a-b.c d"))
	assert.Equal(t, "f_xc3_xa9_x2f", textutil.EncodeIdentifier("fé/"))
}

func TestEncodeIdentifier_Injective(t *testing.T) {
	ids := []string{"a-b", "a.b", "a_b", "a b", "a__b", "a_x2db", "ab", "a-b-", "a_", "_a", ""}
	seen := make(map[string]string, len(ids))
	for _, id := range ids {
		enc := textutil.EncodeIdentifier(id)
		assert.Regexp(t, `^[A-Za-z0-9_]*$`, enc)
		prev, dup := seen[enc]
		assert.False(t, dup, "%q and %q both encode to %q", prev, id, enc)
		seen[enc] = id
	}
}
