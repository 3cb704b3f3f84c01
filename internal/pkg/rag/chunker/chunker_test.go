package chunker

import (
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-rag/pkg/errors"
)

const sample = `The quick brown fox jumps over the lazy dog. It was a sunny day.

Paragraph two talks about something else entirely. The dog did not care.
A single line follows here.

Le troisième paragraphe contient des caractères accentués: été, où, garçon.`

// assertOffsets 校验每个分块的内容与源文本偏移一致。
func assertOffsets(t *testing.T, text string, res *Result) {
	t.Helper()
	runes := []rune(text)
	prevStart := -1
	for i, c := range res.Chunks {
		assert.Equal(t, i, c.Index)
		assert.Less(t, c.Metadata.StartChar, c.Metadata.EndChar)
		assert.GreaterOrEqual(t, c.Metadata.StartChar, prevStart, "offsets must be non-decreasing")
		assert.Equal(t, c.Metadata.EndChar-c.Metadata.StartChar, c.Metadata.Length)
		assert.Equal(t, utf8.RuneCountInString(c.Content), c.Metadata.Length)
		require.GreaterOrEqual(t, c.Metadata.StartChar, 0)
		require.LessOrEqual(t, c.Metadata.EndChar, len(runes), "chunk %d ends past the text", i)
		assert.Equal(t, c.Content, string(runes[c.Metadata.StartChar:c.Metadata.EndChar]))
		prevStart = c.Metadata.StartChar
	}
}

func TestChunkText(t *testing.T) {
	opts := Options{ChunkSize: 60, ChunkOverlap: 15}

	res, err := ChunkText(sample, opts)
	require.NoError(t, err)
	require.NotEmpty(t, res.Chunks)

	assert.Equal(t, len(res.Chunks), res.TotalChunks)
	assert.Equal(t, utf8.RuneCountInString(sample), res.TotalCharacters)
	for _, c := range res.Chunks {
		assert.LessOrEqual(t, c.Metadata.Length, opts.ChunkSize)
	}
	assertOffsets(t, sample, res)
}

func TestChunkText_ShortTextSingleChunk(t *testing.T) {
	res, err := ChunkText("hello world", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "hello world", res.Chunks[0].Content)
	assert.Equal(t, Metadata{StartChar: 0, EndChar: 11, Length: 11}, res.Chunks[0].Metadata)
	assert.Equal(t, 11.0, res.AverageChunkSize)
}

func TestChunkText_RepeatedContent(t *testing.T) {
	text := strings.Repeat("abc abc abc. ", 20)

	res, err := ChunkText(text, Options{ChunkSize: 25, ChunkOverlap: 8})
	require.NoError(t, err)
	assert.Greater(t, res.TotalChunks, 1)
	assertOffsets(t, text, res)
}

func TestChunkText_Overlap(t *testing.T) {
	text := "one two three four five six seven eight nine ten eleven twelve"

	res, err := ChunkText(text, Options{ChunkSize: 20, ChunkOverlap: 10})
	require.NoError(t, err)
	require.Greater(t, len(res.Chunks), 1)

	for i := 1; i < len(res.Chunks); i++ {
		prev, cur := res.Chunks[i-1].Metadata, res.Chunks[i].Metadata
		assert.Less(t, cur.StartChar, prev.EndChar, "chunk %d should overlap chunk %d", i, i-1)
	}
	assertOffsets(t, text, res)
}

func TestChunkText_OverlapKeepsOffsetsAligned(t *testing.T) {
	text := "the gamma beta "

	res, err := ChunkText(text, Options{ChunkSize: 5, ChunkOverlap: 4})
	require.NoError(t, err)
	require.NotEmpty(t, res.Chunks)
	assertOffsets(t, text, res)
}

func TestChunkText_RandomOffsets(t *testing.T) {
	words := []string{"the", "gamma", "beta", "a", "été", "garçon", "lorem", "ipsum", "x", "dolor"}
	seps := []string{" ", " ", " ", ". ", "\n", "\n\n", "  "}
	rng := rand.New(rand.NewSource(42))

	for n := 0; n < 2000; n++ {
		var sb strings.Builder
		for w := rng.Intn(60); w >= 0; w-- {
			sb.WriteString(words[rng.Intn(len(words))])
			sb.WriteString(seps[rng.Intn(len(seps))])
		}
		text := sb.String()
		size := 2 + rng.Intn(40)
		overlap := rng.Intn(size)

		t.Run(fmt.Sprintf("case_%d", n), func(t *testing.T) {
			res, err := ChunkText(text, Options{ChunkSize: size, ChunkOverlap: overlap})
			require.NoError(t, err, "size=%d overlap=%d text=%q", size, overlap, text)
			assertOffsets(t, text, res)
		})
	}
}

func TestChunkText_EmptyText(t *testing.T) {
	res, err := ChunkText("", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalChunks)
	assert.Empty(t, res.Chunks)
	assert.Equal(t, 0.0, res.AverageChunkSize)
	assert.False(t, math.IsNaN(res.AverageChunkSize))
}

func TestChunkText_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"overlap equals size", Options{ChunkSize: 10, ChunkOverlap: 10}},
		{"overlap exceeds size", Options{ChunkSize: 10, ChunkOverlap: 20}},
		{"zero size", Options{ChunkSize: 0}},
		{"negative overlap", Options{ChunkSize: 10, ChunkOverlap: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ChunkText(sample, tt.opts)
			assert.True(t, errors.Is(err, errors.ErrRAGConfiguration))
		})
	}
}

func TestChunkByFixedSize_Count(t *testing.T) {
	tests := []struct {
		length, size, overlap int
	}{
		{100, 10, 0},
		{100, 10, 3},
		{101, 10, 3},
		{7, 10, 3},
		{10, 10, 9},
		{1000, 128, 32},
	}

	for _, tt := range tests {
		text := strings.Repeat("é", tt.length)
		res, err := ChunkByFixedSize(text, tt.size, tt.overlap)
		require.NoError(t, err)

		want := int(math.Ceil(float64(tt.length-tt.overlap) / float64(tt.size-tt.overlap)))
		assert.Equal(t, want, res.TotalChunks, "len=%d size=%d overlap=%d", tt.length, tt.size, tt.overlap)

		last := res.Chunks[len(res.Chunks)-1]
		assert.LessOrEqual(t, last.Metadata.Length, tt.size)
		assert.Equal(t, tt.length, last.Metadata.EndChar)
		assertOffsets(t, text, res)
	}
}

func TestChunkByFixedSize_ShortAndEmpty(t *testing.T) {
	res, err := ChunkByFixedSize("abc", 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalChunks)

	res, err = ChunkByFixedSize("", 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalChunks)
	assert.Equal(t, 0.0, res.AverageChunkSize)
}

func TestChunkByFixedSize_RejectsNonPositiveStep(t *testing.T) {
	_, err := ChunkByFixedSize("some text", 5, 5)
	assert.True(t, errors.Is(err, errors.ErrRAGConfiguration))
}

func TestChunkByChapters(t *testing.T) {
	text := "Chapitre 1 Intro texte. Chapitre 2 Corps texte."

	res, err := ChunkByChapters(text, nil, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 2, res.TotalChunks)

	assert.True(t, strings.HasPrefix(res.Chunks[0].Content, "Chapitre 1"))
	assert.True(t, strings.HasPrefix(res.Chunks[1].Content, "Chapitre 2"))
	assert.Equal(t, text, res.Chunks[0].Content+res.Chunks[1].Content)
	assertOffsets(t, text, res)
}

func TestChunkByChapters_PartitionsText(t *testing.T) {
	text := "Preface here.\nChapter 1\nIt begins.\nChapter 2\nIt continues.\nChapter 3\nThe end."

	res, err := ChunkByChapters(text, nil, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 3, res.TotalChunks)

	var joined strings.Builder
	for i, c := range res.Chunks {
		joined.WriteString(c.Content)
		if i > 0 {
			assert.Equal(t, res.Chunks[i-1].Metadata.EndChar, c.Metadata.StartChar, "no gaps or overlaps")
		}
	}
	assert.Equal(t, text, joined.String())
	assert.Equal(t, 0, res.Chunks[0].Metadata.StartChar)
	assert.Equal(t, utf8.RuneCountInString(text), res.Chunks[2].Metadata.EndChar)
}

func TestChunkByChapters_FallsBackWithFewHeadings(t *testing.T) {
	text := "Chapter 1 only appears once in this text."

	res, err := ChunkByChapters(text, nil, Options{ChunkSize: 15, ChunkOverlap: 0})
	require.NoError(t, err)
	assert.Greater(t, res.TotalChunks, 1)
	assertOffsets(t, text, res)
}

func TestChunkByChapters_CustomPattern(t *testing.T) {
	text := "## A\nfirst\n## B\nsecond"

	res, err := ChunkByChapters(text, regexp.MustCompile(`(?m)^## `), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalChunks)
}

func TestPreprocessText(t *testing.T) {
	in := "  Line one\r\nLine   two\t\tend\r\r\r\n\n\nNext paragraph  "
	out := PreprocessText(in)

	assert.Equal(t, "Line one\nLine two end\n\nNext paragraph", out)
	assert.Equal(t, out, PreprocessText(out))
}

func TestPreprocessText_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"a \n \n \n b",
		"x\r\n\r\n\r\n\r\ny",
		"tab\there\n\n\n\n\nand  there ",
	}
	for _, in := range inputs {
		once := PreprocessText(in)
		assert.Equal(t, once, PreprocessText(once), "input %q", in)
	}
}

func TestSplit(t *testing.T) {
	text := "Chapter 1 a. Chapter 2 b."

	res, err := Split(text, Options{ChunkSize: 100, ChunkOverlap: 10, Strategy: StrategyChapters})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalChunks)

	res, err = Split(text, Options{ChunkSize: 5, ChunkOverlap: 0, Strategy: StrategyFixed})
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalChunks)

	res, err = Split("  padded  ", Options{ChunkSize: 100, ChunkOverlap: 0, Preprocess: true})
	require.NoError(t, err)
	assert.Equal(t, "padded", res.Chunks[0].Content)

	_, err = Split(text, Options{ChunkSize: 100, Strategy: "semantic"})
	assert.True(t, errors.Is(err, errors.ErrRAGConfiguration))

	_, err = Split(text, Options{ChunkSize: 100, Strategy: StrategyChapters, ChapterPattern: "("})
	assert.True(t, errors.Is(err, errors.ErrRAGConfiguration))
}
