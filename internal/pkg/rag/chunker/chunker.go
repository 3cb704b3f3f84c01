// Package chunker 将长文本切分为带字符偏移的分块。
//
// 所有长度与偏移均以 Unicode 码点 (rune) 计量, 偏移为源文本上的半开区间
// [StartChar, EndChar)。支持三种策略:
//
//   - standard: 按段落、换行、句子、空格、字符逐级递归切分, 相邻分块保留重叠
//   - chapters: 按章节标题正则切分, 匹配不足两处时退化为 standard
//   - fixed:    固定窗口滑动切分
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-rag/pkg/errors"
)

// Strategy 分块策略。
type Strategy string

const (
	StrategyStandard Strategy = "standard"
	StrategyChapters Strategy = "chapters"
	StrategyFixed    Strategy = "fixed"
)

const (
	// DefaultChunkSize 默认分块大小。
	DefaultChunkSize = 1000
	// DefaultChunkOverlap 默认重叠大小。
	DefaultChunkOverlap = 200
)

// DefaultSeparators 递归切分使用的分隔符, 按优先级排列。
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Options 分块参数。
type Options struct {
	ChunkSize      int      `json:"chunk_size"`
	ChunkOverlap   int      `json:"chunk_overlap"`
	Separators     []string `json:"separators,omitempty"`
	Strategy       Strategy `json:"strategy,omitempty"`
	ChapterPattern string   `json:"chapter_pattern,omitempty"`
	Preprocess     bool     `json:"preprocess,omitempty"`
}

// DefaultOptions 返回默认分块参数。
func DefaultOptions() Options {
	return Options{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Strategy:     StrategyStandard,
	}
}

// Validate 校验分块大小与重叠, 非法参数返回 ErrRAGConfiguration。
func (o Options) Validate() error {
	return validateWindow(o.ChunkSize, o.ChunkOverlap)
}

func validateWindow(size, overlap int) error {
	if size <= 0 {
		return errors.ErrRAGConfiguration.WithMessagef("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return errors.ErrRAGConfiguration.WithMessagef("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return errors.ErrRAGConfiguration.WithMessagef("chunk overlap (%d) must be less than chunk size (%d)", overlap, size)
	}
	return nil
}

func (o Options) separators() []string {
	if len(o.Separators) == 0 {
		return DefaultSeparators
	}
	return o.Separators
}

// Metadata 分块在源文本中的位置。
type Metadata struct {
	StartChar int `json:"start_char"`
	EndChar   int `json:"end_char"`
	Length    int `json:"length"`
}

// Chunk 文本分块。
type Chunk struct {
	Content  string   `json:"content"`
	Index    int      `json:"index"`
	Metadata Metadata `json:"metadata"`
}

// Result 分块结果。
type Result struct {
	Chunks           []Chunk `json:"chunks"`
	TotalChunks      int     `json:"total_chunks"`
	TotalCharacters  int     `json:"total_characters"`
	AverageChunkSize float64 `json:"average_chunk_size"`
}

func newResult(text string, chunks []Chunk) *Result {
	if chunks == nil {
		chunks = []Chunk{}
	}
	r := &Result{
		Chunks:          chunks,
		TotalChunks:     len(chunks),
		TotalCharacters: utf8.RuneCountInString(text),
	}
	if len(chunks) > 0 {
		total := 0
		for _, c := range chunks {
			total += c.Metadata.Length
		}
		r.AverageChunkSize = float64(total) / float64(len(chunks))
	}
	return r
}

// Split 按 opts.Strategy 选择分块策略。
func Split(text string, opts Options) (*Result, error) {
	if opts.Preprocess {
		text = PreprocessText(text)
	}

	switch opts.Strategy {
	case "", StrategyStandard:
		return ChunkText(text, opts)
	case StrategyChapters:
		pattern, err := compileChapterPattern(opts.ChapterPattern)
		if err != nil {
			return nil, err
		}
		return ChunkByChapters(text, pattern, opts)
	case StrategyFixed:
		return ChunkByFixedSize(text, opts.ChunkSize, opts.ChunkOverlap)
	default:
		return nil, errors.ErrRAGConfiguration.WithMessagef("unknown chunking strategy %q", opts.Strategy)
	}
}

// ChunkText 递归切分文本, 每个分块不超过 ChunkSize 个字符,
// 并以前一分块末尾最多 ChunkOverlap 个字符作为开头。
func ChunkText(text string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return newResult(text, nil), nil
	}

	pieces := splitRecursive(text, opts.separators(), opts.ChunkSize, opts.ChunkOverlap)
	chunks := locate(text, pieces)

	logger.Debugw("text chunked",
		"strategy", StrategyStandard,
		"chunks", len(chunks),
		"chunk_size", opts.ChunkSize,
		"chunk_overlap", opts.ChunkOverlap,
	)
	return newResult(text, chunks), nil
}

// locate 从上一分块的起点开始查找每个分块在源文本中的位置, 起点不递减。
// 分块均为源文本的子串, 查找结果不早于上一分块的查找结果。
func locate(text string, pieces []string) []Chunk {
	chunks := make([]Chunk, 0, len(pieces))
	cursor := 0 // byte offset of the previous chunk
	lastByte, lastRune := 0, 0

	for _, piece := range pieces {
		byteStart := indexFrom(text, piece, cursor)
		if byteStart < 0 {
			byteStart = strings.Index(text, piece)
		}
		if byteStart < 0 {
			logger.Warnw("chunk not found in source text", "chunk_index", len(chunks))
			continue
		}

		var runeStart int
		if byteStart >= lastByte {
			runeStart = lastRune + utf8.RuneCountInString(text[lastByte:byteStart])
		} else {
			runeStart = utf8.RuneCountInString(text[:byteStart])
		}
		length := utf8.RuneCountInString(piece)
		lastByte, lastRune = byteStart, runeStart

		chunks = append(chunks, Chunk{
			Content: piece,
			Index:   len(chunks),
			Metadata: Metadata{
				StartChar: runeStart,
				EndChar:   runeStart + length,
				Length:    length,
			},
		})
		if byteStart > cursor {
			cursor = byteStart
		}
	}
	return chunks
}

func indexFrom(text, sub string, from int) int {
	if from > len(text) {
		return -1
	}
	i := strings.Index(text[from:], sub)
	if i < 0 {
		return -1
	}
	return from + i
}
