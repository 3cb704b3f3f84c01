package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/sentinel-rag/pkg/errors"
)

// DefaultChapterPattern 匹配 "Chapter N" / "Chapitre N" / "Section N" 形式的标题。
const DefaultChapterPattern = `(?i)\b(?:chapter|chapitre|section)\s+\d+`

var defaultChapterRegexp = regexp.MustCompile(DefaultChapterPattern)

func compileChapterPattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return defaultChapterRegexp, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.ErrRAGConfiguration.WithMessagef("invalid chapter pattern %q", pattern).WithCause(err)
	}
	return re, nil
}

// ChunkByChapters 以章节标题的起始位置为边界切分, 每章一个分块。
// 第一个标题之前的内容并入第一章, 分块首尾相接覆盖全文。
// 标题少于两处时退化为 ChunkText。pattern 为 nil 时使用 DefaultChapterPattern。
func ChunkByChapters(text string, pattern *regexp.Regexp, opts Options) (*Result, error) {
	if pattern == nil {
		pattern = defaultChapterRegexp
	}

	matches := pattern.FindAllStringIndex(text, -1)
	if len(matches) < 2 {
		return ChunkText(text, opts)
	}

	bounds := make([]int, 0, len(matches)+1)
	bounds = append(bounds, 0)
	for _, m := range matches[1:] {
		bounds = append(bounds, m[0])
	}
	bounds = append(bounds, len(text))

	chunks := make([]Chunk, 0, len(matches))
	runeStart := 0
	for i := 0; i+1 < len(bounds); i++ {
		content := text[bounds[i]:bounds[i+1]]
		length := utf8.RuneCountInString(content)
		chunks = append(chunks, Chunk{
			Content: content,
			Index:   i,
			Metadata: Metadata{
				StartChar: runeStart,
				EndChar:   runeStart + length,
				Length:    length,
			},
		})
		runeStart += length
	}

	return newResult(text, chunks), nil
}

// ChunkByFixedSize 以 size-overlap 为步长滑动固定窗口, 最后一块可能较短。
// 窗口到达文本末尾即停止。
func ChunkByFixedSize(text string, size, overlap int) (*Result, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return newResult(text, nil), nil
	}

	step := size - overlap
	chunks := make([]Chunk, 0, (n+step-1)/step)
	for start := 0; ; start += step {
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, Chunk{
			Content: string(runes[start:end]),
			Index:   len(chunks),
			Metadata: Metadata{
				StartChar: start,
				EndChar:   end,
				Length:    end - start,
			},
		})
		if end == n {
			break
		}
	}

	return newResult(text, chunks), nil
}

var (
	horizontalSpace = regexp.MustCompile(`[^\S\n]+`)
	extraNewlines   = regexp.MustCompile(`\n{3,}`)
)

// PreprocessText 统一换行符, 将连续三个以上换行压缩为两个,
// 将连续的水平空白压缩为单个空格, 并去除首尾空白。多次调用结果不变。
func PreprocessText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = extraNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
