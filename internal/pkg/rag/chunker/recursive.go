package chunker

import (
	"strings"
	"unicode/utf8"
)

// splitRecursive 选择文本中出现的第一个分隔符切分, 过长的片段用后续分隔符继续切分,
// 足够短的片段合并为不超过 size 的分块。
func splitRecursive(text string, separators []string, size, overlap int) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var (
		final []string
		good  []string
	)
	for _, s := range splitKeepSeparator(text, separator) {
		if utf8.RuneCountInString(s) < size {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			final = append(final, mergeSplits(good, size, overlap)...)
			good = nil
		}
		if len(next) == 0 {
			if t := strings.TrimSpace(s); t != "" {
				final = append(final, t)
			}
			continue
		}
		final = append(final, splitRecursive(s, next, size, overlap)...)
	}
	if len(good) > 0 {
		final = append(final, mergeSplits(good, size, overlap)...)
	}
	return final
}

// splitKeepSeparator 切分后分隔符保留在后一片段开头, 拼接所有片段可还原原文。
func splitKeepSeparator(text, separator string) []string {
	if separator == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, separator)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, separator+p)
	}
	return out
}

// mergeSplits 将短片段贪心合并为不超过 size 的分块, 新分块以上一分块
// 末尾不超过 overlap 的片段开头。
func mergeSplits(splits []string, size, overlap int) []string {
	var (
		docs    []string
		current []string
		total   int
	)

	for _, s := range splits {
		n := utf8.RuneCountInString(s)
		if total+n > size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > overlap || (total+n > size && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, s)
		total += n
	}

	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}
