package parser

import (
	"regexp"
	"strings"
	"unicode"
)

var horizontalSpaceRe = regexp.MustCompile(`[\t ]+`)

// NormalizeLines 将一段文本切分为规范化的非空行
//
// 不间断空格视为普通空格, 连续的水平空白折叠为一个空格, 去掉行尾空白, 丢弃空行。
// 对自身输出再次调用结果不变。
func NormalizeLines(text string) []string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	raw := strings.Split(text, "\n")

	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = horizontalSpaceRe.ReplaceAllString(l, " ")
		l = strings.TrimRightFunc(l, unicode.IsSpace)
		if l == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// normalizePages 按页规范化: 每页的文本片段以换行连接后再切行
func normalizePages(pages [][]string) [][]string {
	out := make([][]string, len(pages))
	for i, fragments := range pages {
		out[i] = NormalizeLines(strings.Join(fragments, "\n"))
	}
	return out
}

// flattenTrimmed 按页序拼接所有行, 两端去空白并丢弃空行
func flattenTrimmed(pages [][]string) []string {
	var lines []string
	for _, page := range pages {
		for _, l := range page {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
	}
	return lines
}
