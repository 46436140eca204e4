package parser

import (
	"regexp"
	"strings"
)

const entrySeparator = " • "

var (
	bulletRe = regexp.MustCompile(`^\s*(?:[-•*–]|\d+\.|[a-zA-Z]\.)\s*`)

	// 月份 + 年份的时间区间, 如 "Jan 2020 – Mar 2021" 或 "Sept. 2019 - present"
	dateRangeRe = regexp.MustCompile(`(?i)` + month + `\.?[a-z]*\s?\d{2,4}\s*[–-]\s*(?:` + month + `\.?[a-z]*\s?\d{2,4}|present|current)`)

	// "Title — Company" 形式的标题行, 区分大小写
	titleLineRe = regexp.MustCompile(`([A-Z][A-Za-z0-9&\-/\s]{2,})\s+[—\-–]\s+([A-Z][A-Za-z0-9&\-/\s]{2,})`)
)

const month = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)`

// StripBullet 去掉行首的列表符号或编号
func StripBullet(line string) string {
	return bulletRe.ReplaceAllString(line, "")
}

// startsEntry 含时间区间或是标题行时, 该行开始一个新条目
func startsEntry(line string) bool {
	return dateRangeRe.MatchString(line) || titleLineRe.MatchString(line)
}

// GroupEntries 把经历类的多行内容重新组装为条目
//
// 遇到新条目的起始行时先把缓冲区以 " • " 连接输出, 再以该行开始新的缓冲区。
func GroupEntries(lines []string) []string {
	var (
		entries []string
		buf     []string
	)
	flush := func() {
		if len(buf) == 0 {
			return
		}
		if entry := strings.TrimSpace(strings.Join(buf, entrySeparator)); entry != "" {
			entries = append(entries, entry)
		}
		buf = buf[:0]
	}

	for _, l := range lines {
		line := strings.TrimSpace(StripBullet(l))
		if line == "" {
			continue
		}
		if startsEntry(line) {
			flush()
		}
		buf = append(buf, line)
	}
	flush()
	return entries
}
