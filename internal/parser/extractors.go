package parser

import (
	"regexp"
	"strings"
)

// 在全文中兜底查找项目时的上限
const maxProjectScan = 50

var (
	projectVerbRe   = regexp.MustCompile(`(?i)^(project:|\s*(built|developed|implemented|created|designed|engineered|architected|led|optimized)\b)`)
	projectMarkerRe = regexp.MustCompile(`(?i)^\s*project\s*[:\-]`)
	projectTitleRe  = regexp.MustCompile(`^[A-Z][A-Za-z0-9\s\-]{3,}:$`)
	projectPrefixRe = regexp.MustCompile(`(?i)^project\s*[:\-]\s*`)

	skillSeparatorRe = regexp.MustCompile(`[,•;|]`)
)

func isProjectLine(s string) bool {
	return projectVerbRe.MatchString(s) || projectMarkerRe.MatchString(s) || projectTitleRe.MatchString(s)
}

// ExtractProjects 从项目章节中挑出项目描述行
//
// 项目章节没有符合条件的行时, 在所有章节内容中查找以动词开头的行, 最多 50 条。
// 结果按首次出现顺序去重。
func ExtractProjects(projectLines, allLines []string) []string {
	var out []string
	for _, l := range projectLines {
		s := strings.TrimSpace(l)
		if isProjectLine(s) {
			out = append(out, projectPrefixRe.ReplaceAllString(s, ""))
		}
	}

	if len(out) == 0 {
		for _, l := range allLines {
			s := strings.TrimSpace(l)
			if projectVerbRe.MatchString(s) {
				out = append(out, s)
			}
			if len(out) >= maxProjectScan {
				break
			}
		}
	}
	return dedupe(out)
}

// ExtractSkills 按逗号/圆点/分号/竖线切分技能, 不去重
func ExtractSkills(lines []string) []string {
	var out []string
	for _, l := range lines {
		for _, tok := range skillSeparatorRe.Split(l, -1) {
			if tok = strings.TrimSpace(tok); tok != "" {
				out = append(out, tok)
			}
		}
	}
	return out
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return items
	}
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
