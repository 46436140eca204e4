package parser

import (
	"regexp"
	"strings"

	"resume-structurer/internal/types"
)

// 以下正则编译一次后只读, 可被并发的解析共享。

// headingRe 行首的章节标题, 只取第一个匹配
var headingRe = regexp.MustCompile(`(?i)^\s*(?:summary|about me|internship|internships|work experience|professional experience|experience|projects|project|education|education & certifications|skills|technical skills|certifications)\b[:\s-]*`)

var headingTrailRe = regexp.MustCompile(`[:\s-]+$`)

// 各规范字段对应的标题同义词(小写 key)
var fieldSynonyms = map[types.Field][]string{
	types.FieldExperience:  {"experience", "work experience", "professional experience"},
	types.FieldInternships: {"internship", "internships"},
	types.FieldProjects:    {"projects", "project"},
	types.FieldEducation:   {"education"},
	types.FieldSkills:      {"skills", "technical skills"},
}

func isCanonicalKey(key string) bool {
	for _, keys := range fieldSynonyms {
		for _, k := range keys {
			if k == key {
				return true
			}
		}
	}
	return false
}

// HeadingKey 若行是章节标题, 返回小写并去掉尾部分隔符的 key
func HeadingKey(line string) (string, bool) {
	m := headingRe.FindString(line)
	if m == "" {
		return "", false
	}
	key := strings.ToLower(m)
	key = headingTrailRe.ReplaceAllString(key, "")
	return strings.TrimSpace(key), true
}

// Sections 章节 key 到内容行的映射, 保留 key 首次出现的顺序
type Sections struct {
	order []string
	lines map[string][]string
}

// Segment 按标题行切分章节
//
// 标题行本身被丢弃; 第一个标题之前的行(通常是联系方式)不归入任何章节。
// 同义标题各自保留为独立的 key。
func Segment(lines []string) *Sections {
	s := &Sections{lines: make(map[string][]string)}
	current := ""
	for _, line := range lines {
		if key, ok := HeadingKey(line); ok {
			current = key
			if _, exists := s.lines[key]; !exists {
				s.order = append(s.order, key)
				s.lines[key] = []string{}
			}
			continue
		}
		if current != "" {
			s.lines[current] = append(s.lines[current], line)
		}
	}
	return s
}

// Keys 按首次出现顺序返回所有 key
func (s *Sections) Keys() []string {
	return append([]string(nil), s.order...)
}

// Has 任一 key 存在即返回 true, 即使其内容为空
func (s *Sections) Has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := s.lines[k]; ok {
			return true
		}
	}
	return false
}

// Lines 依次拼接各 key 的内容行
func (s *Sections) Lines(keys ...string) []string {
	var out []string
	for _, k := range keys {
		out = append(out, s.lines[k]...)
	}
	return out
}

// All 按章节顺序返回所有内容行
func (s *Sections) All() []string {
	return s.Lines(s.order...)
}

// FieldLines 返回某规范字段所有同义章节的内容行
func (s *Sections) FieldLines(f types.Field) []string {
	return s.Lines(fieldSynonyms[f]...)
}

// Confidence 有任一同义标题即为 direct
func (s *Sections) Confidence(f types.Field) types.Confidence {
	if s.Has(fieldSynonyms[f]...) {
		return types.ConfidenceDirect
	}
	return types.ConfidenceHeuristic
}

// Other 非规范章节, 为空时返回 nil
func (s *Sections) Other() map[string][]string {
	var other map[string][]string
	for _, k := range s.order {
		if isCanonicalKey(k) {
			continue
		}
		if other == nil {
			other = make(map[string][]string)
		}
		other[k] = append([]string{}, s.lines[k]...)
	}
	return other
}
