package parser

import (
	"regexp"
	"strings"

	"resume-structurer/internal/types"
)

// FallbackNote 找不到任何标题、按关键词推断时追加的说明
const FallbackNote = "Sections inferred heuristically due to missing headings."

const (
	fallbackCap       = 8
	fallbackSkillsCap = 20
)

var sentenceSplitRe = regexp.MustCompile(`[\n.]+`)

type fallbackRule struct {
	field types.Field
	re    *regexp.Regexp
	limit int
}

// 关键词规则, 进程内只读
var fallbackRules = []fallbackRule{
	{types.FieldInternships, regexp.MustCompile(`(?i)intern`), fallbackCap},
	{types.FieldProjects, regexp.MustCompile(`(?i)project|built|developed|implemented`), fallbackCap},
	{types.FieldExperience, regexp.MustCompile(`(?i)engineer|developer|led|managed|designed`), fallbackCap},
	{types.FieldEducation, regexp.MustCompile(`(?i)university|bachelor|master|b\.?tech|m\.?tech|degree`), fallbackCap},
	{types.FieldSkills, regexp.MustCompile(`(?i)js|javascript|typescript|python|react|node|sql|aws|docker|kubernetes|java|c\+\+|c#|go`), fallbackSkillsCap},
}

func sentences(rawText string) []string {
	var out []string
	for _, s := range sentenceSplitRe.Split(rawText, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func pick(sents []string, re *regexp.Regexp, n int) []string {
	out := []string{}
	for _, s := range sents {
		if len(out) >= n {
			break
		}
		if re.MatchString(s) {
			out = append(out, s)
		}
	}
	return out
}

// KeywordFallback 按换行和句点切出伪句子, 用关键词为每个规范字段挑选内容
func KeywordFallback(rawText string) map[types.Field][]string {
	sents := sentences(rawText)
	out := make(map[types.Field][]string, len(fallbackRules))
	for _, r := range fallbackRules {
		out[r.field] = pick(sents, r.re, r.limit)
	}
	return out
}

// applyFallback 五个字段都为空时用关键词结果填充
//
// 被填充的字段一律标记为 heuristic, 即使该字段有标题(标题下为空)。
func applyFallback(r *types.ParsedResume) {
	fb := KeywordFallback(r.RawText)
	r.Experience = fb[types.FieldExperience]
	r.Internships = fb[types.FieldInternships]
	r.Projects = fb[types.FieldProjects]
	r.Education = fb[types.FieldEducation]
	r.Skills = fb[types.FieldSkills]

	if r.Confidence == nil {
		r.Confidence = make(map[types.Field]types.Confidence, len(types.CanonicalFields))
	}
	for _, f := range types.CanonicalFields {
		if len(fb[f]) > 0 {
			r.Confidence[f] = types.ConfidenceHeuristic
		}
	}
	r.AddNote(FallbackNote)
}
