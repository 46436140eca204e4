package processor

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"resume-structurer/internal/config"
	"resume-structurer/internal/types"
)

// 岗位描述中的技术关键词, 编译一次后只读
var techTokenPattern = regexp.MustCompile(`[a-z0-9+#.]+`)

const defaultTechStackToken = "general"

// BuildTechStack 从岗位描述提取小写关键词, 为空时退回岗位名称, 再为空时为 ["general"]
func BuildTechStack(jobDescription, jobRole string) []string {
	if tokens := techTokenPattern.FindAllString(strings.ToLower(jobDescription), -1); len(tokens) > 0 {
		return tokens
	}
	if tokens := techTokenPattern.FindAllString(strings.ToLower(jobRole), -1); len(tokens) > 0 {
		return tokens
	}
	return []string{defaultTechStackToken}
}

// BuiltContext 构建好的面试上下文
type BuiltContext struct {
	Context types.InterviewContext
	// JSON 发送给模型的序列化上下文
	JSON string
	// Truncated 简历摘要是否因字符预算被截断
	Truncated bool
}

// ContextBuilder 按章节上限和总字符预算构建面试上下文
type ContextBuilder struct {
	limits   config.SectionLimits
	maxChars int
}

// NewContextBuilder 创建上下文构建器, maxChars 非正数时不限制总长度
func NewContextBuilder(cfg config.ResumeConfig) *ContextBuilder {
	return &ContextBuilder{
		limits:   cfg.Limits,
		maxChars: cfg.MaxContextChars,
	}
}

// Validate 校验并规范化请求, 岗位名称和描述去除首尾空白
func (b *ContextBuilder) Validate(req *types.InterviewRequest) error {
	if req == nil {
		return invalidArgs("request body is required")
	}
	req.JobRole = strings.TrimSpace(req.JobRole)
	req.JobDescription = strings.TrimSpace(req.JobDescription)
	if req.JobRole == "" || req.JobDescription == "" {
		return invalidArgs("jobDescription and jobRole are required")
	}
	if req.YearsOfExperience == nil || *req.YearsOfExperience < 0 {
		return invalidArgs("yearsOfExperience must be a valid non-negative number")
	}
	return nil
}

// Build 校验请求并生成上下文
//
// 扫描件或缺失的简历不提供任何简历内容。序列化后超过 maxChars 时,
// 按比例截短 resumeSummary, 直到满足预算或摘要为空。
func (b *ContextBuilder) Build(req *types.InterviewRequest) (*BuiltContext, error) {
	if err := b.Validate(req); err != nil {
		return nil, err
	}

	ic := types.InterviewContext{
		JobRole:           req.JobRole,
		TechStack:         BuildTechStack(req.JobDescription, req.JobRole),
		YearsOfExperience: *req.YearsOfExperience,
		Resume:            emptySections(),
	}
	if r := req.Resume; r != nil && !r.Scanned {
		ic.Resume = types.ResumeSections{
			Experience:  capItems(r.Experience, b.limits.Experience),
			Projects:    capItems(r.Projects, b.limits.Projects),
			Skills:      capItems(r.Skills, b.limits.Skills),
			Education:   capItems(r.Education, b.limits.Education),
			Internships: capItems(r.Internships, b.limits.Experience),
		}
		ic.ResumeSummary = r.RawText
	}

	data, err := encodeContext(ic)
	if err != nil {
		return nil, err
	}

	truncated := false
	for b.maxChars > 0 && utf8.RuneCount(data) > b.maxChars && ic.ResumeSummary != "" {
		summary := []rune(ic.ResumeSummary)
		keep := len(summary) * b.maxChars / utf8.RuneCount(data)
		ic.ResumeSummary = string(summary[:keep])
		truncated = true
		if data, err = encodeContext(ic); err != nil {
			return nil, err
		}
	}

	return &BuiltContext{Context: ic, JSON: string(data), Truncated: truncated}, nil
}

// encodeContext 不转义 HTML 字符, 长度与模型实际看到的一致
func encodeContext(ic types.InterviewContext) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ic); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// capItems 返回前 limit 项的副本, limit 非正数时不截断
func capItems(items []string, limit int) []string {
	n := len(items)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]string, n)
	copy(out, items)
	return out
}

func emptySections() types.ResumeSections {
	return types.ResumeSections{
		Experience:  []string{},
		Projects:    []string{},
		Skills:      []string{},
		Education:   []string{},
		Internships: []string{},
	}
}
