package processor

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-structurer/internal/config"
	"resume-structurer/internal/types"
)

func years(v float64) *float64 { return &v }

func testResumeConfig() config.ResumeConfig {
	return config.ResumeConfig{
		MaxContextChars: 50000,
		Limits:          config.SectionLimits{Experience: 2, Projects: 1, Skills: 3, Education: 1},
	}
}

func TestBuildTechStack(t *testing.T) {
	tests := []struct {
		name        string
		description string
		role        string
		want        []string
	}{
		{"来自岗位描述", "Go, Kubernetes & C++ / Node.js", "Backend", []string{"go", "kubernetes", "c++", "node.js"}},
		{"描述为空时使用岗位名称", "   ", "C# Developer", []string{"c#", "developer"}},
		{"都没有关键词", "!!!", "???", []string{"general"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildTechStack(tt.description, tt.role))
		})
	}
}

func TestValidateInterviewRequest(t *testing.T) {
	b := NewContextBuilder(testResumeConfig())

	tests := []struct {
		name    string
		req     *types.InterviewRequest
		wantMsg string
	}{
		{"缺少请求体", nil, "request body is required"},
		{"缺少岗位名称", &types.InterviewRequest{JobDescription: "Go", YearsOfExperience: years(1)}, "jobDescription and jobRole are required"},
		{"岗位描述只有空白", &types.InterviewRequest{JobRole: "SRE", JobDescription: "  ", YearsOfExperience: years(1)}, "jobDescription and jobRole are required"},
		{"缺少工作年限", &types.InterviewRequest{JobRole: "SRE", JobDescription: "Go"}, "yearsOfExperience must be a valid non-negative number"},
		{"工作年限为负", &types.InterviewRequest{JobRole: "SRE", JobDescription: "Go", YearsOfExperience: years(-1)}, "yearsOfExperience must be a valid non-negative number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Validate(tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInterviewArgs)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	req := &types.InterviewRequest{JobRole: "  SRE ", JobDescription: " Go ", YearsOfExperience: years(0)}
	require.NoError(t, b.Validate(req))
	assert.Equal(t, "SRE", req.JobRole, "岗位名称应去除首尾空白")
	assert.Equal(t, "Go", req.JobDescription)
}

func TestBuildCapsSections(t *testing.T) {
	b := NewContextBuilder(testResumeConfig())
	resume := &types.ParsedResume{
		RawText:     "raw resume text",
		Experience:  []string{"e1", "e2", "e3"},
		Internships: []string{"i1", "i2", "i3"},
		Projects:    []string{"p1", "p2"},
		Education:   []string{"ed1", "ed2"},
		Skills:      []string{"go", "go", "sql", "k8s"},
	}
	req := &types.InterviewRequest{JobRole: "Backend", JobDescription: "Go and SQL", YearsOfExperience: years(3), Resume: resume}

	built, err := b.Build(req)
	require.NoError(t, err)
	ctx := built.Context

	assert.Equal(t, []string{"e1", "e2"}, ctx.Resume.Experience)
	assert.Equal(t, []string{"i1", "i2"}, ctx.Resume.Internships, "实习沿用经历的上限")
	assert.Equal(t, []string{"p1"}, ctx.Resume.Projects)
	assert.Equal(t, []string{"ed1"}, ctx.Resume.Education)
	assert.Equal(t, []string{"go", "go", "sql"}, ctx.Resume.Skills, "技能不去重")
	assert.Equal(t, "raw resume text", ctx.ResumeSummary)
	assert.Equal(t, []string{"go", "and", "sql"}, ctx.TechStack)
	assert.Equal(t, 3.0, ctx.YearsOfExperience)
	assert.False(t, built.Truncated)

	ctx.Resume.Experience[0] = "changed"
	assert.Equal(t, "e1", resume.Experience[0], "上下文不应与原简历共享切片")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(built.JSON), &decoded))
	assert.Equal(t, "Backend", decoded["jobRole"])
	assert.Contains(t, decoded, "resumeSummary")
	assert.Contains(t, decoded, "techStack")
}

func TestBuildOmitsScannedOrMissingResume(t *testing.T) {
	b := NewContextBuilder(testResumeConfig())

	for name, resume := range map[string]*types.ParsedResume{
		"扫描件":  {Scanned: true, RawText: "some text", Notes: "Likely scanned PDF"},
		"没有简历": nil,
	} {
		t.Run(name, func(t *testing.T) {
			built, err := b.Build(&types.InterviewRequest{JobRole: "QA", JobDescription: "Selenium", YearsOfExperience: years(1), Resume: resume})
			require.NoError(t, err)
			assert.Empty(t, built.Context.ResumeSummary)
			assert.NotNil(t, built.Context.Resume.Experience, "空章节应序列化为 []")
			assert.Empty(t, built.Context.Resume.Experience)
			assert.Contains(t, built.JSON, `"experience":[]`)
		})
	}
}

func TestBuildClipsSummaryToBudget(t *testing.T) {
	cfg := testResumeConfig()
	cfg.MaxContextChars = 400
	b := NewContextBuilder(cfg)

	resume := &types.ParsedResume{
		RawText:    strings.Repeat("简历内容 ", 300),
		Experience: []string{"Engineer at Acme"},
	}
	built, err := b.Build(&types.InterviewRequest{JobRole: "Dev", JobDescription: "Go", YearsOfExperience: years(2), Resume: resume})
	require.NoError(t, err)

	assert.True(t, built.Truncated)
	assert.LessOrEqual(t, utf8.RuneCountInString(built.JSON), 400)
	assert.NotEmpty(t, built.Context.ResumeSummary, "预算足够时摘要应保留一部分")
	assert.True(t, strings.HasPrefix(resume.RawText, built.Context.ResumeSummary), "摘要应是原文的前缀")
	assert.Equal(t, []string{"Engineer at Acme"}, built.Context.Resume.Experience, "章节内容不参与截断")
}

func TestBuildSummaryEmptiedWhenBudgetTooSmall(t *testing.T) {
	cfg := testResumeConfig()
	cfg.MaxContextChars = 50
	b := NewContextBuilder(cfg)

	built, err := b.Build(&types.InterviewRequest{
		JobRole: "Dev", JobDescription: "Go", YearsOfExperience: years(2),
		Resume: &types.ParsedResume{RawText: strings.Repeat("x", 1000), Experience: []string{"Engineer"}},
	})
	require.NoError(t, err)
	assert.True(t, built.Truncated)
	assert.Empty(t, built.Context.ResumeSummary)
	assert.Greater(t, utf8.RuneCountInString(built.JSON), 50, "其余字段不截断")
}

func TestBuildDoesNotEscapeHTML(t *testing.T) {
	b := NewContextBuilder(testResumeConfig())
	built, err := b.Build(&types.InterviewRequest{
		JobRole: "R&D <Go>", JobDescription: "Go", YearsOfExperience: years(1),
	})
	require.NoError(t, err)
	assert.Contains(t, built.JSON, `"jobRole":"R&D <Go>"`)
}
