package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-structurer/internal/agent"
	"resume-structurer/internal/constants"
	"resume-structurer/internal/types"
	"resume-structurer/pkg/ratelimit"
)

func numberedQuestions(n int) []string {
	qs := make([]string, n)
	for i := range qs {
		qs[i] = fmt.Sprintf("Question %d?", i+1)
	}
	return qs
}

func questionsReply(t *testing.T, qs []string) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{"questions": qs})
	require.NoError(t, err)
	return "```json\n" + string(data) + "\n```"
}

func interviewRequest() *types.InterviewRequest {
	return &types.InterviewRequest{
		JobRole:           "Backend Engineer",
		JobDescription:    "Go, PostgreSQL, Kafka",
		YearsOfExperience: years(4),
		Resume: &types.ParsedResume{
			RawText:    "Jane Doe\nBuilt PaymentHub in Go",
			Experience: []string{"Senior Engineer at Acme"},
			Projects:   []string{"PaymentHub - payment gateway in Go"},
			Skills:     []string{"go", "kafka"},
		},
	}
}

func TestGenerateQuestionsFromModel(t *testing.T) {
	mock := agent.NewMockChatClient(questionsReply(t, numberedQuestions(18)), nil)
	g := NewQuestionGenerator(mock, NewContextBuilder(testResumeConfig()), WithGeneratorLogger(zerolog.Nop()))

	res, err := g.Generate(context.Background(), interviewRequest())
	require.NoError(t, err)

	assert.Equal(t, constants.QuestionsStatusGenerated, res.Status)
	assert.False(t, res.UsedFallbackQuestions)
	assert.Len(t, res.Questions, TotalQuestions, "最多保留15个问题")
	assert.Equal(t, "Question 1?", res.Questions[0])
	assert.Equal(t, res.Questions, res.Top15Questions)
	assert.Equal(t, []string{"go", "postgresql", "kafka"}, res.TechStack)
	assert.Equal(t, "Backend Engineer", res.Context.JobRole)

	require.Len(t, mock.ReceivedMessages, 1)
	msgs := mock.ReceivedMessages[0]
	require.Len(t, msgs, 2)
	prompt := msgs[1].Content
	assert.Contains(t, prompt, "PaymentHub")
	assert.Contains(t, prompt, "At least 6 of the 12 technical questions MUST reference specific items from the resume")
	assert.Contains(t, prompt, "First 3 questions: Soft-skill")
}

func TestGenerateFallsBackOnModelError(t *testing.T) {
	mock := agent.NewMockChatClient("", errors.New("401 unauthorized"))
	g := NewQuestionGenerator(mock, NewContextBuilder(testResumeConfig()), WithGeneratorLogger(zerolog.Nop()))

	res, err := g.Generate(context.Background(), interviewRequest())
	require.NoError(t, err, "模型失败不应导致请求失败")
	assert.True(t, res.UsedFallbackQuestions)
	assert.Equal(t, constants.QuestionsStatusFallback, res.Status)
	assert.Len(t, res.Questions, TotalQuestions)
	assert.Contains(t, res.Questions[SoftSkillQuestions], "go, postgresql, kafka")
}

func TestGenerateFallsBackOnUnusableReply(t *testing.T) {
	for name, reply := range map[string]string{
		"不是JSON":  "Sure! Here are your questions: 1. ...",
		"空数组":     `{"questions": []}`,
		"全是空白问题": `{"questions": ["  ", ""]}`,
	} {
		t.Run(name, func(t *testing.T) {
			g := NewQuestionGenerator(agent.NewMockChatClient(reply, nil), NewContextBuilder(testResumeConfig()),
				WithGeneratorLogger(zerolog.Nop()))
			res, err := g.Generate(context.Background(), interviewRequest())
			require.NoError(t, err)
			assert.True(t, res.UsedFallbackQuestions)
			assert.Len(t, res.Questions, TotalQuestions)
		})
	}
}

func TestGenerateWithoutModelUsesFallback(t *testing.T) {
	g := NewQuestionGenerator(nil, NewContextBuilder(testResumeConfig()), WithGeneratorLogger(zerolog.Nop()))
	res, err := g.Generate(context.Background(), interviewRequest())
	require.NoError(t, err)
	assert.True(t, res.UsedFallbackQuestions)
}

func TestGenerateValidationError(t *testing.T) {
	mock := agent.NewMockChatClient(`{"questions":["a?"]}`, nil)
	g := NewQuestionGenerator(mock, NewContextBuilder(testResumeConfig()), WithGeneratorLogger(zerolog.Nop()))

	_, err := g.Generate(context.Background(), &types.InterviewRequest{JobRole: "Dev"})
	assert.ErrorIs(t, err, ErrInvalidInterviewArgs)
	assert.Equal(t, 0, mock.Calls(), "校验失败时不应调用模型")
}

// 限流代理对 429 进行退避重试, 成功后正常返回问题
func TestGenerateRetriesThroughRateLimiter(t *testing.T) {
	mock := agent.NewMockChatClientSequential([]agent.MockResponse{
		{Error: &agent.APIError{StatusCode: 429, Body: "rate limited"}},
		{Content: questionsReply(t, numberedQuestions(15))},
	})
	limited := ratelimit.NewLLMWithRateLimit(mock, 600, 3, time.Millisecond, zerolog.Nop())
	g := NewQuestionGenerator(limited, NewContextBuilder(testResumeConfig()), WithGeneratorLogger(zerolog.Nop()))

	res, err := g.Generate(context.Background(), interviewRequest())
	require.NoError(t, err)
	assert.False(t, res.UsedFallbackQuestions)
	assert.Equal(t, 2, mock.Calls())
}

func TestBuildQuestionPromptWithoutResume(t *testing.T) {
	prompt := BuildQuestionPrompt(types.InterviewContext{
		JobRole:   "Data Engineer",
		TechStack: []string{"spark", "python"},
		Resume:    emptySections(),
	})
	assert.Contains(t, prompt, "Resume Data: No resume provided")
	assert.Contains(t, prompt, "Focus on spark, python since no resume was provided")
	assert.NotContains(t, prompt, "ADDITIONAL RESUME DETAILS")
	assert.Contains(t, prompt, "Years of Experience: 0")
}

func TestParseQuestionReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{"代码块包裹", "```json\n{\"questions\":[\" a? \",\"b?\"]}\n```", []string{"a?", "b?"}},
		{"Top15Questions字段", `{"Top15Questions":["x?"],"questions":["y?"]}`, []string{"x?"}},
		{"嵌套result", `{"result":{"questions":["r?"]}}`, []string{"r?"}},
		{"多层包装", `{"output":{"data":{"json":{"questions":["deep?"]}}}}`, []string{"deep?"}},
		{"顶层数组", `["q1?","","q2?"]`, []string{"q1?", "q2?"}},
		{"数组中的对象", `[{"questions":["inner?"]}]`, []string{"inner?"}},
		{"非字符串数组被跳过", `{"questions":[1,2],"data":{"questions":["ok?"]}}`, []string{"ok?"}},
		{"非法JSON", `{"questions":`, nil},
		{"空回复", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuestionReply(tt.reply))
		})
	}
}

func TestFallbackQuestions(t *testing.T) {
	qs := FallbackQuestions([]string{"go", "go", "redis", "grpc", "k8s", "sql", "aws"})
	require.Len(t, qs, TotalQuestions)
	assert.Equal(t, fallbackSoftSkill[0], qs[0])
	assert.Contains(t, qs[SoftSkillQuestions], "go, redis, grpc, k8s, sql", "最多引用5个不重复的关键词")
	assert.NotContains(t, qs[SoftSkillQuestions], "aws")

	qs[0] = "mutated"
	assert.NotEqual(t, "mutated", FallbackQuestions(nil)[0], "题库不应被调用方修改")

	for _, q := range FallbackQuestions(nil)[SoftSkillQuestions:] {
		assert.True(t, strings.Contains(q, "general software development"), q)
	}
}
