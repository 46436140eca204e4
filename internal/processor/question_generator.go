package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-structurer/internal/constants"
	"resume-structurer/internal/logger"
	"resume-structurer/internal/tracing"
	"resume-structurer/internal/types"
)

const (
	// TotalQuestions 每场面试的问题数
	TotalQuestions = 15
	// SoftSkillQuestions 开头的软技能问题数
	SoftSkillQuestions = 3
	// MinResumeQuestions 有简历时至少引用简历内容的技术问题数
	MinResumeQuestions = 6
)

const questionSystemPrompt = "You are an expert technical interviewer. You reply with JSON only."

// QuestionGenerator 根据岗位和简历上下文生成面试问题
//
// model 通常已被 ratelimit 包装, 限流和重试在那一层完成。
// 调用失败或回复中没有问题时使用内置题库。
type QuestionGenerator struct {
	model   model.BaseChatModel
	builder *ContextBuilder

	temperature *float32
	maxTokens   *int
	logger      zerolog.Logger
}

// NewQuestionGenerator 创建问题生成器, chatModel 为 nil 时总是使用内置题库
func NewQuestionGenerator(chatModel model.BaseChatModel, builder *ContextBuilder, opts ...GeneratorOption) *QuestionGenerator {
	g := &QuestionGenerator{
		model:   chatModel,
		builder: builder,
		logger:  logger.Component("question-generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate 生成 15 个面试问题, 只在请求校验失败时返回错误
func (g *QuestionGenerator) Generate(ctx context.Context, req *types.InterviewRequest) (*types.InterviewQuestions, error) {
	ctx, span := tracer.Start(ctx, "QuestionGenerator.Generate")
	defer span.End()

	built, err := g.builder.Build(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("interview.job_role", tracing.TruncateString(built.Context.JobRole, 128)),
		attribute.Int("interview.context_chars", len(built.JSON)),
		attribute.Bool("interview.context_truncated", built.Truncated),
	)

	questions, err := g.ask(ctx, built)
	usedFallback := false
	if err != nil || len(questions) == 0 {
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeLLM)
			g.logger.Warn().Err(err).Str("job_role", built.Context.JobRole).Msg("生成面试问题失败，使用内置题库")
		} else {
			g.logger.Warn().Str("job_role", built.Context.JobRole).Msg("模型回复中没有可用问题，使用内置题库")
		}
		questions = FallbackQuestions(built.Context.TechStack)
		usedFallback = true
	}

	status := constants.QuestionsStatusGenerated
	if usedFallback {
		status = constants.QuestionsStatusFallback
	}
	span.SetAttributes(
		attribute.Int("interview.questions", len(questions)),
		attribute.Bool("interview.used_fallback", usedFallback),
	)

	return &types.InterviewQuestions{
		Status:                status,
		Questions:             questions,
		Top15Questions:        append([]string(nil), questions...),
		TechStack:             built.Context.TechStack,
		UsedFallbackQuestions: usedFallback,
		Context:               built.Context,
		ContextTruncated:      built.Truncated,
	}, nil
}

func (g *QuestionGenerator) ask(ctx context.Context, built *BuiltContext) ([]string, error) {
	start := time.Now()
	content, err := g.chat(ctx, questionSystemPrompt, BuildQuestionPrompt(built.Context))
	if err != nil {
		return nil, err
	}

	questions := ParseQuestionReply(content)
	g.logger.Debug().
		Int("questions", len(questions)).
		Int("reply_chars", len(content)).
		Dur("duration", time.Since(start)).
		Msg("模型问题生成完成")
	return questions, nil
}

// chat 发送一轮 system + user 消息, 返回模型回复文本
func (g *QuestionGenerator) chat(ctx context.Context, system, user string) (string, error) {
	if g.model == nil {
		return "", fmt.Errorf("未配置对话模型")
	}

	var opts []model.Option
	if g.temperature != nil {
		opts = append(opts, model.WithTemperature(*g.temperature))
	}
	if g.maxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*g.maxTokens))
	}

	resp, err := g.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("调用对话模型失败: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("对话模型返回空消息")
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("llm.reply", tracing.SafePrompt(resp.Content)))
	return resp.Content, nil
}

// BuildQuestionPrompt 生成问题的提示词
//
// 前 3 题为软技能问题, 其余 12 题为技术问题; 有简历内容时至少 6 道技术题引用简历中的具体条目。
func BuildQuestionPrompt(ic types.InterviewContext) string {
	var details []string
	if len(ic.Resume.Projects) > 0 {
		details = append(details, "Projects: "+mustJSON(ic.Resume.Projects))
	}
	if len(ic.Resume.Experience) > 0 {
		details = append(details, "Experience: "+mustJSON(ic.Resume.Experience))
	}
	if len(ic.Resume.Internships) > 0 {
		details = append(details, "Internships: "+mustJSON(ic.Resume.Internships))
	}
	if len(ic.Resume.Skills) > 0 {
		details = append(details, "Skills: "+strings.Join(ic.Resume.Skills, ", "))
	}
	if len(ic.Resume.Education) > 0 {
		details = append(details, "Education: "+mustJSON(ic.Resume.Education))
	}
	hasResume := len(details) > 0

	jobRole := ic.JobRole
	if jobRole == "" {
		jobRole = "software developer"
	}
	summary := ic.ResumeSummary
	if summary == "" {
		summary = "No resume provided"
	}

	var rules string
	if hasResume {
		rules = fmt.Sprintf("- At least %d of the %d technical questions MUST reference specific items from the resume\n"+
			"- Use exact names from the resume (projects, companies, technologies, frameworks)\n"+
			"- Reference concrete experiences, projects, or technologies from the resume above\n"+
			"- Examples from resume: \"How did you [specific task] in [ProjectName]?\"",
			MinResumeQuestions, TotalQuestions-SoftSkillQuestions)
	} else {
		stack := "general software development"
		if len(ic.TechStack) > 0 {
			stack = strings.Join(ic.TechStack, ", ")
		}
		rules = fmt.Sprintf("- Focus on %s since no resume was provided", stack)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d personalized interview questions.\n\n", TotalQuestions)
	b.WriteString("CONTEXT:\n")
	fmt.Fprintf(&b, "- Job Role: %s\n", jobRole)
	fmt.Fprintf(&b, "- Tech Stack: %s\n", strings.Join(ic.TechStack, ", "))
	fmt.Fprintf(&b, "- Years of Experience: %g\n", ic.YearsOfExperience)
	fmt.Fprintf(&b, "- Resume Data: %s", summary)
	if hasResume {
		b.WriteString("\n\nADDITIONAL RESUME DETAILS:\n")
		b.WriteString(strings.Join(details, "\n"))
	}
	b.WriteString("\n\nREQUIREMENTS:\n")
	fmt.Fprintf(&b, "1. First %d questions: Soft-skill questions based on their experience/internships\n", SoftSkillQuestions)
	fmt.Fprintf(&b, "2. Remaining %d questions: Technical questions\n\n", TotalQuestions-SoftSkillQuestions)
	b.WriteString("CRITICAL RULES FOR TECHNICAL QUESTIONS:\n")
	b.WriteString(rules)
	b.WriteString("\n\nKeep questions professional, concise, and specific. Each question should be a single sentence ending with \"?\".\n\n")
	b.WriteString("Return ONLY valid JSON in this exact format:\n")
	fmt.Fprintf(&b, "{\n  \"questions\": [\n    \"Question 1?\",\n    \"Question 2?\",\n    ...%d questions total\n  ]\n}", TotalQuestions)
	return b.String()
}

func mustJSON(v []string) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// ParseQuestionReply 从模型回复中取出问题列表
//
// 去掉代码块标记后按 JSON 解析, 查找问题数组, 去除空白和空问题, 最多保留 15 个。
func ParseQuestionReply(content string) []string {
	payload, ok := decodeReply(content)
	if !ok {
		return nil
	}

	var out []string
	for _, q := range ExtractQuestions(payload) {
		if q = strings.TrimSpace(q); q == "" {
			continue
		}
		out = append(out, q)
		if len(out) == TotalQuestions {
			break
		}
	}
	return out
}

// decodeReply 去掉代码块标记后按 JSON 解析模型回复
func decodeReply(content string) (any, bool) {
	cleaned := strings.ReplaceAll(content, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil, false
	}

	var payload any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// 依次尝试的问题数组位置
var questionPaths = [][]string{
	{"Top15Questions"},
	{"questions"},
	{"result", "questions"},
	{"data", "questions"},
	{"output", "questions"},
	{"json", "questions"},
}

// 找不到问题数组时继续深入的包装字段
var wrapperKeys = []string{"result", "data", "output", "json"}

// ExtractQuestions 在任意 JSON 结构中查找第一个字符串数组形式的问题列表
func ExtractQuestions(payload any) []string {
	stack := []any{payload}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == nil {
			continue
		}
		if qs, ok := asStringSlice(current); ok {
			return qs
		}

		switch v := current.(type) {
		case map[string]any:
			for _, path := range questionPaths {
				if qs, ok := asStringSlice(lookup(v, path)); ok {
					return qs
				}
			}
			for _, key := range wrapperKeys {
				if next, ok := v[key]; ok && next != nil {
					stack = append(stack, next)
				}
			}
		case []any:
			stack = append(stack, v...)
		}
	}
	return nil
}

func lookup(m map[string]any, path []string) any {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

func asStringSlice(v any) ([]string, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
