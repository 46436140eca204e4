package processor

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"resume-structurer/internal/constants"
	"resume-structurer/internal/tracing"
	"resume-structurer/internal/types"
)

const (
	// MaxAnswerScore 单题满分
	MaxAnswerScore = 100
	// PassScore 总分达到该值为 passed
	PassScore = 70
	// PassWithNotesScore 总分达到该值为 passed-with-notes
	PassWithNotesScore = 50
)

// 模型回复缺字段时使用的默认反馈
const (
	defaultTechnicalFeedback     = "Analysis completed. Review your answer for improvements."
	defaultCommunicationFeedback = "Your communication is clear and effective."
	defaultSuggestion            = "Continue practicing and refining your answers."
	fallbackTechnicalFeedback    = "Automatic analysis is unavailable right now. Review your answer for improvements."
)

const answerSystemPrompt = "You are an expert technical interviewer who grades candidate answers. You reply with JSON only."

// ScoreAnswer 对单题作答评分
//
// 与问题生成共用模型和采样参数; 模型不可用或回复无法解析时返回 usedFallback=true、score=0 的结果,
// 该结果不计入总分。只有请求校验失败时返回错误。
func (g *QuestionGenerator) ScoreAnswer(ctx context.Context, req *types.AnswerRequest) (*types.AnswerAnalysis, error) {
	ctx, span := tracer.Start(ctx, "QuestionGenerator.ScoreAnswer")
	defer span.End()

	if req == nil {
		return nil, invalidArgs("question and answer are required")
	}
	question := strings.TrimSpace(req.Question)
	answer := strings.TrimSpace(req.Answer)
	if question == "" || answer == "" {
		err := invalidArgs("question and answer are required")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("interview.question", tracing.SafePrompt(question)),
		attribute.Int("interview.answer_chars", len(answer)),
	)

	start := time.Now()
	content, err := g.chat(ctx, answerSystemPrompt, BuildAnswerPrompt(question, answer))
	var analysis *types.AnswerAnalysis
	if err == nil {
		var ok bool
		if analysis, ok = ParseAnswerReply(content); !ok {
			err = fmt.Errorf("模型回复不是有效的评分JSON")
		}
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		g.logger.Warn().Err(err).Msg("作答评分失败，返回默认结果")
		analysis = FallbackAnalysis()
	}

	span.SetAttributes(
		attribute.Int("interview.answer_score", analysis.Score),
		attribute.Bool("interview.used_fallback", analysis.UsedFallback),
	)
	g.logger.Debug().
		Int("score", analysis.Score).
		Bool("fallback", analysis.UsedFallback).
		Dur("duration", time.Since(start)).
		Msg("作答评分完成")
	return analysis, nil
}

// BuildAnswerPrompt 评分提示词
func BuildAnswerPrompt(question, answer string) string {
	var b strings.Builder
	b.WriteString("Evaluate the candidate's answer to the interview question below.\n\n")
	fmt.Fprintf(&b, "QUESTION:\n%s\n\n", question)
	fmt.Fprintf(&b, "ANSWER:\n%s\n\n", answer)
	b.WriteString("Score the answer from 0 to 100 on technical accuracy, depth and clarity.\n")
	b.WriteString("Return ONLY valid JSON in this exact format:\n")
	b.WriteString("{\n  \"score\": 0,\n  \"technicalFeedback\": \"...\",\n  \"communicationFeedback\": \"...\",\n  \"improvementSuggestions\": [\"...\"]\n}")
	return b.String()
}

// FallbackAnalysis 无法评分时的默认结果
func FallbackAnalysis() *types.AnswerAnalysis {
	return &types.AnswerAnalysis{
		Score:                  0,
		TechnicalFeedback:      fallbackTechnicalFeedback,
		CommunicationFeedback:  defaultCommunicationFeedback,
		ImprovementSuggestions: []string{defaultSuggestion},
		UsedFallback:           true,
	}
}

// ParseAnswerReply 从模型回复中取出评分
//
// 支持数组包装和 output/data/result 包装; score 可以是数字或数字字符串, 缺失时为 0,
// 并截断到 0-100 后取整。回复不是 JSON 对象时返回 false。
func ParseAnswerReply(content string) (*types.AnswerAnalysis, bool) {
	payload, ok := decodeReply(content)
	if !ok {
		return nil, false
	}
	obj := unwrapAnalysis(payload)
	if obj == nil {
		return nil, false
	}
	nested, _ := obj["analysis"].(map[string]any)

	score, ok := toScore(obj["score"])
	if !ok && nested != nil {
		score, _ = toScore(nested["score"])
	}

	technical := defaultTechnicalFeedback
	switch v := obj["analysis"].(type) {
	case string:
		technical = v
	case map[string]any:
		if s, ok := firstString(v, "text", "feedback"); ok {
			technical = s
		}
	}
	if s, ok := firstString(obj, "technicalFeedback"); ok {
		technical = s
	} else if s, ok := firstString(nested, "technicalFeedback"); ok {
		technical = s
	}

	communication := defaultCommunicationFeedback
	if s, ok := firstString(obj, "communicationFeedback"); ok {
		communication = s
	} else if s, ok := firstString(nested, "communicationFeedback"); ok {
		communication = s
	}

	suggestions := suggestionList(obj["improvementSuggestions"])
	if len(suggestions) == 0 && nested != nil {
		suggestions = suggestionList(nested["improvementSuggestions"])
		if len(suggestions) == 0 {
			suggestions = suggestionList(nested["suggestions"])
		}
	}
	if len(suggestions) == 0 {
		suggestions = []string{defaultSuggestion}
	}

	return &types.AnswerAnalysis{
		Score:                  clampScore(score),
		TechnicalFeedback:      technical,
		CommunicationFeedback:  communication,
		ImprovementSuggestions: suggestions,
	}, true
}

// 评分对象外层可能的包装字段
var analysisWrapperKeys = []string{"output", "data", "result"}

func unwrapAnalysis(v any) map[string]any {
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			if obj := unwrapAnalysis(item); len(obj) > 0 {
				return obj
			}
		}
	case map[string]any:
		for _, key := range analysisWrapperKeys {
			if inner, ok := x[key].(map[string]any); ok {
				return unwrapAnalysis(inner)
			}
		}
		return x
	}
	return nil
}

func toScore(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func clampScore(f float64) int {
	return int(math.Round(math.Min(math.Max(f, 0), MaxAnswerScore)))
}

func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

func suggestionList(v any) []string {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) != "" {
			return []string{x}
		}
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// SummarizeInterview 汇总逐题评分
//
// 只统计模型给出的评分, 默认结果不计入; 总分为平均分四舍五入, 没有可统计的题目时为 0。
func SummarizeInterview(analyses []types.AnswerAnalysis) (*types.InterviewSummary, error) {
	total, answered := 0, 0
	for i, a := range analyses {
		if a.Score < 0 || a.Score > MaxAnswerScore {
			return nil, invalidArgs(fmt.Sprintf("analyses[%d].score must be between 0 and %d", i, MaxAnswerScore))
		}
		if a.UsedFallback {
			continue
		}
		total += a.Score
		answered++
	}

	overall := 0
	if answered > 0 {
		overall = int(math.Round(float64(total) / float64(answered)))
	}
	return &types.InterviewSummary{
		OverallScore: overall,
		Answered:     answered,
		Result:       interviewResult(overall),
	}, nil
}

func interviewResult(score int) string {
	switch {
	case score >= PassScore:
		return constants.InterviewResultPassed
	case score >= PassWithNotesScore:
		return constants.InterviewResultPassedWithNotes
	default:
		return constants.InterviewResultFailed
	}
}
