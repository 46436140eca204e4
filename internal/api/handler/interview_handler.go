package handler

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"resume-structurer/internal/logger"
	"resume-structurer/internal/processor"
	"resume-structurer/internal/tracing"
	"resume-structurer/internal/types"
)

// InterviewHandler 面试上下文、问题生成和作答评分
type InterviewHandler struct {
	builder   *processor.ContextBuilder
	generator *processor.QuestionGenerator
	logger    zerolog.Logger
}

// NewInterviewHandler 创建面试处理器
func NewInterviewHandler(builder *processor.ContextBuilder, generator *processor.QuestionGenerator) *InterviewHandler {
	return &InterviewHandler{
		builder:   builder,
		generator: generator,
		logger:    logger.Component("interview-handler"),
	}
}

// HandleBuildContext 返回按上限和字符预算裁剪后的面试上下文
// POST /api/v1/interview/context
func (h *InterviewHandler) HandleBuildContext(ctx context.Context, c *app.RequestContext) {
	req, ok := bindJSON[types.InterviewRequest](c)
	if !ok {
		return
	}

	built, err := h.builder.Build(req)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"status":       "success",
		"context":      built.Context,
		"contextChars": utf8.RuneCountInString(built.JSON),
		"truncated":    built.Truncated,
	})
}

// HandleGenerateQuestions 生成 15 个面试问题, 模型不可用时返回内置题库
// POST /api/v1/interview/questions
func (h *InterviewHandler) HandleGenerateQuestions(ctx context.Context, c *app.RequestContext) {
	req, ok := bindJSON[types.InterviewRequest](c)
	if !ok {
		return
	}

	questions, err := h.generator.Generate(ctx, req)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, questions)
}

// HandleScoreAnswer 对单题作答评分, 模型不可用时返回不计入总分的默认结果
// POST /api/v1/interview/answer
func (h *InterviewHandler) HandleScoreAnswer(ctx context.Context, c *app.RequestContext) {
	req, ok := bindJSON[types.AnswerRequest](c)
	if !ok {
		return
	}

	analysis, err := h.generator.ScoreAnswer(ctx, req)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, analysis)
}

// HandleSummarize 汇总逐题评分得到总分和面试结果
// POST /api/v1/interview/summary
func (h *InterviewHandler) HandleSummarize(ctx context.Context, c *app.RequestContext) {
	req, ok := bindJSON[types.InterviewSummaryRequest](c)
	if !ok {
		return
	}

	summary, err := processor.SummarizeInterview(req.Analyses)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, summary)
}

func bindJSON[T any](c *app.RequestContext) (*T, bool) {
	var req T
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"status": "error", "message": "Invalid JSON body", "error": err.Error()})
		return nil, false
	}
	return &req, true
}

func (h *InterviewHandler) writeError(ctx context.Context, c *app.RequestContext, err error) {
	if errors.Is(err, processor.ErrInvalidInterviewArgs) {
		tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, consts.StatusBadRequest)
		c.JSON(consts.StatusBadRequest, utils.H{"status": "error", "message": err.Error()})
		return
	}
	h.logger.Error().Err(err).Msg("处理面试请求失败")
	tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, consts.StatusInternalServerError)
	c.JSON(consts.StatusInternalServerError, utils.H{"status": "error", "message": "Internal server error", "error": err.Error()})
}
