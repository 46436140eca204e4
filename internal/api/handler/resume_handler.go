package handler

import (
	"context"
	"errors"
	"io"
	"mime"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-structurer/internal/logger"
	"resume-structurer/internal/processor"
	"resume-structurer/internal/tracing"
)

const pdfContentType = "application/pdf"

// ResumeHandler 简历上传预览、提交和查询
type ResumeHandler struct {
	service     *processor.ResumeService
	uploadLimit int64
	logger      zerolog.Logger
}

// NewResumeHandler 创建简历处理器, uploadLimit 非正数时不限制文件大小
func NewResumeHandler(service *processor.ResumeService, uploadLimit int64) *ResumeHandler {
	return &ResumeHandler{
		service:     service,
		uploadLimit: uploadLimit,
		logger:      logger.Component("resume-handler"),
	}
}

// HandlePreview 解析上传的 PDF 并原样返回结构化结果
// POST /api/v1/resume/parse
func (h *ResumeHandler) HandlePreview(ctx context.Context, c *app.RequestContext) {
	_, data, ok := h.readPDFUpload(c)
	if !ok {
		return
	}

	parsed, err := h.service.Preview(ctx, data)
	if err != nil {
		h.writeParseError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, parsed)
}

// HandleSubmit 解析并持久化上传的 PDF
// POST /api/v1/resume/submit
func (h *ResumeHandler) HandleSubmit(ctx context.Context, c *app.RequestContext) {
	filename, data, ok := h.readPDFUpload(c)
	if !ok {
		return
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("upload.filename", tracing.SafeAttributeValue("upload.filename", filename, tracing.DefaultMaxLength)))

	result, err := h.service.Submit(ctx, filename, data)
	if err != nil {
		h.writeParseError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, result)
}

// HandleGetSubmission 按提交ID查询已持久化的解析结果
// GET /api/v1/resume/:submission_uuid
func (h *ResumeHandler) HandleGetSubmission(ctx context.Context, c *app.RequestContext) {
	submissionUUID := c.Param("submission_uuid")
	if submissionUUID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"message": "submission_uuid is required"})
		return
	}

	parsed, err := h.service.Get(ctx, submissionUUID)
	switch {
	case err == nil:
		c.JSON(consts.StatusOK, parsed)
	case errors.Is(err, processor.ErrSubmissionNotFound):
		c.JSON(consts.StatusNotFound, utils.H{"message": "Submission not found"})
	case errors.Is(err, processor.ErrRepositoryNotInit):
		c.JSON(consts.StatusServiceUnavailable, utils.H{"message": "Persistence is not configured"})
	default:
		h.logger.Error().Err(err).Str("submission_uuid", submissionUUID).Msg("查询解析记录失败")
		tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, consts.StatusInternalServerError)
		c.JSON(consts.StatusInternalServerError, utils.H{"message": "Failed to load submission", "error": err.Error()})
	}
}

// readPDFUpload 读取 multipart 中名为 file 的 PDF, 校验失败时已写入响应
func (h *ResumeHandler) readPDFUpload(c *app.RequestContext) (string, []byte, bool) {
	if !strings.Contains(strings.ToLower(string(c.ContentType())), "multipart/form-data") {
		c.JSON(consts.StatusUnsupportedMediaType, utils.H{"message": "Expected multipart/form-data"})
		return "", nil, false
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"message": "No file uploaded"})
		return "", nil, false
	}

	mediaType, _, err := mime.ParseMediaType(fileHeader.Header.Get("Content-Type"))
	if err != nil || mediaType != pdfContentType {
		c.JSON(consts.StatusUnsupportedMediaType, utils.H{"message": "Only PDF files are supported"})
		return "", nil, false
	}

	if h.uploadLimit > 0 && fileHeader.Size > h.uploadLimit {
		c.JSON(consts.StatusRequestEntityTooLarge, utils.H{"message": "File too large"})
		return "", nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error().Err(err).Str("filename", fileHeader.Filename).Msg("打开上传文件失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"message": "Failed to parse resume", "error": err.Error()})
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error().Err(err).Str("filename", fileHeader.Filename).Msg("读取上传文件失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"message": "Failed to parse resume", "error": err.Error()})
		return "", nil, false
	}
	return fileHeader.Filename, data, true
}

func (h *ResumeHandler) writeParseError(ctx context.Context, c *app.RequestContext, err error) {
	span := trace.SpanFromContext(ctx)
	if errors.Is(err, processor.ErrParseTimeout) {
		h.logger.Warn().Err(err).Msg("简历解析超时")
		tracing.RecordHTTPError(span, err, consts.StatusGatewayTimeout)
		c.JSON(consts.StatusGatewayTimeout, utils.H{"message": "Resume parsing timed out"})
		return
	}
	h.logger.Error().Err(err).Msg("简历解析失败")
	tracing.RecordHTTPError(span, err, consts.StatusInternalServerError)
	c.JSON(consts.StatusInternalServerError, utils.H{"message": "Failed to parse resume", "error": err.Error()})
}
