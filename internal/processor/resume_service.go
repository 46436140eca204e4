package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"resume-structurer/internal/constants"
	"resume-structurer/internal/logger"
	"resume-structurer/internal/storage"
	"resume-structurer/internal/storage/models"
	"resume-structurer/internal/tracing"
	"resume-structurer/internal/types"
	"resume-structurer/pkg/utils"
)

// 定义tracer
var tracer = otel.Tracer("processor")

const defaultParseTimeout = 30 * time.Second

// Parser 把 PDF 字节流转换为结构化简历, *parser.Structurer 实现了该接口
type Parser interface {
	Parse(ctx context.Context, data []byte) *types.ParsedResume
}

// ParsedCache 按文件 MD5 缓存解析结果, 并记录 MD5 对应的提交ID
type ParsedCache interface {
	GetParsedResume(ctx context.Context, md5Hex string) (*types.ParsedResume, error)
	SetParsedResume(ctx context.Context, md5Hex string, parsed *types.ParsedResume) error
	GetSubmissionUUID(ctx context.Context, md5Hex string) (string, error)
	RecordSubmission(ctx context.Context, md5Hex, submissionUUID string) error
	ForgetSubmission(ctx context.Context, md5Hex string) error
}

// OriginalStore 原始 PDF 的对象存储
type OriginalStore interface {
	UploadResumeFile(ctx context.Context, submissionUUID string, reader io.Reader, fileSize int64) (string, error)
	DeleteFile(ctx context.Context, objectKey string) error
}

// ParseRepository 解析记录与 outbox 消息的持久化
type ParseRepository interface {
	SaveParseWithOutbox(ctx context.Context, rec *models.ResumeParse, msg *models.OutboxMessage) error
	GetParse(ctx context.Context, submissionUUID string) (*models.ResumeParse, error)
}

// SubmitResult 提交结果
type SubmitResult struct {
	SubmissionUUID string              `json:"submission_uuid"`
	Status         string              `json:"status"`
	Scanned        bool                `json:"scanned"`
	Parsed         *types.ParsedResume `json:"parsed"`
}

// ResumeService 简历预览与提交
//
// 解析本身总是返回结果; 缓存、对象存储和数据库失败只记录日志并降级,
// 只有解析超时会作为错误返回。
type ResumeService struct {
	parser    Parser
	cache     ParsedCache
	originals OriginalStore
	repo      ParseRepository

	parseTimeout time.Duration
	exchange     string
	routingKey   string
	newID        func() (string, error)
	logger       zerolog.Logger
}

// NewResumeService 创建简历服务
func NewResumeService(p Parser, opts ...ServiceOption) *ResumeService {
	rs := &ResumeService{
		parser:       p,
		parseTimeout: defaultParseTimeout,
		routingKey:   constants.EventTypeResumeParsed,
		newID:        newSubmissionID,
		logger:       logger.Component("resume-service"),
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

func newSubmissionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("生成UUIDv7失败: %w", err)
	}
	return id.String(), nil
}

// Persistent 对象存储和数据库是否都可用
func (rs *ResumeService) Persistent() bool {
	return rs.originals != nil && rs.repo != nil
}

// Preview 解析并直接返回结构化结果, 不做任何存储
func (rs *ResumeService) Preview(ctx context.Context, data []byte) (*types.ParsedResume, error) {
	ctx, span := tracer.Start(ctx, "ResumeService.Preview")
	defer span.End()

	parsed, err := rs.parse(ctx, "", data)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("resume.scanned", parsed.Scanned),
		attribute.String("resume.text_preview", tracing.SafeResumeContent(parsed.RawText)),
	)
	return parsed, nil
}

// parse 在 parseTimeout 内完成解析, 超时后丢弃仍在进行的结果
func (rs *ResumeService) parse(ctx context.Context, submissionUUID string, data []byte) (*types.ParsedResume, error) {
	ctx, cancel := context.WithTimeout(ctx, rs.parseTimeout)
	defer cancel()

	done := make(chan *types.ParsedResume, 1)
	go func() {
		done <- rs.parser.Parse(ctx, data)
	}()

	select {
	case parsed := <-done:
		// 提取器可能因 ctx 结束而提前返回, 此时的结果同样丢弃
		if err := ctx.Err(); err != nil {
			return nil, rs.abortError(submissionUUID, err)
		}
		return parsed, nil
	case <-ctx.Done():
		return nil, rs.abortError(submissionUUID, ctx.Err())
	}
}

func (rs *ResumeService) abortError(submissionUUID string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(submissionUUID, fmt.Sprintf("超过 %s", rs.parseTimeout))
	}
	return NewExtractError(submissionUUID, err.Error())
}

// Submit 解析并持久化一份简历
//
// 流程: 计算文件MD5 -> 重复文件直接返回已有提交 -> 读取或写入解析缓存 ->
// 生成UUIDv7 -> 上传原始文件 -> 同一事务写入解析记录和 outbox 消息 -> 记录 MD5 映射。
// 文本提取失败的提交照常持久化, 但既不缓存也不记录映射。
func (rs *ResumeService) Submit(ctx context.Context, filename string, data []byte) (*SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "ResumeService.Submit")
	defer span.End()

	fileMD5 := utils.CalculateMD5(data)
	log := rs.logger.With().Str("md5", fileMD5).Str("filename", filename).Logger()
	span.SetAttributes(
		attribute.String("file.md5", fileMD5),
		attribute.Int("file.size_bytes", len(data)),
	)

	if dup := rs.findDuplicate(ctx, fileMD5, log); dup != nil {
		span.SetAttributes(attribute.String("submission_uuid", dup.SubmissionUUID))
		log.Info().Str("submission_uuid", dup.SubmissionUUID).Msg("检测到重复的文件MD5，返回已有提交")
		return dup, nil
	}

	parsed, err := rs.cachedOrParse(ctx, fileMD5, data, log)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return nil, err
	}

	submissionUUID, err := rs.newID()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, err
	}
	span.SetAttributes(attribute.String("submission_uuid", submissionUUID))
	log = log.With().Str("submission_uuid", submissionUUID).Logger()

	result := &SubmitResult{
		SubmissionUUID: submissionUUID,
		Status:         constants.StatusParsedNotPersisted,
		Scanned:        parsed.Scanned,
		Parsed:         parsed,
	}

	if !rs.Persistent() {
		log.Warn().Msg("对象存储或数据库不可用，解析结果仅保存在缓存中")
		return result, nil
	}

	if err := rs.persist(ctx, submissionUUID, fileMD5, filename, data, parsed); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		log.Error().Err(err).Msg("持久化解析结果失败，降级返回")
		return result, nil
	}

	result.Status = constants.StatusParsed
	if parsed.Scanned {
		result.Status = constants.StatusScanned
	}

	if parsed.ExtractionFailed {
		// 提取失败可能是暂时的(如 Tika 不可达), 不记录映射, 相同文件再次提交时重新解析
		log.Warn().Str("notes", parsed.Notes).Msg("文本提取失败, 不记录文件MD5映射")
	} else if rs.cache != nil {
		if err := rs.cache.RecordSubmission(ctx, fileMD5, submissionUUID); err != nil {
			// 映射缺失只会让下次相同文件重新提交
			log.Warn().Err(NewCacheError(submissionUUID, err.Error())).Msg("记录文件MD5映射失败")
		}
	}

	span.SetStatus(codes.Ok, "提交成功")
	log.Info().Str("status", result.Status).Bool("scanned", parsed.Scanned).Msg("简历提交完成")
	return result, nil
}

// findDuplicate 文件已经提交并持久化过时返回已有结果
func (rs *ResumeService) findDuplicate(ctx context.Context, fileMD5 string, log zerolog.Logger) *SubmitResult {
	if rs.cache == nil || rs.repo == nil {
		return nil
	}

	existing, err := rs.cache.GetSubmissionUUID(ctx, fileMD5)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(NewCacheError("", err.Error())).Msg("查询文件MD5映射失败")
		}
		return nil
	}

	rec, err := rs.repo.GetParse(ctx, existing)
	if errors.Is(err, storage.ErrNotFound) {
		// 映射指向的记录已不存在, 清理后按新文件处理
		if err := rs.cache.ForgetSubmission(ctx, fileMD5); err != nil {
			log.Warn().Err(err).Str("submission_uuid", existing).Msg("清理失效的文件MD5映射失败")
		}
		return nil
	}
	if err != nil {
		log.Warn().Err(NewDatabaseError(existing, err.Error())).Msg("查询已有解析记录失败")
		return nil
	}

	parsed, err := rec.ToParsedResume()
	if err != nil {
		log.Warn().Err(err).Str("submission_uuid", existing).Msg("已有解析记录无法读取")
		return nil
	}
	return &SubmitResult{
		SubmissionUUID: existing,
		Status:         constants.StatusDuplicate,
		Scanned:        parsed.Scanned,
		Parsed:         parsed,
	}
}

// cachedOrParse 优先使用缓存的解析结果, 未命中时解析并写入缓存
//
// 提取失败的结果不写入缓存。
func (rs *ResumeService) cachedOrParse(ctx context.Context, fileMD5 string, data []byte, log zerolog.Logger) (*types.ParsedResume, error) {
	if rs.cache != nil {
		parsed, err := rs.cache.GetParsedResume(ctx, fileMD5)
		if err == nil {
			log.Debug().Msg("命中解析缓存")
			return parsed, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(NewCacheError("", err.Error())).Msg("读取解析缓存失败，重新解析")
		}
	}

	parsed, err := rs.parse(ctx, "", data)
	if err != nil {
		return nil, err
	}

	if rs.cache != nil && !parsed.ExtractionFailed {
		if err := rs.cache.SetParsedResume(ctx, fileMD5, parsed); err != nil {
			log.Warn().Err(NewCacheError("", err.Error())).Msg("写入解析缓存失败")
		}
	}
	return parsed, nil
}

// persist 上传原始文件并在同一事务中写入解析记录和 outbox 消息
//
// 数据库写入失败时删除已上传的原始文件。
func (rs *ResumeService) persist(ctx context.Context, submissionUUID, fileMD5, filename string, data []byte, parsed *types.ParsedResume) error {
	objectKey, err := rs.originals.UploadResumeFile(ctx, submissionUUID, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return NewStoreError(submissionUUID, err.Error())
	}

	rec, err := models.NewResumeParse(submissionUUID, fileMD5, filename, objectKey, int64(len(data)), parsed, constants.ParserVersion)
	if err != nil {
		rs.removeOriginal(ctx, submissionUUID, objectKey)
		return NewDatabaseError(submissionUUID, err.Error())
	}

	msg, err := rs.parsedEvent(rec, parsed)
	if err != nil {
		rs.removeOriginal(ctx, submissionUUID, objectKey)
		return err
	}

	if err := rs.repo.SaveParseWithOutbox(ctx, rec, msg); err != nil {
		rs.removeOriginal(ctx, submissionUUID, objectKey)
		return NewDatabaseError(submissionUUID, err.Error())
	}
	return nil
}

func (rs *ResumeService) removeOriginal(ctx context.Context, submissionUUID, objectKey string) {
	if err := rs.originals.DeleteFile(ctx, objectKey); err != nil {
		rs.logger.Warn().Err(err).
			Str("submission_uuid", submissionUUID).
			Str("object_key", objectKey).
			Msg("回滚时删除原始文件失败")
	}
}

// parsedEvent 构建 resume.parsed 的 outbox 消息
func (rs *ResumeService) parsedEvent(rec *models.ResumeParse, parsed *types.ParsedResume) (*models.OutboxMessage, error) {
	event := storage.ResumeParsedEvent{
		SubmissionUUID:    rec.SubmissionUUID,
		FileMD5:           rec.FileMD5,
		OriginalFilename:  rec.OriginalFilename,
		OriginalObjectKey: rec.OriginalObjectKey,
		Scanned:           parsed.Scanned,
		Notes:             parsed.Notes,
		ExperienceCount:   len(parsed.Experience),
		ProjectCount:      len(parsed.Projects),
		SkillCount:        len(parsed.Skills),
		ParserVersion:     rec.ParserVersion,
		ParsedAt:          time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, NewPublishError(rec.SubmissionUUID, err.Error())
	}
	return &models.OutboxMessage{
		AggregateType:    constants.AggregateTypeResume,
		AggregateID:      rec.SubmissionUUID,
		EventType:        constants.EventTypeResumeParsed,
		Payload:          string(payload),
		TargetExchange:   rs.exchange,
		TargetRoutingKey: rs.routingKey,
		Status:           constants.OutboxStatusPending,
	}, nil
}

// Get 按提交ID读取已持久化的解析结果
func (rs *ResumeService) Get(ctx context.Context, submissionUUID string) (*types.ParsedResume, error) {
	ctx, span := tracer.Start(ctx, "ResumeService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("submission_uuid", submissionUUID))

	if rs.repo == nil {
		return nil, ErrRepositoryNotInit
	}
	rec, err := rs.repo.GetParse(ctx, submissionUUID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &ResumeProcessError{SubmissionUUID: submissionUUID, Op: "get", BaseErr: ErrSubmissionNotFound}
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, NewDatabaseError(submissionUUID, err.Error())
	}
	return rec.ToParsedResume()
}
