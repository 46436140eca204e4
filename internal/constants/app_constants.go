package constants

import "time"

const (
	// ParserVersion 写入解析记录, 规则变化时递增
	ParserVersion = "structurer-1.0"

	// ParsedCacheDuration 解析结果缓存的默认有效期
	ParsedCacheDuration = 24 * time.Hour

	// OriginalObjectKeyFormat 原始 PDF 在对象存储中的路径: resume/{submission_uuid}/original.pdf
	OriginalObjectKeyFormat = "resume/%s/original.pdf"
)

// 提交状态
const (
	StatusParsed             = "PARSED"
	StatusParsedNotPersisted = "PARSED_NOT_PERSISTED"
	StatusScanned            = "SCANNED"
	StatusDuplicate          = "DUPLICATE_FILE_SKIPPED"
)

// Outbox 消息状态
const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 事件
const (
	AggregateTypeResume   = "resume"
	EventTypeResumeParsed = "resume.parsed"
)

// 问题生成的状态
const (
	QuestionsStatusGenerated = "generated"
	QuestionsStatusFallback  = "fallback"
)

// 面试结果, 按总分划分
const (
	InterviewResultPassed          = "passed"
	InterviewResultPassedWithNotes = "passed-with-notes"
	InterviewResultFailed          = "failed"
)
