package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorType 错误分类, 写入 span 的 error.type 属性
type ErrorType string

const (
	ErrorTypeHTTP       ErrorType = "http"
	ErrorTypeDB         ErrorType = "db"
	ErrorTypeRedis      ErrorType = "redis"
	ErrorTypeRabbitMQ   ErrorType = "rabbitmq"
	ErrorTypeStorage    ErrorType = "object_storage"
	ErrorTypeExtraction ErrorType = "pdf_extraction"
	ErrorTypeLLM        ErrorType = "llm"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeTimeout    ErrorType = "timeout"
)

// RecordError 记录错误并把 span 状态置为 Error
func RecordError(span trace.Span, err error, errorType ErrorType, attrs ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(
		attribute.String("error.type", string(errorType)),
		attribute.String("error.message", TruncateString(err.Error(), DefaultMaxLength)),
	)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	span.SetStatus(codes.Error, err.Error())
}

// RecordHTTPError 记录 HTTP 错误, 按状态码区分客户端/服务端错误
func RecordHTTPError(span trace.Span, err error, statusCode int) {
	if span == nil || err == nil {
		return
	}

	category := "unknown"
	switch {
	case statusCode >= 400 && statusCode < 500:
		category = "client_error"
	case statusCode >= 500:
		category = "server_error"
	}

	RecordError(span, err, ErrorTypeHTTP,
		attribute.Int("http.status_code", statusCode),
		attribute.String("error.category", category),
	)
}

// RecordRabbitMQNack broker 未确认消息
func RecordRabbitMQNack(span trace.Span, messageID string, reason string) {
	if span == nil {
		return
	}
	msg := "message not acknowledged by broker"
	if reason != "" {
		msg = reason
	}
	span.SetAttributes(
		attribute.String("error.type", string(ErrorTypeRabbitMQ)),
		attribute.String("error.message", msg),
		attribute.String("messaging.message_id", messageID),
		attribute.String("messaging.error_type", "nack"),
	)
	span.SetStatus(codes.Error, msg)
}
