package ratelimit

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// RateLimitedLLMModel 对聊天模型的调用做限流和重试的代理
type RateLimitedLLMModel struct {
	original    model.ToolCallingChatModel
	rateLimiter *TokenBucket
}

var _ model.ToolCallingChatModel = (*RateLimitedLLMModel)(nil)

// NewRateLimitedLLMModel 创建限流代理, 桶容量为 QPM 的一半以允许少量突发
func NewRateLimitedLLMModel(original model.ToolCallingChatModel, qpm int) *RateLimitedLLMModel {
	return &RateLimitedLLMModel{
		original:    original,
		rateLimiter: NewTokenBucket(qpm, qpm/2),
	}
}

// WithRetryPolicy 设置重试策略
func (rl *RateLimitedLLMModel) WithRetryPolicy(waitTime time.Duration, maxRetries int) *RateLimitedLLMModel {
	rl.rateLimiter.WithRetryPolicy(waitTime, maxRetries)
	return rl
}

// WithLogger 设置重试日志记录器
func (rl *RateLimitedLLMModel) WithLogger(l zerolog.Logger) *RateLimitedLLMModel {
	rl.rateLimiter.WithLogger(l)
	return rl
}

// Generate 限流后调用底层模型, 可重试错误自动退避重试
func (rl *RateLimitedLLMModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	var response *schema.Message
	err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var genErr error
		response, genErr = rl.original.Generate(ctx, messages, options...)
		return genErr
	})
	return response, err
}

// Stream 同 Generate, 只对建立流的调用重试
func (rl *RateLimitedLLMModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]
	err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var streamErr error
		stream, streamErr = rl.original.Stream(ctx, messages, options...)
		return streamErr
	})
	return stream, err
}

// WithTools 返回绑定工具的新代理, 共享同一个令牌桶
func (rl *RateLimitedLLMModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	newModel, err := rl.original.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &RateLimitedLLMModel{
		original:    newModel,
		rateLimiter: rl.rateLimiter,
	}, nil
}

// NewLLMWithRateLimit 按配置包装模型; qpm<=0 时用默认 30, maxRetries<0 时用默认 3
func NewLLMWithRateLimit(original model.ToolCallingChatModel, qpm int, maxRetries int, retryWait time.Duration, l zerolog.Logger) model.ToolCallingChatModel {
	if qpm <= 0 {
		qpm = 30
	}
	if maxRetries < 0 {
		maxRetries = 3
	}
	return NewRateLimitedLLMModel(original, qpm).
		WithRetryPolicy(retryWait, maxRetries).
		WithLogger(l)
}
