package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TokenBucket 令牌桶限流器, 同时负责带指数退避的重试
type TokenBucket struct {
	rate           float64 // 每秒生成的令牌数
	capacity       float64
	tokens         float64
	lastRefillTime time.Time
	mutex          sync.Mutex

	retryWaitTime time.Duration // 首次重试等待时间, 之后每次翻倍
	maxRetries    int
	logger        zerolog.Logger
	now           func() time.Time
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewTokenBucket 创建令牌桶, capacity<=0 时取 QPM 的一半
func NewTokenBucket(qpm int, capacity int) *TokenBucket {
	if qpm <= 0 {
		qpm = 30
	}
	if capacity <= 0 {
		capacity = qpm / 2
		if capacity <= 0 {
			capacity = 1
		}
	}

	tb := &TokenBucket{
		rate:          float64(qpm) / 60.0,
		capacity:      float64(capacity),
		tokens:        float64(capacity), // 初始填满
		retryWaitTime: 2 * time.Second,
		maxRetries:    3,
		logger:        zerolog.Nop(),
		now:           time.Now,
		sleep:         sleepCtx,
	}
	tb.lastRefillTime = tb.now()
	return tb
}

// WithRetryPolicy 设置重试策略
func (tb *TokenBucket) WithRetryPolicy(waitTime time.Duration, maxRetries int) *TokenBucket {
	if waitTime > 0 {
		tb.retryWaitTime = waitTime
	}
	if maxRetries >= 0 {
		tb.maxRetries = maxRetries
	}
	return tb
}

// WithLogger 设置重试日志记录器
func (tb *TokenBucket) WithLogger(l zerolog.Logger) *TokenBucket {
	tb.logger = l
	return tb
}

func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefillTime).Seconds()
	tb.lastRefillTime = now

	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}

// Allow 非阻塞地尝试消耗一个令牌
func (tb *TokenBucket) Allow() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Wait 阻塞直到拿到令牌或 ctx 结束
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mutex.Lock()
		tb.refill()
		if tb.tokens >= 1.0 {
			tb.tokens -= 1.0
			tb.mutex.Unlock()
			return nil
		}
		waitTime := time.Duration((1.0 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mutex.Unlock()

		if err := tb.sleep(ctx, waitTime); err != nil {
			return err
		}
	}
}

// RetryWithBackoff 拿到令牌后执行 fn, 可重试错误按 retryWait, 2*retryWait, 4*retryWait... 退避
func (tb *TokenBucket) RetryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	for retry := 0; retry <= tb.maxRetries; retry++ {
		if err = tb.Wait(ctx); err != nil {
			return err
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || retry >= tb.maxRetries {
			return err
		}

		backoff := tb.retryWaitTime * time.Duration(1<<uint(retry))
		tb.logger.Warn().
			Err(err).
			Int("attempt", retry+1).
			Int("max_retries", tb.maxRetries).
			Dur("backoff", backoff).
			Msg("调用失败, 退避后重试")
		if serr := tb.sleep(ctx, backoff); serr != nil {
			return serr
		}
	}
	return err
}

// StatusError 携带 HTTP 状态码的错误
type StatusError interface {
	error
	HTTPStatus() int
}

// IsRetryable 判断错误是否值得重试: 限流(429)、5xx、超时和连接类错误
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var se StatusError
	if errors.As(err, &se) {
		code := se.HTTPStatus()
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return containsAny(err.Error(), []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"EOF",
		"connection refused",
		"429 Too Many Requests",
		"rate limit",
		"no such host",
		"服务器繁忙",
		"请求超过限额",
		"QPS限制",
	})
}

func containsAny(s string, substrs []string) bool {
	for _, substr := range substrs {
		if substr != "" && strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
