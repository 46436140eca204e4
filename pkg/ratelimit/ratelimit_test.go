package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatus() int { return int(e) }

// 记录退避时长而不真正睡眠
func fakeSleeper(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func TestRetryWithBackoffDoublesWait(t *testing.T) {
	var waits []time.Duration
	tb := NewTokenBucket(600, 0).WithRetryPolicy(2*time.Second, 3)
	tb.sleep = fakeSleeper(&waits)

	calls := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 4 {
			return statusErr(429)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls, "首次调用加三次重试")
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, waits)
}

func TestRetryWithBackoffGivesUp(t *testing.T) {
	var waits []time.Duration
	tb := NewTokenBucket(600, 0).WithRetryPolicy(time.Second, 2)
	tb.sleep = fakeSleeper(&waits)

	calls := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		return statusErr(503)
	})

	assert.Equal(t, statusErr(503), err)
	assert.Equal(t, 3, calls)
	assert.Len(t, waits, 2)
}

func TestRetryWithBackoffSkipsPermanentErrors(t *testing.T) {
	var waits []time.Duration
	tb := NewTokenBucket(600, 0)
	tb.sleep = fakeSleeper(&waits)

	calls := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		return statusErr(401)
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls, "401 不应重试")
	assert.Empty(t, waits)
}

func TestRetryWithBackoffHonorsContext(t *testing.T) {
	tb := NewTokenBucket(600, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tb.RetryWithBackoff(ctx, func() error {
		return statusErr(429)
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAllowRefillsOverTime(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tb := NewTokenBucket(60, 2)
	tb.now = func() time.Time { return now }
	tb.lastRefillTime = now

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "桶已空")

	now = now.Add(time.Second)
	assert.True(t, tb.Allow(), "一秒后应补充一个令牌")
	assert.False(t, tb.Allow())
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{statusErr(429), true},
		{fmt.Errorf("wrapped: %w", statusErr(500)), true},
		{statusErr(400), false},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{errors.New("read tcp: connection reset by peer"), true},
		{errors.New("invalid api key"), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsRetryable(c.err), "%v", c.err)
	}
}

type flakyModel struct {
	failures int
	calls    int
}

func (m *flakyModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.calls++
	if m.calls <= m.failures {
		return nil, statusErr(429)
	}
	return schema.AssistantMessage("ok", nil), nil
}

func (m *flakyModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func (m *flakyModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func TestRateLimitedModelRetries(t *testing.T) {
	inner := &flakyModel{failures: 2}
	limited := NewRateLimitedLLMModel(inner, 600).WithRetryPolicy(time.Millisecond, 3).WithLogger(zerolog.Nop())

	msg, err := limited.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Content)
	assert.Equal(t, 3, inner.calls)

	withTools, err := limited.WithTools(nil)
	require.NoError(t, err)
	assert.Same(t, limited.rateLimiter, withTools.(*RateLimitedLLMModel).rateLimiter, "绑定工具后应共享令牌桶")
}

func TestNewLLMWithRateLimitDefaults(t *testing.T) {
	m := NewLLMWithRateLimit(&flakyModel{}, 0, -1, 0, zerolog.Nop())
	limited, ok := m.(*RateLimitedLLMModel)
	require.True(t, ok)
	assert.Equal(t, 3, limited.rateLimiter.maxRetries)
	assert.Equal(t, 2*time.Second, limited.rateLimiter.retryWaitTime)
	assert.InDelta(t, 0.5, limited.rateLimiter.rate, 1e-9)
}
