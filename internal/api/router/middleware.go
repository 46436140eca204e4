package router

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"
	"github.com/rs/zerolog"

	"resume-structurer/internal/tracing"
)

const (
	// HeaderRequestID 请求ID头
	HeaderRequestID = "X-Request-ID"
	// HeaderAPIKey 客户端携带的 API Key 头
	HeaderAPIKey = "X-API-Key"

	requestIDKey = "request_id"
	apiKeyCtxKey = "api_key"
)

var errInvalidAPIKey = errors.New("invalid or missing API key")

// RequestID 透传或生成请求ID, 写回响应头并放入请求上下文
func RequestID() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Response.Header.Set(HeaderRequestID, id)
		c.Next(ctx)
	}
}

// AccessLog 每个请求结束后记录一条访问日志
func AccessLog(log zerolog.Logger) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)

		status := c.Response.StatusCode()
		event := log.Info()
		if status >= consts.StatusInternalServerError {
			event = log.Error()
		} else if status >= consts.StatusBadRequest {
			event = log.Warn()
		}
		event.
			Str("request_id", c.GetString(requestIDKey)).
			Str("method", string(c.Method())).
			Str("path", string(c.Path())).
			Str("user_agent", tracing.TruncateString(string(c.UserAgent()), tracing.MaxHeaderLength)).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("HTTP请求")
	}
}

// APIKeyAuth 校验 X-API-Key, keys 为空时不启用
func APIKeyAuth(keys []string) app.HandlerFunc {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return nil
	}

	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+HeaderAPIKey, ""),
		keyauth.WithContextKey(apiKeyCtxKey),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			if _, ok := allowed[key]; ok {
				return true, nil
			}
			return false, errInvalidAPIKey
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"status": "error", "message": "Unauthorized"})
		}),
	)
}
