package handler

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Pinger 返回各依赖组件的连通性, nil 表示正常
type Pinger interface {
	Ping(ctx context.Context) map[string]error
}

const healthPingTimeout = 2 * time.Second

// HealthHandler 存活检查
type HealthHandler struct {
	pinger Pinger
}

// NewHealthHandler pinger 可以为 nil, 此时只返回服务状态
func NewHealthHandler(pinger Pinger) *HealthHandler {
	return &HealthHandler{pinger: pinger}
}

// HandleHealth 服务本身可用即返回 ok, 依赖组件状态只作参考
// GET /api/v1/health
func (h *HealthHandler) HandleHealth(ctx context.Context, c *app.RequestContext) {
	resp := utils.H{"status": "ok"}
	if h.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
		defer cancel()

		components := make(map[string]string)
		for name, err := range h.pinger.Ping(pingCtx) {
			if err != nil {
				components[name] = err.Error()
			} else {
				components[name] = "ok"
			}
		}
		if len(components) > 0 {
			resp["components"] = components
		}
	}
	c.JSON(consts.StatusOK, resp)
}
