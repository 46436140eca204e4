package router

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"

	"resume-structurer/internal/api/handler"
	"resume-structurer/internal/logger"
)

// Handlers 需要注册的全部处理器
type Handlers struct {
	Resume    *handler.ResumeHandler
	Interview *handler.InterviewHandler
	Health    *handler.HealthHandler
}

// RegisterRoutes 注册 API 路由, apiKeys 非空时除健康检查外都需要鉴权
func RegisterRoutes(h *server.Hertz, handlers Handlers, apiKeys []string) {
	h.Use(RequestID(), AccessLog(logger.Component("http")))

	if handlers.Health != nil {
		h.GET("/api/v1/health", handlers.Health.HandleHealth)
	}

	var guards []app.HandlerFunc
	if auth := APIKeyAuth(apiKeys); auth != nil {
		guards = append(guards, auth)
	}
	api := h.Group("/api/v1", guards...)

	if handlers.Resume != nil {
		api.POST("/resume/parse", handlers.Resume.HandlePreview)
		api.POST("/resume/submit", handlers.Resume.HandleSubmit)
		api.GET("/resume/:submission_uuid", handlers.Resume.HandleGetSubmission)
	}

	if handlers.Interview != nil {
		api.POST("/interview/context", handlers.Interview.HandleBuildContext)
		api.POST("/interview/questions", handlers.Interview.HandleGenerateQuestions)
		api.POST("/interview/answer", handlers.Interview.HandleScoreAnswer)
		api.POST("/interview/summary", handlers.Interview.HandleSummarize)
	}
}
