package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"resume-structurer/internal/agent"
	"resume-structurer/internal/api/handler"
	"resume-structurer/internal/api/router"
	"resume-structurer/internal/config"
	appCoreLogger "resume-structurer/internal/logger"
	"resume-structurer/internal/outbox"
	"resume-structurer/internal/parser"
	"resume-structurer/internal/processor"
	"resume-structurer/internal/storage"
	"resume-structurer/internal/tracing"
	"resume-structurer/pkg/ratelimit"
)

func main() {
	var configPath, samplePath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.StringVar(&samplePath, "init-config", "", "Write a sample config file to this path and exit")
	pflag.Parse()

	if samplePath != "" {
		if err := config.CreateSampleConfig(samplePath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("示例配置已写入 %s\n", samplePath)
		return
	}

	cfg, loadErr := config.LoadConfig(configPath)
	if loadErr != nil {
		cfg = config.Default()
	}

	initLogger(cfg.Logger)
	log := appCoreLogger.Component("main")
	if loadErr != nil {
		log.Warn().Err(loadErr).Msg("加载配置失败, 使用默认配置")
	} else {
		glog.Info("配置加载成功")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing)
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}

	extractor, err := parser.NewPageExtractor(ctx, cfg.Extractor.Type, cfg)
	if err != nil {
		glog.Fatalf("初始化PDF提取器失败: %v", err)
	}
	structurer := parser.NewStructurer(extractor)
	glog.Infof("使用 %s PDF提取器", cfg.Extractor.Type)

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close(log)

	resumeService := processor.NewResumeService(structurer,
		processor.WithStorage(storageManager),
		processor.WithParseTimeout(config.GetDuration(cfg.Resume.ParseTimeout, 30*time.Second)),
		processor.WithEventRoute(cfg.RabbitMQ.ResumeEventsExchange, cfg.RabbitMQ.ParsedRoutingKey),
	)
	if !resumeService.Persistent() {
		glog.Warn("MinIO或MySQL不可用, 提交的简历不会持久化")
	}

	var messageRelay *outbox.MessageRelay
	if storageManager.MySQL != nil && storageManager.RabbitMQ != nil {
		messageRelay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ,
			appCoreLogger.Component("outbox"),
			outbox.WithPollingInterval(config.GetDuration(cfg.Outbox.PollInterval, 5*time.Second)),
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
			outbox.WithMaxRetries(cfg.Outbox.MaxRetries),
		)
		messageRelay.Start(ctx)
		glog.Info("消息中继服务已启动")
	}

	builder := processor.NewContextBuilder(cfg.Resume)
	generator := processor.NewQuestionGenerator(newChatModel(cfg.LLM), builder,
		processor.WithTemperature(cfg.LLM.Temperature),
		processor.WithMaxTokens(cfg.LLM.MaxTokens),
	)

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		tracer,
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(int(cfg.Resume.UploadLimitBytes)+1<<20),
		server.WithReadTimeout(config.GetDuration(cfg.Server.ReadTimeout, time.Minute)),
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, router.Handlers{
		Resume:    handler.NewResumeHandler(resumeService, cfg.Resume.UploadLimitBytes),
		Interview: handler.NewInterviewHandler(builder, generator),
		Health:    handler.NewHealthHandler(storageManager),
	}, cfg.Auth.APIKeys)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	if messageRelay != nil {
		messageRelay.Stop()
		glog.Info("消息中继服务已停止")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(),
		config.GetDuration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Warnf("关闭链路追踪失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

func initLogger(cfg config.LoggerConfig) {
	appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		TimeFormat:   cfg.TimeFormat,
		ReportCaller: cfg.ReportCaller,
	})
	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	if cfg.Level == "debug" {
		glog.SetLevel(glog.LevelDebug)
	} else {
		glog.SetLevel(glog.LevelInfo)
	}
}

// newChatModel 未配置 API Key 或启用 use_mock 时返回 nil, 问题生成直接使用内置题库
func newChatModel(cfg config.LLMConfig) model.BaseChatModel {
	if cfg.UseMock || cfg.APIKey == "" {
		glog.Warn("LLM未启用, 面试问题将使用内置题库")
		return nil
	}

	chatModel, err := agent.NewOpenAIChatModel(cfg.APIKey, cfg.Model, cfg.APIURL,
		agent.WithRequestTimeout(config.GetDuration(cfg.Timeout, 60*time.Second)),
		agent.WithDefaultTemperature(cfg.Temperature),
		agent.WithDefaultMaxTokens(cfg.MaxTokens),
		agent.WithJSONMode(true),
	)
	if err != nil {
		glog.Warnf("初始化LLM失败, 面试问题将使用内置题库: %v", err)
		return nil
	}
	return ratelimit.NewLLMWithRateLimit(chatModel, cfg.QPM, cfg.MaxRetries,
		config.GetDuration(cfg.RetryWait, 2*time.Second), appCoreLogger.Component("llm-ratelimit"))
}
