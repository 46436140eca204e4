package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"resume-structurer/internal/config"
	"resume-structurer/internal/logger"
)

var tracer = otel.Tracer("storage")

// Storage 聚合所有存储依赖, 未配置或初始化失败的组件为 nil
type Storage struct {
	MinIO    *MinIO
	RabbitMQ *RabbitMQ
	MySQL    *MySQL
	Redis    *Redis
}

// NewStorage 按配置初始化各存储组件
//
// 单个组件失败只记录警告, 服务以降级模式运行; 全部失败时返回错误。
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	log := logger.Component("storage")
	s := &Storage{}
	var initErrors []string
	configured := 0

	if cfg.MinIO.Endpoint != "" {
		configured++
		m, err := NewMinIO(ctx, &cfg.MinIO, logger.Component("minio"))
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		} else {
			s.MinIO = m
		}
	}

	if cfg.RabbitMQ.URL != "" {
		configured++
		mq, err := NewRabbitMQ(&cfg.RabbitMQ, logger.Component("rabbitmq"))
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		} else {
			s.RabbitMQ = mq
		}
	}

	if cfg.MySQL.Host != "" {
		configured++
		db, err := NewMySQL(&cfg.MySQL, logger.Component("mysql"))
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		} else {
			s.MySQL = db
		}
	}

	if cfg.Redis.Address != "" {
		configured++
		rd, err := NewRedisAdapter(ctx, &cfg.Redis, logger.Component("redis"))
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		} else {
			s.Redis = rd
		}
	}

	if configured > 0 && len(initErrors) == configured {
		return nil, fmt.Errorf("所有存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}
	if len(initErrors) > 0 {
		log.Warn().Strs("errors", initErrors).Msg("部分存储组件初始化失败, 以降级模式运行")
	}
	return s, nil
}

// Ping 检查已初始化组件的连通性, 返回组件名到错误的映射
func (s *Storage) Ping(ctx context.Context) map[string]error {
	result := make(map[string]error)
	check := func(name string, enabled bool, ping func(context.Context) error) {
		if enabled {
			result[name] = ping(ctx)
		}
	}
	check("minio", s.MinIO != nil, func(c context.Context) error { return s.MinIO.Ping(c) })
	check("redis", s.Redis != nil, func(c context.Context) error { return s.Redis.Ping(c) })
	check("mysql", s.MySQL != nil, func(c context.Context) error { return s.MySQL.Ping(c) })
	check("rabbitmq", s.RabbitMQ != nil, func(c context.Context) error { return s.RabbitMQ.Ping(c) })
	return result
}

// Close 关闭所有连接
func (s *Storage) Close(log zerolog.Logger) {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
