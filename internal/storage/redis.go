package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"resume-structurer/internal/config"
	"resume-structurer/internal/constants"
	"resume-structurer/internal/types"
)

// ErrNotFound 缓存未命中
var ErrNotFound = errors.New("storage: key not found")

// Redis 解析结果缓存和文件 MD5 去重
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
	logger zerolog.Logger
}

// NewRedisAdapter 创建 Redis 客户端并挂上 OpenTelemetry 钩子
func NewRedisAdapter(ctx context.Context, cfg *config.RedisConfig, logger zerolog.Logger) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		MaxRetries:   cfg.MaxRetries,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	logger.Info().Str("address", cfg.Address).Int("db", cfg.DB).Msg("Redis客户端初始化成功")
	return &Redis{Client: client, config: cfg, logger: logger}, nil
}

// Close 关闭连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// ParsedCacheTTL 解析结果缓存有效期
func (r *Redis) ParsedCacheTTL() time.Duration {
	return config.GetDuration(r.config.ParsedCacheTTL, constants.ParsedCacheDuration)
}

// MD5ExpireDuration MD5 映射和集合的有效期, 默认一年
func (r *Redis) MD5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = 365
	}
	return time.Duration(days) * 24 * time.Hour
}

// GetParsedResume 读取按文件 MD5 缓存的结果, 未命中返回 ErrNotFound
func (r *Redis) GetParsedResume(ctx context.Context, md5Hex string) (*types.ParsedResume, error) {
	data, err := r.Client.Get(ctx, fmt.Sprintf(constants.KeyParsedResume, md5Hex)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取解析缓存失败: %w", err)
	}

	var parsed types.ParsedResume
	if err := json.Unmarshal(data, &parsed); err != nil {
		// 缓存内容损坏时按未命中处理
		r.logger.Warn().Err(err).Str("md5", md5Hex).Msg("解析缓存内容无法反序列化")
		return nil, ErrNotFound
	}
	return &parsed, nil
}

// SetParsedResume 缓存结构化结果
func (r *Redis) SetParsedResume(ctx context.Context, md5Hex string, parsed *types.ParsedResume) error {
	data, err := json.Marshal(parsed)
	if err != nil {
		return fmt.Errorf("序列化解析结果失败: %w", err)
	}
	return r.Client.Set(ctx, fmt.Sprintf(constants.KeyParsedResume, md5Hex), data, r.ParsedCacheTTL()).Err()
}

// GetSubmissionUUID 查询已持久化文件对应的提交ID
func (r *Redis) GetSubmissionUUID(ctx context.Context, md5Hex string) (string, error) {
	id, err := r.Client.Get(ctx, fmt.Sprintf(constants.KeyFileMD5ToSubmissionUUID, md5Hex)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return id, err
}

// RecordSubmission 记录 MD5 -> 提交ID 映射并加入去重集合
func (r *Redis) RecordSubmission(ctx context.Context, md5Hex, submissionUUID string) error {
	ttl := r.MD5ExpireDuration()
	pipe := r.Client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(constants.KeyFileMD5ToSubmissionUUID, md5Hex), submissionUUID, ttl)
	pipe.SAdd(ctx, constants.KeyFileMD5Set, md5Hex)
	pipe.ExpireNX(ctx, constants.KeyFileMD5Set, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// ForgetSubmission 持久化失败时撤销映射
func (r *Redis) ForgetSubmission(ctx context.Context, md5Hex string) error {
	pipe := r.Client.TxPipeline()
	pipe.Del(ctx, fmt.Sprintf(constants.KeyFileMD5ToSubmissionUUID, md5Hex))
	pipe.SRem(ctx, constants.KeyFileMD5Set, md5Hex)
	_, err := pipe.Exec(ctx)
	return err
}
