package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"resume-structurer/internal/config"
	"resume-structurer/internal/constants"
	"resume-structurer/internal/tracing"
)

// MinIO 保存原始简历 PDF
type MinIO struct {
	client         *minio.Client
	cfg            *config.MinIOConfig
	originalBucket string
	logger         zerolog.Logger
}

// NewMinIO 创建MinIO客户端, 确保存储桶存在并按配置设置过期规则
func NewMinIO(ctx context.Context, cfg *config.MinIOConfig, logger zerolog.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	bucket := cfg.OriginalsBucket
	if bucket == "" {
		bucket = "resume-originals"
	}

	m := &MinIO{
		client:         client,
		cfg:            cfg,
		originalBucket: bucket,
		logger:         logger,
	}

	if err := m.ensureBucketExists(ctx, bucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保原始简历存储桶 %s 存在失败: %w", bucket, err)
	}
	if cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, bucket, "expire-originals", cfg.OriginalFileExpireDays); err != nil {
			// 生命周期规则设置失败不影响上传
			m.logger.Warn().Err(err).Str("bucket", bucket).Msg("设置存储桶生命周期失败")
		}
	}

	m.logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", bucket).Msg("MinIO客户端初始化成功")
	return m, nil
}

func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	m.logger.Info().Str("bucket", bucketName).Msg("存储桶已创建")
	return nil
}

// setupBucketLifecycle 为存储桶设置按天过期的规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, cfg)
}

// OriginalObjectKey 原始文件的对象键: resume/{submission_uuid}/original.pdf
func OriginalObjectKey(submissionUUID string) string {
	return fmt.Sprintf(constants.OriginalObjectKeyFormat, submissionUUID)
}

// UploadResumeFile 上传原始简历, 返回对象键(不含 bucket)
func (m *MinIO) UploadResumeFile(ctx context.Context, submissionUUID string, reader io.Reader, fileSize int64) (string, error) {
	ctx, span := tracer.Start(ctx, "MinIO.UploadResumeFile")
	defer span.End()

	objectKey := OriginalObjectKey(submissionUUID)
	span.SetAttributes(
		attribute.String("minio.bucket", m.originalBucket),
		attribute.String("minio.object_key", objectKey),
		attribute.Int64("minio.size_bytes", fileSize),
	)

	start := time.Now()
	info, err := m.client.PutObject(ctx, m.originalBucket, objectKey, reader, fileSize,
		minio.PutObjectOptions{ContentType: getContentType(".pdf")})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", m.originalBucket, objectKey, err)
	}

	m.logger.Debug().
		Str("object_key", objectKey).
		Str("etag", info.ETag).
		Int64("size", info.Size).
		Dur("duration", time.Since(start)).
		Msg("原始简历已上传")
	return objectKey, nil
}

// DeleteFile 删除原始简历, 用于持久化失败时回滚
func (m *MinIO) DeleteFile(ctx context.Context, objectKey string) error {
	if err := m.client.RemoveObject(ctx, m.originalBucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", objectKey, err)
	}
	return nil
}

// Ping 检查存储桶可访问
func (m *MinIO) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.originalBucket)
	return err
}

func getContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
