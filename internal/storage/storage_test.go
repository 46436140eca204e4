package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"resume-structurer/internal/config"
	"resume-structurer/internal/storage/models"
	"resume-structurer/internal/types"
)

func TestOriginalObjectKey(t *testing.T) {
	assert.Equal(t, "resume/0190c3a2-0000-7000-8000-000000000000/original.pdf",
		OriginalObjectKey("0190c3a2-0000-7000-8000-000000000000"))
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, gormLogLevel(1))
	assert.Equal(t, gormlogger.Error, gormLogLevel(2))
	assert.Equal(t, gormlogger.Warn, gormLogLevel(3))
	assert.Equal(t, gormlogger.Info, gormLogLevel(4))
	assert.Equal(t, gormlogger.Warn, gormLogLevel(0), "未配置时默认 Warn")
}

func TestNewStorageWithoutComponents(t *testing.T) {
	s, err := NewStorage(context.Background(), &config.Config{})
	require.NoError(t, err, "未配置任何组件时应以纯内存模式运行")
	assert.Nil(t, s.MinIO)
	assert.Nil(t, s.Redis)
	assert.Empty(t, s.Ping(context.Background()))
}

func TestNewStorageAllFailed(t *testing.T) {
	cfg := &config.Config{Redis: config.RedisConfig{Address: "127.0.0.1:1", DialTimeoutSeconds: 1}}

	_, err := NewStorage(context.Background(), cfg)
	assert.Error(t, err)
}

func TestResumeParseRecord(t *testing.T) {
	parsed := &types.ParsedResume{
		RawText:    "Skills\nGo, SQL",
		Skills:     []string{"Go", "SQL"},
		Confidence: map[types.Field]types.Confidence{types.FieldSkills: types.ConfidenceDirect},
	}
	parsed.EnsureSlices()

	rec, err := models.NewResumeParse("uuid-1", "md5", "cv.pdf", "resume/uuid-1/original.pdf", 1024, parsed, "v1")
	require.NoError(t, err)
	assert.Equal(t, "resume_parses", rec.TableName())
	assert.JSONEq(t, `["Go","SQL"]`, string(rec.Skills))
	assert.JSONEq(t, `{"skills":"direct"}`, string(rec.Confidence))

	back, err := rec.ToParsedResume()
	require.NoError(t, err)
	assert.Equal(t, parsed.Skills, back.Skills)
	assert.Equal(t, types.ConfidenceDirect, back.Confidence[types.FieldSkills])
}
