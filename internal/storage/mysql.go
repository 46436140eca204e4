package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"resume-structurer/internal/config"
	"resume-structurer/internal/storage/models"
	"resume-structurer/internal/tracing"
)

type spanKey struct{}

// GormTracingPlugin 为 GORM 的每次操作创建 span
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// NewGormTracingPlugin 创建追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{tracer: tracer, dbName: dbName}
}

// Name 插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册 before/after 回调
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op       string
		name     string
		register func(name string, before bool, fn func(*gorm.DB)) error
	}{
		{"CREATE", "create", func(n string, b bool, fn func(*gorm.DB)) error {
			if b {
				return cb.Create().Before("gorm:create").Register(n, fn)
			}
			return cb.Create().After("gorm:create").Register(n, fn)
		}},
		{"SELECT", "query", func(n string, b bool, fn func(*gorm.DB)) error {
			if b {
				return cb.Query().Before("gorm:query").Register(n, fn)
			}
			return cb.Query().After("gorm:query").Register(n, fn)
		}},
		{"UPDATE", "update", func(n string, b bool, fn func(*gorm.DB)) error {
			if b {
				return cb.Update().Before("gorm:update").Register(n, fn)
			}
			return cb.Update().After("gorm:update").Register(n, fn)
		}},
		{"DELETE", "delete", func(n string, b bool, fn func(*gorm.DB)) error {
			if b {
				return cb.Delete().Before("gorm:delete").Register(n, fn)
			}
			return cb.Delete().After("gorm:delete").Register(n, fn)
		}},
		{"RAW", "raw", func(n string, b bool, fn func(*gorm.DB)) error {
			if b {
				return cb.Raw().Before("gorm:raw").Register(n, fn)
			}
			return cb.Raw().After("gorm:raw").Register(n, fn)
		}},
	}
	for _, h := range hooks {
		if err := h.register("otel:before_"+h.name, true, p.before(h.op)); err != nil {
			return err
		}
		if err := h.register("otel:after_"+h.name, false, p.after()); err != nil {
			return err
		}
	}
	return nil
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		ctx, span := p.tracer.Start(ctx, operation+" "+table,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", table),
			),
		)
		db.Statement.Context = context.WithValue(ctx, spanKey{}, span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(spanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if sql := db.Statement.SQL.String(); sql != "" {
			span.SetAttributes(attribute.String("db.statement", tracing.SafeSQL(sql)))
		}
		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			span.SetAttributes(attribute.String("error.type", "record_not_found"))
		default:
			tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
		}
	}
}

// gormLogWriter 把 GORM 日志转给 zerolog
type gormLogWriter struct {
	logger zerolog.Logger
}

func (w gormLogWriter) Printf(format string, args ...interface{}) {
	w.logger.Info().Msgf(format, args...)
}

// MySQL 解析记录和 outbox 消息的关系存储
type MySQL struct {
	db     *gorm.DB
	cfg    *config.MySQLConfig
	logger zerolog.Logger
}

// NewMySQL 连接 MySQL, 注册追踪插件并迁移表结构
func NewMySQL(cfg *config.MySQLConfig, logger zerolog.Logger) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, max(cfg.ConnectTimeoutSeconds, 1))

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormlogger.New(gormLogWriter{logger: logger}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg, logger: logger}
	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	logger.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

func gormLogLevel(level int) gormlogger.LogLevel {
	switch level {
	case 1:
		return gormlogger.Silent
	case 2:
		return gormlogger.Error
	case 4:
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func (m *MySQL) autoMigrateSchema() error {
	silent := m.db.Session(&gorm.Session{Logger: m.db.Logger.LogMode(gormlogger.Silent)})
	return silent.AutoMigrate(
		&models.ResumeParse{},
		&models.OutboxMessage{},
	)
}

// DB 返回 GORM 连接
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 检查连接
func (m *MySQL) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SaveParseWithOutbox 在同一事务中写入解析记录和待发布事件
func (m *MySQL) SaveParseWithOutbox(ctx context.Context, rec *models.ResumeParse, msg *models.OutboxMessage) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("写入解析记录失败: %w", err)
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("写入 outbox 消息失败: %w", err)
		}
		return nil
	})
}

// GetParse 按提交ID查询解析记录, 不存在时返回 ErrNotFound
func (m *MySQL) GetParse(ctx context.Context, submissionUUID string) (*models.ResumeParse, error) {
	var rec models.ResumeParse
	err := m.db.WithContext(ctx).Where("submission_uuid = ?", submissionUUID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
