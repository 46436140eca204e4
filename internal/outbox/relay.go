// Package outbox 实现发件箱模式: 业务事务内写入消息, 由中继异步投递到消息队列
package outbox

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resume-structurer/internal/constants"
	"resume-structurer/internal/storage/models"
	"resume-structurer/internal/tracing"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	defaultMaxRetryCount   = 5
)

// Publisher 消息发布能力
type Publisher interface {
	PublishMessage(ctx context.Context, exchange, routingKey, messageID string, body []byte) error
}

// MessageRelay 轮询 outbox 表并把消息发布到消息代理
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	logger          zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	tracer          trace.Tracer

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// RelayOption 中继配置选项
type RelayOption func(*MessageRelay)

// WithPollingInterval 设置轮询间隔
func WithPollingInterval(d time.Duration) RelayOption {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

// WithBatchSize 设置每批处理的消息数
func WithBatchSize(n int) RelayOption {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithMaxRetries 设置标记为 FAILED 之前的最大发布次数
func WithMaxRetries(n int) RelayOption {
	return func(r *MessageRelay) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// NewMessageRelay 创建中继
func NewMessageRelay(db *gorm.DB, publisher Publisher, logger zerolog.Logger, opts ...RelayOption) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		logger:          logger,
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		maxRetries:      defaultMaxRetryCount,
		tracer:          otel.Tracer("outbox-relay"),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 在后台开始轮询
func (r *MessageRelay) Start(ctx context.Context) {
	r.logger.Info().Dur("interval", r.pollingInterval).Int("batch_size", r.batchSize).Msg("MessageRelay starting")
	ticker := time.NewTicker(r.pollingInterval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				r.logger.Info().Msg("MessageRelay stopped")
				return
			case <-ctx.Done():
				r.logger.Info().Msg("MessageRelay context cancelled")
				return
			case <-ticker.C:
				if err := r.processPendingMessages(ctx); err != nil {
					r.logger.Error().Err(err).Msg("处理 outbox 消息失败")
				}
			}
		}
	}()
}

// Stop 停止轮询并等待当前批次结束
func (r *MessageRelay) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}

// processPendingMessages 锁定一批 PENDING 消息, 逐条发布并更新状态
func (r *MessageRelay) processPendingMessages(ctx context.Context) error {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	// SKIP LOCKED 让多个实例可以同时轮询
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", constants.OutboxStatusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return tx.Commit().Error
	}

	// 空轮询不创建 span
	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))),
	)
	defer span.End()

	for i := range messages {
		msg := &messages[i]
		pubErr := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey,
			strconv.FormatUint(msg.ID, 10), []byte(msg.Payload))
		if pubErr != nil {
			r.logger.Warn().
				Err(pubErr).
				Uint64("id", msg.ID).
				Str("aggregate_id", msg.AggregateID).
				Int("retry", msg.RetryCount+1).
				Msg("发布 outbox 消息失败")
		}
		applyPublishResult(msg, pubErr, time.Now(), r.maxRetries)

		if err := tx.Save(msg).Error; err != nil {
			// 整个事务回滚, 消息保持原状态等下次轮询
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return err
		}
	}
	return tx.Commit().Error
}

// applyPublishResult 根据发布结果更新消息状态
func applyPublishResult(msg *models.OutboxMessage, pubErr error, now time.Time, maxRetries int) {
	if pubErr == nil {
		msg.Status = constants.OutboxStatusSent
		msg.ProcessedAt = &now
		msg.ErrorMessage = ""
		return
	}
	msg.RetryCount++
	msg.ErrorMessage = pubErr.Error()
	if msg.RetryCount >= maxRetries {
		msg.Status = constants.OutboxStatusFailed
		msg.ProcessedAt = &now
	}
}
