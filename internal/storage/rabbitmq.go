package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-structurer/internal/config"
	"resume-structurer/internal/tracing"
)

// ErrPublishNacked broker 拒绝了消息
var ErrPublishNacked = errors.New("message not acknowledged by broker")

// RabbitMQ 带发布确认的事件发布器
type RabbitMQ struct {
	conn   *amqp.Connection
	cfg    *config.RabbitMQConfig
	logger zerolog.Logger

	// 发布确认通道不能并发使用
	mu        sync.Mutex
	confirmCh *amqp.Channel
}

// NewRabbitMQ 连接 RabbitMQ 并声明简历事件的交换机、队列和绑定
func NewRabbitMQ(cfg *config.RabbitMQConfig, logger zerolog.Logger) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}

	r := &RabbitMQ{conn: conn, cfg: cfg, logger: logger}
	if err := r.ensureTopology(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info().
		Str("exchange", cfg.ResumeEventsExchange).
		Str("queue", cfg.ParsedQueue).
		Msg("成功连接到RabbitMQ服务器")
	return r, nil
}

// ensureTopology 声明持久化的 topic 交换机和解析完成队列
func (r *RabbitMQ) ensureTopology() error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("创建RabbitMQ通道失败: %w", err)
	}
	defer ch.Close()

	if r.cfg.ResumeEventsExchange == "" {
		return fmt.Errorf("exchange名称不能为空")
	}
	if err := ch.ExchangeDeclare(r.cfg.ResumeEventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明exchange失败: %w", err)
	}
	if r.cfg.ParsedQueue == "" {
		return nil
	}
	if _, err := ch.QueueDeclare(r.cfg.ParsedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明队列失败: %w", err)
	}
	if err := ch.QueueBind(r.cfg.ParsedQueue, r.cfg.ParsedRoutingKey, r.cfg.ResumeEventsExchange, false, nil); err != nil {
		return fmt.Errorf("绑定队列到exchange失败: %w", err)
	}
	return nil
}

func (r *RabbitMQ) channel() (*amqp.Channel, error) {
	if r.confirmCh != nil && !r.confirmCh.IsClosed() {
		return r.confirmCh, nil
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("创建RabbitMQ通道失败: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("开启发布确认失败: %w", err)
	}
	r.confirmCh = ch
	return ch, nil
}

// PublishMessage 发布持久化消息并等待 broker 确认
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchange, routingKey, messageID string, body []byte) error {
	ctx, span := tracer.Start(ctx, "RabbitMQ.Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", exchange),
			attribute.String("messaging.rabbitmq.routing_key", routingKey),
			attribute.String("messaging.message_id", messageID),
		),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	ch, err := r.channel()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return err
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		MessageId:    messageID,
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return fmt.Errorf("发布消息失败: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return fmt.Errorf("等待发布确认失败: %w", err)
	}
	if !acked {
		tracing.RecordRabbitMQNack(span, messageID, "")
		return ErrPublishNacked
	}
	return nil
}

// Ping 检查连接状态
func (r *RabbitMQ) Ping(context.Context) error {
	if r.conn == nil || r.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	if r.confirmCh != nil {
		r.confirmCh.Close()
	}
	r.mu.Unlock()
	return r.conn.Close()
}
