package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"social-connect-go/internal/config"
	"social-connect-go/internal/logger"
	"social-connect-go/internal/tracing"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// 为RabbitMQ操作定义专用tracer
var rabbitTracer = otel.Tracer("social-connect-go/storage/rabbitmq")

// RabbitMQ 封装AMQP连接，向外发布档案领域事件
type RabbitMQ struct {
	conn   *amqp.Connection
	config *config.RabbitMQConfig

	mu      sync.Mutex
	channel *amqp.Channel
}

// NewRabbitMQAdapter 创建RabbitMQ适配器并声明事件交换机
func NewRabbitMQAdapter(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接RabbitMQ失败: %w", err)
	}

	r := &RabbitMQ{
		conn:   conn,
		config: cfg,
	}

	if err := r.EnsureExchange(cfg.ProfileEventsExchange, "topic", true); err != nil {
		conn.Close()
		return nil, fmt.Errorf("声明事件交换机失败: %w", err)
	}

	return r, nil
}

// getChannel 返回可用通道，通道失效时重建
func (r *RabbitMQ) getChannel() (*amqp.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil && !r.channel.IsClosed() {
		return r.channel, nil
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("打开RabbitMQ通道失败: %w", err)
	}
	r.channel = ch
	return ch, nil
}

// EnsureExchange 声明交换机（幂等）
func (r *RabbitMQ) EnsureExchange(name, kind string, durable bool) error {
	ch, err := r.getChannel()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(name, kind, durable, false, false, false, nil); err != nil {
		return fmt.Errorf("声明交换机 %s 失败: %w", name, err)
	}
	return nil
}

// EnsureQueue 声明队列（幂等）
func (r *RabbitMQ) EnsureQueue(name string, durable bool) error {
	ch, err := r.getChannel()
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(name, durable, false, false, false, nil); err != nil {
		return fmt.Errorf("声明队列 %s 失败: %w", name, err)
	}
	return nil
}

// BindQueue 将队列绑定到交换机
func (r *RabbitMQ) BindQueue(queueName, routingKey, exchangeName string) error {
	ch, err := r.getChannel()
	if err != nil {
		return err
	}
	if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
		return fmt.Errorf("绑定队列 %s 到交换机 %s 失败: %w", queueName, exchangeName, err)
	}
	return nil
}

// PublishJSON 将消息序列化为JSON后发布到事件交换机
func (r *RabbitMQ) PublishJSON(ctx context.Context, routingKey string, message interface{}) error {
	ctx, span := rabbitTracer.Start(ctx, "RabbitMQ.PublishJSON", trace.WithAttributes(
		attribute.String("messaging.system", "rabbitmq"),
		attribute.String("messaging.destination", r.config.ProfileEventsExchange),
		attribute.String("messaging.routing_key", routingKey),
	))
	defer span.End()

	body, err := json.Marshal(message)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return fmt.Errorf("序列化事件消息失败: %w", err)
	}

	ch, err := r.getChannel()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(pubCtx, r.config.ProfileEventsExchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return fmt.Errorf("发布事件消息 (routing_key=%s) 失败: %w", routingKey, err)
	}

	logger.Debug().Str("routing_key", routingKey).Int("body_size", len(body)).Msg("事件消息已发布")
	return nil
}

// Close 关闭通道与连接
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil && !r.channel.IsClosed() {
		if err := r.channel.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭RabbitMQ通道失败")
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		return r.conn.Close()
	}
	return nil
}
