package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"social-connect-go/internal/config"
	"social-connect-go/internal/constants"
	"social-connect-go/internal/tracing"
	"social-connect-go/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrCacheMiss is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrCacheMiss = redis.Nil

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("social-connect-go/storage/redis")

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis适配器
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Redis配置不能为空")
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
	})

	// 验证连接
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("连接Redis (%s) 失败: %w", cfg.Address, err)
	}

	// 注册OpenTelemetry追踪钩子
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("注册Redis追踪钩子失败: %w", err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	return r.Client.Close()
}

// profileViewKey 归一化视图缓存键
func profileViewKey(userID string) string {
	return fmt.Sprintf(constants.KeyProfileView, userID)
}

// viewTTL 归一化视图缓存的过期时间
func (r *Redis) viewTTL() time.Duration {
	return time.Duration(r.config.ProfileViewTTLSeconds) * time.Second
}

// GetProfileView 读取缓存中的归一化档案视图
// 未命中时返回 ErrCacheMiss
func (r *Redis) GetProfileView(ctx context.Context, userID string) (*types.NormalizedProfile, error) {
	key := profileViewKey(userID)
	ctx, span := redisTracer.Start(ctx, "Redis.GetProfileView", trace.WithAttributes(
		attribute.String("redis.key", tracing.SafeRedisKey(key)),
	))
	defer span.End()

	raw, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return nil, ErrCacheMiss
		}
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return nil, fmt.Errorf("读取档案视图缓存失败: %w", err)
	}

	var view types.NormalizedProfile
	if err := json.Unmarshal(raw, &view); err != nil {
		// 缓存内容损坏时按未命中处理，删除坏记录
		r.Client.Del(ctx, key)
		span.SetAttributes(attribute.Bool("cache.corrupt", true))
		return nil, ErrCacheMiss
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &view, nil
}

// SetProfileView 写入归一化档案视图缓存
func (r *Redis) SetProfileView(ctx context.Context, view *types.NormalizedProfile) error {
	key := profileViewKey(view.UserID)
	ctx, span := redisTracer.Start(ctx, "Redis.SetProfileView", trace.WithAttributes(
		attribute.String("redis.key", tracing.SafeRedisKey(key)),
	))
	defer span.End()

	raw, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("序列化档案视图失败: %w", err)
	}

	if err := r.Client.Set(ctx, key, raw, r.viewTTL()).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("写入档案视图缓存失败: %w", err)
	}
	return nil
}

// InvalidateProfileView 删除归一化档案视图缓存
func (r *Redis) InvalidateProfileView(ctx context.Context, userID string) error {
	key := profileViewKey(userID)
	ctx, span := redisTracer.Start(ctx, "Redis.InvalidateProfileView", trace.WithAttributes(
		attribute.String("redis.key", tracing.SafeRedisKey(key)),
	))
	defer span.End()

	if err := r.Client.Del(ctx, key).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("删除档案视图缓存失败: %w", err)
	}
	return nil
}
