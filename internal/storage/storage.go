// Package storage 聚合所有外部存储依赖：MySQL、Redis、MinIO、RabbitMQ。
// MySQL是档案数据的权威存储，初始化失败即启动失败；
// 其余组件承担缓存、归档与事件通知等尽力而为的职责，
// 初始化失败时仅记录告警，对应字段保持nil，调用方需判空降级。
package storage

import (
	"context"
	"fmt"

	"social-connect-go/internal/config"
	"social-connect-go/internal/logger"
)

// Storage 持有全部已初始化的存储适配器
type Storage struct {
	MySQL    *MySQL
	Redis    *Redis
	MinIO    *MinIO
	RabbitMQ *RabbitMQ
}

// NewStorage 按配置初始化存储聚合
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{}

	mysqlDB, err := NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}
	s.MySQL = mysqlDB
	logger.Info().Msg("MySQL初始化成功")

	if redisAdapter, err := NewRedisAdapter(&cfg.Redis); err != nil {
		logger.Warn().Err(err).Msg("初始化Redis失败，档案视图缓存不可用")
	} else {
		s.Redis = redisAdapter
		logger.Info().Msg("Redis初始化成功")
	}

	if minioAdapter, err := NewMinIOAdapter(&cfg.MinIO); err != nil {
		logger.Warn().Err(err).Msg("初始化MinIO失败，文档归档不可用")
	} else {
		s.MinIO = minioAdapter
		logger.Info().Msg("MinIO初始化成功")
	}

	if mqAdapter, err := NewRabbitMQAdapter(&cfg.RabbitMQ); err != nil {
		logger.Warn().Err(err).Msg("初始化RabbitMQ失败，领域事件通知不可用")
	} else {
		s.RabbitMQ = mqAdapter
		logger.Info().Msg("RabbitMQ初始化成功")
	}

	return s, nil
}

// Close 关闭所有已初始化的存储连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
}
