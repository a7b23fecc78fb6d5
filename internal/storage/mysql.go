package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"social-connect-go/internal/config"
	"social-connect-go/internal/storage/models"
	"social-connect-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("social-connect-go/storage/mysql")

// 存储层哨兵错误，由上层服务映射为对外的错误分类
var (
	// ErrProfileNotFound 指定userID下不存在档案记录
	ErrProfileNotFound = errors.New("档案记录不存在")
	// ErrDuplicateProfile 唯一索引冲突，并发创建时败者收到此错误
	ErrDuplicateProfile = errors.New("档案记录已存在")
)

// GormTracingPlugin 是一个GORM插件，为数据库操作添加OpenTelemetry追踪点
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	// 为所有CRUD操作注册Before和After回调
	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	return nil
}

type spanCtxKey struct{}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		newCtx, span := p.tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)

		// 将span保存在DB上下文中，以便在after回调中使用
		db.Statement.Context = context.WithValue(newCtx, spanCtxKey{}, span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(spanCtxKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		// ErrRecordNotFound 是业务逻辑正常情况的一部分，不应作为错误处理
		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(attribute.String("error.type", "database_error"))
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer: mysqlTracer,
		dbName: dbName,
	}
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 构建DSN，添加超时设置
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	// 配置GORM日志级别
	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		// 将方言错误翻译为gorm.ErrDuplicatedKey等通用错误，唯一索引冲突检测依赖它
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	// 设置连接池参数
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	// 注册OpenTelemetry追踪插件
	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	// 使用 GORM 的 AutoMigrate 功能自动迁移表结构
	if err := db.AutoMigrate(&models.ConnectedProfile{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// FindProfileByUserID 通过userID获取档案记录
// 记录不存在时返回 ErrProfileNotFound
func (m *MySQL) FindProfileByUserID(ctx context.Context, userID string) (*models.ConnectedProfile, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.FindProfileByUserID", trace.WithAttributes(
		attribute.String("profile.user_id", userID),
	))
	defer span.End()

	var profile models.ConnectedProfile
	err := m.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetAttributes(attribute.Bool("profile.found", false))
			return nil, ErrProfileNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query profile")
		return nil, fmt.Errorf("查询档案记录失败: %w", err)
	}

	span.SetAttributes(attribute.Bool("profile.found", true), attribute.String("profile.id", profile.ProfileID))
	return &profile, nil
}

// CreateProfile 创建新的档案记录
// 并发创建同一userID时，唯一索引使败者收到 ErrDuplicateProfile
func (m *MySQL) CreateProfile(ctx context.Context, userID string, patch types.ProfilePatch) (*models.ConnectedProfile, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.CreateProfile", trace.WithAttributes(
		attribute.String("profile.user_id", userID),
	))
	defer span.End()

	newUUID, err := uuid.NewV7()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate UUIDv7")
		return nil, fmt.Errorf("生成UUIDv7失败: %w", err)
	}

	profile := &models.ConnectedProfile{
		ProfileID: newUUID.String(),
		UserID:    userID,
	}
	if patch.GithubData != nil {
		profile.GithubData, err = models.EncodeJSON(patch.GithubData)
		if err != nil {
			return nil, fmt.Errorf("序列化github_data失败: %w", err)
		}
	}
	if patch.LinkedinData != nil {
		profile.LinkedinData, err = models.EncodeJSON(patch.LinkedinData)
		if err != nil {
			return nil, fmt.Errorf("序列化linkedin_data失败: %w", err)
		}
	}

	if err := m.db.WithContext(ctx).Create(profile).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			span.SetAttributes(attribute.String("error.type", "duplicate_key"))
			return nil, ErrDuplicateProfile
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create profile")
		return nil, fmt.Errorf("创建档案记录失败: %w", err)
	}

	span.SetAttributes(attribute.String("profile.id", profile.ProfileID))
	return profile, nil
}

// UpdateProfileData 将补丁浅合并进已有记录
// 补丁中提供的子记录整体替换对应列，缺失的子记录保持原值不动
func (m *MySQL) UpdateProfileData(ctx context.Context, userID string, patch types.ProfilePatch) (*models.ConnectedProfile, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.UpdateProfileData", trace.WithAttributes(
		attribute.String("profile.user_id", userID),
	))
	defer span.End()

	updates := map[string]interface{}{}
	if patch.GithubData != nil {
		data, err := models.EncodeJSON(patch.GithubData)
		if err != nil {
			return nil, fmt.Errorf("序列化github_data失败: %w", err)
		}
		updates["github_data"] = data
	}
	if patch.LinkedinData != nil {
		data, err := models.EncodeJSON(patch.LinkedinData)
		if err != nil {
			return nil, fmt.Errorf("序列化linkedin_data失败: %w", err)
		}
		updates["linkedin_data"] = data
	}

	if len(updates) > 0 {
		result := m.db.WithContext(ctx).Model(&models.ConnectedProfile{}).Where("user_id = ?", userID).Updates(updates)
		if result.Error != nil {
			span.RecordError(result.Error)
			span.SetStatus(codes.Error, "failed to update profile")
			return nil, fmt.Errorf("更新档案记录失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// 记录可能在检查后被删除，按不存在处理
			var count int64
			if err := m.db.WithContext(ctx).Model(&models.ConnectedProfile{}).Where("user_id = ?", userID).Count(&count).Error; err == nil && count == 0 {
				return nil, ErrProfileNotFound
			}
		}
	}

	return m.FindProfileByUserID(ctx, userID)
}
