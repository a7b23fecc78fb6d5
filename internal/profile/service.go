// Package profile 实现社交档案的入库、合并与归一化视图。
// 每个用户至多持有一条档案记录，GitHub与LinkedIn两侧数据
// 分别作为子记录存储，更新时按字段级合并后整体替换对应子记录。
package profile

import (
	"context"
	"errors"
	"strings"

	"social-connect-go/internal/constants"
	"social-connect-go/internal/logger"
	"social-connect-go/internal/storage"
	"social-connect-go/internal/storage/models"
	"social-connect-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var profileTracer = otel.Tracer("social-connect-go/profile")

// ProfileStore 档案持久化接口，由MySQL适配器实现
type ProfileStore interface {
	FindProfileByUserID(ctx context.Context, userID string) (*models.ConnectedProfile, error)
	CreateProfile(ctx context.Context, userID string, patch types.ProfilePatch) (*models.ConnectedProfile, error)
	UpdateProfileData(ctx context.Context, userID string, patch types.ProfilePatch) (*models.ConnectedProfile, error)
}

// ViewCache 归一化视图缓存接口，由Redis适配器实现
type ViewCache interface {
	GetProfileView(ctx context.Context, userID string) (*types.NormalizedProfile, error)
	SetProfileView(ctx context.Context, view *types.NormalizedProfile) error
	InvalidateProfileView(ctx context.Context, userID string) error
}

// EventPublisher 领域事件发布接口，由RabbitMQ适配器实现
type EventPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, message interface{}) error
}

// Service 档案服务
// cache 与 events 均可为nil，此时对应能力降级为直读数据库、不发事件
type Service struct {
	store           ProfileStore
	cache           ViewCache
	events          EventPublisher
	eventRoutingKey string
}

// Option 档案服务的可选配置
type Option func(*Service)

// WithEventRoutingKey 指定档案更新事件的路由键，覆盖默认值
func WithEventRoutingKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.eventRoutingKey = key
		}
	}
}

// NewService 创建档案服务
func NewService(store ProfileStore, cache ViewCache, events EventPublisher, opts ...Option) *Service {
	s := &Service{
		store:           store,
		cache:           cache,
		events:          events,
		eventRoutingKey: constants.ProfileUpdatedRoutingKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertGithub 写入或合并GitHub侧档案数据
// 返回归一化视图与本次是否为新建
func (s *Service) UpsertGithub(ctx context.Context, payload *types.GithubProfilePayload) (*types.NormalizedProfile, bool, error) {
	const op = "UpsertGithub"

	ctx, span := profileTracer.Start(ctx, "Service.UpsertGithub")
	defer span.End()

	if payload == nil || strings.TrimSpace(payload.UserID) == "" {
		return nil, false, newError(op, "", ErrValidation, "userId不能为空", nil)
	}
	userID := strings.TrimSpace(payload.UserID)
	span.SetAttributes(attribute.String("profile.user_id", userID))

	record, err := s.store.FindProfileByUserID(ctx, userID)
	switch {
	case err == nil:
		// 已存在：字段级合并后整体替换GitHub子记录
		merged, mergeErr := s.mergeGithub(record, payload)
		if mergeErr != nil {
			return nil, false, newError(op, userID, ErrInternal, "合并GitHub数据失败", mergeErr)
		}
		updated, updErr := s.store.UpdateProfileData(ctx, userID, types.ProfilePatch{GithubData: merged})
		if updErr != nil {
			return nil, false, s.mapStoreError(op, userID, updErr)
		}
		return s.finishUpsert(ctx, updated, constants.SourceGithub, false), false, nil

	case errors.Is(err, storage.ErrProfileNotFound):
		// 不存在：应用创建时默认值后新建
		created, createErr := s.store.CreateProfile(ctx, userID, types.ProfilePatch{
			GithubData: githubFromPayload(payload),
		})
		if createErr == nil {
			return s.finishUpsert(ctx, created, constants.SourceGithub, true), true, nil
		}
		if !errors.Is(createErr, storage.ErrDuplicateProfile) {
			return nil, false, s.mapStoreError(op, userID, createErr)
		}
		// 并发创建竞争：另一请求已插入，按更新重试一次
		span.SetAttributes(attribute.Bool("profile.create_race", true))
		existing, findErr := s.store.FindProfileByUserID(ctx, userID)
		if findErr != nil {
			return nil, false, newError(op, userID, ErrConflict, "并发创建后重读档案失败", findErr)
		}
		merged, mergeErr := s.mergeGithub(existing, payload)
		if mergeErr != nil {
			return nil, false, newError(op, userID, ErrInternal, "合并GitHub数据失败", mergeErr)
		}
		updated, updErr := s.store.UpdateProfileData(ctx, userID, types.ProfilePatch{GithubData: merged})
		if updErr != nil {
			return nil, false, newError(op, userID, ErrConflict, "并发创建冲突重试失败", updErr)
		}
		return s.finishUpsert(ctx, updated, constants.SourceGithub, false), false, nil

	default:
		return nil, false, s.mapStoreError(op, userID, err)
	}
}

// UpsertLinkedin 写入或合并LinkedIn侧档案数据
func (s *Service) UpsertLinkedin(ctx context.Context, payload *types.LinkedinProfilePayload) (*types.NormalizedProfile, bool, error) {
	const op = "UpsertLinkedin"

	ctx, span := profileTracer.Start(ctx, "Service.UpsertLinkedin")
	defer span.End()

	if payload == nil || strings.TrimSpace(payload.UserID) == "" {
		return nil, false, newError(op, "", ErrValidation, "userId不能为空", nil)
	}
	userID := strings.TrimSpace(payload.UserID)
	span.SetAttributes(attribute.String("profile.user_id", userID))

	// LinkedIn载荷要求至少有姓名或头衔，否则视图无法展示，先校验再写入
	if isEmptyPtr(payload.FullName) && isEmptyPtr(payload.Headline) {
		return nil, false, newError(op, userID, ErrValidation, "fullName与headline不能同时为空", nil)
	}

	record, err := s.store.FindProfileByUserID(ctx, userID)
	switch {
	case err == nil:
		merged, mergeErr := s.mergeLinkedin(record, payload)
		if mergeErr != nil {
			return nil, false, newError(op, userID, ErrInternal, "合并LinkedIn数据失败", mergeErr)
		}
		updated, updErr := s.store.UpdateProfileData(ctx, userID, types.ProfilePatch{LinkedinData: merged})
		if updErr != nil {
			return nil, false, s.mapStoreError(op, userID, updErr)
		}
		return s.finishUpsert(ctx, updated, constants.SourceLinkedin, false), false, nil

	case errors.Is(err, storage.ErrProfileNotFound):
		created, createErr := s.store.CreateProfile(ctx, userID, types.ProfilePatch{
			LinkedinData: linkedinFromPayload(payload),
		})
		if createErr == nil {
			return s.finishUpsert(ctx, created, constants.SourceLinkedin, true), true, nil
		}
		if !errors.Is(createErr, storage.ErrDuplicateProfile) {
			return nil, false, s.mapStoreError(op, userID, createErr)
		}
		span.SetAttributes(attribute.Bool("profile.create_race", true))
		existing, findErr := s.store.FindProfileByUserID(ctx, userID)
		if findErr != nil {
			return nil, false, newError(op, userID, ErrConflict, "并发创建后重读档案失败", findErr)
		}
		merged, mergeErr := s.mergeLinkedin(existing, payload)
		if mergeErr != nil {
			return nil, false, newError(op, userID, ErrInternal, "合并LinkedIn数据失败", mergeErr)
		}
		updated, updErr := s.store.UpdateProfileData(ctx, userID, types.ProfilePatch{LinkedinData: merged})
		if updErr != nil {
			return nil, false, newError(op, userID, ErrConflict, "并发创建冲突重试失败", updErr)
		}
		return s.finishUpsert(ctx, updated, constants.SourceLinkedin, false), false, nil

	default:
		return nil, false, s.mapStoreError(op, userID, err)
	}
}

// PatchLinkedin 对已存在档案的LinkedIn子记录做合并更新，档案不存在时报错
func (s *Service) PatchLinkedin(ctx context.Context, userID string, payload *types.LinkedinProfilePayload) (*types.NormalizedProfile, error) {
	const op = "PatchLinkedin"

	ctx, span := profileTracer.Start(ctx, "Service.PatchLinkedin", trace.WithAttributes(
		attribute.String("profile.user_id", userID),
	))
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, newError(op, "", ErrValidation, "userId不能为空", nil)
	}
	if payload == nil {
		return nil, newError(op, userID, ErrValidation, "更新载荷不能为空", nil)
	}

	record, err := s.store.FindProfileByUserID(ctx, userID)
	if err != nil {
		return nil, s.mapStoreError(op, userID, err)
	}

	merged, mergeErr := s.mergeLinkedin(record, payload)
	if mergeErr != nil {
		return nil, newError(op, userID, ErrInternal, "合并LinkedIn数据失败", mergeErr)
	}
	updated, updErr := s.store.UpdateProfileData(ctx, userID, types.ProfilePatch{LinkedinData: merged})
	if updErr != nil {
		return nil, s.mapStoreError(op, userID, updErr)
	}

	return s.finishUpsert(ctx, updated, constants.SourceLinkedin, false), nil
}

// GetProfile 读取归一化档案视图，优先命中缓存
func (s *Service) GetProfile(ctx context.Context, userID string) (*types.NormalizedProfile, error) {
	const op = "GetProfile"

	ctx, span := profileTracer.Start(ctx, "Service.GetProfile", trace.WithAttributes(
		attribute.String("profile.user_id", userID),
	))
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, newError(op, "", ErrValidation, "userId不能为空", nil)
	}

	if s.cache != nil {
		if view, err := s.cache.GetProfileView(ctx, userID); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return view, nil
		}
	}

	record, err := s.store.FindProfileByUserID(ctx, userID)
	if err != nil {
		return nil, s.mapStoreError(op, userID, err)
	}

	view, buildErr := s.buildNormalizedView(record, "")
	if buildErr != nil {
		return nil, newError(op, userID, ErrInternal, "构建归一化视图失败", buildErr)
	}

	// 回填缓存，失败不影响读取
	if s.cache != nil {
		if cacheErr := s.cache.SetProfileView(ctx, view); cacheErr != nil {
			logger.Warn().Err(cacheErr).Str("user_id", userID).Msg("回填档案视图缓存失败")
		}
	}
	return view, nil
}

// finishUpsert 写入成功后的收尾：失效缓存、构建视图、回填缓存、发布事件
// 收尾动作均为尽力而为，不影响已成功的写入
func (s *Service) finishUpsert(ctx context.Context, record *models.ConnectedProfile, source string, created bool) *types.NormalizedProfile {
	if s.cache != nil {
		if err := s.cache.InvalidateProfileView(ctx, record.UserID); err != nil {
			logger.Warn().Err(err).Str("user_id", record.UserID).Msg("失效档案视图缓存失败")
		}
	}

	view, err := s.buildNormalizedView(record, source)
	if err != nil {
		// 写入已成功，视图构建失败时返回最小视图
		logger.Error().Err(err).Str("user_id", record.UserID).Msg("构建归一化视图失败")
		view = &types.NormalizedProfile{
			UserID:    record.UserID,
			Source:    source,
			CreatedAt: record.CreatedAt,
			UpdatedAt: record.UpdatedAt,
		}
	} else if s.cache != nil {
		if cacheErr := s.cache.SetProfileView(ctx, view); cacheErr != nil {
			logger.Warn().Err(cacheErr).Str("user_id", record.UserID).Msg("回填档案视图缓存失败")
		}
	}

	if s.events != nil {
		msg := storage.ProfileUpdatedMessage{
			UserID:    record.UserID,
			ProfileID: record.ProfileID,
			Source:    source,
			Created:   created,
			UpdatedAt: record.UpdatedAt,
		}
		if err := s.events.PublishJSON(ctx, s.eventRoutingKey, msg); err != nil {
			logger.Warn().Err(err).Str("user_id", record.UserID).Msg("发布档案更新事件失败")
		}
	}

	return view
}

// mergeGithub 以现有子记录为基础，用载荷中提供的字段覆盖
func (s *Service) mergeGithub(record *models.ConnectedProfile, payload *types.GithubProfilePayload) (*types.GithubData, error) {
	base := &types.GithubData{}
	if record.HasGithubData() {
		existing, err := record.DecodeGithubData()
		if err != nil {
			return nil, err
		}
		base = existing
	}
	applyGithubPayload(base, payload)
	return base, nil
}

// mergeLinkedin 以现有子记录为基础，用载荷中提供的字段覆盖
func (s *Service) mergeLinkedin(record *models.ConnectedProfile, payload *types.LinkedinProfilePayload) (*types.LinkedinData, error) {
	base := &types.LinkedinData{}
	if record.HasLinkedinData() {
		existing, err := record.DecodeLinkedinData()
		if err != nil {
			return nil, err
		}
		base = existing
	}
	applyLinkedinPayload(base, payload)
	return base, nil
}

// githubFromPayload 构建新建时的GitHub子记录，缺失字段取零值默认
func githubFromPayload(payload *types.GithubProfilePayload) *types.GithubData {
	data := &types.GithubData{Repositories: []types.RepoSummary{}}
	applyGithubPayload(data, payload)
	return data
}

// linkedinFromPayload 构建新建时的LinkedIn子记录，缺失字段取零值默认
func linkedinFromPayload(payload *types.LinkedinProfilePayload) *types.LinkedinData {
	data := &types.LinkedinData{
		Experience:     []types.ExperienceEntry{},
		Education:      []types.EducationEntry{},
		Skills:         []string{},
		Certifications: []string{},
	}
	applyLinkedinPayload(data, payload)
	return data
}

// applyGithubPayload 仅覆盖载荷中显式提供的字段，nil代表缺失
func applyGithubPayload(data *types.GithubData, payload *types.GithubProfilePayload) {
	if payload.Username != nil {
		data.Username = *payload.Username
	}
	if payload.Avatar != nil {
		data.AvatarURL = *payload.Avatar
	}
	if payload.Bio != nil {
		data.Bio = *payload.Bio
	}
	if payload.Followers != nil {
		data.FollowerCount = *payload.Followers
	}
	if payload.Following != nil {
		data.FollowingCount = *payload.Following
	}
	if payload.Repos != nil {
		data.Repositories = *payload.Repos
	}
	if data.Repositories == nil {
		data.Repositories = []types.RepoSummary{}
	}
}

// applyLinkedinPayload 仅覆盖载荷中显式提供的字段，nil代表缺失
func applyLinkedinPayload(data *types.LinkedinData, payload *types.LinkedinProfilePayload) {
	if payload.FullName != nil {
		data.FullName = *payload.FullName
	}
	if payload.Headline != nil {
		data.Headline = *payload.Headline
	}
	if payload.Summary != nil {
		data.Summary = *payload.Summary
	}
	if payload.Experience != nil {
		data.Experience = *payload.Experience
	}
	if payload.Education != nil {
		data.Education = *payload.Education
	}
	if payload.Skills != nil {
		data.Skills = *payload.Skills
	}
	if payload.Certifications != nil {
		data.Certifications = *payload.Certifications
	}
	ensureLinkedinSlices(data)
}

// ensureLinkedinSlices 保证切片字段非nil，JSON输出为[]而非null
func ensureLinkedinSlices(data *types.LinkedinData) {
	if data.Experience == nil {
		data.Experience = []types.ExperienceEntry{}
	}
	if data.Education == nil {
		data.Education = []types.EducationEntry{}
	}
	if data.Skills == nil {
		data.Skills = []string{}
	}
	if data.Certifications == nil {
		data.Certifications = []string{}
	}
}

// buildNormalizedView 从存储记录构建归一化视图
// preferredSource 为本次写入来源，读取时传空串按LinkedIn优先推断
func (s *Service) buildNormalizedView(record *models.ConnectedProfile, preferredSource string) (*types.NormalizedProfile, error) {
	view := &types.NormalizedProfile{
		UserID:         record.UserID,
		Experience:     []types.ExperienceEntry{},
		Education:      []types.EducationEntry{},
		Skills:         []string{},
		Certifications: []string{},
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}

	var github *types.GithubData
	if record.HasGithubData() {
		decoded, err := record.DecodeGithubData()
		if err != nil {
			return nil, err
		}
		github = decoded
		view.Github = decoded
	}

	var linkedin *types.LinkedinData
	if record.HasLinkedinData() {
		decoded, err := record.DecodeLinkedinData()
		if err != nil {
			return nil, err
		}
		linkedin = decoded
	}

	switch {
	case linkedin != nil:
		ensureLinkedinSlices(linkedin)
		view.PersonalInfo = types.PersonalInfo{
			Name:  linkedin.FullName,
			Title: linkedin.Headline,
		}
		view.Summary = linkedin.Summary
		view.Experience = linkedin.Experience
		view.Education = linkedin.Education
		view.Skills = linkedin.Skills
		view.Certifications = linkedin.Certifications
		view.Source = constants.SourceLinkedin
	case github != nil:
		view.PersonalInfo = types.PersonalInfo{
			Name:  github.Username,
			Title: github.Bio,
		}
		view.Summary = github.Bio
		view.Source = constants.SourceGithub
	}

	// 双侧都有数据时，以本次写入来源标注
	if preferredSource != "" && github != nil && linkedin != nil {
		view.Source = preferredSource
	}

	return view, nil
}

// mapStoreError 将存储层错误映射到档案服务的错误分类
func (s *Service) mapStoreError(op, userID string, err error) error {
	switch {
	case errors.Is(err, storage.ErrProfileNotFound):
		return newError(op, userID, ErrNotFound, "", err)
	case errors.Is(err, storage.ErrDuplicateProfile):
		return newError(op, userID, ErrConflict, "", err)
	default:
		return newError(op, userID, ErrInternal, "", err)
	}
}

func isEmptyPtr(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
