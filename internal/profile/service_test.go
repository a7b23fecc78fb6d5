package profile_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"social-connect-go/internal/constants"
	"social-connect-go/internal/profile"
	"social-connect-go/internal/storage"
	"social-connect-go/internal/storage/models"
	"social-connect-go/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore 内存档案存储，模拟MySQL适配器的行为
type memStore struct {
	mu       sync.Mutex
	profiles map[string]*models.ConnectedProfile
	// duplicateOnCreate 模拟并发创建竞争：前N次CreateProfile返回重复错误
	duplicateOnCreate int
	// failFind 模拟查询故障
	failFind error
}

func newMemStore() *memStore {
	return &memStore{profiles: make(map[string]*models.ConnectedProfile)}
}

func (s *memStore) FindProfileByUserID(_ context.Context, userID string) (*models.ConnectedProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind != nil {
		return nil, s.failFind
	}
	record, ok := s.profiles[userID]
	if !ok {
		return nil, storage.ErrProfileNotFound
	}
	cp := *record
	return &cp, nil
}

func (s *memStore) CreateProfile(_ context.Context, userID string, patch types.ProfilePatch) (*models.ConnectedProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duplicateOnCreate > 0 {
		s.duplicateOnCreate--
		// 模拟另一请求已抢先插入
		if _, ok := s.profiles[userID]; !ok {
			s.profiles[userID] = s.newRecord(userID, types.ProfilePatch{})
		}
		return nil, storage.ErrDuplicateProfile
	}
	if _, ok := s.profiles[userID]; ok {
		return nil, storage.ErrDuplicateProfile
	}
	record := s.newRecord(userID, patch)
	s.profiles[userID] = record
	cp := *record
	return &cp, nil
}

func (s *memStore) UpdateProfileData(_ context.Context, userID string, patch types.ProfilePatch) (*models.ConnectedProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.profiles[userID]
	if !ok {
		return nil, storage.ErrProfileNotFound
	}
	if patch.GithubData != nil {
		raw, err := models.EncodeJSON(patch.GithubData)
		if err != nil {
			return nil, err
		}
		record.GithubData = raw
	}
	if patch.LinkedinData != nil {
		raw, err := models.EncodeJSON(patch.LinkedinData)
		if err != nil {
			return nil, err
		}
		record.LinkedinData = raw
	}
	record.UpdatedAt = time.Now()
	cp := *record
	return &cp, nil
}

func (s *memStore) newRecord(userID string, patch types.ProfilePatch) *models.ConnectedProfile {
	record := &models.ConnectedProfile{
		ProfileID: uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if patch.GithubData != nil {
		raw, _ := models.EncodeJSON(patch.GithubData)
		record.GithubData = raw
	}
	if patch.LinkedinData != nil {
		raw, _ := models.EncodeJSON(patch.LinkedinData)
		record.LinkedinData = raw
	}
	return record
}

// memCache 内存视图缓存
type memCache struct {
	mu    sync.Mutex
	views map[string]*types.NormalizedProfile
}

func newMemCache() *memCache {
	return &memCache{views: make(map[string]*types.NormalizedProfile)}
}

func (c *memCache) GetProfileView(_ context.Context, userID string) (*types.NormalizedProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	view, ok := c.views[userID]
	if !ok {
		return nil, storage.ErrCacheMiss
	}
	return view, nil
}

func (c *memCache) SetProfileView(_ context.Context, view *types.NormalizedProfile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[view.UserID] = view
	return nil
}

func (c *memCache) InvalidateProfileView(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, userID)
	return nil
}

// memPublisher 记录已发布事件
type memPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

type publishedMessage struct {
	routingKey string
	body       interface{}
}

func (p *memPublisher) PublishJSON(_ context.Context, routingKey string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{routingKey: routingKey, body: message})
	return nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestUpsertGithubCreatesProfile(t *testing.T) {
	store := newMemStore()
	svc := profile.NewService(store, nil, nil)

	view, created, err := svc.UpsertGithub(context.Background(), &types.GithubProfilePayload{
		UserID:    "user-1",
		Username:  strPtr("octocat"),
		Bio:       strPtr("builds things"),
		Followers: intPtr(42),
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "user-1", view.UserID)
	assert.Equal(t, constants.SourceGithub, view.Source)
	require.NotNil(t, view.Github)
	assert.Equal(t, "octocat", view.Github.Username)
	assert.Equal(t, 42, view.Github.FollowerCount)
	// 未提供的字段取零值默认
	assert.Equal(t, 0, view.Github.FollowingCount)
	assert.NotNil(t, view.Github.Repositories)
}

func TestUpsertGithubSecondCallUpdates(t *testing.T) {
	store := newMemStore()
	svc := profile.NewService(store, nil, nil)
	ctx := context.Background()

	_, created, err := svc.UpsertGithub(ctx, &types.GithubProfilePayload{
		UserID:   "user-1",
		Username: strPtr("octocat"),
		Bio:      strPtr("original bio"),
	})
	require.NoError(t, err)
	require.True(t, created)

	// 第二次只更新bio，username保持不变
	view, created, err := svc.UpsertGithub(ctx, &types.GithubProfilePayload{
		UserID: "user-1",
		Bio:    strPtr("updated bio"),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "octocat", view.Github.Username)
	assert.Equal(t, "updated bio", view.Github.Bio)
}

func TestUpsertGithubEmptyUserID(t *testing.T) {
	svc := profile.NewService(newMemStore(), nil, nil)

	_, _, err := svc.UpsertGithub(context.Background(), &types.GithubProfilePayload{UserID: "  "})
	assert.ErrorIs(t, err, profile.ErrValidation)
}

func TestUpsertLinkedinRequiresNameOrHeadline(t *testing.T) {
	svc := profile.NewService(newMemStore(), nil, nil)

	_, _, err := svc.UpsertLinkedin(context.Background(), &types.LinkedinProfilePayload{
		UserID: "user-1",
		Skills: &[]string{"Go"},
	})
	assert.ErrorIs(t, err, profile.ErrValidation)

	// 有headline即可创建
	view, created, err := svc.UpsertLinkedin(context.Background(), &types.LinkedinProfilePayload{
		UserID:   "user-1",
		Headline: strPtr("Backend Engineer"),
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Backend Engineer", view.PersonalInfo.Title)

	// 档案已存在时同样拒绝，且不落库
	_, _, err = svc.UpsertLinkedin(context.Background(), &types.LinkedinProfilePayload{
		UserID: "user-1",
		Skills: &[]string{"Go"},
	})
	assert.ErrorIs(t, err, profile.ErrValidation)

	after, err := svc.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, after.Skills)
}

func TestUpsertLinkedinPreservesOmittedFields(t *testing.T) {
	store := newMemStore()
	svc := profile.NewService(store, nil, nil)
	ctx := context.Background()

	_, _, err := svc.UpsertLinkedin(ctx, &types.LinkedinProfilePayload{
		UserID:   "user-1",
		FullName: strPtr("Jordan Doe"),
		Skills:   &[]string{"Go", "MySQL"},
	})
	require.NoError(t, err)

	// 省略skills时原值保留
	view, _, err := svc.UpsertLinkedin(ctx, &types.LinkedinProfilePayload{
		UserID:   "user-1",
		FullName: strPtr("Jordan Doe"),
		Summary:  strPtr("five years of backend work"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "MySQL"}, view.Skills)
	assert.Equal(t, "five years of backend work", view.Summary)

	// 显式提供空数组时清空
	view, _, err = svc.UpsertLinkedin(ctx, &types.LinkedinProfilePayload{
		UserID:   "user-1",
		FullName: strPtr("Jordan Doe"),
		Skills:   &[]string{},
	})
	require.NoError(t, err)
	assert.Empty(t, view.Skills)
	assert.NotNil(t, view.Skills)
}

func TestUpsertCreateRaceRetriesAsUpdate(t *testing.T) {
	store := newMemStore()
	store.duplicateOnCreate = 1
	svc := profile.NewService(store, nil, nil)

	view, created, err := svc.UpsertGithub(context.Background(), &types.GithubProfilePayload{
		UserID:   "user-1",
		Username: strPtr("octocat"),
	})
	require.NoError(t, err)
	// 竞争失败后按更新重试，不算新建
	assert.False(t, created)
	assert.Equal(t, "octocat", view.Github.Username)
}

func TestPatchLinkedinMissingProfile(t *testing.T) {
	svc := profile.NewService(newMemStore(), nil, nil)

	_, err := svc.PatchLinkedin(context.Background(), "ghost", &types.LinkedinProfilePayload{
		Headline: strPtr("nope"),
	})
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestGetProfileUsesCache(t *testing.T) {
	store := newMemStore()
	cache := newMemCache()
	svc := profile.NewService(store, cache, nil)
	ctx := context.Background()

	_, _, err := svc.UpsertLinkedin(ctx, &types.LinkedinProfilePayload{
		UserID:   "user-1",
		FullName: strPtr("Jordan Doe"),
	})
	require.NoError(t, err)

	// 写入后缓存已回填
	cached, err := cache.GetProfileView(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Jordan Doe", cached.PersonalInfo.Name)

	// 删除存储记录后仍可命中缓存
	store.mu.Lock()
	delete(store.profiles, "user-1")
	store.mu.Unlock()

	view, err := svc.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Jordan Doe", view.PersonalInfo.Name)
}

func TestGetProfileNotFound(t *testing.T) {
	svc := profile.NewService(newMemStore(), nil, nil)

	_, err := svc.GetProfile(context.Background(), "ghost")
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestUpsertPublishesEvent(t *testing.T) {
	store := newMemStore()
	publisher := &memPublisher{}
	svc := profile.NewService(store, nil, publisher)

	_, _, err := svc.UpsertGithub(context.Background(), &types.GithubProfilePayload{
		UserID:   "user-1",
		Username: strPtr("octocat"),
	})
	require.NoError(t, err)

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, constants.ProfileUpdatedRoutingKey, publisher.messages[0].routingKey)
	msg, ok := publisher.messages[0].body.(storage.ProfileUpdatedMessage)
	require.True(t, ok)
	assert.Equal(t, "user-1", msg.UserID)
	assert.True(t, msg.Created)
	assert.Equal(t, constants.SourceGithub, msg.Source)
}

func TestUpsertUsesConfiguredRoutingKey(t *testing.T) {
	publisher := &memPublisher{}
	svc := profile.NewService(newMemStore(), nil, publisher,
		profile.WithEventRoutingKey("custom.profile.updated"),
	)

	_, _, err := svc.UpsertGithub(context.Background(), &types.GithubProfilePayload{
		UserID:   "user-1",
		Username: strPtr("octocat"),
	})
	require.NoError(t, err)

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, "custom.profile.updated", publisher.messages[0].routingKey)
}

func TestNormalizedViewPrefersLinkedin(t *testing.T) {
	store := newMemStore()
	svc := profile.NewService(store, nil, nil)
	ctx := context.Background()

	_, _, err := svc.UpsertGithub(ctx, &types.GithubProfilePayload{
		UserID:   "user-1",
		Username: strPtr("octocat"),
		Bio:      strPtr("github bio"),
	})
	require.NoError(t, err)
	_, _, err = svc.UpsertLinkedin(ctx, &types.LinkedinProfilePayload{
		UserID:   "user-1",
		FullName: strPtr("Jordan Doe"),
		Headline: strPtr("Backend Engineer"),
	})
	require.NoError(t, err)

	view, err := svc.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	// 读取时LinkedIn数据主导展示，GitHub数据附在github字段
	assert.Equal(t, "Jordan Doe", view.PersonalInfo.Name)
	assert.Equal(t, constants.SourceLinkedin, view.Source)
	require.NotNil(t, view.Github)
	assert.Equal(t, "octocat", view.Github.Username)
}
