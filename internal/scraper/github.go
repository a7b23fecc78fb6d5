// Package scraper 从外部平台抓取公开档案数据。
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"social-connect-go/internal/config"
	"social-connect-go/internal/ratelimit"
	"social-connect-go/internal/tracing"
	"social-connect-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var scraperTracer = otel.Tracer("social-connect-go/scraper")

// ProfileScraper 抓取外部平台的公开档案
type ProfileScraper interface {
	FetchGithubProfile(ctx context.Context, username string) (*types.GithubData, error)
}

// GitHubClient 通过GitHub REST API抓取用户公开档案
type GitHubClient struct {
	baseURL    string
	token      string
	maxRepos   int
	httpClient *http.Client
	limiter    *ratelimit.TokenBucket
}

// NewGitHubClient 创建GitHub抓取客户端
func NewGitHubClient(cfg *config.ScraperConfig) *GitHubClient {
	return &GitHubClient{
		baseURL:  cfg.BaseURL,
		token:    cfg.Token,
		maxRepos: cfg.MaxRepos,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		limiter: ratelimit.NewTokenBucket(cfg.QPM, 0),
	}
}

// githubUserResponse GitHub /users/{username} 响应体
type githubUserResponse struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	Bio       string `json:"bio"`
	Followers int    `json:"followers"`
	Following int    `json:"following"`
}

// githubRepoResponse GitHub /users/{username}/repos 响应体的单个元素
type githubRepoResponse struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Language        string `json:"language"`
	StargazersCount int    `json:"stargazers_count"`
	HTMLURL         string `json:"html_url"`
}

// FetchGithubProfile 抓取指定用户名的公开档案与最近更新的仓库
func (c *GitHubClient) FetchGithubProfile(ctx context.Context, username string) (*types.GithubData, error) {
	ctx, span := scraperTracer.Start(ctx, "GitHubClient.FetchGithubProfile", trace.WithAttributes(
		attribute.String("github.username", tracing.MaskPII(username)),
	))
	defer span.End()

	var user githubUserResponse
	userURL := fmt.Sprintf("%s/users/%s", c.baseURL, username)
	if err := c.getJSON(ctx, userURL, &user); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, fmt.Errorf("抓取GitHub用户信息失败: %w", err)
	}

	var repos []githubRepoResponse
	reposURL := fmt.Sprintf("%s/users/%s/repos?sort=updated&per_page=%d", c.baseURL, username, c.maxRepos)
	if err := c.getJSON(ctx, reposURL, &repos); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, fmt.Errorf("抓取GitHub仓库列表失败: %w", err)
	}

	data := &types.GithubData{
		Username:       user.Login,
		AvatarURL:      user.AvatarURL,
		Bio:            user.Bio,
		FollowerCount:  user.Followers,
		FollowingCount: user.Following,
		Repositories:   make([]types.RepoSummary, 0, len(repos)),
	}
	for _, repo := range repos {
		data.Repositories = append(data.Repositories, types.RepoSummary{
			Name:        repo.Name,
			Description: repo.Description,
			Language:    repo.Language,
			Stars:       repo.StargazersCount,
			URL:         repo.HTMLURL,
		})
	}

	span.SetAttributes(attribute.Int("github.repo_count", len(data.Repositories)))
	return data, nil
}

// getJSON 限流后发起GET请求并解码JSON响应
func (c *GitHubClient) getJSON(ctx context.Context, url string, out interface{}) error {
	return c.limiter.RetryWithBackoff(ctx, func() error {
		return c.doGetJSON(ctx, url, out)
	})
}

func (c *GitHubClient) doGetJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求GitHub API失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("读取GitHub响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GitHub API返回非预期状态码 %d: %s", resp.StatusCode, tracing.TruncateString(string(body), tracing.DefaultMaxLength))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解码GitHub响应失败: %w", err)
	}
	return nil
}
