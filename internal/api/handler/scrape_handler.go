package handler

import (
	"context"
	"encoding/json"
	"strings"

	"social-connect-go/internal/logger"
	"social-connect-go/internal/profile"
	"social-connect-go/internal/scraper"
	"social-connect-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// ScrapeHandler GitHub档案抓取接口处理器
type ScrapeHandler struct {
	scraper scraper.ProfileScraper
	service *profile.Service
}

// NewScrapeHandler 创建抓取接口处理器
func NewScrapeHandler(sc scraper.ProfileScraper, service *profile.Service) *ScrapeHandler {
	return &ScrapeHandler{scraper: sc, service: service}
}

// ScrapeGithubRequest 抓取请求体
// userId 可选，提供时抓取结果直接入库到该用户档案
type ScrapeGithubRequest struct {
	Username string `json:"username"`
	UserID   string `json:"userId,omitempty"`
}

// ScrapeGithubResponse 抓取响应体
type ScrapeGithubResponse struct {
	Github  *types.GithubData        `json:"github"`
	Profile *types.NormalizedProfile `json:"profile,omitempty"`
}

// HandleScrapeGithub 抓取GitHub公开档案，可选直接入库
// POST /api/v1/scrape/github
func (h *ScrapeHandler) HandleScrapeGithub(c context.Context, ctx *app.RequestContext) {
	var req ScrapeGithubRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		respondError(ctx, consts.StatusBadRequest, "INVALID_JSON", "请求体不是合法的JSON")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		respondError(ctx, consts.StatusBadRequest, "VALIDATION_FAILED", "username不能为空")
		return
	}

	data, err := h.scraper.FetchGithubProfile(c, req.Username)
	if err != nil {
		logger.Warn().Err(err).Str("username", req.Username).Msg("抓取GitHub档案失败")
		respondError(ctx, consts.StatusBadGateway, "SCRAPE_FAILED", "抓取GitHub档案失败")
		return
	}

	resp := &ScrapeGithubResponse{Github: data}

	// 提供userId时，抓取结果直接入库
	if req.UserID != "" {
		payload := &types.GithubProfilePayload{
			UserID:    req.UserID,
			Username:  &data.Username,
			Avatar:    &data.AvatarURL,
			Bio:       &data.Bio,
			Followers: &data.FollowerCount,
			Following: &data.FollowingCount,
			Repos:     &data.Repositories,
		}
		view, _, upsertErr := h.service.UpsertGithub(c, payload)
		if upsertErr != nil {
			logger.Warn().Err(upsertErr).Str("user_id", req.UserID).Msg("抓取结果入库失败")
			respondServiceError(ctx, upsertErr)
			return
		}
		resp.Profile = view
	}

	respondOK(ctx, consts.StatusOK, resp)
}
