package handler

import (
	"context"
	"encoding/json"

	"social-connect-go/internal/logger"
	"social-connect-go/internal/profile"
	"social-connect-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// ProfileHandler 档案接口处理器
type ProfileHandler struct {
	service *profile.Service
}

// NewProfileHandler 创建档案接口处理器
func NewProfileHandler(service *profile.Service) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// HandleUpsertGithub 处理GitHub档案入库请求
// POST /api/v1/profiles/github
func (h *ProfileHandler) HandleUpsertGithub(c context.Context, ctx *app.RequestContext) {
	var payload types.GithubProfilePayload
	if err := json.Unmarshal(ctx.Request.Body(), &payload); err != nil {
		respondError(ctx, consts.StatusBadRequest, "INVALID_JSON", "请求体不是合法的JSON")
		return
	}

	view, created, err := h.service.UpsertGithub(c, &payload)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", payload.UserID).Msg("GitHub档案入库失败")
		respondServiceError(ctx, err)
		return
	}

	status := consts.StatusOK
	if created {
		status = consts.StatusCreated
	}
	respondOK(ctx, status, view)
}

// HandleUpsertLinkedin 处理LinkedIn档案入库请求
// POST /api/v1/profiles/linkedin
func (h *ProfileHandler) HandleUpsertLinkedin(c context.Context, ctx *app.RequestContext) {
	var payload types.LinkedinProfilePayload
	if err := json.Unmarshal(ctx.Request.Body(), &payload); err != nil {
		respondError(ctx, consts.StatusBadRequest, "INVALID_JSON", "请求体不是合法的JSON")
		return
	}

	view, created, err := h.service.UpsertLinkedin(c, &payload)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", payload.UserID).Msg("LinkedIn档案入库失败")
		respondServiceError(ctx, err)
		return
	}

	status := consts.StatusOK
	if created {
		status = consts.StatusCreated
	}
	respondOK(ctx, status, view)
}

// HandleGetProfile 读取归一化档案视图
// GET /api/v1/profiles/linkedin/:userId
func (h *ProfileHandler) HandleGetProfile(c context.Context, ctx *app.RequestContext) {
	userID := ctx.Param("userId")

	view, err := h.service.GetProfile(c, userID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	respondOK(ctx, consts.StatusOK, view)
}

// HandlePatchLinkedin 合并更新已存在档案的LinkedIn子记录
// PATCH /api/v1/profiles/linkedin/:userId
func (h *ProfileHandler) HandlePatchLinkedin(c context.Context, ctx *app.RequestContext) {
	userID := ctx.Param("userId")

	var payload types.LinkedinProfilePayload
	if err := json.Unmarshal(ctx.Request.Body(), &payload); err != nil {
		respondError(ctx, consts.StatusBadRequest, "INVALID_JSON", "请求体不是合法的JSON")
		return
	}

	view, err := h.service.PatchLinkedin(c, userID, &payload)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("LinkedIn档案更新失败")
		respondServiceError(ctx, err)
		return
	}
	respondOK(ctx, consts.StatusOK, view)
}
