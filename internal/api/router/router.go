package router

import (
	"context"

	"social-connect-go/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(
	h *server.Hertz,
	profileHandler *handler.ProfileHandler,
	uploadHandler *handler.UploadHandler,
	scrapeHandler *handler.ScrapeHandler,
) {
	api := h.Group("/api/v1")

	// PDF文档接入
	api.POST("/uploads", uploadHandler.HandleUpload)

	// 档案入库与读取
	api.POST("/profiles/github", profileHandler.HandleUpsertGithub)
	api.POST("/profiles/linkedin", profileHandler.HandleUpsertLinkedin)
	api.GET("/profiles/linkedin/:userId", profileHandler.HandleGetProfile)
	api.PATCH("/profiles/linkedin/:userId", profileHandler.HandlePatchLinkedin)

	// 外部平台抓取
	api.POST("/scrape/github", scrapeHandler.HandleScrapeGithub)

	// 健康检查
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}
