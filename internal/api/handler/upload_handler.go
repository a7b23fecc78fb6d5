package handler

import (
	"context"

	"social-connect-go/internal/constants"
	"social-connect-go/internal/ingest"
	"social-connect-go/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// UploadHandler PDF上传接口处理器
type UploadHandler struct {
	service *ingest.PDFService
}

// NewUploadHandler 创建PDF上传接口处理器
func NewUploadHandler(service *ingest.PDFService) *UploadHandler {
	return &UploadHandler{service: service}
}

// HandleUpload 处理PDF上传与解析请求
// POST /api/v1/uploads，multipart表单，文件字段名为 pdf
func (h *UploadHandler) HandleUpload(c context.Context, ctx *app.RequestContext) {
	fileHeader, err := ctx.FormFile(constants.UploadFormField)
	if err != nil {
		respondError(ctx, consts.StatusBadRequest, "MISSING_FILE", "请求缺少 "+constants.UploadFormField+" 文件字段")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(ctx, consts.StatusInternalServerError, "INTERNAL_ERROR", "打开上传文件失败")
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	result, err := h.service.ProcessUpload(c, file, fileHeader.Size, contentType, fileHeader.Filename)
	if err != nil {
		logger.Warn().Err(err).Str("filename", fileHeader.Filename).Msg("PDF接入失败")
		respondServiceError(ctx, err)
		return
	}

	respondOK(ctx, consts.StatusOK, result)
}
