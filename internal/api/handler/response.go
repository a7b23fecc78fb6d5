package handler

import (
	"errors"

	"social-connect-go/internal/ingest"
	"social-connect-go/internal/logger"
	"social-connect-go/internal/profile"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Envelope 统一响应信封，error为面向调用方的描述字符串
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// respondOK 写入成功信封
func respondOK(ctx *app.RequestContext, status int, data interface{}) {
	ctx.JSON(status, Envelope{Success: true, Data: data})
}

// respondError 写入失败信封
func respondError(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, Envelope{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

// respondServiceError 将服务层错误分类映射为HTTP状态码与错误描述
// 完整错误链只进日志，对外仅暴露服务层的分类描述
func respondServiceError(ctx *app.RequestContext, err error) {
	switch {
	case errors.Is(err, profile.ErrValidation):
		respondError(ctx, consts.StatusBadRequest, "VALIDATION_FAILED", clientMessage(err))
	case errors.Is(err, profile.ErrNotFound):
		respondError(ctx, consts.StatusNotFound, "PROFILE_NOT_FOUND", clientMessage(err))
	case errors.Is(err, profile.ErrConflict):
		respondError(ctx, consts.StatusConflict, "PROFILE_CONFLICT", clientMessage(err))
	case errors.Is(err, ingest.ErrMissingFile), errors.Is(err, ingest.ErrEmptyFile):
		respondError(ctx, consts.StatusBadRequest, "INVALID_UPLOAD", clientMessage(err))
	case errors.Is(err, ingest.ErrUnsupportedMediaType):
		respondError(ctx, consts.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", clientMessage(err))
	case errors.Is(err, ingest.ErrFileTooLarge):
		respondError(ctx, consts.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", clientMessage(err))
	case errors.Is(err, ingest.ErrExtraction):
		logger.Error().Err(err).Msg("PDF解析失败")
		respondError(ctx, consts.StatusInternalServerError, "EXTRACTION_FAILED", clientMessage(err))
	default:
		logger.Error().Err(err).Msg("服务内部错误")
		respondError(ctx, consts.StatusInternalServerError, "INTERNAL_ERROR", "服务内部错误")
	}
}

// clientMessage 提取服务层错误中可对外的描述，剥离操作名与底层错误链
func clientMessage(err error) string {
	var pErr *profile.Error
	if errors.As(err, &pErr) {
		return pErr.Message()
	}
	var iErr *ingest.Error
	if errors.As(err, &iErr) {
		return iErr.Message()
	}
	return err.Error()
}
