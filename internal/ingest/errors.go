package ingest

import (
	"errors"
	"fmt"
)

// 文档接入服务的公共错误分类，处理器层据此映射HTTP状态码
var (
	// ErrMissingFile 请求缺少上传文件
	ErrMissingFile = errors.New("请求缺少上传文件")
	// ErrUnsupportedMediaType 文件类型不是PDF
	ErrUnsupportedMediaType = errors.New("仅支持PDF文件")
	// ErrFileTooLarge 文件超出大小限制
	ErrFileTooLarge = errors.New("文件超出大小限制")
	// ErrEmptyFile 文件内容为空
	ErrEmptyFile = errors.New("文件内容为空")
	// ErrExtraction PDF解析失败
	ErrExtraction = errors.New("PDF解析失败")
	// ErrInternal 临时存储等内部故障
	ErrInternal = errors.New("文档接入内部错误")
)

// Error 携带操作上下文的文档接入错误
type Error struct {
	Op     string
	Kind   error
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("ingest.%s", e.Op)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Message 返回可对外展示的错误描述，不含操作名与底层错误链
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Kind.Error()
}

// Is 使 errors.Is(err, ErrFileTooLarge) 等分类判断生效
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func newError(op string, kind error, detail string, err error) *Error {
	return &Error{Op: op, Kind: kind, Detail: detail, Err: err}
}
