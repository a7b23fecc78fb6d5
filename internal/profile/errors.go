package profile

import (
	"errors"
	"fmt"
)

// 档案服务的公共错误分类，处理器层据此映射HTTP状态码
var (
	// ErrValidation 请求载荷不合法
	ErrValidation = errors.New("档案载荷校验失败")
	// ErrNotFound 指定用户的档案不存在
	ErrNotFound = errors.New("档案不存在")
	// ErrConflict 并发创建冲突且重试仍未成功
	ErrConflict = errors.New("档案并发创建冲突")
	// ErrInternal 存储或序列化等内部故障
	ErrInternal = errors.New("档案服务内部错误")
)

// Error 携带操作上下文的档案服务错误
type Error struct {
	Op     string // 发生错误的操作，如 "UpsertGithub"
	UserID string
	Kind   error // 上面定义的分类哨兵之一
	Detail string
	Err    error // 底层错误，可为nil
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("profile.%s", e.Op)
	if e.UserID != "" {
		msg += fmt.Sprintf(" [user=%s]", e.UserID)
	}
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

// Is 使 errors.Is(err, ErrValidation) 等分类判断生效
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// newError 构造带分类的服务错误
func newError(op, userID string, kind error, detail string, err error) *Error {
	return &Error{Op: op, UserID: userID, Kind: kind, Detail: detail, Err: err}
}
