// Package apperror 定义服务内部统一的错误分类。
package apperror

import (
	"context"
	"errors"
	"fmt"
)

// Kind 描述错误的类别，HTTP 层据此决定状态码。
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindUnavailable
	KindMalformedOutput
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnavailable:
		return "unavailable"
	case KindMalformedOutput:
		return "malformed_output"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Error 携带类别和发生位置，Error() 保留底层错误的原始信息。
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New 用给定类别包装 err。
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf 以格式化消息创建一个带类别的错误。
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf 返回错误链上最外层的类别。
// context.DeadlineExceeded 视为超时，未分类的错误视为内部错误。
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindUnavailable && errors.Is(err, context.DeadlineExceeded) {
			return KindTimeout
		}
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// Is 判断 err 是否属于 kind。
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable 对上游不可用和超时返回 true。服务本身不做重试，由调用方决定。
func Retryable(err error) bool {
	k := KindOf(err)
	return err != nil && (k == KindUnavailable || k == KindTimeout)
}
