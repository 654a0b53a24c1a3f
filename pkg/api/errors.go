package api

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorCode 错误码, 即 OData 错误响应中的 code
type ErrorCode string

const (
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeBadRequest       ErrorCode = "BAD_REQUEST"
	ErrCodeNotCountable     ErrorCode = "NOT_COUNTABLE"
	ErrCodeInvalidFilter    ErrorCode = "INVALID_FILTER"
	ErrCodeInvalidParam     ErrorCode = "INVALID_PARAM"
	ErrCodeNotSupported     ErrorCode = "NOT_SUPPORTED"
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeTimeout          ErrorCode = "TIMEOUT"
	ErrCodeUnavailable      ErrorCode = "UNAVAILABLE"
	ErrCodeInternal         ErrorCode = "INTERNAL"
)

var httpStatus = map[ErrorCode]int{
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeNotCountable:     http.StatusBadRequest,
	ErrCodeInvalidFilter:    http.StatusBadRequest,
	ErrCodeInvalidParam:     http.StatusBadRequest,
	ErrCodeNotSupported:     http.StatusNotImplemented,
	ErrCodeMethodNotAllowed: http.StatusMethodNotAllowed,
	ErrCodeTimeout:          http.StatusGatewayTimeout,
	ErrCodeUnavailable:      http.StatusServiceUnavailable,
}

// HTTPStatus 错误码对应的 HTTP 状态码, 未知错误码为 500
func (c ErrorCode) HTTPStatus() int {
	if s, ok := httpStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error 带错误码和创建时堆栈的错误
type Error struct {
	Code    ErrorCode
	Message string
	Target  string   // 出错的查询选项, 如 "$filter"
	Stack   []string // 创建时的调用堆栈
	Cause   error
}

// NewError 创建错误并记录堆栈; 在 recover 中调用时堆栈包含 panic 位置
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Stack:   captureStackTrace(3),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithTarget 设置出错目标
func (e *Error) WithTarget(target string) *Error {
	e.Target = target
	return e
}

// captureStackTrace 捕获调用堆栈, 文件和函数名去掉包路径
func captureStackTrace(skip int) []string {
	pc := make([]uintptr, 32)
	n := runtime.Callers(skip, pc)
	frames := runtime.CallersFrames(pc[:n])

	stack := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			stack = append(stack, fmt.Sprintf("  at %s (%s:%d)", trimPath(frame.Function), trimPath(frame.File), frame.Line))
		}
		if !more {
			break
		}
	}
	return stack
}

func trimPath(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// AsError 在错误链中查找 *Error
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// GetErrorCode 获取错误码, 非 *Error 返回 ErrCodeInternal
func GetErrorCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if apiErr, ok := AsError(err); ok {
		return apiErr.Code
	}
	return ErrCodeInternal
}

// GetErrorMessage 获取不含错误码的消息
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := AsError(err); ok {
		if apiErr.Message == "" && apiErr.Cause != nil {
			return apiErr.Cause.Error()
		}
		return apiErr.Message
	}
	return err.Error()
}
