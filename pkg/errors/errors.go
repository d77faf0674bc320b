package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError 带错误码的应用错误
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is 同一错误码即视为同一错误，便于 errors.Is(err, ErrNotFriends)
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New 创建错误
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

// Wrap 包装底层错误
func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// CodeOf 提取错误码，非AppError返回CodeUnknown
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func InvalidPayload(msg string) error {
	return New(CodeInvalidPayload, msg)
}

func Unauthorized(msg string) error {
	return New(CodeUnauthorized, msg)
}

// StoreUnavailable 存储或总线不可用（含超时）
func StoreUnavailable(op string, cause error) error {
	return Wrap(CodeStoreUnavailable, op+" failed", cause)
}
