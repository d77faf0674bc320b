package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "goim-chat/pkg/errors"
)

// Response 统一响应体
type Response struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// StatusOf 错误码到HTTP状态码
func StatusOf(code apperrors.Code) int {
	switch code {
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.CodeInvalidPayload:
		return http.StatusUnprocessableEntity
	case apperrors.CodeUserNotFound:
		return http.StatusNotFound
	case apperrors.CodeInvalidArgument, apperrors.CodeAlreadyFriends, apperrors.CodeDuplicateRequest,
		apperrors.CodeNoPendingRequest, apperrors.CodeNotFriends:
		return http.StatusBadRequest
	case apperrors.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// OK 成功响应
func OK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, &Response{Success: true, Message: message, Data: data})
}

// WriteError 失败响应，内部错误不向调用方暴露细节
func WriteError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	status := StatusOf(code)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	c.JSON(status, &Response{Success: false, Code: string(code), Message: message})
}

// AbortWithError 中间件中终止请求
func AbortWithError(c *gin.Context, err error) {
	WriteError(c, err)
	c.Abort()
}
