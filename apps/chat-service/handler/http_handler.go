package handler

import (
	"github.com/gin-gonic/gin"

	"goim-chat/apps/chat-service/service"
	apperrors "goim-chat/pkg/errors"
	"goim-chat/pkg/httpx"
	"goim-chat/pkg/logger"
	"goim-chat/pkg/middleware"
)

// HTTPHandler HTTP协议处理器
type HTTPHandler struct {
	svc *service.Service
	log logger.Logger
}

// NewHTTPHandler 创建HTTP处理器
func NewHTTPHandler(svc *service.Service, log logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc: svc,
		log: log,
	}
}

// RegisterRoutes 注册HTTP路由
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/friends/add", h.AddFriend)                // 发送好友申请
		api.POST("/friends/accept", h.AcceptFriend)          // 接受好友申请
		api.POST("/friends/deny", h.DenyFriend)              // 拒绝好友申请
		api.GET("/friends", h.ListFriends)                   // 好友列表
		api.GET("/friends/requests", h.ListIncomingRequests) // 待处理申请
		api.POST("/messages/send", h.SendMessage)            // 发送消息
		api.GET("/chats", h.ListChats)                       // 会话列表
		api.GET("/chats/:chatId/messages", h.ListMessages)   // 会话消息
		api.POST("/realtime/authorize", h.AuthorizeChannel)  // 频道订阅授权
	}
}

// caller 取出已认证的调用方，缺失时直接写 401
func (h *HTTPHandler) caller(c *gin.Context) (string, bool) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		httpx.WriteError(c, apperrors.ErrUnauthorized)
	}
	return userID, ok
}

// bind 解析请求体，失败按 INVALID_PAYLOAD 返回
func (h *HTTPHandler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.log.Info(c.Request.Context(), "Invalid request payload", logger.F("path", c.FullPath()), logger.F("error", err.Error()))
		httpx.WriteError(c, apperrors.ErrInvalidPayload)
		return false
	}
	return true
}
