package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"goim-chat/apps/archive-service/dao"
	chatmodel "goim-chat/apps/chat-service/model"
	apperrors "goim-chat/pkg/errors"
	"goim-chat/pkg/httpx"
	"goim-chat/pkg/logger"
	"goim-chat/pkg/middleware"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// HTTPHandler 归档查询
type HTTPHandler struct {
	dao dao.ArchiveDAO
	log logger.Logger
}

// NewHTTPHandler 创建HTTP处理器
func NewHTTPHandler(d dao.ArchiveDAO, log logger.Logger) *HTTPHandler {
	return &HTTPHandler{dao: d, log: log}
}

// RegisterRoutes 注册HTTP路由
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/archive")
	{
		api.GET("/chats/:chatId/messages", h.ListMessages) // 归档消息，按时间倒序
	}
}

// ListMessages 仅会话参与者可读
func (h *HTTPHandler) ListMessages(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		httpx.WriteError(c, apperrors.ErrUnauthorized)
		return
	}
	chatID := c.Param("chatId")
	if _, _, ok := chatmodel.ParseChatID(chatID); !ok {
		httpx.WriteError(c, apperrors.ErrInvalidChatID)
		return
	}
	if _, ok := chatmodel.ChatPartner(chatID, userID); !ok {
		httpx.WriteError(c, apperrors.ErrUnauthorized)
		return
	}

	before, err1 := strconv.ParseInt(c.DefaultQuery("before", "0"), 10, 64)
	limit, err2 := strconv.ParseInt(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)), 10, 64)
	if err1 != nil || err2 != nil || limit <= 0 {
		httpx.WriteError(c, apperrors.InvalidArg("invalid before or limit"))
		return
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	msgs, err := h.dao.ListByChat(c.Request.Context(), chatID, before, limit)
	if err != nil {
		h.log.Error(c.Request.Context(), "Archive query failed", logger.F("chatID", chatID), logger.F("error", err))
		httpx.WriteError(c, apperrors.StoreUnavailable("archive query", err))
		return
	}
	httpx.OK(c, "ok", msgs)
}
