package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"goim-chat/apps/chat-service/model"
	apperrors "goim-chat/pkg/errors"
	"goim-chat/pkg/httpx"
)

type sendMessageRequest struct {
	ChatID     string `json:"chatId"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text" binding:"required"`
}

// SendMessage 发送消息，时间戳取服务端时钟
func (h *HTTPHandler) SendMessage(c *gin.Context) {
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !h.bind(c, &req) {
		return
	}

	var (
		msg *model.Message
		err error
	)
	ctx := c.Request.Context()
	switch {
	case req.ChatID != "":
		msg, err = h.svc.SendMessageToChat(ctx, userID, req.ChatID, req.Text, h.svc.Now())
	case req.ReceiverID != "":
		msg, err = h.svc.SendMessage(ctx, userID, req.ReceiverID, req.Text, h.svc.Now())
	default:
		err = apperrors.InvalidPayload("chatId or receiverId is required")
	}
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	httpx.OK(c, "Message sent", msg)
}

// ListChats 会话列表及最近一条消息
func (h *HTTPHandler) ListChats(c *gin.Context) {
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	previews, err := h.svc.ChatPreviews(c.Request.Context(), userID)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	httpx.OK(c, "ok", previews)
}

// ListMessages 会话消息，新消息在前；before 为毫秒时间戳，用于向前翻页
func (h *HTTPHandler) ListMessages(c *gin.Context) {
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	before, err := queryInt(c, "before")
	if err != nil {
		httpx.WriteError(c, err)
		return
	}

	msgs, err := h.svc.ChatHistory(c.Request.Context(), userID, c.Param("chatId"), before, int(limit))
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	httpx.OK(c, "ok", msgs)
}

func queryInt(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, apperrors.InvalidArg("invalid " + name)
	}
	return v, nil
}
