package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "goim-chat/pkg/errors"
	"goim-chat/pkg/httpx"
)

type addFriendRequest struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type friendIDRequest struct {
	ID string `json:"id" binding:"required"`
}

// AddFriend 按用户ID或邮箱发送好友申请
func (h *HTTPHandler) AddFriend(c *gin.Context) {
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req addFriendRequest
	if !h.bind(c, &req) {
		return
	}

	var err error
	switch {
	case strings.TrimSpace(req.ID) != "":
		err = h.svc.SendFriendRequest(c.Request.Context(), userID, strings.TrimSpace(req.ID))
	case strings.TrimSpace(req.Email) != "":
		err = h.svc.SendFriendRequestByEmail(c.Request.Context(), userID, req.Email)
	default:
		err = apperrors.InvalidPayload("id or email is required")
	}
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	httpx.OK(c, "Friend request sent", nil)
}

// AcceptFriend 接受好友申请
func (h *HTTPHandler) AcceptFriend(c *gin.Context) {
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req friendIDRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.AcceptFriendRequest(c.Request.Context(), userID, req.ID); err != nil {
		httpx.WriteError(c, err)
		return
	}
	httpx.OK(c, "Friend request accepted", nil)
}

// DenyFriend 拒绝好友申请
func (h *HTTPHandler) DenyFriend(c *gin.Context) {
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req friendIDRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.DenyFriendRequest(c.Request.Context(), userID, req.ID); err != nil {
		httpx.WriteError(c, err)
		return
	}
	httpx.OK(c, "Friend request denied", nil)
}

// ListFriends 好友列表
func (h *HTTPHandler) ListFriends(c *gin.Context) {
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	friends, err := h.svc.ListFriends(c.Request.Context(), userID)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	httpx.OK(c, "ok", friends)
}

// ListIncomingRequests 待处理的好友申请
func (h *HTTPHandler) ListIncomingRequests(c *gin.Context) {
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	requests, err := h.svc.ListIncomingRequests(c.Request.Context(), userID)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	httpx.OK(c, "ok", requests)
}
