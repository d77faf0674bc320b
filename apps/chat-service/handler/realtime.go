package handler

import (
	"github.com/gin-gonic/gin"

	"goim-chat/pkg/httpx"
)

type authorizeRequest struct {
	Channel string `json:"channel" binding:"required"`
}

// AuthorizeChannel 客户端订阅私有频道前的授权检查
func (h *HTTPHandler) AuthorizeChannel(c *gin.Context) {
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req authorizeRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.Authorize(c.Request.Context(), userID, req.Channel); err != nil {
		httpx.WriteError(c, err)
		return
	}
	httpx.OK(c, "Authorized", gin.H{"channel": req.Channel, "userId": userID})
}
