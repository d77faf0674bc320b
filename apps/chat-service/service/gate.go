package service

import (
	"context"
	"strings"

	"goim-chat/apps/chat-service/model"
	apperrors "goim-chat/pkg/errors"
	"goim-chat/pkg/logger"
)

// Authorize 频道订阅授权。非 private- 频道直接放行；
// private-user-{id}-friends / private-user-{id}-chats 仅限本人；
// private-chat-{chatId} 仅限会话参与者。
func (s *Service) Authorize(ctx context.Context, userID, channel string) error {
	if !model.ValidUserID(userID) {
		return s.fail(ctx, "authorize", apperrors.ErrUnauthorized, logger.F("channel", channel))
	}
	topic, private := strings.CutPrefix(channel, model.PrivatePrefix)
	if !private {
		return nil
	}
	if !channelOwnedBy(topic, userID) {
		return s.fail(ctx, "authorize", apperrors.ErrUnauthorized,
			logger.F("userID", userID), logger.F("channel", channel))
	}
	return nil
}

func channelOwnedBy(topic, userID string) bool {
	switch topic {
	case model.UserFriendsTopic(userID), model.UserChatsTopic(userID):
		return true
	}
	if chatID, ok := strings.CutPrefix(topic, "chat-"); ok {
		_, ok = model.ChatPartner(chatID, userID)
		return ok
	}
	return false
}
