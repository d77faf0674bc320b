package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"goim-chat/apps/chat-service/dao"
	"goim-chat/apps/chat-service/model"
	apperrors "goim-chat/pkg/errors"
	"goim-chat/pkg/logger"
)

var errSelfMessage = apperrors.InvalidArg("cannot send a message to yourself")

// SendMessage 追加消息。仅好友之间可发送；先落库再发布 incoming_message。
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID, text string, timestampMillis int64) (msg *model.Message, err error) {
	ctx, span := startSpan(ctx, "SendMessage")
	span.SetAttributes(
		attribute.String("sender.id", senderID),
		attribute.String("receiver.id", receiverID),
		attribute.Int("message.length", len(text)),
	)
	defer func() { endSpan(span, err) }()

	if err := validatePair(senderID, receiverID); err != nil {
		if err == apperrors.ErrSelfRequest {
			err = errSelfMessage
		}
		return nil, s.fail(ctx, "send_message", err)
	}
	// 纯空白视为空消息；通过校验后按原文存储
	if strings.TrimSpace(text) == "" || utf8.RuneCountInString(text) > s.cfg.MaxMessageLength {
		return nil, s.fail(ctx, "send_message", apperrors.InvalidPayload("message text must be 1-"+strconv.Itoa(s.cfg.MaxMessageLength)+" characters"))
	}

	friends, err := s.store.IsMember(ctx, model.FriendsKey(senderID), receiverID)
	if err != nil {
		return nil, s.fail(ctx, "send_message", err)
	}
	if !friends {
		return nil, s.fail(ctx, "send_message", apperrors.ErrNotFriends, logger.F("receiverID", receiverID))
	}

	sender, err := s.profileOrStub(ctx, senderID)
	if err != nil {
		return nil, s.fail(ctx, "send_message", err)
	}

	chatID := model.ChatID(senderID, receiverID)
	msg = &model.Message{
		ID:              s.newID(),
		SenderID:        senderID,
		ReceiverID:      receiverID,
		Text:            text,
		TimestampMillis: timestampMillis,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, s.fail(ctx, "send_message", err)
	}
	if err := s.store.AppendOrdered(ctx, model.ChatMessagesKey(chatID), float64(timestampMillis), raw); err != nil {
		return nil, s.fail(ctx, "send_message", err)
	}

	s.publish(ctx, model.PrivateChannel(model.ChatTopic(chatID)), model.EventIncomingMessage, msg)
	s.publish(ctx, model.PrivateChannel(model.UserChatsTopic(receiverID)), model.EventNewMessage, &model.NewMessageNotification{
		Message:    *msg,
		SenderName: sender.Name,
		SenderImg:  sender.Image,
	})

	s.log.Debug(ctx, "Message appended", logger.F("chatID", chatID), logger.F("messageID", msg.ID))
	return msg, nil
}

// SendMessageToChat 按会话ID发送，接收方由会话ID推出；调用方必须是参与者
func (s *Service) SendMessageToChat(ctx context.Context, senderID, chatID, text string, timestampMillis int64) (*model.Message, error) {
	receiverID, err := s.partnerOf(chatID, senderID)
	if err != nil {
		return nil, s.fail(ctx, "send_message", err, logger.F("chatID", chatID))
	}
	return s.SendMessage(ctx, senderID, receiverID, text, timestampMillis)
}

// Recent 最近 limit 条消息，新消息在前
func (s *Service) Recent(ctx context.Context, chatID string, limit int) ([]model.Message, error) {
	if _, _, ok := model.ParseChatID(chatID); !ok {
		return nil, apperrors.ErrInvalidChatID
	}
	if limit <= 0 {
		return []model.Message{}, nil
	}
	raws, err := s.store.RangeOrdered(ctx, model.ChatMessagesKey(chatID), 0, int64(limit-1), true)
	if err != nil {
		return nil, err
	}
	return s.decodeMessages(ctx, chatID, raws), nil
}

// History 早于 beforeMillis 的 limit 条消息，新消息在前，用于向前翻页
func (s *Service) History(ctx context.Context, chatID string, beforeMillis int64, limit int) ([]model.Message, error) {
	if _, _, ok := model.ParseChatID(chatID); !ok {
		return nil, apperrors.ErrInvalidChatID
	}
	if limit <= 0 {
		return []model.Message{}, nil
	}
	raws, err := s.store.RangeOrderedByScore(ctx, model.ChatMessagesKey(chatID), dao.ScoreRange{
		Min:     "-inf",
		Max:     "(" + strconv.FormatInt(beforeMillis, 10),
		Count:   int64(limit),
		Reverse: true,
	})
	if err != nil {
		return nil, err
	}
	return s.decodeMessages(ctx, chatID, raws), nil
}

// RangeByIndex 按下标区间读取（升序，支持负下标）
func (s *Service) RangeByIndex(ctx context.Context, chatID string, start, stop int64) ([]model.Message, error) {
	if _, _, ok := model.ParseChatID(chatID); !ok {
		return nil, apperrors.ErrInvalidChatID
	}
	raws, err := s.store.RangeOrdered(ctx, model.ChatMessagesKey(chatID), start, stop, false)
	if err != nil {
		return nil, err
	}
	return s.decodeMessages(ctx, chatID, raws), nil
}

// RangeByScore 时间戳闭区间 [fromMillis, toMillis] 内的消息（升序）
func (s *Service) RangeByScore(ctx context.Context, chatID string, fromMillis, toMillis int64) ([]model.Message, error) {
	if _, _, ok := model.ParseChatID(chatID); !ok {
		return nil, apperrors.ErrInvalidChatID
	}
	raws, err := s.store.RangeOrderedByScore(ctx, model.ChatMessagesKey(chatID), dao.ScoreRange{
		Min: strconv.FormatInt(fromMillis, 10),
		Max: strconv.FormatInt(toMillis, 10),
	})
	if err != nil {
		return nil, err
	}
	return s.decodeMessages(ctx, chatID, raws), nil
}

// Latest 最后一条消息，会话为空返回 nil
func (s *Service) Latest(ctx context.Context, chatID string) (*model.Message, error) {
	msgs, err := s.RangeByIndex(ctx, chatID, -1, -1)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

// ChatHistory 调用方读取会话：beforeMillis<=0 取最近，否则向前翻页。
// limit 按配置取默认值并限制上限
func (s *Service) ChatHistory(ctx context.Context, callerID, chatID string, beforeMillis int64, limit int) ([]model.Message, error) {
	if _, err := s.partnerOf(chatID, callerID); err != nil {
		return nil, s.fail(ctx, "chat_history", err, logger.F("chatID", chatID))
	}
	limit = s.pageSize(limit)
	var (
		msgs []model.Message
		err  error
	)
	if beforeMillis > 0 {
		msgs, err = s.History(ctx, chatID, beforeMillis, limit)
	} else {
		msgs, err = s.Recent(ctx, chatID, limit)
	}
	if err != nil {
		return nil, s.fail(ctx, "chat_history", err, logger.F("chatID", chatID))
	}
	return msgs, nil
}

// ChatPreviews 每个好友的会话及最近一条消息
func (s *Service) ChatPreviews(ctx context.Context, userID string) ([]model.ChatPreview, error) {
	friends, err := s.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	previews := make([]model.ChatPreview, 0, len(friends))
	for _, friend := range friends {
		chatID := model.ChatID(userID, friend.ID)
		last, err := s.Latest(ctx, chatID)
		if err != nil {
			return nil, s.fail(ctx, "chat_previews", err)
		}
		previews = append(previews, model.ChatPreview{ChatID: chatID, Friend: friend, LastMessage: last})
	}
	return previews, nil
}

// partnerOf 校验会话ID并返回对方；非参与者返回 Unauthorized
func (s *Service) partnerOf(chatID, userID string) (string, error) {
	if _, _, ok := model.ParseChatID(chatID); !ok {
		return "", apperrors.ErrInvalidChatID
	}
	partner, ok := model.ChatPartner(chatID, userID)
	if !ok {
		return "", apperrors.ErrUnauthorized
	}
	return partner, nil
}

func (s *Service) pageSize(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		return s.cfg.MaxPageSize
	}
	return limit
}

func (s *Service) decodeMessages(ctx context.Context, chatID string, raws [][]byte) []model.Message {
	msgs := make([]model.Message, 0, len(raws))
	for _, raw := range raws {
		var msg model.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warn(ctx, "Skipping corrupt message", logger.F("chatID", chatID), logger.F("error", err))
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}
