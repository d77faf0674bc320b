package model

import (
	"sort"
	"strings"
	"unicode"
)

const (
	// ChatIDSeparator 用户ID中不允许出现
	ChatIDSeparator = "--"
	// PrivatePrefix 需要经过授权的频道前缀
	PrivatePrefix = "private-"

	maxUserIDLength = 128
)

// ValidUserID 用户ID非空、无空白、不含分隔符和键分隔符':'
func ValidUserID(id string) bool {
	if id == "" || len(id) > maxUserIDLength {
		return false
	}
	if strings.Contains(id, ChatIDSeparator) || strings.Contains(id, ":") {
		return false
	}
	return strings.IndexFunc(id, unicode.IsSpace) < 0
}

// ChatID 两个用户的会话ID，与参数顺序无关
func ChatID(u1, u2 string) string {
	ids := []string{u1, u2}
	sort.Strings(ids)
	return strings.Join(ids, ChatIDSeparator)
}

// ParseChatID 拆出两个参与者
func ParseChatID(chatID string) (string, string, bool) {
	a, b, ok := strings.Cut(chatID, ChatIDSeparator)
	if !ok || !ValidUserID(a) || !ValidUserID(b) || a == b {
		return "", "", false
	}
	if ChatID(a, b) != chatID {
		return "", "", false
	}
	return a, b, true
}

// ChatPartner 返回会话中userID的对方
func ChatPartner(chatID, userID string) (string, bool) {
	a, b, ok := ParseChatID(chatID)
	if !ok {
		return "", false
	}
	switch userID {
	case a:
		return b, true
	case b:
		return a, true
	}
	return "", false
}

// PrivateChannel 仅加前缀，不改动主题内容
func PrivateChannel(topic string) string {
	return PrivatePrefix + topic
}

// UserFriendsTopic 好友申请/好友变更主题
func UserFriendsTopic(userID string) string {
	return "user-" + userID + "-friends"
}

// UserChatsTopic 会话列表提醒主题
func UserChatsTopic(userID string) string {
	return "user-" + userID + "-chats"
}

// ChatTopic 会话消息主题
func ChatTopic(chatID string) string {
	return "chat-" + chatID
}

// 持久化键
func FriendsKey(userID string) string {
	return "user:" + userID + ":friends"
}

func IncomingRequestsKey(userID string) string {
	return "user:" + userID + ":incoming_friend_requests"
}

func UserKey(userID string) string {
	return "user:" + userID
}

func UserEmailKey(email string) string {
	return "user:email:" + strings.ToLower(strings.TrimSpace(email))
}

func ChatMessagesKey(chatID string) string {
	return "chat:" + chatID + ":messages"
}
