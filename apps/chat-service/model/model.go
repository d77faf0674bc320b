package model

// User 用户公开资料，由外部认证服务写入 user:{id}
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image"`
}

// Message 聊天消息，创建后不可变
type Message struct {
	ID              string `json:"id"`
	SenderID        string `json:"senderId"`
	ReceiverID      string `json:"receiverId"`
	Text            string `json:"text"`
	TimestampMillis int64  `json:"timestamp"`
}

// FriendRequestAccepted 发给申请人的"申请已通过"事件载荷
type FriendRequestAccepted struct {
	AccepterID    string `json:"accepterId"`
	AccepterEmail string `json:"accepterEmail"`
	AccepterName  string `json:"accepterName"`
	AccepterImage string `json:"accepterImage"`
}

// NewMessageNotification 接收方会话列表提醒
type NewMessageNotification struct {
	Message
	SenderName string `json:"senderName"`
	SenderImg  string `json:"senderImg"`
}

// ChatPreview 会话列表项：好友与最近一条消息
type ChatPreview struct {
	ChatID      string   `json:"chatId"`
	Friend      User     `json:"friend"`
	LastMessage *Message `json:"lastMessage,omitempty"`
}

// 事件名
const (
	EventIncomingFriendRequest = "incoming_friend_request"
	EventNewFriend             = "new_friend"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventIncomingMessage       = "incoming_message"
	EventNewMessage            = "new_message"
)
