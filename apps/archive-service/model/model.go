package model

import "time"

// ArchivedMessage 归档消息，_id 即消息ID，重复投递只写入一次
type ArchivedMessage struct {
	MessageID       string    `bson:"_id" json:"id"`
	ChatID          string    `bson:"chat_id" json:"chatId"`
	SenderID        string    `bson:"sender_id" json:"senderId"`
	ReceiverID      string    `bson:"receiver_id" json:"receiverId"`
	Text            string    `bson:"text" json:"text"`
	TimestampMillis int64     `bson:"timestamp" json:"timestamp"`
	ArchivedAt      time.Time `bson:"archived_at" json:"archivedAt"`
}

// CollectionMessages 归档集合
const CollectionMessages = "chat_messages"
