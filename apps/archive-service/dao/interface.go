package dao

import (
	"context"

	"goim-chat/apps/archive-service/model"
)

// ArchiveDAO 消息归档存储
type ArchiveDAO interface {
	// Save 幂等写入，返回是否为新写入
	Save(ctx context.Context, msg *model.ArchivedMessage) (bool, error)
	// ListByChat 按时间倒序读取早于 beforeMillis 的消息，beforeMillis<=0 表示不限
	ListByChat(ctx context.Context, chatID string, beforeMillis int64, limit int64) ([]model.ArchivedMessage, error)
}
