package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	"goim-chat/apps/archive-service/dao"
	"goim-chat/apps/archive-service/model"
	chatmodel "goim-chat/apps/chat-service/model"
	"goim-chat/pkg/kafka"
	"goim-chat/pkg/logger"
	"goim-chat/pkg/pubsub"
)

// ArchiveConsumer 把事件流中的 incoming_message 归档到MongoDB。
// 无法解析的消息直接跳过；写库失败返回错误，offset 不提交。
type ArchiveConsumer struct {
	dao      dao.ArchiveDAO
	log      logger.Logger
	consumer *kafka.Consumer
	now      func() time.Time
}

// NewArchiveConsumer 创建归档消费者
func NewArchiveConsumer(d dao.ArchiveDAO, log logger.Logger) *ArchiveConsumer {
	return &ArchiveConsumer{dao: d, log: log, now: time.Now}
}

// Start 加入消费组，首次分区分配完成后返回
func (a *ArchiveConsumer) Start(ctx context.Context, cfg kafka.ConsumerConfig) error {
	consumer, err := kafka.InitConsumer(cfg, a, a.log)
	if err != nil {
		return err
	}
	a.consumer = consumer
	a.log.Info(ctx, "Archive consumer started", logger.F("topics", cfg.Topics), logger.F("group", cfg.GroupID))
	return consumer.StartConsuming(ctx)
}

// Stop 离开消费组
func (a *ArchiveConsumer) Stop(context.Context) error {
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Close()
}

// HandleMessage 实现 kafka.ConsumerHandler
func (a *ArchiveConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ev, err := pubsub.DecodeEvent(msg.Value)
	if err != nil {
		a.log.Warn(ctx, "Skipping undecodable event", logger.F("offset", msg.Offset), logger.F("error", err))
		return nil
	}
	if ev.Name != chatmodel.EventIncomingMessage {
		return nil
	}

	var m chatmodel.Message
	if err := json.Unmarshal(ev.Data, &m); err != nil || m.ID == "" {
		a.log.Warn(ctx, "Skipping malformed message payload", logger.F("channel", ev.Channel), logger.F("offset", msg.Offset))
		return nil
	}

	archived := &model.ArchivedMessage{
		MessageID:       m.ID,
		ChatID:          chatmodel.ChatID(m.SenderID, m.ReceiverID),
		SenderID:        m.SenderID,
		ReceiverID:      m.ReceiverID,
		Text:            m.Text,
		TimestampMillis: m.TimestampMillis,
		ArchivedAt:      a.now().UTC(),
	}
	created, err := a.dao.Save(ctx, archived)
	if err != nil {
		a.log.Error(ctx, "Archive write failed", logger.F("messageID", m.ID), logger.F("error", err))
		return err
	}
	if !created {
		a.log.Debug(ctx, "Message already archived", logger.F("messageID", m.ID))
	}
	return nil
}
