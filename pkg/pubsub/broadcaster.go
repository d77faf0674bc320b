package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"goim-chat/pkg/logger"
)

// Event 总线上传输的事件信封
type Event struct {
	Channel   string          `json:"channel"`
	Name      string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Bus 实时发布订阅总线（Redis PUBLISH）
type Bus interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// StreamSink 事件流镜像（Kafka），可选
type StreamSink interface {
	SendMessage(ctx context.Context, topic string, key, value []byte) error
}

// Broadcaster 事件广播器：无缓冲、无重放，尽力投递
type Broadcaster struct {
	bus    Bus
	stream StreamSink
	topic  string
	log    logger.Logger
	now    func() time.Time
}

// Option 广播器选项
type Option func(*Broadcaster)

// WithStream 把每个事件镜像到Kafka主题
func WithStream(sink StreamSink, topic string) Option {
	return func(b *Broadcaster) {
		b.stream = sink
		b.topic = topic
	}
}

// NewBroadcaster 创建广播器
func NewBroadcaster(bus Bus, log logger.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{bus: bus, log: log, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Trigger 向频道发布事件
func (b *Broadcaster) Trigger(ctx context.Context, channel, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	raw, err := json.Marshal(&Event{
		Channel:   channel,
		Name:      event,
		Data:      payload,
		Timestamp: b.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}

	if err := b.bus.Publish(ctx, channel, raw); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event, channel, err)
	}

	if b.stream != nil {
		// 镜像失败不影响实时投递
		if err := b.stream.SendMessage(ctx, b.topic, []byte(channel), raw); err != nil {
			b.log.Warn(ctx, "Event stream mirror failed",
				logger.F("channel", channel),
				logger.F("event", event),
				logger.F("error", err))
		}
	}

	b.log.Debug(ctx, "Event published", logger.F("channel", channel), logger.F("event", event))
	return nil
}

// DecodeEvent 解析事件信封
func DecodeEvent(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.Channel == "" || ev.Name == "" {
		return nil, fmt.Errorf("decode event: missing channel or event name")
	}
	return &ev, nil
}
