package kafka

import (
	"context"
	"errors"

	"github.com/IBM/sarama"

	"goim-chat/pkg/logger"
)

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
}

// Producer 异步生产者
type Producer struct {
	asyncProducer sarama.AsyncProducer
	log           logger.Logger
	done          chan struct{}
}

// ConsumerHandler 业务消息处理器，返回nil才提交offset
type ConsumerHandler interface {
	HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// Consumer 消费组
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	ready   chan struct{}
	handler ConsumerHandler
	log     logger.Logger
}

// InitProducer 初始化生产者
func InitProducer(brokers []string, log logger.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	// 同一频道的事件落在同一分区，保持频道内顺序
	config.Producer.Partitioner = sarama.NewHashPartitioner
	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	p := &Producer{asyncProducer: producer, log: log, done: make(chan struct{})}
	go p.drainErrors()
	return p, nil
}

// drainErrors 消费错误通道，避免生产者阻塞
func (p *Producer) drainErrors() {
	defer close(p.done)
	for perr := range p.asyncProducer.Errors() {
		p.log.Warn(context.Background(), "Kafka produce failed",
			logger.F("topic", perr.Msg.Topic),
			logger.F("error", perr.Err))
	}
}

// SendMessage 发送消息（尽力而为）
func (p *Producer) SendMessage(ctx context.Context, topic string, key, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	select {
	case p.asyncProducer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 关闭生产者
func (p *Producer) Close() error {
	err := p.asyncProducer.Close()
	<-p.done
	return err
}

// InitConsumer 初始化消费者
func InitConsumer(cfg ConsumerConfig, handler ConsumerHandler, log logger.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, config)
	if err != nil {
		return nil, err
	}
	return &Consumer{
		group:   group,
		topics:  cfg.Topics,
		ready:   make(chan struct{}),
		handler: handler,
		log:     log,
	}, nil
}

// StartConsuming 启动消费，等待首次分配完成后返回
func (c *Consumer) StartConsuming(ctx context.Context) error {
	go func() {
		for {
			if err := c.group.Consume(ctx, c.topics, c); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.log.Error(ctx, "Kafka consume error", logger.F("error", err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 关闭消费组
func (c *Consumer) Close() error {
	return c.group.Close()
}

// Setup sarama.ConsumerGroupHandler
func (c *Consumer) Setup(_ sarama.ConsumerGroupSession) error {
	select {
	case <-c.ready:
	default:
		close(c.ready)
	}
	return nil
}

// Cleanup sarama.ConsumerGroupHandler
func (c *Consumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim 消费消息
func (c *Consumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := c.handler.HandleMessage(sess.Context(), msg); err != nil {
			c.log.Warn(sess.Context(), "Kafka message not committed",
				logger.F("topic", msg.Topic),
				logger.F("partition", msg.Partition),
				logger.F("offset", msg.Offset),
				logger.F("error", err))
			continue
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
