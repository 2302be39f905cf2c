package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/aihub/docsearch/internal/logger"
	"go.uber.org/zap"
)

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// Consumer Kafka消费者组
type Consumer struct {
	consumer sarama.ConsumerGroup
	topics   []string
	handlers map[string]MessageHandler
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewConsumer 创建消费者组，需调用 Run 开始消费
func NewConsumer(brokers []string, groupID string, topics []string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true
	config.Version = sarama.V2_6_0_0

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("创建Kafka消费者组失败: %w", err)
	}

	logger.Info("Kafka消费者初始化成功",
		zap.Strings("brokers", brokers),
		zap.String("group_id", groupID),
		zap.Strings("topics", topics))

	return &Consumer{
		consumer: group,
		topics:   topics,
		handlers: make(map[string]MessageHandler),
	}, nil
}

// RegisterHandler 注册主题处理器
func (c *Consumer) RegisterHandler(topic string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
}

func (c *Consumer) handler(topic string) (MessageHandler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[topic]
	return h, ok
}

// Run 消费直到ctx结束
func (c *Consumer) Run(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.consumer.Errors() {
			logger.Error("Kafka消费者错误", zap.Error(err))
		}
	}()

	handler := &consumerGroupHandler{consumer: c}
	for {
		if err := c.consumer.Consume(ctx, c.topics, handler); err != nil {
			logger.Error("消费消息失败", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
		}
		if ctx.Err() != nil {
			logger.Info("Kafka消费者停止")
			return
		}
	}
}

// Close 关闭消费者组
func (c *Consumer) Close() error {
	err := c.consumer.Close()
	c.wg.Wait()
	return err
}

// consumerGroupHandler 消费者组处理器
type consumerGroupHandler struct {
	consumer *Consumer
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim 处理失败的消息不标记，等待重新投递
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			h.handle(session, message)
		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *consumerGroupHandler) handle(session sarama.ConsumerGroupSession, message *sarama.ConsumerMessage) {
	handler, ok := h.consumer.handler(message.Topic)
	if !ok {
		logger.Warn("未找到消息处理器", zap.String("topic", message.Topic))
		session.MarkMessage(message, "")
		return
	}

	if err := handler(session.Context(), message); err != nil {
		logger.Error("处理消息失败",
			zap.String("topic", message.Topic),
			zap.Int("partition", int(message.Partition)),
			zap.Int64("offset", message.Offset),
			zap.Error(err))
		return
	}

	session.MarkMessage(message, "")
}
