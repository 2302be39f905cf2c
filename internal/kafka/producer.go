package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/aihub/docsearch/internal/logger"
	"go.uber.org/zap"
)

// EventDocumentIngested 文档入库完成事件
const EventDocumentIngested = "document.ingested"

// DocumentEvent 文档事件
type DocumentEvent struct {
	Type       string    `json:"type"`
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Chunks     int       `json:"chunks"`
	Embedded   int       `json:"embedded"`
	FileSize   int64     `json:"file_size"`
	Timestamp  time.Time `json:"timestamp"`
}

// Producer Kafka生产者
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewSaramaConfig 生产者配置
func NewSaramaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second
	return config
}

// NewProducer 连接broker并创建同步生产者
func NewProducer(brokers []string, topic string) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("创建Kafka生产者失败: %w", err)
	}

	logger.Info("Kafka生产者初始化成功", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return NewProducerWith(producer, topic), nil
}

// NewProducerWith 使用已有的sarama生产者
func NewProducerWith(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: producer, topic: topic}
}

// Topic 事件主题
func (p *Producer) Topic() string {
	return p.topic
}

// PublishDocumentEvent 发送文档事件，以文档ID为key保证同一文档有序
func (p *Producer) PublishDocumentEvent(event *DocumentEvent) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("Kafka生产者未初始化")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.DocumentID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		logger.Error("发送Kafka消息失败", zap.Error(err))
		return fmt.Errorf("发送消息失败: %w", err)
	}

	logger.Debug("Kafka消息发送成功",
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("document_id", event.DocumentID))
	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if p != nil && p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// ParseDocumentEvent 解析文档事件
func ParseDocumentEvent(data []byte) (*DocumentEvent, error) {
	var event DocumentEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("解析消息失败: %w", err)
	}
	return &event, nil
}
