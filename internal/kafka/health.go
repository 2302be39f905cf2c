package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// CheckBrokers 连接集群并刷新元数据，用于健康检查
func CheckBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	config := sarama.NewConfig()
	config.Net.DialTimeout = 3 * time.Second
	config.Metadata.Retry.Max = 0
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 && d < config.Net.DialTimeout {
			config.Net.DialTimeout = d
		}
	}

	client, err := sarama.NewClient(brokers, config)
	if err != nil {
		return fmt.Errorf("连接Kafka失败: %w", err)
	}
	defer client.Close()

	if len(client.Brokers()) == 0 {
		return fmt.Errorf("kafka cluster has no reachable brokers")
	}
	return nil
}
