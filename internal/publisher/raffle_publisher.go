// Package publisher 提供 Kafka 消息发布功能
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/windfall-labs/windfall-raffle/internal/kafka"
	"github.com/windfall-labs/windfall-raffle/internal/service"
	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

// KafkaProducer Kafka 生产者接口
type KafkaProducer interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// RafflePublisher 抽奖事件发布者
// 发布消息到 raffle-events topic，供 api/ws 和数仓消费
type RafflePublisher struct {
	producer KafkaProducer
}

// NewRafflePublisher 创建抽奖事件发布者
func NewRafflePublisher(producer KafkaProducer) *RafflePublisher {
	return &RafflePublisher{
		producer: producer,
	}
}

// PublishRaffleEvent 发布抽奖事件
// 使用抽奖 ID 作为分区键，保证同一抽奖的事件顺序
func (p *RafflePublisher) PublishRaffleEvent(ctx context.Context, event *service.RaffleEvent) error {
	if p.producer == nil {
		return nil // Kafka 未启用
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal raffle event: %w", err)
	}

	key := strconv.FormatInt(event.RaffleID, 10)
	if err := p.producer.Publish(ctx, kafka.TopicRaffleEvents, key, data); err != nil {
		logger.Error("publish raffle event failed",
			"type", event.Type,
			"raffle_id", event.RaffleID,
			"error", err)
		return fmt.Errorf("send raffle event: %w", err)
	}

	logger.Debug("raffle event published",
		"type", event.Type,
		"raffle_id", event.RaffleID)

	return nil
}
