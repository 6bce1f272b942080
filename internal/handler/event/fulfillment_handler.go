// Package event 提供 Kafka 事件处理器
package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/windfall-labs/windfall-raffle/internal/kafka"
	"github.com/windfall-labs/windfall-raffle/internal/service"
	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

// FulfillmentMessage 预言机回调消息 (链上监听服务发布)
type FulfillmentMessage struct {
	RequestID    string `json:"request_id"`
	RandomNumber string `json:"random_number"` // uint256 十进制
	TxHash       string `json:"tx_hash"`
	BlockNumber  uint64 `json:"block_number"`
	Timestamp    int64  `json:"timestamp"`
}

// FulfillmentHandler 处理预言机回调事件
type FulfillmentHandler struct {
	randomnessService service.RandomnessService
}

// NewFulfillmentHandler 创建回调处理器
func NewFulfillmentHandler(randomnessService service.RandomnessService) *FulfillmentHandler {
	return &FulfillmentHandler{
		randomnessService: randomnessService,
	}
}

// Topic 返回处理的 topic
func (h *FulfillmentHandler) Topic() string {
	return kafka.TopicRandomnessFulfilled
}

// Handle 实现 kafka.Handler 接口
//
// 未知请求 ID 属于永久失败 (别的环境或历史版本的请求)，
// 记录后确认消息，避免毒化分区；其余错误返回触发重新消费。
func (h *FulfillmentHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	var m FulfillmentMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		logger.Error("unmarshal fulfillment message failed",
			"offset", msg.Offset,
			"error", err)
		return nil // 畸形消息无法重试
	}

	raw, ok := new(big.Int).SetString(m.RandomNumber, 10)
	if !ok {
		logger.Error("invalid random number in fulfillment",
			"request_id", m.RequestID,
			"random_number", m.RandomNumber)
		return nil
	}

	logger.Info("processing randomness fulfillment",
		"request_id", m.RequestID,
		"tx_hash", m.TxHash,
		"block_number", m.BlockNumber)

	if err := h.randomnessService.OnFulfilled(ctx, m.RequestID, raw); err != nil {
		if errors.Is(err, service.ErrUnknownRequest) {
			logger.Warn("fulfillment for unknown request discarded",
				"request_id", m.RequestID,
				"tx_hash", m.TxHash)
			return nil
		}
		return fmt.Errorf("handle fulfillment: %w", err)
	}

	return nil
}
