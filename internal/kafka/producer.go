package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

// Producer 抽奖事件生产者
//
// 异步批量发送，幂等写入。事件流在本服务里是旁路：
// 发送失败由回报协程记日志，业务不回滚。分区键用抽奖 ID，
// 保证同一抽奖的事件在分区内有序。
type Producer struct {
	inner  sarama.AsyncProducer
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// ProducerConfig 生产者配置，零值字段取默认
type ProducerConfig struct {
	Brokers       []string
	RequiredAcks  sarama.RequiredAcks // 默认 WaitForAll
	MaxRetry      int                 // 默认 3
	FlushMessages int                 // 批量条数，默认 100
	FlushBytes    int                 // 批量字节数，默认 1MB
	FlushFreq     time.Duration       // 批量间隔，默认 10ms
}

func (cfg *ProducerConfig) sarama() *sarama.Config {
	sc := sarama.NewConfig()

	sc.Producer.RequiredAcks = sarama.WaitForAll
	if cfg.RequiredAcks != 0 {
		sc.Producer.RequiredAcks = cfg.RequiredAcks
	}
	sc.Producer.Retry.Max = 3
	if cfg.MaxRetry > 0 {
		sc.Producer.Retry.Max = cfg.MaxRetry
	}
	sc.Producer.Flush.Messages = 100
	if cfg.FlushMessages > 0 {
		sc.Producer.Flush.Messages = cfg.FlushMessages
	}
	sc.Producer.Flush.Bytes = 1024 * 1024
	if cfg.FlushBytes > 0 {
		sc.Producer.Flush.Bytes = cfg.FlushBytes
	}
	sc.Producer.Flush.Frequency = 10 * time.Millisecond
	if cfg.FlushFreq > 0 {
		sc.Producer.Flush.Frequency = cfg.FlushFreq
	}

	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Compression = sarama.CompressionSnappy

	// 结算/退款事件不允许 broker 侧重复，开幂等 (Kafka 0.11+)
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1

	return sc
}

// NewProducer 创建抽奖事件生产者
func NewProducer(cfg *ProducerConfig) (*Producer, error) {
	inner, err := sarama.NewAsyncProducer(cfg.Brokers, cfg.sarama())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{
		inner: inner,
		done:  make(chan struct{}),
	}
	go p.report()

	logger.Info("kafka producer started", "brokers", cfg.Brokers)
	return p, nil
}

// Publish 异步发送一条消息
// key 为分区键 (抽奖 ID)，空 key 走轮询分区
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("producer is closed")
	}
	p.mu.RUnlock()

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(value),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	select {
	case p.inner.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// report 单协程消费发送回报，两个通道都关闭后退出
func (p *Producer) report() {
	defer close(p.done)

	successes, errs := p.inner.Successes(), p.inner.Errors()
	for successes != nil || errs != nil {
		select {
		case msg, ok := <-successes:
			if !ok {
				successes = nil
				continue
			}
			logger.Debug("raffle event delivered",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset)
		case perr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Error("raffle event delivery failed",
				"topic", perr.Msg.Topic,
				"error", perr.Err)
		}
	}
}

// Close 关闭生产者，冲刷未发送的消息
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	// 关闭 inner 后 Successes/Errors 通道关闭，report 退出
	if err := p.inner.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	<-p.done

	logger.Info("kafka producer closed")
	return nil
}
