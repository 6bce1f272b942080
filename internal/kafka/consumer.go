package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

// Handler 消息处理器接口
// 返回 error 表示处理失败，消费侧按死信策略处置
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc 函数类型的处理器
type HandlerFunc func(ctx context.Context, msg *Message) error

// Handle 实现 Handler 接口
func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

const (
	// 处理失败的消息先在本地重试，仍失败则转投死信，
	// 避免一条坏回调卡住整个分区 (预言机回调是幂等的，重试安全)
	handleAttempts = 3
	handleBackoff  = 100 * time.Millisecond
)

// ConsumerGroup 预言机回调消费者
//
// 每个 topic 一个处理器。没有配置死信生产者时，
// 处理失败的消息不确认，等待重平衡后重新投递。
type ConsumerGroup struct {
	client     sarama.ConsumerGroup
	handlers   map[string]Handler
	deadLetter *Producer
	topics     []string
	ready      chan struct{}
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
	// InitialOffset 无已提交位点时的起始位置
	// (sarama.OffsetNewest / sarama.OffsetOldest)，零值取 Newest
	InitialOffset int64
}

// NewConsumerGroup 创建消费者组
func NewConsumerGroup(cfg *ConsumerConfig) (*ConsumerGroup, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{
		sarama.NewBalanceStrategyRoundRobin(),
	}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	if cfg.InitialOffset != 0 {
		sc.Consumer.Offsets.Initial = cfg.InitialOffset
	}
	sc.Consumer.Offsets.AutoCommit.Enable = true

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	c := &ConsumerGroup{
		client:   client,
		handlers: make(map[string]Handler),
		topics:   cfg.Topics,
		ready:    make(chan struct{}),
	}

	logger.Info("kafka consumer group created",
		"brokers", cfg.Brokers,
		"group_id", cfg.GroupID,
		"topics", cfg.Topics)
	return c, nil
}

// RegisterHandler 注册 topic 处理器
func (c *ConsumerGroup) RegisterHandler(topic string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
}

// UseDeadLetter 设置死信生产者
// 重试耗尽的消息转投 dead-letter topic 并继续前进
func (c *ConsumerGroup) UseDeadLetter(p *Producer) {
	c.deadLetter = p
}

// Start 启动消费
func (c *ConsumerGroup) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		for {
			// Consume 在重平衡时返回，需要循环调用
			if err := c.client.Consume(ctx, c.topics, c); err != nil {
				if err == sarama.ErrClosedConsumerGroup {
					return
				}
				logger.Error("consumer error", "error", err)
			}

			if ctx.Err() != nil {
				return
			}

			c.ready = make(chan struct{})
		}
	}()

	<-c.ready
	logger.Info("kafka consumer started")
	return nil
}

// Stop 停止消费
func (c *ConsumerGroup) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}

	c.wg.Wait()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close consumer group: %w", err)
	}

	logger.Info("kafka consumer stopped")
	return nil
}

// dispatch 投递给处理器，带本地重试
func (c *ConsumerGroup) dispatch(ctx context.Context, handler Handler, msg *Message) error {
	var err error
	for attempt := 1; attempt <= handleAttempts; attempt++ {
		if err = handler.Handle(ctx, msg); err == nil {
			return nil
		}
		logger.Warn("handle message failed",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt,
			"error", err)

		select {
		case <-time.After(handleBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// forwardDeadLetter 把重试耗尽的消息转投死信 topic
func (c *ConsumerGroup) forwardDeadLetter(ctx context.Context, msg *Message) error {
	if c.deadLetter == nil {
		return fmt.Errorf("no dead letter producer")
	}
	if err := c.deadLetter.Publish(ctx, TopicDeadLetter, string(msg.Key), msg.Value); err != nil {
		return err
	}
	logger.Warn("message forwarded to dead letter",
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset)
	return nil
}

// Setup 实现 sarama.ConsumerGroupHandler
func (c *ConsumerGroup) Setup(session sarama.ConsumerGroupSession) error {
	logger.Info("consumer session setup",
		"generation_id", session.GenerationID(),
		"member_id", session.MemberID())
	close(c.ready)
	return nil
}

// Cleanup 实现 sarama.ConsumerGroupHandler
func (c *ConsumerGroup) Cleanup(session sarama.ConsumerGroupSession) error {
	logger.Info("consumer session cleanup",
		"generation_id", session.GenerationID())
	return nil
}

// ConsumeClaim 实现 sarama.ConsumerGroupHandler
func (c *ConsumerGroup) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	topic := claim.Topic()

	c.mu.RLock()
	handler, ok := c.handlers[topic]
	c.mu.RUnlock()

	if !ok {
		logger.Warn("no handler for topic", "topic", topic)
		return nil
	}

	for {
		select {
		case raw, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			msg := &Message{
				Topic:     raw.Topic,
				Key:       raw.Key,
				Value:     raw.Value,
				Partition: raw.Partition,
				Offset:    raw.Offset,
				Timestamp: raw.Timestamp.UnixMilli(),
			}

			if err := c.dispatch(session.Context(), handler, msg); err != nil {
				if dlErr := c.forwardDeadLetter(session.Context(), msg); dlErr != nil {
					// 死信也投不出去：不确认，等待重新投递
					logger.Error("dead letter forward failed",
						"topic", topic,
						"offset", raw.Offset,
						"error", dlErr)
					continue
				}
			}

			session.MarkMessage(raw, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
