// Package kafka 提供 Kafka 生产者和消费者
package kafka

// Kafka topic 名称
const (
	// TopicRaffleEvents 抽奖生命周期事件 (raffle → api/ws/数仓)
	TopicRaffleEvents = "raffle-events"

	// TopicRandomnessFulfilled 预言机回调事件 (链上监听 → raffle)
	TopicRandomnessFulfilled = "randomness-fulfilled"

	// TopicDeadLetter 处理失败的消息
	TopicDeadLetter = "dead-letter"
)

// Message Kafka 消息结构
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int32
	Offset    int64
	Timestamp int64
}
