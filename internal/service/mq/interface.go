package mq

import "context"

// Message 代表一条通用的业务消息
type Message struct {
	ID       string            // 消息ID (Redis Stream ID / Kafka partition:offset)
	Topic    string            // 主题 (例如 "wallet.events.psbt")
	Key      string            // 分区键 (记录 ID), 同样用于 Kafka Partition
	Payload  []byte            // 消息体 (JSON)
	Metadata map[string]string // 元数据
}

// Producer 生产者接口
type Producer interface {
	// Publish 发送消息
	// key: 用于分区排序 (Partition Key), 这里是 PSBT 记录 ID. 传空字符串则随机分区.
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}

// Consumer 消费者接口
type Consumer interface {
	// Subscribe 订阅主题，阻塞直到 ctx 取消
	// handler: 消息处理函数，返回 error 时不确认该消息
	Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error

	// Close 关闭消费者
	Close() error
}

// NopProducer 丢弃所有消息，mq.type=none 时使用
type NopProducer struct{}

func (NopProducer) Publish(context.Context, string, string, []byte) error { return nil }

func (NopProducer) Close() error { return nil }
