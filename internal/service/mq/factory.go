package mq

import (
	"context"
	"fmt"

	"wallet-psbt/pkg/config"
	"wallet-psbt/pkg/database"

	"go.uber.org/zap"
)

// ProducerCloser 可关闭的生产者
type ProducerCloser interface {
	Producer
	Close() error
}

// NewProducer 按 mq.type 创建生产者: none / redis / kafka
func NewProducer(ctx context.Context, cfg config.Config, log *zap.Logger) (ProducerCloser, error) {
	switch cfg.MQ.Type {
	case "", "none":
		return NopProducer{}, nil
	case "redis":
		rdb, err := database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisProducer(rdb, log), nil
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("mq: kafka.brokers is empty")
		}
		return NewKafkaProducer(cfg.Kafka.Brokers, cfg.MQ.Topic, log), nil
	}
	return nil, fmt.Errorf("mq: unsupported type %q", cfg.MQ.Type)
}

// NewConsumer 按 mq.type 创建消费者
func NewConsumer(ctx context.Context, cfg config.Config, group, name string, log *zap.Logger) (Consumer, error) {
	switch cfg.MQ.Type {
	case "redis":
		rdb, err := database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisConsumer(rdb, group, name, log), nil
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("mq: kafka.brokers is empty")
		}
		return NewKafkaConsumer(cfg.Kafka.Brokers, group, log), nil
	}
	return nil, fmt.Errorf("mq: no consumer for type %q", cfg.MQ.Type)
}
