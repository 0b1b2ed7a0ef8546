package mq

import (
	"context"
	"testing"

	"wallet-psbt/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewProducerSelectsImplementation(t *testing.T) {
	log := zaptest.NewLogger(t)

	p, err := NewProducer(context.Background(), config.Config{MQ: config.MQConfig{Type: "none"}}, log)
	require.NoError(t, err)
	assert.IsType(t, NopProducer{}, p)
	assert.NoError(t, p.Publish(context.Background(), "topic", "key", []byte("{}")))

	cfg := config.Config{
		MQ:    config.MQConfig{Type: "kafka", Topic: "psbt"},
		Kafka: config.KafkaConfig{Brokers: []string{"127.0.0.1:9092"}},
	}
	p, err = NewProducer(context.Background(), cfg, log)
	require.NoError(t, err)
	assert.IsType(t, &KafkaProducer{}, p)
	assert.NoError(t, p.Close())

	_, err = NewProducer(context.Background(), config.Config{MQ: config.MQConfig{Type: "kafka"}}, log)
	assert.Error(t, err)

	_, err = NewProducer(context.Background(), config.Config{MQ: config.MQConfig{Type: "rabbit"}}, log)
	assert.Error(t, err)
}

func TestNewConsumerRejectsNone(t *testing.T) {
	_, err := NewConsumer(context.Background(), config.Config{MQ: config.MQConfig{Type: "none"}}, "g", "n", zaptest.NewLogger(t))
	assert.Error(t, err)

	c, err := NewConsumer(context.Background(), config.Config{
		MQ:    config.MQConfig{Type: "kafka"},
		Kafka: config.KafkaConfig{Brokers: []string{"127.0.0.1:9092"}},
	}, "g", "n", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}
