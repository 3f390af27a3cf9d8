package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"student-records/internal/metrics"

	"github.com/IBM/sarama"
)

type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
	metrics  *metrics.MessagingMetrics
	onStatus func(connected bool)
}

type Option func(*Producer)

// WithStatusHandler reports broker reachability: true after every
// acknowledged send, false after a failed one and on Close.
func WithStatusHandler(fn func(connected bool)) Option {
	return func(p *Producer) {
		p.onStatus = fn
	}
}

func NewConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = "student-records"
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	return config
}

func NewProducer(brokers []string, topic string, logger *slog.Logger, m *metrics.MessagingMetrics, opts ...Option) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return NewProducerFrom(producer, topic, logger, m, opts...), nil
}

// NewProducerFrom wraps an existing sarama producer (a mock in tests).
func NewProducerFrom(producer sarama.SyncProducer, topic string, logger *slog.Logger, m *metrics.MessagingMetrics, opts ...Option) *Producer {
	p := &Producer{
		producer: producer,
		topic:    topic,
		logger:   logger,
		metrics:  m,
		onStatus: func(bool) {},
	}
	for _, opt := range opts {
		opt(p)
	}

	logger.Info("kafka producer initialized", "topic", topic)
	m.RecordConnectionChange(context.Background(), 1)
	p.onStatus(true)

	return p
}

func (p *Producer) Publish(ctx context.Context, key string, value interface{}) error {
	start := time.Now()

	valueBytes, err := json.Marshal(value)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal message", "error", err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(valueBytes),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	p.metrics.RecordPublish(ctx, p.topic, time.Since(start), err)
	p.onStatus(err == nil)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to send message to kafka", "error", err)
		return err
	}

	p.logger.InfoContext(ctx, "message sent to kafka", "topic", p.topic, "partition", partition, "offset", offset, "key", key)
	return nil
}

func (p *Producer) Close() error {
	p.metrics.RecordConnectionChange(context.Background(), -1)
	p.onStatus(false)
	return p.producer.Close()
}
