package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"student-records/internal/metrics"

	"github.com/nats-io/nats.go"
)

// KeyHeader carries the partition key of a published message.
const KeyHeader = "Student-Key"

type Producer struct {
	conn     *nats.Conn
	subject  string
	logger   *slog.Logger
	metrics  *metrics.MessagingMetrics
	onStatus func(connected bool)
}

type Option func(*Producer)

// WithStatusHandler is called with false when the connection drops or is
// closed and with true once it is (re)established.
func WithStatusHandler(fn func(connected bool)) Option {
	return func(p *Producer) {
		p.onStatus = fn
	}
}

func NewProducer(url string, subject string, logger *slog.Logger, m *metrics.MessagingMetrics, opts ...Option) (*Producer, error) {
	p := &Producer{
		subject:  subject,
		logger:   logger,
		metrics:  m,
		onStatus: func(bool) {},
	}
	for _, opt := range opts {
		opt(p)
	}

	// The disconnect handler also fires when the connection is closed or drained.
	nc, err := nats.Connect(url,
		nats.Name("student-records"),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
			m.RecordConnectionChange(context.Background(), -1)
			p.onStatus(false)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
			m.RecordConnectionChange(context.Background(), 1)
			p.onStatus(true)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	p.conn = nc
	m.RecordConnectionChange(context.Background(), 1)
	p.onStatus(true)

	logger.Info("NATS producer initialized", "url", url, "subject", subject)

	return p, nil
}

func (p *Producer) Publish(ctx context.Context, key string, value interface{}) error {
	start := time.Now()

	valueBytes, err := json.Marshal(value)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal message", "error", err)
		return err
	}

	msg := nats.NewMsg(p.subject)
	msg.Header.Set(KeyHeader, key)
	msg.Data = valueBytes

	err = p.conn.PublishMsg(msg)
	p.metrics.RecordPublish(ctx, p.subject, time.Since(start), err)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to send message to NATS", "error", err)
		return err
	}

	p.logger.InfoContext(ctx, "message sent to NATS", "subject", p.subject, "key", key)
	return nil
}

func (p *Producer) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
	return nil
}
