package bus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/plagcode-io/plagcode/internal/config"
	"github.com/plagcode-io/plagcode/internal/event"
)

const producerBatchTimeout = 5 * time.Millisecond

// Producer publishes envelopes. The message key is the envelope's
// idempotency key, and the hash balancer routes equal keys to equal
// partitions, so a retried publish of the same logical work lands where the
// first attempt did.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer creates a Producer after verifying broker connectivity with
// retryConnect (bounded backoff, fatal on deadline).
func NewProducer(ctx context.Context, cfg *Config) (*Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bus configuration: %w", err)
	}

	if err := retryConnect(ctx, cfg, "producer"); err != nil {
		return nil, err
	}

	return &Producer{
		writer: newWriter(cfg),
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}, nil
}

// newWriter builds the underlying kafka writer. The configured client id is
// carried on the transport so broker-side logs and quotas can attribute
// produce traffic to this service.
func newWriter(cfg *Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: producerBatchTimeout,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
	}
}

// Publish writes one envelope to the given topic and waits for the
// RequireAll acknowledgement. Callers publish only after the relational
// write that authorizes the event has committed.
func (p *Producer) Publish(ctx context.Context, topic string, env *event.Envelope) error {
	value, err := env.Marshal()
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(env.IdempotencyKey),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", env.EventType, topic, err)
	}

	p.logger.Debug("published event",
		slog.String("topic", topic),
		slog.String("event_type", env.EventType),
		slog.String("scan_id", env.ScanID),
		slog.String("idempotency_key", env.IdempotencyKey),
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
