package bus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/plagcode-io/plagcode/internal/config"
)

const (
	consumerMinBytes = 1
	consumerMaxBytes = 10 << 20 // 10 MiB

	connectInitialDelay = 500 * time.Millisecond
	connectMaxDelay     = 5 * time.Second
	dialerTimeout       = 10 * time.Second
)

// Consumer reads one topic as part of a consumer group. Offsets are committed
// explicitly: a worker commits the relational transaction for a message
// first, then the offset, so a crash in between redelivers work whose effects
// are idempotent rather than losing it.
type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

// NewConsumer creates a Consumer for the given topic after verifying broker
// connectivity with retryConnect.
func NewConsumer(ctx context.Context, cfg *Config, topic string) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bus configuration: %w", err)
	}

	if err := retryConnect(ctx, cfg, "consumer "+topic); err != nil {
		return nil, err
	}

	return &Consumer{
		reader: kafka.NewReader(newReaderConfig(cfg, topic)),
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}, nil
}

// newReaderConfig builds the reader configuration. The configured client id
// rides on the dialer so fetch and group-coordination requests identify this
// service to the brokers.
func newReaderConfig(cfg *Config, topic string) kafka.ReaderConfig {
	startOffset := kafka.FirstOffset
	if cfg.OffsetReset == "latest" {
		startOffset = kafka.LastOffset
	}

	return kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       topic,
		StartOffset: startOffset,
		MinBytes:    consumerMinBytes,
		MaxBytes:    consumerMaxBytes,
		Dialer: &kafka.Dialer{
			ClientID:  cfg.ClientID,
			Timeout:   dialerTimeout,
			DualStack: true,
		},
	}
}

// Fetch blocks until the next message is available. The returned message must
// be passed to Commit once its effects have been persisted.
func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("fetch from %s: %w", c.reader.Config().Topic, err)
	}

	return msg, nil
}

// Commit acknowledges the message's offset to the consumer group.
func (c *Consumer) Commit(ctx context.Context, msg kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("commit offset %d on %s: %w", msg.Offset, msg.Topic, err)
	}

	return nil
}

// Close closes the underlying reader and leaves the consumer group.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// retryConnect probes the first broker with exponential backoff until the
// config's connect deadline expires. In compose-style environments Kafka may
// take a while to accept connections; failing fast here would crash-loop
// every worker during startup.
func retryConnect(ctx context.Context, cfg *Config, label string) error {
	deadline := time.Now().Add(cfg.ConnectDeadline)
	delay := connectInitialDelay

	var lastErr error

	for time.Now().Before(deadline) {
		conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
		if err == nil {
			_ = conn.Close()

			return nil
		}

		lastErr = err

		slog.Warn("Kafka connect failed, retrying",
			slog.String("label", label),
			slog.String("broker", cfg.Brokers[0]),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("kafka connect canceled: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if delay > connectMaxDelay {
			delay = connectMaxDelay
		}
	}

	return fmt.Errorf("kafka connect deadline exceeded (%s): %w", cfg.ConnectDeadline, lastErr)
}
