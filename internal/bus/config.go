// Package bus provides the Kafka adapter: an envelope producer keyed by
// idempotency key and a consumer-group reader with explicit offset commits.
package bus

import (
	"errors"
	"time"

	"github.com/plagcode-io/plagcode/internal/config"
	"github.com/plagcode-io/plagcode/internal/event"
)

const (
	defaultBootstrapServers = "localhost:9092"
	defaultClientID         = "plagcode"
	defaultGroupID          = "plagcode-worker"
	defaultConnectDeadline  = 60 * time.Second
	defaultOffsetReset      = "earliest"
)

var (
	// ErrNoBrokers is returned when the broker list is empty.
	ErrNoBrokers = errors.New("at least one bootstrap server is required")
	// ErrInvalidOffsetReset is returned for an offset reset policy other than earliest/latest.
	ErrInvalidOffsetReset = errors.New("offset reset policy must be 'earliest' or 'latest'")
)

type (
	// Topics holds the per-event-type topic names, overridable individually.
	Topics struct {
		Submitted  string
		Normalized string
		Candidates string
		Scored     string
		DeadLetter string
	}

	// Config holds Kafka connection configuration with local-dev defaults.
	Config struct {
		Brokers         []string
		ClientID        string
		GroupID         string
		ConnectDeadline time.Duration
		OffsetReset     string
		Topics          Topics
	}
)

// LoadConfig loads Kafka configuration from environment variables with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		Brokers:         config.ParseCommaSeparatedList(config.GetEnvStr("KAFKA_BOOTSTRAP_SERVERS", defaultBootstrapServers)),
		ClientID:        config.GetEnvStr("KAFKA_CLIENT_ID", defaultClientID),
		GroupID:         config.GetEnvStr("WORKER_GROUP_ID", defaultGroupID),
		ConnectDeadline: config.GetEnvDuration("KAFKA_CONNECT_DEADLINE", defaultConnectDeadline),
		OffsetReset:     config.GetEnvStr("KAFKA_OFFSET_RESET", defaultOffsetReset),
		Topics: Topics{
			Submitted:  config.GetEnvStr("TOPIC_SUBMITTED", event.TypeSubmitted),
			Normalized: config.GetEnvStr("TOPIC_NORMALIZED", event.TypeNormalized),
			Candidates: config.GetEnvStr("TOPIC_CANDIDATES", event.TypeCandidates),
			Scored:     config.GetEnvStr("TOPIC_SCORED", event.TypeScored),
			DeadLetter: config.GetEnvStr("TOPIC_DEADLETTER", event.TypeDeadLetter),
		},
	}
}

// Validate checks if the Kafka configuration is valid.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}

	if c.OffsetReset != "earliest" && c.OffsetReset != "latest" {
		return ErrInvalidOffsetReset
	}

	return nil
}
