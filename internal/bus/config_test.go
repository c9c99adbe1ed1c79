package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, "plagcode", cfg.ClientID)
	assert.Equal(t, "plagcode-worker", cfg.GroupID)
	assert.Equal(t, 60*time.Second, cfg.ConnectDeadline)
	assert.Equal(t, "earliest", cfg.OffsetReset)

	// Topic names default to the event type names.
	assert.Equal(t, "code.submitted", cfg.Topics.Submitted)
	assert.Equal(t, "code.normalized", cfg.Topics.Normalized)
	assert.Equal(t, "code.candidates", cfg.Topics.Candidates)
	assert.Equal(t, "code.scored", cfg.Topics.Scored)
	assert.Equal(t, "code.deadletter", cfg.Topics.DeadLetter)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("WORKER_GROUP_ID", "scorer-group")
	t.Setenv("TOPIC_SCORED", "code.scored.v2")

	cfg := LoadConfig()

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.Equal(t, "scorer-group", cfg.GroupID)
	assert.Equal(t, "code.scored.v2", cfg.Topics.Scored)

	// Topics without an override keep their defaults.
	assert.Equal(t, "code.submitted", cfg.Topics.Submitted)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: nil,
		},
		{
			name:    "no brokers",
			mutate:  func(c *Config) { c.Brokers = nil },
			wantErr: ErrNoBrokers,
		},
		{
			name:    "bad offset reset",
			mutate:  func(c *Config) { c.OffsetReset = "newest" },
			wantErr: ErrInvalidOffsetReset,
		},
		{
			name:    "latest offset reset allowed",
			mutate:  func(c *Config) { c.OffsetReset = "latest" },
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
