package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	payload := ScoredPayload{
		ScanID:        testScanID,
		CompletedAtMS: 1700000000000,
		TotalPairs:    3,
	}

	before := time.Now().UnixMilli()
	env, err := NewEnvelope(TypeScored, testScanID, testCorrelationID, ScoredKey(testScanID), payload)
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, env.SchemaVersion)
	assert.Equal(t, TypeScored, env.EventType)
	assert.Equal(t, testScanID, env.ScanID)
	assert.Equal(t, testCorrelationID, env.CorrelationID)
	assert.Equal(t, ScoredKey(testScanID), env.IdempotencyKey)
	assert.GreaterOrEqual(t, env.ProducedAtMS, before)

	var decoded ScoredPayload
	require.NoError(t, env.DecodePayload(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestNewEnvelopeValidation(t *testing.T) {
	_, err := NewEnvelope(TypeScored, "", testCorrelationID, "key", nil)
	assert.ErrorIs(t, err, ErrEmptyScanID)

	_, err = NewEnvelope(TypeScored, testScanID, testCorrelationID, "", nil)
	assert.ErrorIs(t, err, ErrEmptyIdempotencyKey)
}

func TestNewEnvelopeRejectsUnmarshalablePayload(t *testing.T) {
	_, err := NewEnvelope(TypeScored, testScanID, testCorrelationID, "key", make(chan int))
	assert.Error(t, err)
}

func TestEnvelopeWireRoundTrip(t *testing.T) {
	payload := CandidatesPayload{
		ScanID:    testScanID,
		PairID:    PairID(testScanID, 3, 9),
		FileAID:   3,
		FileBID:   9,
		ChecksumA: "aaa",
		ChecksumB: "bbb",
	}

	env, err := NewEnvelope(TypeCandidates, testScanID, testCorrelationID, CandidatesKey(payload.PairID), payload)
	require.NoError(t, err)

	data, err := env.Marshal()
	require.NoError(t, err)

	// The wire frame uses the snake_case field names shared with every
	// consumer; spot-check them instead of only round-tripping structs.
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "1.0", frame["schema_version"])
	assert.Equal(t, TypeCandidates, frame["event_type"])
	assert.Contains(t, frame, "idempotency_key")
	assert.Contains(t, frame, "produced_at_ms")

	parsed, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, env.IdempotencyKey, parsed.IdempotencyKey)

	var decoded CandidatesPayload
	require.NoError(t, parsed.DecodePayload(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	assert.Error(t, err)
}
