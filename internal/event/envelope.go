// Package event defines the bus message envelope, event types, topic names,
// and the deterministic idempotency-key scheme shared by every worker.
//
// The relational store is the source of truth for scan state; an event on the
// bus is authoritative only after the relational write that produced it has
// committed. Consumers must therefore treat redelivery as the normal case and
// keep every effect idempotent.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the wire schema version stamped on every envelope.
const SchemaVersion = "1.0"

// Event types carried in the envelope. The topic for each type is the type
// name itself (they are equal by convention, see DefaultTopics).
const (
	TypeSubmitted  = "code.submitted"
	TypeNormalized = "code.normalized"
	TypeCandidates = "code.candidates"
	TypeScored     = "code.scored"
	TypeDeadLetter = "code.deadletter"
)

// NilScanID is used on dead letters that could not be attributed to a scan.
const NilScanID = "00000000-0000-0000-0000-000000000000"

var (
	// ErrEmptyScanID is returned when an envelope is built without a scan id.
	ErrEmptyScanID = errors.New("scan id cannot be empty")
	// ErrEmptyIdempotencyKey is returned when an envelope is built without an idempotency key.
	ErrEmptyIdempotencyKey = errors.New("idempotency key cannot be empty")
)

// Envelope is the JSON frame of every bus message. The bus partition key of a
// message equals its IdempotencyKey, so retries of the same logical work land
// on the same partition and deduplicate downstream.
type Envelope struct {
	SchemaVersion  string          `json:"schema_version"`
	EventType      string          `json:"event_type"`
	ScanID         string          `json:"scan_id"`
	CorrelationID  string          `json:"correlation_id"`
	IdempotencyKey string          `json:"idempotency_key"`
	ProducedAtMS   int64           `json:"produced_at_ms"`
	Payload        json.RawMessage `json:"payload"`
}

// NewEnvelope builds an envelope around the given payload. The payload is
// marshalled immediately so a malformed payload fails at the producer, not at
// every consumer.
func NewEnvelope(eventType, scanID, correlationID, idempotencyKey string, payload any) (*Envelope, error) {
	if scanID == "" {
		return nil, ErrEmptyScanID
	}

	if idempotencyKey == "" {
		return nil, ErrEmptyIdempotencyKey
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return &Envelope{
		SchemaVersion:  SchemaVersion,
		EventType:      eventType,
		ScanID:         scanID,
		CorrelationID:  correlationID,
		IdempotencyKey: idempotencyKey,
		ProducedAtMS:   time.Now().UnixMilli(),
		Payload:        raw,
	}, nil
}

// Marshal serializes the envelope to its JSON wire form.
func (e *Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	return data, nil
}

// Unmarshal parses an envelope from its JSON wire form.
func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	return &e, nil
}

// DecodePayload unmarshals the envelope payload into dst.
func (e *Envelope) DecodePayload(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}

	return nil
}

// NewCorrelationID returns a fresh correlation id, propagated across every
// event of a scan.
func NewCorrelationID() string {
	return uuid.NewString()
}
