package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/plagcode-io/plagcode/internal/bus"
	"github.com/plagcode-io/plagcode/internal/cache"
	"github.com/plagcode-io/plagcode/internal/event"
	"github.com/plagcode-io/plagcode/internal/similarity"
	"github.com/plagcode-io/plagcode/internal/storage"
)

// maxInterimProgress caps progress below 100 until the DONE transition.
const maxInterimProgress = 99

// ErrTokensMissing is returned when a pair's token sets are no longer in the
// cache at scoring time. The cache is best effort; this is an invariant
// violation for the message and routes it to the dead-letter topic.
var ErrTokensMissing = errors.New("missing token cache entry for pair")

// Scorer consumes code.candidates, persists one Result per pair, and drives
// the scan to its terminal state.
//
// Scoring is commutative in effect: consumption order never changes the final
// state because completion is derived from count(results) against the latched
// total_pairs, not from any in-memory counter.
type Scorer struct {
	cache    TokenCache
	producer Publisher
	topics   bus.Topics
}

// NewScorer creates the scoring stage handler.
func NewScorer(c TokenCache, producer Publisher, topics bus.Topics) *Scorer {
	return &Scorer{cache: c, producer: producer, topics: topics}
}

// Service implements Handler.
func (s *Scorer) Service() string { return "scoring-worker" }

// ErrorCode implements Handler.
func (s *Scorer) ErrorCode() string { return event.CodeScoringFailed }

// Handle implements Handler.
func (s *Scorer) Handle(ctx context.Context, tx *storage.Store, env *event.Envelope) error {
	var payload event.CandidatesPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	fileAID, fileBID := payload.FileAID, payload.FileBID
	checksumA, checksumB := payload.ChecksumA, payload.ChecksumB

	// Canonicalize to match the results primary key.
	if fileAID > fileBID {
		fileAID, fileBID = fileBID, fileAID
		checksumA, checksumB = checksumB, checksumA
	}

	tokensA, err := s.loadTokens(ctx, checksumA)
	if err != nil {
		return err
	}

	tokensB, err := s.loadTokens(ctx, checksumB)
	if err != nil {
		return err
	}

	score := similarity.JaccardPercent(tokensA, tokensB)

	err = tx.UpsertResult(ctx, &storage.Result{
		ScanID:  env.ScanID,
		FileAID: fileAID,
		FileBID: fileBID,
		Score:   score,
		Details: map[string]any{"pair_id": payload.PairID},
	})
	if err != nil {
		return err
	}

	return s.advance(ctx, tx, env)
}

// advance recomputes progress from persisted results and performs the
// DONE transition plus the single terminal emission when the scan is
// complete.
func (s *Scorer) advance(ctx context.Context, tx *storage.Store, env *event.Envelope) error {
	total, latched, err := tx.TotalPairs(ctx, env.ScanID)
	if err != nil {
		return err
	}

	if !latched || total <= 0 {
		return nil
	}

	processed, err := tx.CountResults(ctx, env.ScanID)
	if err != nil {
		return err
	}

	progress := int(math.Round(float64(processed) / float64(total) * 100))
	if progress > maxInterimProgress {
		progress = maxInterimProgress
	}

	if err := tx.UpdateProgressIfActive(ctx, env.ScanID, progress); err != nil {
		return err
	}

	if processed < total {
		return nil
	}

	transitioned, err := tx.MarkDone(ctx, env.ScanID)
	if err != nil {
		return err
	}

	if transitioned {
		if err := tx.AppendLog(ctx, env.ScanID, "Scoring complete (DONE)"); err != nil {
			return err
		}
	}

	won, err := tx.TryMarkDoneEmitted(ctx, env.ScanID)
	if err != nil {
		return err
	}

	if !won {
		return nil
	}

	out, err := event.NewEnvelope(event.TypeScored, env.ScanID, env.CorrelationID, event.ScoredKey(env.ScanID), event.ScoredPayload{
		ScanID:        env.ScanID,
		CompletedAtMS: time.Now().UnixMilli(),
		TotalPairs:    total,
	})
	if err != nil {
		return err
	}

	return s.producer.Publish(ctx, s.topics.Scored, out)
}

// loadTokens fetches and decodes one token sequence from the cache.
func (s *Scorer) loadTokens(ctx context.Context, checksum string) ([]string, error) {
	raw, err := s.cache.Get(ctx, cache.TokensKey(checksum))
	if errors.Is(err, cache.ErrMissing) {
		return nil, fmt.Errorf("%w: %s", ErrTokensMissing, checksum)
	}

	if err != nil {
		return nil, err
	}

	var tokens []string
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("decode tokens %s: %w", checksum, err)
	}

	return tokens, nil
}
