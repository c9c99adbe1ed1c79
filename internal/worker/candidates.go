package worker

import (
	"context"
	"fmt"

	"github.com/plagcode-io/plagcode/internal/bus"
	"github.com/plagcode-io/plagcode/internal/event"
	"github.com/plagcode-io/plagcode/internal/storage"
)

const scoringStartProgress = 5

// CandidateRetrieval consumes code.normalized and is the pipeline's fan-in
// barrier: it waits for every file of a scan to be normalized, then emits
// each unordered pair exactly once.
//
// The exactly-once property rests on the pairs_generated latch, a single
// conditional update: among any number of concurrent duplicates exactly one
// transaction wins and emits; the rest observe the latch taken and skip.
type CandidateRetrieval struct {
	producer Publisher
	topics   bus.Topics
}

// NewCandidateRetrieval creates the candidate-retrieval stage handler.
func NewCandidateRetrieval(producer Publisher, topics bus.Topics) *CandidateRetrieval {
	return &CandidateRetrieval{producer: producer, topics: topics}
}

// Service implements Handler.
func (c *CandidateRetrieval) Service() string { return "candidate-retrieval-worker" }

// ErrorCode implements Handler.
func (c *CandidateRetrieval) ErrorCode() string { return event.CodeCandidateFailed }

// Handle implements Handler.
func (c *CandidateRetrieval) Handle(ctx context.Context, tx *storage.Store, env *event.Envelope) error {
	var payload event.NormalizedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	if err := tx.MarkFileNormalized(ctx, payload.FileID); err != nil {
		return err
	}

	if err := tx.AppendLog(ctx, env.ScanID, fmt.Sprintf("Candidate retrieval: file %d normalized", payload.FileID)); err != nil {
		return err
	}

	total, normalized, err := tx.CountFilesNormalized(ctx, env.ScanID)
	if err != nil {
		return err
	}

	// A scan with a single file never reaches the barrier; see the sweeper
	// note in DESIGN.md.
	if total <= 1 || normalized != total {
		return nil
	}

	files, err := tx.ListFilesForScan(ctx, env.ScanID)
	if err != nil {
		return err
	}

	totalPairs := len(files) * (len(files) - 1) / 2

	won, err := tx.TryMarkPairsGenerated(ctx, env.ScanID, totalPairs)
	if err != nil {
		return err
	}

	if !won {
		return nil
	}

	status := storage.StatusScoring
	progress := scoringStartProgress

	err = tx.UpdateStatusProgress(ctx, env.ScanID, &status, &progress, map[string]any{
		"normalized_files": normalized,
		"total_files":      total,
	})
	if err != nil {
		return err
	}

	if err := tx.AppendLog(ctx, env.ScanID, fmt.Sprintf("Generating %d candidate pair(s)", totalPairs)); err != nil {
		return err
	}

	if err := c.emitPairs(ctx, env, files); err != nil {
		return err
	}

	return tx.AppendLog(ctx, env.ScanID, "Candidate retrieval: emitted "+event.TypeCandidates)
}

// emitPairs publishes one code.candidates event per unordered pair (i, j)
// with i < j, files sorted by id ascending. Ids are already canonical because
// the file list is id-ordered.
func (c *CandidateRetrieval) emitPairs(ctx context.Context, env *event.Envelope, files []storage.File) error {
	for i := range files {
		for j := i + 1; j < len(files); j++ {
			fileA, fileB := files[i], files[j]

			pairID := event.PairID(env.ScanID, fileA.ID, fileB.ID)
			key := event.CandidatesKey(pairID)

			out, err := event.NewEnvelope(event.TypeCandidates, env.ScanID, env.CorrelationID, key, event.CandidatesPayload{
				ScanID:    env.ScanID,
				PairID:    pairID,
				FileAID:   fileA.ID,
				FileBID:   fileB.ID,
				ChecksumA: fileA.Checksum,
				ChecksumB: fileB.Checksum,
				LanguageA: fileA.Language,
				LanguageB: fileB.Language,
			})
			if err != nil {
				return err
			}

			if err := c.producer.Publish(ctx, c.topics.Candidates, out); err != nil {
				return err
			}
		}
	}

	return nil
}
