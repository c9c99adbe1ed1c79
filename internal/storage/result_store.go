package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// UpsertResult writes the score of one canonical pair. The primary key
// (scan_id, file_a_id, file_b_id) makes redelivered candidate events
// converge: the later write overwrites with the same deterministic score.
func (s *Store) UpsertResult(ctx context.Context, result *Result) error {
	if result.FileAID >= result.FileBID {
		return fmt.Errorf("result pair (%d, %d) violates canonical ordering", result.FileAID, result.FileBID)
	}

	detailsJSON, err := marshalDoc(result.Details)
	if err != nil {
		return fmt.Errorf("marshal result details: %w", err)
	}

	query := `
		INSERT INTO results(scan_id, file_a_id, file_b_id, score, details_json)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (scan_id, file_a_id, file_b_id)
		DO UPDATE SET score = EXCLUDED.score, details_json = EXCLUDED.details_json
	`

	if _, err := s.q.ExecContext(ctx, query,
		result.ScanID,
		result.FileAID,
		result.FileBID,
		result.Score,
		detailsJSON,
	); err != nil {
		return fmt.Errorf("upsert result (%s, %d, %d): %w", result.ScanID, result.FileAID, result.FileBID, err)
	}

	return nil
}

// CountResults counts persisted results for a scan. Completion is driven by
// this count against total_pairs, never by an in-memory counter.
func (s *Store) CountResults(ctx context.Context, scanID string) (int, error) {
	query := `SELECT COUNT(*)::int FROM results WHERE scan_id = $1`

	var n int

	if err := s.q.QueryRowContext(ctx, query, scanID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count results %s: %w", scanID, err)
	}

	return n, nil
}

// TotalPairs returns params.total_pairs and whether it has been latched yet.
func (s *Store) TotalPairs(ctx context.Context, scanID string) (int, bool, error) {
	query := `
		SELECT NULLIF(params_json->>'total_pairs','')::int
		FROM scans
		WHERE scan_id = $1
	`

	var total sql.NullInt64

	err := s.q.QueryRowContext(ctx, query, scanID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, ErrScanNotFound
	}

	if err != nil {
		return 0, false, fmt.Errorf("total pairs %s: %w", scanID, err)
	}

	if !total.Valid {
		return 0, false, nil
	}

	return int(total.Int64), true, nil
}

// ListResultPairs returns results joined with filenames, ordered by score
// descending. This is the projection the results endpoint serves.
func (s *Store) ListResultPairs(ctx context.Context, scanID string, limit int) ([]ResultPair, error) {
	query := `
		SELECT
		  r.score,
		  r.details_json,
		  fa.filename AS file_a,
		  fb.filename AS file_b
		FROM results r
		JOIN files fa ON fa.id = r.file_a_id
		JOIN files fb ON fb.id = r.file_b_id
		WHERE r.scan_id = $1
		ORDER BY r.score DESC
		LIMIT $2
	`

	rows, err := s.q.QueryContext(ctx, query, scanID, limit)
	if err != nil {
		return nil, fmt.Errorf("list result pairs %s: %w", scanID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var pairs []ResultPair

	for rows.Next() {
		var (
			pair        ResultPair
			detailsJSON []byte
		)

		if err := rows.Scan(&pair.Score, &detailsJSON, &pair.FileA, &pair.FileB); err != nil {
			return nil, fmt.Errorf("result pair row: %w", err)
		}

		if err := json.Unmarshal(detailsJSON, &pair.Details); err != nil {
			return nil, fmt.Errorf("decode result details: %w", err)
		}

		pairs = append(pairs, pair)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("result pair rows: %w", err)
	}

	return pairs, nil
}
