package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// CreateScan inserts a new scan in PENDING status with progress 0.
func (s *Store) CreateScan(ctx context.Context, scanID string, params map[string]any) error {
	paramsJSON, err := marshalDoc(params)
	if err != nil {
		return fmt.Errorf("marshal scan params: %w", err)
	}

	query := `
		INSERT INTO scans(scan_id, status, progress, params_json)
		VALUES ($1, $2, 0, $3::jsonb)
	`

	if _, err := s.q.ExecContext(ctx, query, scanID, StatusPending, paramsJSON); err != nil {
		return fmt.Errorf("create scan %s: %w", scanID, err)
	}

	return nil
}

// GetScan loads one scan with its decoded params document.
// Returns ErrScanNotFound when the id does not exist.
func (s *Store) GetScan(ctx context.Context, scanID string) (*Scan, error) {
	query := `
		SELECT scan_id, created_at, status, progress, params_json
		FROM scans
		WHERE scan_id = $1
	`

	var (
		scan       Scan
		paramsJSON []byte
	)

	err := s.q.QueryRowContext(ctx, query, scanID).Scan(
		&scan.ScanID,
		&scan.CreatedAt,
		&scan.Status,
		&scan.Progress,
		&paramsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScanNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get scan %s: %w", scanID, err)
	}

	if err := json.Unmarshal(paramsJSON, &scan.Params); err != nil {
		return nil, fmt.Errorf("decode scan params %s: %w", scanID, err)
	}

	return &scan, nil
}

// UpdateStatusProgress patches status, progress, and the params document in
// one statement. Nil status/progress leave the current value untouched
// (COALESCE), so re-processing a delivered event is a no-op. The params patch
// uses jsonb concatenation: concurrent patches to disjoint keys never clobber
// each other.
func (s *Store) UpdateStatusProgress(
	ctx context.Context,
	scanID string,
	status *string,
	progress *int,
	paramsPatch map[string]any,
) error {
	patchJSON, err := marshalDoc(paramsPatch)
	if err != nil {
		return fmt.Errorf("marshal params patch: %w", err)
	}

	query := `
		UPDATE scans
		SET
		  status = COALESCE($2, status),
		  progress = COALESCE($3, progress),
		  params_json = params_json || $4::jsonb
		WHERE scan_id = $1
	`

	if _, err := s.q.ExecContext(ctx, query, scanID, status, progress, patchJSON); err != nil {
		return fmt.Errorf("update scan %s: %w", scanID, err)
	}

	return nil
}

// AppendLog appends a {time, message} entry to params.logs, trimming the list
// to the newest maxScanLogEntries entries on every append.
func (s *Store) AppendLog(ctx context.Context, scanID, message string) error {
	query := `
		UPDATE scans
		SET params_json = jsonb_set(
		  params_json,
		  '{logs}',
		  (
		    SELECT COALESCE(jsonb_agg(entry ORDER BY ord), '[]'::jsonb)
		    FROM (
		      SELECT entry, ord
		      FROM jsonb_array_elements(
		        COALESCE(params_json->'logs', '[]'::jsonb)
		        || jsonb_build_array(jsonb_build_object(
		             'time', to_char(NOW(), 'HH24:MI:SS'),
		             'message', $2::text
		           ))
		      ) WITH ORDINALITY AS t(entry, ord)
		      ORDER BY ord DESC
		      LIMIT $3
		    ) tail
		  )
		)
		WHERE scan_id = $1
	`

	if _, err := s.q.ExecContext(ctx, query, scanID, message, maxScanLogEntries); err != nil {
		return fmt.Errorf("append scan log %s: %w", scanID, err)
	}

	return nil
}

// TryMarkPairsGenerated attempts the pair-generation latch: a single
// conditional update that flips params.pairs_generated false→true and records
// total_pairs in the same statement. Exactly one caller among concurrent
// duplicates observes true; everyone else must skip pair emission.
//
// total_pairs is written only by the latch winner and never changes again.
func (s *Store) TryMarkPairsGenerated(ctx context.Context, scanID string, totalPairs int) (bool, error) {
	query := `
		UPDATE scans
		SET params_json = params_json
		  || jsonb_build_object('pairs_generated', true)
		  || jsonb_build_object('total_pairs', $2::int)
		WHERE scan_id = $1
		  AND COALESCE((params_json->>'pairs_generated')::boolean, false) = false
		RETURNING scan_id
	`

	var returned string

	err := s.q.QueryRowContext(ctx, query, scanID, totalPairs).Scan(&returned)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("latch pairs_generated %s: %w", scanID, err)
	}

	return true, nil
}

// TryMarkDoneEmitted attempts the terminal-emission latch with the same
// conditional-update pattern as TryMarkPairsGenerated. The winner emits the
// single code.scored event for the scan.
func (s *Store) TryMarkDoneEmitted(ctx context.Context, scanID string) (bool, error) {
	query := `
		UPDATE scans
		SET params_json = params_json || jsonb_build_object('done_emitted', true)
		WHERE scan_id = $1
		  AND COALESCE((params_json->>'done_emitted')::boolean, false) = false
		RETURNING scan_id
	`

	var returned string

	err := s.q.QueryRowContext(ctx, query, scanID).Scan(&returned)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("latch done_emitted %s: %w", scanID, err)
	}

	return true, nil
}

// ListScanSummaries returns the newest scans with read-side aggregates for
// the history listing. Pair count falls back to N·(N−1)/2 over the file count
// when total_pairs has not been latched yet.
func (s *Store) ListScanSummaries(ctx context.Context, limit int) ([]ScanSummary, error) {
	query := `
		SELECT
		  s.scan_id,
		  s.created_at,
		  s.status,
		  s.progress,
		  COALESCE(NULLIF(s.params_json->>'runtime_ms','')::bigint, 0) AS runtime_ms,
		  COUNT(DISTINCT f.id)::int AS file_count,
		  COALESCE(
		    NULLIF(s.params_json->>'total_pairs','')::int,
		    ((COUNT(DISTINCT f.id) * GREATEST(COUNT(DISTINCT f.id) - 1, 0)) / 2)::int
		  ) AS pair_count,
		  COALESCE(MAX(r.score), 0)::float8 AS top_similarity,
		  COALESCE(SUM(CASE WHEN r.score > 70 THEN 1 ELSE 0 END), 0)::int AS high_risk_count
		FROM scans s
		LEFT JOIN files f ON f.scan_id = s.scan_id
		LEFT JOIN results r ON r.scan_id = s.scan_id
		GROUP BY s.scan_id
		ORDER BY s.created_at DESC
		LIMIT $1
	`

	rows, err := s.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list scan summaries: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var summaries []ScanSummary

	for rows.Next() {
		var sum ScanSummary

		if err := rows.Scan(
			&sum.ScanID,
			&sum.CreatedAt,
			&sum.Status,
			&sum.Progress,
			&sum.RuntimeMS,
			&sum.FileCount,
			&sum.PairCount,
			&sum.TopSimilarity,
			&sum.HighRiskCount,
		); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}

		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan summary rows: %w", err)
	}

	return summaries, nil
}

// marshalDoc marshals a params/details document, mapping nil to the empty
// jsonb object.
func marshalDoc(doc map[string]any) ([]byte, error) {
	if doc == nil {
		return []byte("{}"), nil
	}

	return json.Marshal(doc)
}
