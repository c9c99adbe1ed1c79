package storage

import (
	"context"
	"fmt"
)

// The pipeline's status transitions are single guarded statements so that
// redelivered events can replay through a worker without regressing a scan.
// Once a scan is DONE, nothing here mutates it again.

// MarkNormalizing transitions PENDING → NORMALIZING with progress 1.
// Any other current status (a redelivered submitted event, a failed or
// completed scan) leaves the row untouched.
func (s *Store) MarkNormalizing(ctx context.Context, scanID string) error {
	query := `
		UPDATE scans
		SET status = $2, progress = GREATEST(progress, 1)
		WHERE scan_id = $1 AND status = $3
	`

	if _, err := s.q.ExecContext(ctx, query, scanID, StatusNormalizing, StatusPending); err != nil {
		return fmt.Errorf("mark scan %s normalizing: %w", scanID, err)
	}

	return nil
}

// UpdateProgressIfActive raises progress on a non-terminal scan. GREATEST
// keeps progress monotone when out-of-order pair results race each other.
func (s *Store) UpdateProgressIfActive(ctx context.Context, scanID string, progress int) error {
	query := `
		UPDATE scans
		SET progress = GREATEST(progress, $2)
		WHERE scan_id = $1 AND status IN ($3, $4)
	`

	if _, err := s.q.ExecContext(ctx, query, scanID, progress, StatusNormalizing, StatusScoring); err != nil {
		return fmt.Errorf("update progress %s: %w", scanID, err)
	}

	return nil
}

// MarkDone transitions a non-terminal scan to DONE with progress 100 and
// records runtime_ms (completion − creation) in the params document. Returns
// whether this call performed the transition; redeliveries after completion
// observe false and must not touch the scan again.
func (s *Store) MarkDone(ctx context.Context, scanID string) (bool, error) {
	query := `
		UPDATE scans
		SET status = $2,
		    progress = 100,
		    params_json = params_json || jsonb_build_object(
		      'runtime_ms', (EXTRACT(EPOCH FROM (NOW() - created_at)) * 1000)::bigint
		    )
		WHERE scan_id = $1 AND status NOT IN ($2, $3)
		RETURNING scan_id
	`

	var returned string

	err := s.q.QueryRowContext(ctx, query, scanID, StatusDone, StatusFailed).Scan(&returned)
	if isNoRows(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("mark scan %s done: %w", scanID, err)
	}

	return true, nil
}

// MarkFailed transitions a scan to FAILED with progress 100. DONE is
// terminal and wins over a late failure from a stale redelivery.
func (s *Store) MarkFailed(ctx context.Context, scanID string) error {
	query := `
		UPDATE scans
		SET status = $2, progress = 100
		WHERE scan_id = $1 AND status <> $3
	`

	if _, err := s.q.ExecContext(ctx, query, scanID, StatusFailed, StatusDone); err != nil {
		return fmt.Errorf("mark scan %s failed: %w", scanID, err)
	}

	return nil
}
