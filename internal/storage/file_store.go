package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InsertFile persists one uploaded file row and returns its generated id.
func (s *Store) InsertFile(ctx context.Context, file *File) (int64, error) {
	query := `
		INSERT INTO files(scan_id, filename, object_key, checksum, language, size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64

	err := s.q.QueryRowContext(ctx, query,
		file.ScanID,
		file.Filename,
		file.ObjectKey,
		file.Checksum,
		file.Language,
		file.Size,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert file %s: %w", file.Filename, err)
	}

	return id, nil
}

// MarkFileNormalized sets normalized_at exactly once ("set if null").
// Redelivered normalized events hit the IS NULL guard and change nothing.
func (s *Store) MarkFileNormalized(ctx context.Context, fileID int64) error {
	query := `
		UPDATE files
		SET normalized_at = NOW()
		WHERE id = $1 AND normalized_at IS NULL
	`

	if _, err := s.q.ExecContext(ctx, query, fileID); err != nil {
		return fmt.Errorf("mark file %d normalized: %w", fileID, err)
	}

	return nil
}

// ListFilesForScan returns all files of a scan ordered by id ascending.
// The ascending order is what makes candidate pair generation canonical.
func (s *Store) ListFilesForScan(ctx context.Context, scanID string) ([]File, error) {
	query := `
		SELECT id, scan_id, filename, object_key, checksum, language, size, created_at, normalized_at
		FROM files
		WHERE scan_id = $1
		ORDER BY id ASC
	`

	rows, err := s.q.QueryContext(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("list files for scan %s: %w", scanID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var files []File

	for rows.Next() {
		var f File

		if err := rows.Scan(
			&f.ID,
			&f.ScanID,
			&f.Filename,
			&f.ObjectKey,
			&f.Checksum,
			&f.Language,
			&f.Size,
			&f.CreatedAt,
			&f.NormalizedAt,
		); err != nil {
			return nil, fmt.Errorf("file row: %w", err)
		}

		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("file rows: %w", err)
	}

	return files, nil
}

// CountFilesNormalized returns (total, normalized) file counts for the scan.
// The candidate-retrieval barrier fires when total > 1 and the two are equal.
func (s *Store) CountFilesNormalized(ctx context.Context, scanID string) (int, int, error) {
	query := `
		SELECT
		  COUNT(*)::int AS total,
		  COUNT(*) FILTER (WHERE normalized_at IS NOT NULL)::int AS normalized
		FROM files
		WHERE scan_id = $1
	`

	var total, normalized int

	if err := s.q.QueryRowContext(ctx, query, scanID).Scan(&total, &normalized); err != nil {
		return 0, 0, fmt.Errorf("count normalized files %s: %w", scanID, err)
	}

	return total, normalized, nil
}

// GetFileByScanAndName returns the newest file of a scan with the given
// filename. Returns ErrFileNotFound when no row matches.
func (s *Store) GetFileByScanAndName(ctx context.Context, scanID, filename string) (*File, error) {
	query := `
		SELECT id, scan_id, filename, object_key, checksum, language, size, created_at, normalized_at
		FROM files
		WHERE scan_id = $1 AND filename = $2
		ORDER BY id DESC
		LIMIT 1
	`

	var f File

	err := s.q.QueryRowContext(ctx, query, scanID, filename).Scan(
		&f.ID,
		&f.ScanID,
		&f.Filename,
		&f.ObjectKey,
		&f.Checksum,
		&f.Language,
		&f.Size,
		&f.CreatedAt,
		&f.NormalizedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get file %s/%s: %w", scanID, filename, err)
	}

	return &f, nil
}
