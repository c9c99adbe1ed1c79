package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// InsertAlert appends one row to the incident log. Alerts are append-only;
// nothing in the pipeline updates or deletes them.
func (s *Store) InsertAlert(ctx context.Context, alert *Alert) error {
	payloadJSON, err := marshalDoc(alert.Payload)
	if err != nil {
		return fmt.Errorf("marshal alert payload: %w", err)
	}

	query := `
		INSERT INTO alerts(scan_id, service, error_code, message, payload_json)
		VALUES ($1, $2, $3, $4, $5::jsonb)
	`

	if _, err := s.q.ExecContext(ctx, query,
		alert.ScanID,
		alert.Service,
		alert.ErrorCode,
		alert.Message,
		payloadJSON,
	); err != nil {
		return fmt.Errorf("insert alert %s/%s: %w", alert.Service, alert.ErrorCode, err)
	}

	return nil
}

// ListAlerts returns the newest alerts, optionally filtered by scan id
// (empty string means all scans).
func (s *Store) ListAlerts(ctx context.Context, scanID string, limit int) ([]Alert, error) {
	query := `
		SELECT id, scan_id, service, error_code, message, payload_json, created_at
		FROM alerts
		WHERE $1 = '' OR scan_id::text = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.q.QueryContext(ctx, query, scanID, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var alerts []Alert

	for rows.Next() {
		var (
			alert       Alert
			payloadJSON []byte
		)

		if err := rows.Scan(
			&alert.ID,
			&alert.ScanID,
			&alert.Service,
			&alert.ErrorCode,
			&alert.Message,
			&payloadJSON,
			&alert.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("alert row: %w", err)
		}

		if err := json.Unmarshal(payloadJSON, &alert.Payload); err != nil {
			return nil, fmt.Errorf("decode alert payload: %w", err)
		}

		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("alert rows: %w", err)
	}

	return alerts, nil
}
