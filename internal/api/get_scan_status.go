package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/plagcode-io/plagcode/internal/api/middleware"
	"github.com/plagcode-io/plagcode/internal/storage"
)

// handleScanStatus handles GET /api/scan/{scanID}/status.
//
// Returns the live status, progress, and log tail of a scan. "complete" is
// true once the scan is in a terminal status (DONE or FAILED).
func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)
	scanID := r.PathValue("scanID")

	scan, err := s.store.GetScan(ctx, scanID)
	if errors.Is(err, storage.ErrScanNotFound) {
		WriteErrorResponse(w, r, s.logger, NotFound("Scan not found"))

		return
	}

	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load scan",
			"correlation_id", correlationID,
			"scan_id", scanID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to load scan"))

		return
	}

	s.writeJSON(w, r, http.StatusOK, ScanStatusResponse{
		Status:   scan.Status,
		Progress: scan.Progress,
		Logs:     decodeLogs(scan.Params),
		Complete: storage.Terminal(scan.Status),
	})
}

// decodeLogs extracts the params.logs list as typed entries. Malformed or
// absent logs decode to the empty list rather than an error; the status
// endpoint is read-only and must not fail on historical data.
func decodeLogs(params map[string]any) []storage.LogEntry {
	logs := []storage.LogEntry{}

	raw, ok := params[storage.ParamLogs]
	if !ok {
		return logs
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return logs
	}

	if err := json.Unmarshal(data, &logs); err != nil {
		return []storage.LogEntry{}
	}

	return logs
}
