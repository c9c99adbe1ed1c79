package api

import (
	"net/http"

	"github.com/plagcode-io/plagcode/internal/api/middleware"
)

const (
	defaultAlertListLimit = 200
	maxAlertListLimit     = 1000
)

// handleListAlerts handles GET /api/alerts.
//
// Query Parameters:
//   - scan_id: optional scan filter
//   - limit: 1-1000 (default: 200)
//
// Response: AlertListResponse with alerts sorted by created_at DESC.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	limit, err := parseLimit(r, defaultAlertListLimit, maxAlertListLimit)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	scanID := r.URL.Query().Get("scan_id")

	alerts, err := s.store.ListAlerts(ctx, scanID, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list alerts",
			"correlation_id", correlationID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to list alerts"))

		return
	}

	items := make([]AlertItem, 0, len(alerts))
	for _, a := range alerts {
		items = append(items, AlertItem{
			ID:        a.ID,
			ScanID:    a.ScanID,
			Service:   a.Service,
			ErrorCode: a.ErrorCode,
			Message:   a.Message,
			Payload:   a.Payload,
			CreatedAt: a.CreatedAt,
		})
	}

	s.writeJSON(w, r, http.StatusOK, AlertListResponse{Alerts: items})
}
