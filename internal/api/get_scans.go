package api

import (
	"net/http"
	"strconv"

	"github.com/plagcode-io/plagcode/internal/api/middleware"
)

const (
	defaultScanListLimit = 50
	maxScanListLimit     = 500
)

// handleListScans handles GET /api/scans.
//
// Query Parameters:
//   - limit: 1-500 (default: 50)
//
// Response: ScanListResponse with scans sorted by created_at DESC, each with
// read-side aggregates (file count, pair count, top similarity, high-risk
// count).
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	limit, err := parseLimit(r, defaultScanListLimit, maxScanListLimit)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	summaries, err := s.store.ListScanSummaries(ctx, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list scans",
			"correlation_id", correlationID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to list scans"))

		return
	}

	items := make([]ScanSummaryItem, 0, len(summaries))
	for _, sum := range summaries {
		items = append(items, ScanSummaryItem{
			ScanID:        sum.ScanID,
			CreatedAt:     sum.CreatedAt,
			Status:        sum.Status,
			Progress:      sum.Progress,
			RuntimeMS:     sum.RuntimeMS,
			FileCount:     sum.FileCount,
			PairCount:     sum.PairCount,
			TopSimilarity: sum.TopSimilarity,
			HighRiskCount: sum.HighRiskCount,
		})
	}

	s.writeJSON(w, r, http.StatusOK, ScanListResponse{Scans: items})
}

// parseLimit parses and validates the limit query parameter.
func parseLimit(r *http.Request, defaultLimit, maxLimit int) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, &paramError{param: "limit", msg: "must be a valid integer"}
	}

	if limit < 1 || limit > maxLimit {
		return 0, &paramError{param: "limit", msg: "must be between 1 and " + strconv.Itoa(maxLimit)}
	}

	return limit, nil
}

// paramError represents a parameter validation error.
type paramError struct {
	param string
	msg   string
}

func (e *paramError) Error() string {
	return "Invalid parameter '" + e.param + "': " + e.msg
}
