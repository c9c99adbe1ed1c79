package api

import (
	"errors"
	"math"
	"net/http"

	"github.com/plagcode-io/plagcode/internal/api/middleware"
	"github.com/plagcode-io/plagcode/internal/similarity"
	"github.com/plagcode-io/plagcode/internal/storage"
)

// resultsPairLimit caps the pair listing; N·(N−1)/2 over a realistic upload
// stays far below it.
const resultsPairLimit = 5000

// handleScanResults handles GET /api/scan/{scanID}/results.
//
// Until the scan reaches DONE the endpoint returns {"status": "processing"};
// FAILED scans also report processing here, with the failure surfaced via the
// status and alert endpoints. Once DONE it returns the scored pairs joined
// with filenames, ordered by score descending, with the label projection.
func (s *Server) handleScanResults(w http.ResponseWriter, r *http.Request) {
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

	if scan.Status != storage.StatusDone {
		s.writeJSON(w, r, http.StatusOK, ProcessingResponse{Status: "processing"})

		return
	}

	files, err := s.store.ListFilesForScan(ctx, scanID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list scan files",
			"correlation_id", correlationID,
			"scan_id", scanID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to load results"))

		return
	}

	pairs, err := s.store.ListResultPairs(ctx, scanID, resultsPairLimit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list result pairs",
			"correlation_id", correlationID,
			"scan_id", scanID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to load results"))

		return
	}

	out := make([]PairResult, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, PairResult{
			FileA:        p.FileA,
			FileB:        p.FileB,
			Similarity:   math.Round(p.Score*10) / 10,
			Label:        similarity.Label(p.Score),
			OverlapSpans: overlapSpans(p.Details),
		})
	}

	s.writeJSON(w, r, http.StatusOK, ScanResultsResponse{
		Meta: ResultsMeta{
			NFiles:    len(files),
			NPairs:    len(pairs),
			RuntimeMS: runtimeMS(scan.Params),
		},
		Pairs: out,
	})
}

// overlapSpans reads details.overlap_spans, defaulting to the empty list.
func overlapSpans(details map[string]any) []any {
	if details == nil {
		return []any{}
	}

	if spans, ok := details["overlap_spans"].([]any); ok {
		return spans
	}

	return []any{}
}

// runtimeMS reads params.runtime_ms, tolerating the numeric forms jsonb
// decoding produces.
func runtimeMS(params map[string]any) int64 {
	switch v := params[storage.ParamRuntimeMS].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
