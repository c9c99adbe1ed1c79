// Package api provides the HTTP API server for the plagcode service.
package api

import (
	"net/http"
	"time"

	"github.com/plagcode-io/plagcode/internal/storage"
)

type (
	// Version represents the API version response structure.
	Version struct {
		Version     string `json:"version"`
		ServiceName string `json:"serviceName"`
		BuildInfo   string `json:"buildInfo,omitempty"`
	}

	// HealthStatus represents the health check response structure.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"serviceName"`
		Version     string `json:"version"`
		Uptime      string `json:"uptime,omitempty"`
	}

	// ScanStartedResponse is returned by POST /api/scan. Field names match the
	// existing UI contract.
	ScanStartedResponse struct {
		ScanID  string `json:"scanId"`
		Message string `json:"message"`
	}

	// ScanStatusResponse is the live view of a running (or finished) scan.
	ScanStatusResponse struct {
		Status   string             `json:"status"`
		Progress int                `json:"progress"`
		Logs     []storage.LogEntry `json:"logs"`
		Complete bool               `json:"complete"`
	}

	// ScanResultsResponse is returned by GET /api/scan/{id}/results once the
	// scan is DONE. Until then the endpoint returns ProcessingResponse.
	ScanResultsResponse struct {
		Meta  ResultsMeta  `json:"meta"`
		Pairs []PairResult `json:"pairs"`
	}

	// ProcessingResponse is the placeholder body while a scan is not DONE.
	ProcessingResponse struct {
		Status string `json:"status"`
	}

	// ResultsMeta carries scan-level aggregates for the results view.
	ResultsMeta struct {
		NFiles    int   `json:"n_files"`    //nolint: tagliatelle // UI contract
		NPairs    int   `json:"n_pairs"`    //nolint: tagliatelle // UI contract
		RuntimeMS int64 `json:"runtime_ms"` //nolint: tagliatelle // UI contract
	}

	// PairResult is one scored pair in the results listing. Similarity is
	// rounded to one decimal place; Label is the projection of the raw score.
	PairResult struct {
		FileA        string  `json:"file_a"`        //nolint: tagliatelle // UI contract
		FileB        string  `json:"file_b"`        //nolint: tagliatelle // UI contract
		Similarity   float64 `json:"similarity"`
		Label        string  `json:"label"`
		OverlapSpans []any   `json:"overlap_spans"` //nolint: tagliatelle // UI contract
	}

	// FileContentResponse is returned by GET /api/files/{scan}/{filename}.
	FileContentResponse struct {
		Content string `json:"content"`
	}

	// ScanListResponse wraps the scan history listing.
	ScanListResponse struct {
		Scans []ScanSummaryItem `json:"scans"`
	}

	// ScanSummaryItem is one row of the scan history listing.
	ScanSummaryItem struct {
		ScanID        string    `json:"scan_id"`         //nolint: tagliatelle // UI contract
		CreatedAt     time.Time `json:"created_at"`      //nolint: tagliatelle // UI contract
		Status        string    `json:"status"`
		Progress      int       `json:"progress"`
		RuntimeMS     int64     `json:"runtime_ms"`      //nolint: tagliatelle // UI contract
		FileCount     int       `json:"file_count"`      //nolint: tagliatelle // UI contract
		PairCount     int       `json:"pair_count"`      //nolint: tagliatelle // UI contract
		TopSimilarity float64   `json:"top_similarity"`  //nolint: tagliatelle // UI contract
		HighRiskCount int       `json:"high_risk_count"` //nolint: tagliatelle // UI contract
	}

	// AlertListResponse wraps the alert listing.
	AlertListResponse struct {
		Alerts []AlertItem `json:"alerts"`
	}

	// AlertItem is one row of the alert listing.
	AlertItem struct {
		ID        int64          `json:"id"`
		ScanID    *string        `json:"scan_id"`    //nolint: tagliatelle // UI contract
		Service   string         `json:"service"`
		ErrorCode string         `json:"error_code"` //nolint: tagliatelle // UI contract
		Message   string         `json:"message"`
		Payload   map[string]any `json:"payload"`
		CreatedAt time.Time      `json:"created_at"` //nolint: tagliatelle // UI contract
	}

	// Route represents an HTTP route configuration with a path and handler.
	Route struct {
		Path    string           // The URL path for this route (e.g., "/health", "/api/scans")
		Handler http.HandlerFunc // The HTTP handler function for this route
	}
)
