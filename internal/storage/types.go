// Package storage provides the PostgreSQL source of truth for scans, files,
// results, and alerts, plus the single-statement conditional updates that
// implement all cross-worker coordination.
package storage

import (
	"errors"
	"time"
)

// Scan statuses. Progress is monotone non-decreasing within a non-terminal
// status and reaches 100 only in DONE or FAILED.
const (
	StatusPending     = "PENDING"
	StatusNormalizing = "NORMALIZING"
	StatusScoring     = "SCORING"
	StatusDone        = "DONE"
	StatusFailed      = "FAILED"
)

// Keys of the scan params document written by the pipeline.
const (
	ParamLogs           = "logs"
	ParamTotalPairs     = "total_pairs"
	ParamPairsGenerated = "pairs_generated"
	ParamDoneEmitted    = "done_emitted"
	ParamRuntimeMS      = "runtime_ms"
)

// maxScanLogEntries caps params.logs; AppendLog trims to the newest entries.
const maxScanLogEntries = 200

var (
	// ErrScanNotFound is returned when a scan id does not exist.
	ErrScanNotFound = errors.New("scan not found")
	// ErrFileNotFound is returned when a file lookup matches no row.
	ErrFileNotFound = errors.New("file not found")
	// ErrNestedTransaction is returned when WithTx is called on a tx-bound store.
	ErrNestedTransaction = errors.New("store is already transaction-bound")
)

type (
	// Scan is a user-submitted batch of files compared pairwise. Params is the
	// free-form jsonb document holding logs, latches, and pipeline counters.
	Scan struct {
		ScanID    string
		CreatedAt time.Time
		Status    string
		Progress  int
		Params    map[string]any
	}

	// File is one uploaded source file owned by a scan. (scan_id, checksum) is
	// deliberately not unique: the same content may be uploaded twice and each
	// upload participates in pairing independently.
	File struct {
		ID           int64
		ScanID       string
		Filename     string
		ObjectKey    string
		Checksum     string
		Language     *string
		Size         int64
		CreatedAt    time.Time
		NormalizedAt *time.Time
	}

	// Result is the scored outcome of one unordered file pair.
	// FileAID < FileBID always holds (canonical ordering).
	Result struct {
		ScanID    string
		FileAID   int64
		FileBID   int64
		Score     float64
		Details   map[string]any
		CreatedAt time.Time
	}

	// ResultPair is a result joined with filenames for the results projection.
	ResultPair struct {
		FileA   string
		FileB   string
		Score   float64
		Details map[string]any
	}

	// Alert is one row of the append-only incident log.
	Alert struct {
		ID        int64
		ScanID    *string
		Service   string
		ErrorCode string
		Message   string
		Payload   map[string]any
		CreatedAt time.Time
	}

	// LogEntry is one entry of the params.logs list.
	LogEntry struct {
		Time    string `json:"time"`
		Message string `json:"message"`
	}

	// ScanSummary is the read-side aggregate for the scan history listing.
	ScanSummary struct {
		ScanID        string
		CreatedAt     time.Time
		Status        string
		Progress      int
		RuntimeMS     int64
		FileCount     int
		PairCount     int
		TopSimilarity float64
		HighRiskCount int
	}
)

// Terminal reports whether the status is DONE or FAILED.
func Terminal(status string) bool {
	return status == StatusDone || status == StatusFailed
}
