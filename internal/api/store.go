// Package api provides the HTTP API server for the plagcode service.
package api

import (
	"context"

	"github.com/plagcode-io/plagcode/internal/ingress"
	"github.com/plagcode-io/plagcode/internal/storage"
)

type (
	// ScanReader is the read surface the API needs from the relational store.
	// *storage.Store satisfies it; handler tests substitute fakes.
	ScanReader interface {
		GetScan(ctx context.Context, scanID string) (*storage.Scan, error)
		ListFilesForScan(ctx context.Context, scanID string) ([]storage.File, error)
		GetFileByScanAndName(ctx context.Context, scanID, filename string) (*storage.File, error)
		ListResultPairs(ctx context.Context, scanID string, limit int) ([]storage.ResultPair, error)
		ListScanSummaries(ctx context.Context, limit int) ([]storage.ScanSummary, error)
		ListAlerts(ctx context.Context, scanID string, limit int) ([]storage.Alert, error)
		HealthCheck(ctx context.Context) error
	}

	// ScanSubmitter starts a scan from uploaded files.
	// *ingress.Service satisfies it.
	ScanSubmitter interface {
		Submit(ctx context.Context, uploads []ingress.Upload, options string) (string, error)
	}

	// BlobReader fetches staged file contents from the object store.
	// *blobstore.Client satisfies it.
	BlobReader interface {
		Get(ctx context.Context, bucket, key string) ([]byte, error)
	}
)
