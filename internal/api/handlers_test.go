package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plagcode-io/plagcode/internal/ingress"
	"github.com/plagcode-io/plagcode/internal/storage"
)

type (
	// fakeScanReader implements ScanReader with per-call function fields.
	fakeScanReader struct {
		getScan           func(ctx context.Context, scanID string) (*storage.Scan, error)
		listFiles         func(ctx context.Context, scanID string) ([]storage.File, error)
		getFile           func(ctx context.Context, scanID, filename string) (*storage.File, error)
		listPairs         func(ctx context.Context, scanID string, limit int) ([]storage.ResultPair, error)
		listScanSummaries func(ctx context.Context, limit int) ([]storage.ScanSummary, error)
		listAlerts        func(ctx context.Context, scanID string, limit int) ([]storage.Alert, error)
		healthCheck       func(ctx context.Context) error
	}

	fakeSubmitter struct {
		submit func(ctx context.Context, uploads []ingress.Upload, options string) (string, error)
	}

	fakeBlobReader struct {
		get func(ctx context.Context, bucket, key string) ([]byte, error)
	}
)

func (f *fakeScanReader) GetScan(ctx context.Context, scanID string) (*storage.Scan, error) {
	return f.getScan(ctx, scanID)
}

func (f *fakeScanReader) ListFilesForScan(ctx context.Context, scanID string) ([]storage.File, error) {
	return f.listFiles(ctx, scanID)
}

func (f *fakeScanReader) GetFileByScanAndName(ctx context.Context, scanID, filename string) (*storage.File, error) {
	return f.getFile(ctx, scanID, filename)
}

func (f *fakeScanReader) ListResultPairs(ctx context.Context, scanID string, limit int) ([]storage.ResultPair, error) {
	return f.listPairs(ctx, scanID, limit)
}

func (f *fakeScanReader) ListScanSummaries(ctx context.Context, limit int) ([]storage.ScanSummary, error) {
	return f.listScanSummaries(ctx, limit)
}

func (f *fakeScanReader) ListAlerts(ctx context.Context, scanID string, limit int) ([]storage.Alert, error) {
	return f.listAlerts(ctx, scanID, limit)
}

func (f *fakeScanReader) HealthCheck(ctx context.Context) error {
	if f.healthCheck == nil {
		return nil
	}

	return f.healthCheck(ctx)
}

func (f *fakeSubmitter) Submit(ctx context.Context, uploads []ingress.Upload, options string) (string, error) {
	return f.submit(ctx, uploads, options)
}

func (f *fakeBlobReader) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	return f.get(ctx, bucket, key)
}

// newTestServer builds a server over fakes; requests run through the full
// middleware chain (rate limiting disabled).
func newTestServer(t *testing.T, store ScanReader, submitter ScanSubmitter, blobs BlobReader) *Server {
	t.Helper()

	if store == nil {
		store = &fakeScanReader{}
	}

	return NewServer(LoadServerConfig(), store, submitter, blobs, "test-bucket", nil)
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	return rec
}

func TestPing(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestReady(t *testing.T) {
	store := &fakeScanReader{healthCheck: func(context.Context) error { return nil }}
	srv := newTestServer(t, store, nil, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())

	store.healthCheck = func(context.Context) error { return assert.AnError }

	rec = doRequest(srv, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "storage unavailable", rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, serviceVersion, rec.Header().Get("X-Plagcode-Version"))

	var health HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "plagcode", health.ServiceName)
}

func TestUnknownRouteReturnsProblem(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "https://plagcode.io/problems/404", problem.Type)
	assert.Equal(t, "/nope", problem.Instance)
	assert.NotEmpty(t, problem.CorrelationID)
}

func TestCorrelationIDReused(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Correlation-ID", "client-supplied-id")

	rec := doRequest(srv, req)
	assert.Equal(t, "client-supplied-id", rec.Header().Get("X-Correlation-ID"))
}

func TestScanStatus(t *testing.T) {
	store := &fakeScanReader{
		getScan: func(_ context.Context, scanID string) (*storage.Scan, error) {
			assert.Equal(t, "scan-1", scanID)

			return &storage.Scan{
				ScanID:   scanID,
				Status:   storage.StatusScoring,
				Progress: 42,
				Params: map[string]any{
					"logs": []any{
						map[string]any{"time": "12:00:00", "message": "Scan created with 2 file(s)"},
					},
				},
			}, nil
		},
	}
	srv := newTestServer(t, store, nil, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/scan/scan-1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status ScanStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, storage.StatusScoring, status.Status)
	assert.Equal(t, 42, status.Progress)
	assert.False(t, status.Complete)
	require.Len(t, status.Logs, 1)
	assert.Equal(t, "Scan created with 2 file(s)", status.Logs[0].Message)
}

func TestScanStatusTerminal(t *testing.T) {
	store := &fakeScanReader{
		getScan: func(_ context.Context, scanID string) (*storage.Scan, error) {
			return &storage.Scan{
				ScanID: scanID, Status: storage.StatusDone, Progress: 100,
				Params: map[string]any{},
			}, nil
		},
	}
	srv := newTestServer(t, store, nil, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/scan/scan-1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status ScanStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Complete)
	assert.Empty(t, status.Logs)
}

func TestScanStatusNotFound(t *testing.T) {
	store := &fakeScanReader{
		getScan: func(context.Context, string) (*storage.Scan, error) {
			return nil, storage.ErrScanNotFound
		},
	}
	srv := newTestServer(t, store, nil, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/scan/missing/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanResultsProcessingGate(t *testing.T) {
	store := &fakeScanReader{
		getScan: func(_ context.Context, scanID string) (*storage.Scan, error) {
			return &storage.Scan{ScanID: scanID, Status: storage.StatusScoring, Params: map[string]any{}}, nil
		},
	}
	srv := newTestServer(t, store, nil, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/scan/scan-1/results", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"processing"}`, rec.Body.String())
}

func TestScanResultsDone(t *testing.T) {
	store := &fakeScanReader{
		getScan: func(_ context.Context, scanID string) (*storage.Scan, error) {
			return &storage.Scan{
				ScanID: scanID, Status: storage.StatusDone, Progress: 100,
				Params: map[string]any{"runtime_ms": float64(1234)},
			}, nil
		},
		listFiles: func(context.Context, string) ([]storage.File, error) {
			return []storage.File{{ID: 1}, {ID: 2}}, nil
		},
		listPairs: func(_ context.Context, _ string, limit int) ([]storage.ResultPair, error) {
			assert.Equal(t, resultsPairLimit, limit)

			return []storage.ResultPair{
				{FileA: "a.py", FileB: "b.py", Score: 63.63636363636363, Details: map[string]any{"pair_id": "p"}},
			}, nil
		},
	}
	srv := newTestServer(t, store, nil, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/scan/scan-1/results", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var results ScanResultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))

	assert.Equal(t, 2, results.Meta.NFiles)
	assert.Equal(t, 1, results.Meta.NPairs)
	assert.Equal(t, int64(1234), results.Meta.RuntimeMS)

	require.Len(t, results.Pairs, 1)
	pair := results.Pairs[0]
	assert.Equal(t, "a.py", pair.FileA)
	assert.Equal(t, "b.py", pair.FileB)
	assert.InDelta(t, 63.6, pair.Similarity, 1e-9, "similarity is rounded to one decimal")
	assert.Equal(t, "medium", pair.Label)
	assert.NotNil(t, pair.OverlapSpans)
	assert.Empty(t, pair.OverlapSpans)
}

func TestStartScanTooFewFiles(t *testing.T) {
	srv := newTestServer(t, nil, &fakeSubmitter{}, nil)

	body, contentType := multipartBody(t, map[string][]byte{"solo.py": []byte("x = 1")}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/scan", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Upload at least 2 files")
}

func TestStartScanNotMultipart(t *testing.T) {
	srv := newTestServer(t, nil, &fakeSubmitter{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")

	rec := doRequest(srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartScan(t *testing.T) {
	submitter := &fakeSubmitter{
		submit: func(_ context.Context, uploads []ingress.Upload, options string) (string, error) {
			require.Len(t, uploads, 2)
			assert.Equal(t, "a.py", uploads[0].Filename)
			assert.Equal(t, []byte("x = 1"), uploads[0].Content)
			assert.Equal(t, `{"lang":"python"}`, options)

			return "scan-new", nil
		},
	}
	srv := newTestServer(t, nil, submitter, nil)

	body, contentType := multipartBody(t, map[string][]byte{
		"a.py": []byte("x = 1"),
		"b.py": []byte("y = 2"),
	}, `{"lang":"python"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/scan", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var started ScanStartedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, "scan-new", started.ScanID)
	assert.Equal(t, "Scan started", started.Message)
}

func TestStartScanSubmitFailure(t *testing.T) {
	submitter := &fakeSubmitter{
		submit: func(context.Context, []ingress.Upload, string) (string, error) {
			return "", assert.AnError
		},
	}
	srv := newTestServer(t, nil, submitter, nil)

	body, contentType := multipartBody(t, map[string][]byte{
		"a.py": []byte("x"),
		"b.py": []byte("y"),
	}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/scan", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(srv, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestFileContent(t *testing.T) {
	store := &fakeScanReader{
		getFile: func(_ context.Context, scanID, filename string) (*storage.File, error) {
			assert.Equal(t, "scan-1", scanID)
			assert.Equal(t, "a.py", filename)

			return &storage.File{ID: 1, ScanID: scanID, Filename: filename, ObjectKey: "scan-1/a.py"}, nil
		},
	}
	blobs := &fakeBlobReader{
		get: func(_ context.Context, bucket, key string) ([]byte, error) {
			assert.Equal(t, "test-bucket", bucket)
			assert.Equal(t, "scan-1/a.py", key)

			return []byte("print('hi')\n"), nil
		},
	}
	srv := newTestServer(t, store, nil, blobs)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/files/scan-1/a.py", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var content FileContentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &content))
	assert.Equal(t, "print('hi')\n", content.Content)
}

func TestFileContentNotFound(t *testing.T) {
	store := &fakeScanReader{
		getFile: func(context.Context, string, string) (*storage.File, error) {
			return nil, storage.ErrFileNotFound
		},
	}
	srv := newTestServer(t, store, nil, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/files/scan-1/missing.py", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDecodeContentFallback(t *testing.T) {
	// Valid UTF-8 passes through unchanged.
	assert.Equal(t, "héllo", decodeContent([]byte("héllo")))

	// Invalid UTF-8 decodes byte-per-rune instead of failing.
	raw := []byte{0x68, 0xe9, 0x6c}
	assert.Equal(t, "hél", decodeContent(raw))
}

func TestListScans(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	store := &fakeScanReader{
		listScanSummaries: func(_ context.Context, limit int) ([]storage.ScanSummary, error) {
			assert.Equal(t, defaultScanListLimit, limit)

			return []storage.ScanSummary{{
				ScanID:        "scan-1",
				CreatedAt:     now,
				Status:        storage.StatusDone,
				Progress:      100,
				RuntimeMS:     900,
				FileCount:     3,
				PairCount:     3,
				TopSimilarity: 85.5,
				HighRiskCount: 1,
			}}, nil
		},
	}
	srv := newTestServer(t, store, nil, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/scans", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list ScanListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Scans, 1)
	assert.Equal(t, "scan-1", list.Scans[0].ScanID)
	assert.Equal(t, 3, list.Scans[0].FileCount)
	assert.Equal(t, 1, list.Scans[0].HighRiskCount)
}

func TestListScansLimitValidation(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	for _, limit := range []string{"0", "-1", "501", "abc"} {
		rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/scans?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestListAlerts(t *testing.T) {
	scanID := "scan-1"
	store := &fakeScanReader{
		listAlerts: func(_ context.Context, gotScanID string, limit int) ([]storage.Alert, error) {
			assert.Equal(t, scanID, gotScanID)
			assert.Equal(t, defaultAlertListLimit, limit)

			return []storage.Alert{{
				ID:        1,
				ScanID:    &scanID,
				Service:   "scoring-worker",
				ErrorCode: "SCORING_FAILED",
				Message:   "tokens missing",
			}}, nil
		},
	}
	srv := newTestServer(t, store, nil, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/alerts?scan_id=scan-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list AlertListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Alerts, 1)
	assert.Equal(t, "SCORING_FAILED", list.Alerts[0].ErrorCode)
}

func TestAliasRoutes(t *testing.T) {
	store := &fakeScanReader{
		getScan: func(_ context.Context, scanID string) (*storage.Scan, error) {
			return &storage.Scan{ScanID: scanID, Status: storage.StatusPending, Params: map[string]any{}}, nil
		},
		listScanSummaries: func(context.Context, int) ([]storage.ScanSummary, error) {
			return nil, nil
		},
		listAlerts: func(context.Context, string, int) ([]storage.Alert, error) {
			return nil, nil
		},
	}
	srv := newTestServer(t, store, nil, nil)

	for _, path := range []string{"/scans/scan-1/status", "/scans", "/alerts"} {
		rec := doRequest(srv, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
	}
}

// multipartBody builds a multipart form with the given files and options field.
func multipartBody(t *testing.T, files map[string][]byte, options string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	// Deterministic order keeps upload assertions stable.
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)

		_, err = part.Write(files[name])
		require.NoError(t, err)
	}

	if options != "" {
		require.NoError(t, writer.WriteField("options", options))
	}

	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}
