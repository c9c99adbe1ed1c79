package ingress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/plagcode-io/plagcode/internal/blobstore"
	"github.com/plagcode-io/plagcode/internal/bus"
	"github.com/plagcode-io/plagcode/internal/event"
	"github.com/plagcode-io/plagcode/internal/storage"
)

// minScanFiles is the smallest batch that produces at least one pair.
const minScanFiles = 2

// ErrTooFewFiles is returned when a submission carries fewer than two files.
var ErrTooFewFiles = errors.New("a scan requires at least two files")

// Upload is one file of a submission as received from the transport layer.
type Upload struct {
	Filename string
	Content  []byte
}

// Service implements scan intake. Submit is the only write path into the
// pipeline: everything downstream reacts to the code.submitted event it
// publishes.
type Service struct {
	store     *storage.Store
	blobs     *blobstore.Client
	producer  *bus.Producer
	topics    bus.Topics
	bucket    string
	languages *LanguageConfig
	logger    *slog.Logger
}

// NewService assembles the intake service.
func NewService(
	store *storage.Store,
	blobs *blobstore.Client,
	producer *bus.Producer,
	topics bus.Topics,
	bucket string,
	languages *LanguageConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:     store,
		blobs:     blobs,
		producer:  producer,
		topics:    topics,
		bucket:    bucket,
		languages: languages,
		logger:    logger,
	}
}

// Submit persists a new scan with its files, stages each file's content in
// the object store, and publishes exactly one code.submitted event.
//
// Ordering is deliberate: rows and objects are durable before the event is
// published, so a consumer can never observe an event whose scan it cannot
// load. A store failure raises an UPLOAD_FAILED alert; a publish failure
// raises KAFKA_PUBLISH_FAILED and marks the scan FAILED, because a scan whose
// start event was lost will never progress.
func (s *Service) Submit(ctx context.Context, uploads []Upload, options string) (string, error) {
	if len(uploads) < minScanFiles {
		return "", ErrTooFewFiles
	}

	scanID := uuid.NewString()
	correlationID := event.NewCorrelationID()

	rows, err := s.stageUploads(ctx, scanID, uploads)
	if err != nil {
		s.recordIntakeFailure(ctx, scanID, event.CodeUploadFailed, err)

		return "", err
	}

	err = s.store.WithTx(ctx, func(tx *storage.Store) error {
		params := map[string]any{
			"options":        options,
			"logs":           []any{},
			"correlation_id": correlationID,
			"created_at":     time.Now().UTC().Format(time.RFC3339),
		}

		if err := tx.CreateScan(ctx, scanID, params); err != nil {
			return err
		}

		for i := range rows {
			id, err := tx.InsertFile(ctx, &rows[i])
			if err != nil {
				return err
			}

			rows[i].ID = id
		}

		return tx.AppendLog(ctx, scanID, fmt.Sprintf("Scan created with %d file(s)", len(rows)))
	})
	if err != nil {
		s.recordIntakeFailure(ctx, scanID, event.CodeUploadFailed, err)

		return "", err
	}

	if err := s.publishSubmitted(ctx, scanID, correlationID, options, rows); err != nil {
		s.recordPublishFailure(ctx, scanID, err)

		return "", err
	}

	s.logger.Info("scan submitted",
		slog.String("scan_id", scanID),
		slog.String("correlation_id", correlationID),
		slog.Int("files", len(rows)),
	)

	return scanID, nil
}

// stageUploads writes every upload to the object store and builds the file
// rows to persist. Object keys are unique per upload, so duplicate filenames
// within one scan never collide.
func (s *Service) stageUploads(ctx context.Context, scanID string, uploads []Upload) ([]storage.File, error) {
	rows := make([]storage.File, 0, len(uploads))

	for _, up := range uploads {
		sum := sha256.Sum256(up.Content)
		checksum := hex.EncodeToString(sum[:])
		objectKey := blobstore.ObjectKey(scanID, up.Filename)

		if err := s.blobs.Put(ctx, s.bucket, objectKey, up.Content, "application/octet-stream"); err != nil {
			return nil, fmt.Errorf("stage %s: %w", up.Filename, err)
		}

		rows = append(rows, storage.File{
			ScanID:    scanID,
			Filename:  up.Filename,
			ObjectKey: objectKey,
			Checksum:  checksum,
			Language:  s.languages.DetectLanguage(up.Filename),
			Size:      int64(len(up.Content)),
		})
	}

	return rows, nil
}

func (s *Service) publishSubmitted(ctx context.Context, scanID, correlationID, options string, rows []storage.File) error {
	files := make([]event.SubmittedFile, 0, len(rows))

	for _, row := range rows {
		files = append(files, event.SubmittedFile{
			FileID:    row.ID,
			Filename:  row.Filename,
			ObjectKey: row.ObjectKey,
			Checksum:  row.Checksum,
			Language:  row.Language,
			Size:      row.Size,
		})
	}

	env, err := event.NewEnvelope(
		event.TypeSubmitted,
		scanID,
		correlationID,
		event.SubmittedKey(scanID, correlationID),
		event.SubmittedPayload{
			ScanID:        scanID,
			ObjectBucket:  s.bucket,
			Files:         files,
			Options:       options,
			SubmittedAtMS: time.Now().UnixMilli(),
		},
	)
	if err != nil {
		return err
	}

	return s.producer.Publish(ctx, s.topics.Submitted, env)
}

// recordIntakeFailure raises an alert for a failed submission. The scan row
// may or may not exist at this point, so no status transition is attempted.
func (s *Service) recordIntakeFailure(ctx context.Context, scanID, errorCode string, cause error) {
	s.logger.Error("scan intake failed",
		slog.String("scan_id", scanID),
		slog.String("error_code", errorCode),
		slog.String("error", cause.Error()),
	)

	err := s.store.WithTx(ctx, func(tx *storage.Store) error {
		return tx.InsertAlert(ctx, &storage.Alert{
			ScanID:    &scanID,
			Service:   "api",
			ErrorCode: errorCode,
			Message:   cause.Error(),
		})
	})
	if err != nil {
		s.logger.Error("intake alert failed",
			slog.String("scan_id", scanID),
			slog.String("error", err.Error()),
		)
	}
}

// recordPublishFailure raises an alert and fails the scan. The rows are
// durable but no start event exists, so without this the scan would sit in
// PENDING forever.
func (s *Service) recordPublishFailure(ctx context.Context, scanID string, cause error) {
	s.logger.Error("submit publish failed",
		slog.String("scan_id", scanID),
		slog.String("error", cause.Error()),
	)

	err := s.store.WithTx(ctx, func(tx *storage.Store) error {
		alert := &storage.Alert{
			ScanID:    &scanID,
			Service:   "api",
			ErrorCode: event.CodeKafkaPublishFailed,
			Message:   cause.Error(),
		}

		if err := tx.InsertAlert(ctx, alert); err != nil {
			return err
		}

		if err := tx.AppendLog(ctx, scanID, "API fatal: "+event.CodeKafkaPublishFailed+": "+cause.Error()); err != nil {
			return err
		}

		return tx.MarkFailed(ctx, scanID)
	})
	if err != nil {
		s.logger.Error("publish-failure bookkeeping failed",
			slog.String("scan_id", scanID),
			slog.String("error", err.Error()),
		)
	}
}
