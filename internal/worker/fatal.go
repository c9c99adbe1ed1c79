package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/segmentio/kafka-go"

	"github.com/plagcode-io/plagcode/internal/event"
	"github.com/plagcode-io/plagcode/internal/storage"
)

// fatalContext carries what handleFatal needs to attribute a failed message.
type fatalContext struct {
	scanID        string
	correlationID string
	errorCode     string
	msg           kafka.Message
}

// handleFatal is the single dead-letter routine for every worker role:
//
//  1. the message transaction has already rolled back (WithTx)
//  2. in a fresh transaction: insert an Alert, append a scan log entry, and
//     mark the scan FAILED with progress 100
//  3. publish one code.deadletter event with a deterministic key
//
// The caller then commits the bus offset regardless.
func (w *Worker) handleFatal(ctx context.Context, fc fatalContext, cause error) {
	w.logger.Error("fatal while processing message",
		slog.String("topic", fc.msg.Topic),
		slog.Int("partition", fc.msg.Partition),
		slog.Int64("offset", fc.msg.Offset),
		slog.String("scan_id", fc.scanID),
		slog.String("error_code", fc.errorCode),
		slog.String("error", cause.Error()),
	)

	partition := fc.msg.Partition
	offset := fc.msg.Offset
	payload := event.DeadLetterPayload{
		OriginalTopic: fc.msg.Topic,
		OriginalEvent: json.RawMessage(fc.msg.Value),
		Error:         cause.Error(),
		Traceback:     string(debug.Stack()),
		Partition:     &partition,
		Offset:        &offset,
	}

	err := w.store.WithTx(ctx, func(tx *storage.Store) error {
		var scanID *string
		if fc.scanID != "" {
			scanID = &fc.scanID
		}

		alert := &storage.Alert{
			ScanID:    scanID,
			Service:   w.handler.Service(),
			ErrorCode: fc.errorCode,
			Message:   cause.Error(),
			Payload:   deadLetterDoc(payload),
		}

		if err := tx.InsertAlert(ctx, alert); err != nil {
			return err
		}

		if fc.scanID == "" {
			return nil
		}

		logMsg := fmt.Sprintf("%s fatal: %s: %s", w.handler.Service(), fc.errorCode, cause)
		if err := tx.AppendLog(ctx, fc.scanID, logMsg); err != nil {
			return err
		}

		// Make the failure visible to clients; the relational store is the
		// source of truth, not the dead-letter topic.
		return tx.MarkFailed(ctx, fc.scanID)
	})
	if err != nil {
		w.logger.Error("dead-letter bookkeeping failed",
			slog.String("scan_id", fc.scanID),
			slog.String("error", err.Error()),
		)
	}

	scanID := fc.scanID
	if scanID == "" {
		scanID = event.NilScanID
	}

	key := event.DeadLetterKey(w.handler.Service(), fc.scanID, fc.correlationID, fc.errorCode)

	env, err := event.NewEnvelope(event.TypeDeadLetter, scanID, fc.correlationID, key, payload)
	if err != nil {
		w.logger.Error("dead-letter envelope failed", slog.String("error", err.Error()))

		return
	}

	if err := w.producer.Publish(ctx, w.topics.DeadLetter, env); err != nil {
		w.logger.Error("dead-letter publish failed",
			slog.String("scan_id", fc.scanID),
			slog.String("error", err.Error()),
		)
	}
}

// deadLetterDoc converts the dead-letter payload into the generic document
// form persisted on the alert row.
func deadLetterDoc(payload event.DeadLetterPayload) map[string]any {
	raw, err := json.Marshal(payload)
	if err != nil {
		return map[string]any{"error": payload.Error}
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return map[string]any{"error": payload.Error}
	}

	return doc
}
