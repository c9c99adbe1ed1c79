// Package worker implements the three pipeline roles (normalizer, candidate
// retrieval, scoring) behind one shared consume loop.
//
// Each role is a stateless consumer of one topic. All effects of one message
// run inside a single relational transaction; the bus offset is committed
// only after that transaction commits, so redelivery is the failure mode and
// every handler is written to be idempotent under it.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/segmentio/kafka-go"

	"github.com/plagcode-io/plagcode/internal/bus"
	"github.com/plagcode-io/plagcode/internal/config"
	"github.com/plagcode-io/plagcode/internal/event"
	"github.com/plagcode-io/plagcode/internal/storage"
)

// Handler processes one decoded envelope inside a tx-bound store.
type Handler interface {
	// Service is the worker role name recorded on alerts and dead letters.
	Service() string
	// ErrorCode is the fatal code for this stage.
	ErrorCode() string
	// Handle applies the message's effects. A returned error is fatal for
	// the message: the transaction rolls back and the message dead-letters.
	Handle(ctx context.Context, tx *storage.Store, env *event.Envelope) error
}

type (
	// Publisher emits envelopes to the bus. *bus.Producer satisfies it;
	// handler tests substitute a recorder.
	Publisher interface {
		Publish(ctx context.Context, topic string, env *event.Envelope) error
	}

	// TokenCache is the content-addressed cache surface the normalizer and
	// scorer need. *cache.Cache satisfies it.
	TokenCache interface {
		Get(ctx context.Context, key string) ([]byte, error)
		Set(ctx context.Context, key string, value []byte) error
		Has(ctx context.Context, keys ...string) (bool, error)
	}

	// BlobReader fetches upload blobs. *blobstore.Client satisfies it.
	BlobReader interface {
		Get(ctx context.Context, bucket, key string) ([]byte, error)
	}
)

// Worker binds a handler to its consumed topic and shared collaborators.
type Worker struct {
	consumer *bus.Consumer
	producer Publisher
	store    *storage.Store
	topics   bus.Topics
	topic    string
	handler  Handler
	logger   *slog.Logger
}

// New assembles a Worker for the given consumed topic and handler.
func New(consumer *bus.Consumer, producer Publisher, store *storage.Store, topics bus.Topics, topic string, handler Handler) *Worker {
	return &Worker{
		consumer: consumer,
		producer: producer,
		store:    store,
		topics:   topics,
		topic:    topic,
		handler:  handler,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})).With(slog.String("service", handler.Service())),
	}
}

// Run consumes until the context is canceled. Per message: fetch, handle in
// one transaction, commit the transaction, then commit the offset. A fatal
// routes through handleFatal and the offset is still committed: the pipeline
// prefers a surfaced failure over a poison-pill retry loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", slog.String("topic", w.topic))

	for {
		msg, err := w.consumer.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				w.logger.Info("worker stopping", slog.String("topic", w.topic))

				return nil
			}

			return err
		}

		w.process(ctx, msg)

		if err := w.consumer.Commit(ctx, msg); err != nil {
			w.logger.Error("offset commit failed",
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (w *Worker) process(ctx context.Context, msg kafka.Message) {
	env, err := event.Unmarshal(msg.Value)
	if err != nil {
		w.handleFatal(ctx, fatalContext{
			scanID:        "",
			correlationID: "",
			errorCode:     event.CodeUnhandled,
			msg:           msg,
		}, err)

		return
	}

	err = w.store.WithTx(ctx, func(tx *storage.Store) error {
		return w.handler.Handle(ctx, tx, env)
	})
	if err != nil {
		w.handleFatal(ctx, fatalContext{
			scanID:        env.ScanID,
			correlationID: env.CorrelationID,
			errorCode:     w.handler.ErrorCode(),
			msg:           msg,
		}, err)
	}
}
