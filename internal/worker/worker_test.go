package worker

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/plagcode-io/plagcode/internal/bus"
	"github.com/plagcode-io/plagcode/internal/cache"
	"github.com/plagcode-io/plagcode/internal/config"
	"github.com/plagcode-io/plagcode/internal/event"
	"github.com/plagcode-io/plagcode/internal/storage"
)

// testTopics mirrors the default topic-per-event-type convention.
var testTopics = bus.Topics{
	Submitted:  event.TypeSubmitted,
	Normalized: event.TypeNormalized,
	Candidates: event.TypeCandidates,
	Scored:     event.TypeScored,
	DeadLetter: event.TypeDeadLetter,
}

type publishedEvent struct {
	topic string
	env   *event.Envelope
}

// recordingPublisher captures every published envelope in order.
type recordingPublisher struct {
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, env *event.Envelope) error {
	if p.err != nil {
		return p.err
	}

	p.events = append(p.events, publishedEvent{topic: topic, env: env})

	return nil
}

func (p *recordingPublisher) onTopic(topic string) []*event.Envelope {
	var out []*event.Envelope

	for _, pe := range p.events {
		if pe.topic == topic {
			out = append(out, pe.env)
		}
	}

	return out
}

// fakeBlobReader serves blobs from a map and counts reads.
type fakeBlobReader struct {
	objects map[string][]byte
	reads   int
}

func (f *fakeBlobReader) Get(_ context.Context, bucket, key string) ([]byte, error) {
	f.reads++

	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("no object %s/%s", bucket, key)
	}

	return data, nil
}

// setupWorkerStore spins up a migrated PostgreSQL container and returns a
// Store bound to it.
func setupWorkerStore(ctx context.Context, t *testing.T) *storage.Store {
	t.Helper()

	testDB := config.SetupTestDatabase(ctx, t)
	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	store, err := storage.NewStore(&storage.Connection{DB: testDB.Connection})
	require.NoError(t, err)

	return store
}

// newTestTokenCache returns a real cache backed by an in-process redis.
func newTestTokenCache(t *testing.T) *cache.Cache {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return cache.NewWithClient(client)
}

// handleTx runs one handler invocation the way the consume loop does: inside
// a single transaction that commits on nil.
func handleTx(ctx context.Context, store *storage.Store, h Handler, env *event.Envelope) error {
	return store.WithTx(ctx, func(tx *storage.Store) error {
		return h.Handle(ctx, tx, env)
	})
}
