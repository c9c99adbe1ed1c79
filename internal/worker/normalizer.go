package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/plagcode-io/plagcode/internal/bus"
	"github.com/plagcode-io/plagcode/internal/cache"
	"github.com/plagcode-io/plagcode/internal/event"
	"github.com/plagcode-io/plagcode/internal/similarity"
	"github.com/plagcode-io/plagcode/internal/storage"
)

// Normalizer consumes code.submitted and emits one code.normalized per file.
//
// The normalization cache is content-addressed by checksum and shared across
// scans: a file re-uploaded in a later scan is a cache hit and skips the blob
// read entirely.
type Normalizer struct {
	cache    TokenCache
	blobs    BlobReader
	producer Publisher
	topics   bus.Topics
	bucket   string
}

// NewNormalizer creates the normalizer stage handler.
func NewNormalizer(c TokenCache, blobs BlobReader, producer Publisher, topics bus.Topics, bucket string) *Normalizer {
	return &Normalizer{cache: c, blobs: blobs, producer: producer, topics: topics, bucket: bucket}
}

// Service implements Handler.
func (n *Normalizer) Service() string { return "normalizer-worker" }

// ErrorCode implements Handler.
func (n *Normalizer) ErrorCode() string { return event.CodeNormalizeFailed }

// Handle implements Handler.
func (n *Normalizer) Handle(ctx context.Context, tx *storage.Store, env *event.Envelope) error {
	var payload event.SubmittedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	bucket := payload.ObjectBucket
	if bucket == "" {
		bucket = n.bucket
	}

	if err := tx.MarkNormalizing(ctx, env.ScanID); err != nil {
		return err
	}

	if err := tx.AppendLog(ctx, env.ScanID, fmt.Sprintf("Normalizer: received %d file(s)", len(payload.Files))); err != nil {
		return err
	}

	for _, file := range payload.Files {
		if err := n.normalizeFile(ctx, env, bucket, file); err != nil {
			return err
		}
	}

	return tx.AppendLog(ctx, env.ScanID, "Normalizer: emitted "+event.TypeNormalized)
}

// normalizeFile ensures both cache entries exist for the file's checksum and
// emits the per-file normalized event.
func (n *Normalizer) normalizeFile(ctx context.Context, env *event.Envelope, bucket string, file event.SubmittedFile) error {
	normKey := cache.NormKey(file.Checksum)
	tokensKey := cache.TokensKey(file.Checksum)

	hit, err := n.cache.Has(ctx, normKey, tokensKey)
	if err != nil {
		return err
	}

	if !hit {
		raw, err := n.blobs.Get(ctx, bucket, file.ObjectKey)
		if err != nil {
			return err
		}

		normalized := similarity.Normalize(decodeText(raw))
		tokens := similarity.Tokenize(normalized)

		tokensJSON, err := json.Marshal(tokens)
		if err != nil {
			return fmt.Errorf("marshal tokens for %s: %w", file.Checksum, err)
		}

		if err := n.cache.Set(ctx, normKey, []byte(normalized)); err != nil {
			return err
		}

		if err := n.cache.Set(ctx, tokensKey, tokensJSON); err != nil {
			return err
		}
	}

	key := event.NormalizedKey(env.ScanID, file.FileID, file.Checksum)

	out, err := event.NewEnvelope(event.TypeNormalized, env.ScanID, env.CorrelationID, key, event.NormalizedPayload{
		ScanID:       env.ScanID,
		FileID:       file.FileID,
		ObjectBucket: bucket,
		ObjectKey:    file.ObjectKey,
		Checksum:     file.Checksum,
		Language:     file.Language,
		CacheHit:     hit,
		NormalizedRef: event.NormalizedRef{
			NormKey:   normKey,
			TokensKey: tokensKey,
		},
	})
	if err != nil {
		return err
	}

	return n.producer.Publish(ctx, n.topics.Normalized, out)
}

// decodeText decodes blob bytes as UTF-8, falling back to a lossy single-byte
// (Latin-1) decoding when the bytes are not valid UTF-8. The fallback cannot
// fail, which keeps normalization total over arbitrary input.
func decodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}

	return string(runes)
}
