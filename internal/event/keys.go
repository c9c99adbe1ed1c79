package event

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// partSeparator terminates every hashed part. The byte-exact scheme
// (UTF-8 parts, 0x1F after each, lowercase hex output) is a wire contract:
// producers and consumers in any language must derive identical keys for the
// same logical work.
const partSeparator = 0x1f

// Fingerprint returns the SHA-256 hex digest of the given parts, each part
// followed by a unit-separator byte. Used for idempotency keys and pair ids.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{partSeparator})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// SubmittedKey derives the idempotency key for a code.submitted event.
func SubmittedKey(scanID, correlationID string) string {
	return Fingerprint(TypeSubmitted, scanID, correlationID)
}

// NormalizedKey derives the idempotency key for a code.normalized event.
// The checksum makes the key stable across redeliveries of the same file
// content while distinguishing re-uploads under the same file id.
func NormalizedKey(scanID string, fileID int64, checksum string) string {
	return Fingerprint(TypeNormalized, scanID, strconv.FormatInt(fileID, 10), checksum)
}

// PairID derives the deterministic identifier of an unordered file pair.
// File ids are canonicalized (min, max) so both orderings hash identically.
func PairID(scanID string, fileAID, fileBID int64) string {
	if fileAID > fileBID {
		fileAID, fileBID = fileBID, fileAID
	}

	return Fingerprint(scanID, strconv.FormatInt(fileAID, 10), strconv.FormatInt(fileBID, 10))
}

// CandidatesKey derives the idempotency key for a code.candidates event.
func CandidatesKey(pairID string) string {
	return Fingerprint(TypeCandidates, pairID)
}

// ScoredKey derives the idempotency key for the terminal code.scored event.
// One key per scan: the done_emitted latch guarantees a single emission, the
// key guarantees bus-level dedup if the latch winner retries its publish.
func ScoredKey(scanID string) string {
	return Fingerprint(TypeScored, scanID)
}

// DeadLetterKey derives the idempotency key for a code.deadletter event.
func DeadLetterKey(service, scanID, correlationID, errorCode string) string {
	return Fingerprint(TypeDeadLetter, service, scanID, correlationID, errorCode)
}
