package event

type (
	// SubmittedFile describes one uploaded file inside a code.submitted payload.
	SubmittedFile struct {
		FileID    int64   `json:"file_id"`
		Filename  string  `json:"filename"`
		ObjectKey string  `json:"object_key"`
		Checksum  string  `json:"checksum"`
		Language  *string `json:"language"`
		Size      int64   `json:"size"`
	}

	// SubmittedPayload is the payload of a code.submitted event. Exactly one is
	// emitted per scan, after the scan, its files, and its blobs have all been
	// persisted.
	SubmittedPayload struct {
		ScanID        string          `json:"scan_id"`
		ObjectBucket  string          `json:"object_bucket"`
		Files         []SubmittedFile `json:"files"`
		Options       string          `json:"options"`
		SubmittedAtMS int64           `json:"submitted_at_ms"`
	}

	// NormalizedRef points consumers at the cache entries written by the
	// normalizer for one file checksum.
	NormalizedRef struct {
		NormKey   string `json:"redis_norm_key"`
		TokensKey string `json:"redis_tokens_key"`
	}

	// NormalizedPayload is the payload of a code.normalized event, one per file.
	NormalizedPayload struct {
		ScanID        string        `json:"scan_id"`
		FileID        int64         `json:"file_id"`
		ObjectBucket  string        `json:"object_bucket"`
		ObjectKey     string        `json:"object_key"`
		Checksum      string        `json:"checksum"`
		Language      *string       `json:"language"`
		CacheHit      bool          `json:"cache_hit"`
		NormalizedRef NormalizedRef `json:"normalized_ref"`
	}

	// CandidatesPayload is the payload of a code.candidates event, one per
	// unordered file pair. FileAID < FileBID always holds.
	CandidatesPayload struct {
		ScanID    string  `json:"scan_id"`
		PairID    string  `json:"pair_id"`
		FileAID   int64   `json:"file_a_id"`
		FileBID   int64   `json:"file_b_id"`
		ChecksumA string  `json:"checksum_a"`
		ChecksumB string  `json:"checksum_b"`
		LanguageA *string `json:"language_a"`
		LanguageB *string `json:"language_b"`
	}

	// ScoredPayload is the payload of the terminal code.scored event, emitted
	// exactly once per scan by the done_emitted latch winner.
	ScoredPayload struct {
		ScanID        string `json:"scan_id"`
		CompletedAtMS int64  `json:"completed_at_ms"`
		TotalPairs    int    `json:"total_pairs"`
	}

	// DeadLetterPayload summarizes a fatal per-message failure. It is mirrored
	// verbatim into the alerts table before the dead letter is published.
	DeadLetterPayload struct {
		OriginalTopic string `json:"original_topic"`
		OriginalEvent any    `json:"original_event"`
		Error         string `json:"error"`
		Traceback     string `json:"traceback"`
		Partition     *int   `json:"partition,omitempty"`
		Offset        *int64 `json:"offset,omitempty"`
	}
)
