package event

// Error codes recorded on alerts and dead letters, by origin.
const (
	CodeUploadFailed       = "UPLOAD_FAILED"
	CodeKafkaPublishFailed = "KAFKA_PUBLISH_FAILED"
	CodeNormalizeFailed    = "NORMALIZE_FAILED"
	CodeCandidateFailed    = "CANDIDATE_FAILED"
	CodeScoringFailed      = "SCORING_FAILED"
	CodeUnhandled          = "UNHANDLED"
)
