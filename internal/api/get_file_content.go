package api

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/plagcode-io/plagcode/internal/api/middleware"
	"github.com/plagcode-io/plagcode/internal/storage"
)

// handleFileContent handles GET /api/files/{scanID}/{filename}.
//
// Serves the originally uploaded bytes back as text for the side-by-side
// comparison view. Decoding is best effort: invalid UTF-8 falls back to a
// single-byte decoding so the endpoint never fails on binary-ish uploads.
func (s *Server) handleFileContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)
	scanID := r.PathValue("scanID")
	filename := r.PathValue("filename")

	file, err := s.store.GetFileByScanAndName(ctx, scanID, filename)
	if errors.Is(err, storage.ErrFileNotFound) {
		WriteErrorResponse(w, r, s.logger, NotFound("File not found"))

		return
	}

	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load file row",
			"correlation_id", correlationID,
			"scan_id", scanID,
			"filename", filename,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to load file"))

		return
	}

	data, err := s.blobs.Get(ctx, s.bucket, file.ObjectKey)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch file content",
			"correlation_id", correlationID,
			"scan_id", scanID,
			"object_key", file.ObjectKey,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to fetch file content"))

		return
	}

	s.writeJSON(w, r, http.StatusOK, FileContentResponse{Content: decodeContent(data)})
}

// decodeContent decodes bytes as UTF-8, falling back to a lossy single-byte
// decoding when the bytes are not valid UTF-8.
func decodeContent(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}

	return string(runes)
}
