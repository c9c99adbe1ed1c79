package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/plagcode-io/plagcode/internal/api/middleware"
	"github.com/plagcode-io/plagcode/internal/ingress"
)

// multipartMemoryLimit bounds the in-memory part of multipart parsing;
// larger parts spill to temp files.
const multipartMemoryLimit = 8 << 20

// handleStartScan handles POST /api/scan.
//
// Accepts a multipart form with two or more "files" parts and an optional
// "options" field, stages the files, and starts the pipeline. The whole
// request body is capped at MaxUploadSize.
//
// Response: ScanStartedResponse with the new scan id.
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadSize)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("Expected multipart form data: "+err.Error()))

		return
	}

	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	parts := r.MultipartForm.File["files"]
	if len(parts) < 2 {
		WriteErrorResponse(w, r, s.logger, BadRequest("Upload at least 2 files"))

		return
	}

	uploads := make([]ingress.Upload, 0, len(parts))

	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			WriteErrorResponse(w, r, s.logger, BadRequest("Unreadable file part: "+part.Filename))

			return
		}

		content, err := io.ReadAll(f)

		_ = f.Close()

		if err != nil {
			WriteErrorResponse(w, r, s.logger, BadRequest("Unreadable file part: "+part.Filename))

			return
		}

		uploads = append(uploads, ingress.Upload{
			Filename: part.Filename,
			Content:  content,
		})
	}

	options := r.FormValue("options")

	scanID, err := s.submitter.Submit(ctx, uploads, options)
	if err != nil {
		if errors.Is(err, ingress.ErrTooFewFiles) {
			WriteErrorResponse(w, r, s.logger, BadRequest("Upload at least 2 files"))

			return
		}

		s.logger.ErrorContext(ctx, "Failed to start scan",
			"correlation_id", correlationID,
			"error", err.Error(),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to enqueue scan"))

		return
	}

	s.logger.InfoContext(ctx, "Scan started",
		slog.String("correlation_id", correlationID),
		slog.String("scan_id", scanID),
		slog.Int("files", len(uploads)),
	)

	s.writeJSON(w, r, http.StatusOK, ScanStartedResponse{
		ScanID:  scanID,
		Message: "Scan started",
	})
}
