package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/framecmp/framecmp/internal/compare"
	"github.com/framecmp/framecmp/internal/media"
	"github.com/framecmp/framecmp/internal/pipeline"
	"github.com/framecmp/framecmp/internal/session"
	"github.com/framecmp/framecmp/internal/similarity"
)

var errUploadTooLarge = errors.New("upload too large")

// apiError is a classified failure ready to be written as JSON or shown in
// the page.
type apiError struct {
	Status  int
	Code    string
	Message string
	// Warning marks conditions that skip comparison rather than break it.
	Warning bool
}

func classify(err error) apiError {
	e := apiError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: err.Error()}

	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, media.ErrFileNotFound):
		e.Status, e.Code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, errUploadTooLarge):
		e.Status, e.Code = http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE"
	case errors.Is(err, session.ErrBadUpload):
		e.Status, e.Code = http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, session.ErrNotReady):
		e.Status, e.Code = http.StatusConflict, "NOT_READY"
	case errors.Is(err, pipeline.ErrDecodeOpen):
		e.Status, e.Code = http.StatusUnprocessableEntity, "DECODE_OPEN_ERROR"
	case errors.Is(err, pipeline.ErrEmptyExtraction):
		e.Status, e.Code, e.Warning = http.StatusUnprocessableEntity, "EMPTY_EXTRACTION", true
	case errors.Is(err, compare.ErrIndexOutOfRange):
		e.Status, e.Code = http.StatusBadRequest, "INDEX_OUT_OF_RANGE"
	case errors.Is(err, similarity.ErrShapeMismatch), errors.Is(err, similarity.ErrImageTooSmall):
		e.Status, e.Code = http.StatusUnprocessableEntity, "SHAPE_MISMATCH"
	case errors.Is(err, similarity.ErrLoad):
		e.Code = "LOAD_ERROR"
	}
	return e
}

// failureCode maps the reason stored with a failed or empty session to the
// code its creation request was answered with.
func failureCode(reason string) string {
	switch reason {
	case session.ReasonDecodeOpen:
		return "DECODE_OPEN_ERROR"
	case session.ReasonEmptyExtraction:
		return "EMPTY_EXTRACTION"
	case session.ReasonBadUpload:
		return "BAD_REQUEST"
	case session.ReasonInterrupted:
		return "INTERRUPTED"
	default:
		return "INTERNAL_ERROR"
	}
}

func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	writeSessionError(w, logger, err, "")
}

func writeSessionError(w http.ResponseWriter, logger *slog.Logger, err error, sessionID string) {
	e := classify(err)
	if e.Status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", e.Code, "error", err)
	} else {
		logger.Warn("request rejected", "code", e.Code, "error", err)
	}
	WriteJSON(w, e.Status, ErrorResponse{Error: e.Message, Code: e.Code, SessionID: sessionID})
}
