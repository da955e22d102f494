package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/retailpos/pos-backend/internal/shared"
)

const internalMessage = "internal server error"

// Responder maps domain errors onto the JSON envelope.
type Responder struct {
	logger       *slog.Logger
	hideInternal bool
}

// NewResponder builds a Responder. With hideInternal set, 5xx bodies carry a
// generic message instead of the underlying error text.
func NewResponder(logger *slog.Logger, hideInternal bool) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{logger: logger, hideInternal: hideInternal}
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrInactive):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, shared.ErrInsufficientStock),
		errors.Is(err, shared.ErrPaymentMismatch),
		errors.Is(err, shared.ErrAlreadyVoided),
		errors.Is(err, shared.ErrDuplicate),
		errors.As(err, &verrs):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err using the status returned by StatusFor.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		rs.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		if rs.hideInternal {
			message = internalMessage
		}
	}
	Fail(w, status, message)
}
