package httperrors

import (
	"errors"
	"net/http"

	"github.com/sir_venger/upload_lite/internal/models"
)

// Write транслирует доменные ошибки в HTTP-статусы.
func Write(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnknownSession):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidSessionParameters),
		errors.Is(err, models.ErrChunkIndexOutOfRange),
		errors.Is(err, models.ErrChunkLengthMismatch):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, models.ErrConflictingChunkContent),
		errors.Is(err, models.ErrChecksumMismatch),
		errors.Is(err, models.ErrSessionNotMutable),
		errors.Is(err, models.ErrAlreadyAssembling):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
