package uploadhttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sir_venger/upload_lite/pkg/httperrors"
)

// deleteUpload отменяет сессию. Если идёт сборка, обработчик дожидается её
// завершения и только затем удаляет сессию.
func (a *Server) deleteUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := a.Uploads.AbortUpload(r.Context(), sessionID); err != nil {
		httperrors.Write(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
