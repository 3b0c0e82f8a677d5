package uploadhttp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sir_venger/upload_lite/pkg/httperrors"
)

// statusResp — тело ответа со сводкой по сессии.
type statusResp struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Accepted  int    `json:"accepted"`
	Expected  int    `json:"expected"`
}

// getStatus возвращает состояние сессии и счётчики частей.
func (a *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	p, err := a.Uploads.GetStatus(r.Context(), sessionID)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResp{
		SessionID: sessionID,
		State:     string(p.State),
		Accepted:  p.Accepted,
		Expected:  p.Expected,
	})
}
