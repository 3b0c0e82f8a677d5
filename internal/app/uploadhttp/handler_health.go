package uploadhttp

import (
	"encoding/json"
	"net/http"
)

// healthResp — payload ответа /health.
type healthResp struct {
	OK bool `json:"ok"`
}

// health — простой liveness-ответ для балансировщика.
func (a *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResp{OK: true})
}
