package uploadhttp

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// chunkRequest содержит распарсенные path-параметры запроса на часть.
type chunkRequest struct {
	sessionID string
	idx       int
}

// requireChunkRequest валидирует path-параметры и возвращает заполненную структуру.
func (a *Server) requireChunkRequest(w http.ResponseWriter, r *http.Request) (chunkRequest, bool) {
	req, err := newChunkRequest(r)
	if err != nil {
		http.NotFound(w, r)
		return chunkRequest{}, false
	}

	return req, true
}

// newChunkRequest парсит идентификаторы из URL.
func newChunkRequest(r *http.Request) (chunkRequest, error) {
	sessionID := chi.URLParam(r, "sessionID")
	idxStr := chi.URLParam(r, "idx")
	if sessionID == "" || idxStr == "" {
		return chunkRequest{}, fmt.Errorf("invalid path")
	}

	// Индекс части приходит в десятиричном виде, отрицательные значения запрещены.
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return chunkRequest{}, fmt.Errorf("invalid chunk index: %w", err)
	}
	if idx < 0 {
		return chunkRequest{}, fmt.Errorf("invalid chunk index: must be non-negative")
	}

	return chunkRequest{sessionID: sessionID, idx: idx}, nil
}
