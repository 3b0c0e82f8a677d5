package uploadhttp

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sir_venger/upload_lite/internal/usecase/uploadsvc"
	"github.com/sir_venger/upload_lite/pkg/httperrors"
	"github.com/sir_venger/upload_lite/pkg/uploadproto"
)

// postUploadReq — тело запроса на открытие сессии.
type postUploadReq struct {
	TotalSize int64  `json:"total_size"`
	ChunkSize int64  `json:"chunk_size"`
	FileName  string `json:"file_name"`
}

// postUploadResp — тело ответа с параметрами открытой сессии.
type postUploadResp struct {
	SessionID string `json:"session_id"`
	TotalSize int64  `json:"total_size"`
	ChunkSize int64  `json:"chunk_size"`
	Chunks    int    `json:"chunks"`
}

// postUpload открывает новую сессию загрузки.
func (a *Server) postUpload(w http.ResponseWriter, r *http.Request) {
	var req postUploadReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if a.maxChunkSize > 0 && req.ChunkSize > a.maxChunkSize {
		http.Error(w, "chunk size exceeds server limit", http.StatusUnprocessableEntity)
		return
	}

	owner := strings.TrimSpace(r.Header.Get(uploadproto.HeaderOwnerID))

	info, err := a.Uploads.StartUpload(r.Context(), uploadsvc.StartParams{
		TotalSize: req.TotalSize,
		ChunkSize: req.ChunkSize,
		FileName:  req.FileName,
		OwnerID:   owner,
	})
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(postUploadResp{
		SessionID: info.ID,
		TotalSize: info.TotalSize,
		ChunkSize: info.ChunkSize,
		Chunks:    info.ExpectedChunks(),
	})
}
