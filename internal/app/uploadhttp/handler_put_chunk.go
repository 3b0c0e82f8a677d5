package uploadhttp

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sir_venger/upload_lite/internal/models"
	"github.com/sir_venger/upload_lite/pkg/httperrors"
	"github.com/sir_venger/upload_lite/pkg/uploadproto"
)

// putChunkResp — тело ответа на принятую часть.
type putChunkResp struct {
	State  string           `json:"state"`
	Index  int              `json:"index"`
	Size   int64            `json:"size"`
	Digest string           `json:"digest"`
	Object *finalObjectResp `json:"object,omitempty"`
}

// finalObjectResp — дескриптор собранного объекта, возвращается вместе с
// последней частью.
type finalObjectResp struct {
	ObjectID  string    `json:"object_id"`
	Size      int64     `json:"size"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"created_at"`
}

// putChunk принимает PUT-запросы на запись части сессии.
func (a *Server) putChunk(w http.ResponseWriter, r *http.Request) {
	req, ok := a.requireChunkRequest(w, r)
	if !ok {
		return
	}

	clientDigest := strings.TrimSpace(r.Header.Get(uploadproto.HeaderChecksum))

	res, err := a.Uploads.UploadChunk(r.Context(), req.sessionID, req.idx, r.Body, clientDigest)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	resp := putChunkResp{
		State:  string(res.State),
		Index:  res.Chunk.Index,
		Size:   res.Chunk.Size,
		Digest: res.Chunk.Digest,
	}
	if res.Object != nil {
		resp.Object = &finalObjectResp{
			ObjectID:  res.Object.ID,
			Size:      res.Object.Size,
			Digest:    res.Object.Digest,
			CreatedAt: res.Object.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if res.State == models.StateFinalized {
		w.WriteHeader(http.StatusCreated)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
