// Package uploadclient — HTTP-клиент сервиса возобновляемой загрузки.
package uploadclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sir_venger/upload_lite/pkg/uploadproto"
)

// StartRequest — параметры новой сессии загрузки.
type StartRequest struct {
	TotalSize int64  `json:"total_size"`
	ChunkSize int64  `json:"chunk_size"`
	FileName  string `json:"file_name"`
}

// Session — параметры открытой сессии, как их вернул сервер.
type Session struct {
	SessionID string `json:"session_id"`
	TotalSize int64  `json:"total_size"`
	ChunkSize int64  `json:"chunk_size"`
	Chunks    int    `json:"chunks"`
}

// ChunkReceipt — результат принятой части.
type ChunkReceipt struct {
	State  string       `json:"state"`
	Index  int          `json:"index"`
	Size   int64        `json:"size"`
	Digest string       `json:"digest"`
	Object *FinalObject `json:"object,omitempty"`
}

// FinalObject — дескриптор собранного объекта.
type FinalObject struct {
	ObjectID  string    `json:"object_id"`
	Size      int64     `json:"size"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"created_at"`
}

// Status — сводка по сессии.
type Status struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Accepted  int    `json:"accepted"`
	Expected  int    `json:"expected"`
}

// PutChunkRequest описывает одну отправляемую часть.
type PutChunkRequest struct {
	SessionID string
	Index     int
	Reader    io.Reader
	Size      int64
	Digest    string
	Total     int
}

type Client interface {
	// Start открыть новую сессию загрузки
	Start(ctx context.Context, baseURL string, req StartRequest) (Session, error)
	// PutChunk отправить часть файла в рамках сессии
	PutChunk(ctx context.Context, baseURL string, req PutChunkRequest) (ChunkReceipt, error)
	// Status запросить состояние сессии
	Status(ctx context.Context, baseURL, sessionID string) (Status, error)
	// Abort отменить сессию и удалить накопленные части
	Abort(ctx context.Context, baseURL, sessionID string) error
}

type httpClient struct {
	c *http.Client
}

// New создаёт HTTP-клиент по умолчанию.
func New() Client {
	return &httpClient{
		c: &http.Client{},
	}
}

// Start открывает сессию загрузки.
func (h *httpClient) Start(ctx context.Context, baseURL string, req StartRequest) (Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Session{}, err
	}

	u := fmt.Sprintf(uploadproto.UploadsPath, baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return Session{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.c.Do(httpReq)
	if err != nil {
		return Session{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return Session{}, fmt.Errorf("upload start failed: %s", readError(resp))
	}

	var out Session
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Session{}, err
	}
	return out, nil
}

// PutChunk загружает одну часть и возвращает квитанцию сервера.
func (h *httpClient) PutChunk(ctx context.Context, baseURL string, req PutChunkRequest) (ChunkReceipt, error) {
	u := fmt.Sprintf(uploadproto.ChunkPathFormat, baseURL, req.SessionID, req.Index)

	body := req.Reader
	var bar *progressBar
	if body != nil {
		bar = newProgressBar(
			fmt.Sprintf("Uploading %s chunk %d/%d", req.SessionID, req.Index+1, req.Total),
			req.Size,
		)
		body = io.TeeReader(req.Reader, progressWriter{bar: bar})
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, u, body)
	if err != nil {
		bar.Fail(err)
		return ChunkReceipt{}, err
	}
	httpReq.Header.Set("Content-Length", strconv.FormatInt(req.Size, 10))
	if req.Digest != "" {
		httpReq.Header.Set(uploadproto.HeaderChecksum, req.Digest)
	}

	resp, err := h.c.Do(httpReq)
	if err != nil {
		bar.Fail(err)
		return ChunkReceipt{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		err = fmt.Errorf("chunk PUT failed: %s", readError(resp))
		bar.Fail(err)
		return ChunkReceipt{}, err
	}

	var out ChunkReceipt
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		bar.Fail(err)
		return ChunkReceipt{}, err
	}

	bar.Finish()
	return out, nil
}

// Status возвращает сводку по сессии.
func (h *httpClient) Status(ctx context.Context, baseURL, sessionID string) (Status, error) {
	u := fmt.Sprintf(uploadproto.SessionPath, baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Status{}, err
	}

	resp, err := h.c.Do(req)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("status GET failed: %s", readError(resp))
	}

	var out Status
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Status{}, err
	}
	return out, nil
}

// Abort отменяет сессию.
func (h *httpClient) Abort(ctx context.Context, baseURL, sessionID string) error {
	u := fmt.Sprintf(uploadproto.SessionPath, baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}

	resp, err := h.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("abort failed: %s", readError(resp))
	}
	return nil
}

// readError вытаскивает тело ошибки, чтобы показать пользователю причину, а не только статус.
func readError(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := string(bytes.TrimSpace(b))
	if msg == "" {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, msg)
}
