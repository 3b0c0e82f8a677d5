package chunkstore

import (
	"encoding/json"
	"os"

	"github.com/sir_venger/upload_lite/internal/models"
)

const (
	metaFileName        = "meta.json"
	chunkFilenameFormat = "chunk_%06d"
)

// sessionMeta лежит на диске рядом с частями и агрегирует их метаданные.
type sessionMeta struct {
	SessionID string               `json:"session_id"`
	Chunks    map[int]models.Chunk `json:"chunks"`
}

// readMeta читает метаданные сессии с диска; отсутствие файла — пустая мета.
func readMeta(path string) (sessionMeta, error) {
	var sm sessionMeta

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sessionMeta{Chunks: map[int]models.Chunk{}}, nil
		}
		return sessionMeta{}, err
	}

	if err := json.Unmarshal(b, &sm); err != nil {
		return sessionMeta{}, err
	}
	if sm.Chunks == nil {
		sm.Chunks = map[int]models.Chunk{}
	}

	return sm, nil
}

// writeMeta обновляет запись одной части и сбрасывает мету на диск.
// Вызывается под пер-сессионным мьютексом.
func writeMeta(path, sessionID string, c models.Chunk) error {
	sm, err := readMeta(path)
	if err != nil {
		return err
	}
	sm.SessionID = sessionID
	sm.Chunks[c.Index] = c

	// JSON в удобочитаемом виде: meta.json маленький, а глазами его смотреть приходится.
	b, err := json.MarshalIndent(sm, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, b, 0o644)
}
