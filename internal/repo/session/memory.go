package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sir_venger/upload_lite/internal/models"
)

// MemoryStore держит bookkeeping-строки в оперативной памяти; удобно для тестов
// и для запуска без Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionRecord
}

// NewMemoryStore создаёт пустое in-memory хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]models.SessionRecord{}}
}

// SaveSession записывает (или обновляет) строку сессии целиком.
func (s *MemoryStore) SaveSession(_ context.Context, rec models.SessionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("session id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.sessions[rec.ID]; ok && rec.Chunks == nil {
		rec.Chunks = prev.Chunks
	}
	if rec.Chunks == nil {
		rec.Chunks = map[int]models.Chunk{}
	}
	s.sessions[rec.ID] = rec.Clone()
	return nil
}

// SaveChunk добавляет строку принятой части.
func (s *MemoryStore) SaveChunk(_ context.Context, sessionID string, c models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrUnknownSession)
	}
	rec.Chunks[c.Index] = c
	s.sessions[sessionID] = rec
	return nil
}

// UpdateState меняет состояние сессии.
func (s *MemoryStore) UpdateState(_ context.Context, sessionID string, state models.CompletionState, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrUnknownSession)
	}
	rec.State = state
	rec.UpdatedAt = at
	s.sessions[sessionID] = rec
	return nil
}

// DeleteSession удаляет сессию вместе с частями (каскад, как в Postgres).
func (s *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// ListSessions возвращает все строки; используется реестром при старте.
func (s *MemoryStore) ListSessions(_ context.Context) ([]models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		out = append(out, rec.Clone())
	}
	return out, nil
}

// Close in-memory хранилищу не нужен.
func (s *MemoryStore) Close() {}
