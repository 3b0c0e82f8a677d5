package session

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/sir_venger/upload_lite/internal/models"
)

// ListSessions возвращает все сессии вместе с принятыми частями.
// Используется реестром при старте сервиса для восстановления состояния.
func (s *PGStore) ListSessions(ctx context.Context) ([]models.SessionRecord, error) {
	sqlStr, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select("id", "owner_id", "file_name", "total_size", "chunk_size", "state", "created_at", "updated_at").
		From(sessionsTable).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sessions select: %w", err)
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	byID := map[string]*models.SessionRecord{}
	var order []string
	for rows.Next() {
		var rec models.SessionRecord
		var state string
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.FileName, &rec.TotalSize,
			&rec.ChunkSize, &state, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		rec.State = models.CompletionState(state)
		rec.Chunks = map[int]models.Chunk{}
		byID[rec.ID] = &rec
		order = append(order, rec.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadChunks(ctx, byID); err != nil {
		return nil, err
	}

	out := make([]models.SessionRecord, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// loadChunks дочитывает строки частей одним запросом, без N+1.
func (s *PGStore) loadChunks(ctx context.Context, byID map[string]*models.SessionRecord) error {
	if len(byID) == 0 {
		return nil
	}

	sqlStr, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select("session_id", "idx", "size", "digest").
		From(chunksTable).
		ToSql()
	if err != nil {
		return fmt.Errorf("build chunks select: %w", err)
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID string
		var c models.Chunk
		if err := rows.Scan(&sessionID, &c.Index, &c.Size, &c.Digest); err != nil {
			return fmt.Errorf("scan chunk row: %w", err)
		}
		if rec, ok := byID[sessionID]; ok {
			rec.Chunks[c.Index] = c
		}
	}

	return rows.Err()
}
