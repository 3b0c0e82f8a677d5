package session

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/sir_venger/upload_lite/internal/models"
)

// SaveSession записывает (или обновляет) строку сессии.
func (s *PGStore) SaveSession(ctx context.Context, rec models.SessionRecord) error {
	sqlStr, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Insert(sessionsTable).
		Columns("id", "owner_id", "file_name", "total_size", "chunk_size", "state", "created_at", "updated_at").
		Values(rec.ID, rec.OwnerID, rec.FileName, rec.TotalSize, rec.ChunkSize, string(rec.State), rec.CreatedAt, rec.UpdatedAt).
		Suffix(`
			ON CONFLICT (id) DO UPDATE
			SET state      = EXCLUDED.state,
				updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build session upsert: %w", err)
	}

	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("exec session upsert: %w", err)
	}

	return nil
}

// SaveChunk добавляет строку принятой части. Повтор того же индекса с тем же
// дайджестом — штатный ретрай, upsert его сглаживает.
func (s *PGStore) SaveChunk(ctx context.Context, sessionID string, c models.Chunk) error {
	sqlStr, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Insert(chunksTable).
		Columns("session_id", "idx", "size", "digest").
		Values(sessionID, c.Index, c.Size, c.Digest).
		Suffix(`
			ON CONFLICT (session_id, idx) DO UPDATE
			SET size   = EXCLUDED.size,
				digest = EXCLUDED.digest`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build chunk upsert: %w", err)
	}

	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("exec chunk upsert: %w", err)
	}

	return nil
}

// UpdateState меняет только состояние и отметку времени.
func (s *PGStore) UpdateState(ctx context.Context, sessionID string, state models.CompletionState, at time.Time) error {
	sqlStr, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Update(sessionsTable).
		Set("state", string(state)).
		Set("updated_at", at).
		Where(sq.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build state update: %w", err)
	}

	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("exec state update: %w", err)
	}

	return nil
}

// DeleteSession удаляет строку сессии; строки частей снимает каскад FK.
func (s *PGStore) DeleteSession(ctx context.Context, sessionID string) error {
	sqlStr, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Delete(sessionsTable).
		Where(sq.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build session delete: %w", err)
	}

	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("exec session delete: %w", err)
	}

	return nil
}
