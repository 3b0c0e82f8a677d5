// Package chunkstore хранит байты частей и их метаданные в разрезе сессии.
// Запись write-once: повторная часть с тем же дайджестом тихо перезаписывается
// (повторённая сетевыми ретраями запись), с другим — отклоняется.
package chunkstore

import (
	"context"
	"io"

	"github.com/sir_venger/upload_lite/internal/models"
)

// Store — durable-хранилище частей одной сессии.
type Store interface {
	// PutChunk сохраняет часть, считая дайджест на лету. expected — ожидаемая
	// длина в байтах; поток длиннее или короче отклоняется с
	// models.ErrChunkLengthMismatch ещё до обращения к реестру. Непустой
	// clientDigest сверяется с вычисленным: при расхождении часть не
	// публикуется и возвращается models.ErrChecksumMismatch.
	PutChunk(ctx context.Context, sessionID string, idx int, r io.Reader, expected int64, clientDigest string) (models.Chunk, error)

	// GetChunk возвращает байты части либо models.ErrMissingChunk.
	GetChunk(ctx context.Context, sessionID string, idx int) ([]byte, error)

	// Open возвращает поток части для сборки, читающей по порядку индексов.
	Open(ctx context.Context, sessionID string, idx int) (io.ReadCloser, error)

	// DeleteSession удаляет все части сессии; вызывается после успешной
	// финализации либо при abort/expiry.
	DeleteSession(ctx context.Context, sessionID string) error

	// Close освобождает ресурсы бэкенда.
	Close() error
}
