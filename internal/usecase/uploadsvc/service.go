// Package uploadsvc — тонкий координатор загрузок: создание сессий, приём
// частей, статус и abort. Вся механика живёт в реестре, chunk-хранилище и
// движке сборки.
package uploadsvc

import (
	"context"
	"io"

	"github.com/sir_venger/upload_lite/internal/assembler"
	"github.com/sir_venger/upload_lite/internal/chunkstore"
	"github.com/sir_venger/upload_lite/internal/models"
	"github.com/sir_venger/upload_lite/internal/registry"
)

type (
	// StartParams — параметры новой сессии.
	StartParams struct {
		TotalSize int64
		ChunkSize int64
		FileName  string
		OwnerID   string // пустая строка — анонимная загрузка
	}

	// ChunkResult — итог приёма одной части.
	ChunkResult struct {
		State models.CompletionState
		Chunk models.Chunk
		// Object заполнен, когда эта часть оказалась последней и сборка
		// завершилась успешно.
		Object *models.FinalObject
	}

	// Service объединяет операции координатора загрузок.
	Service interface {
		StartUpload(ctx context.Context, p StartParams) (models.UploadSession, error)
		UploadChunk(ctx context.Context, sessionID string, idx int, r io.Reader, clientDigest string) (ChunkResult, error)
		GetStatus(ctx context.Context, sessionID string) (models.Progress, error)
		AbortUpload(ctx context.Context, sessionID string) error
	}
)

type Deps struct {
	Registry  *registry.Registry
	Chunks    chunkstore.Store
	Assembler *assembler.Engine
}

// Uploads — реализация координатора.
type Uploads struct {
	Deps
}

// New конструирует координатор с заданными зависимостями.
func New(deps Deps) *Uploads {
	return &Uploads{Deps: deps}
}

var _ Service = (*Uploads)(nil)

// StartUpload делегирует создание сессии реестру.
func (s *Uploads) StartUpload(ctx context.Context, p StartParams) (models.UploadSession, error) {
	return s.Registry.CreateSession(ctx, p.TotalSize, p.ChunkSize, p.FileName, p.OwnerID)
}

// GetStatus возвращает состояние и счётчики принятых/ожидаемых частей.
func (s *Uploads) GetStatus(_ context.Context, sessionID string) (models.Progress, error) {
	return s.Registry.GetProgress(sessionID)
}
