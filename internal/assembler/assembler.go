// Package assembler собирает финальный объект из принятых частей: читает их
// строго по порядку индексов, стримит в конечное хранилище со сквозным
// дайджестом и атомарно коммитит результат.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sir_venger/upload_lite/internal/chunkstore"
	"github.com/sir_venger/upload_lite/internal/models"
	"github.com/sir_venger/upload_lite/internal/objectstore"
	"github.com/sir_venger/upload_lite/internal/registry"
	"github.com/sir_venger/upload_lite/pkg/digest"
)

const defaultPrefetch = 4

// Engine — движок сборки. Запускается только для сессий в ReadyToAssemble;
// переход в Assembling выполняет ровно один вызывающий.
type Engine struct {
	Registry *registry.Registry
	Chunks   chunkstore.Store
	Objects  objectstore.Store
	Algo     digest.Algo
	// Prefetch ограничивает параллельную подкачку частей; 0 — значение по умолчанию.
	Prefetch int
}

// Assemble выполняет полный протокол сборки для sessionID.
// На любой ошибке после захвата перехода сессия уходит в Failed, части
// остаются на месте, staging-артефакт удаляется.
func (e *Engine) Assemble(ctx context.Context, sessionID string) (models.FinalObject, error) {
	info, err := e.Registry.BeginAssembly(ctx, sessionID)
	if err != nil {
		return models.FinalObject{}, err
	}

	obj, err := e.assemble(ctx, info)
	if err != nil {
		if finErr := e.Registry.FinishAssembly(ctx, sessionID, nil); finErr != nil {
			return models.FinalObject{}, errors.Join(err, finErr)
		}
		return models.FinalObject{}, err
	}

	if err := e.Registry.FinishAssembly(ctx, sessionID, &obj); err != nil {
		return models.FinalObject{}, err
	}

	// Части больше не нужны; bookkeeping-строки остаются до сметания сессии.
	if err := e.Chunks.DeleteSession(ctx, sessionID); err != nil {
		return obj, fmt.Errorf("object %s committed, chunk cleanup failed: %w", obj.ID, err)
	}

	return obj, nil
}

// assemble — шаги 2-5 протокола: упорядоченное чтение, стриминг, проверка
// длины, коммит.
func (e *Engine) assemble(ctx context.Context, info models.UploadSession) (models.FinalObject, error) {
	tempID := uuid.NewString()

	dst, err := e.Objects.StageWrite(ctx, tempID)
	if err != nil {
		return models.FinalObject{}, fmt.Errorf("stage write: %w", err)
	}

	written, sum, err := e.streamChunks(ctx, info, dst)

	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written != info.TotalSize {
		err = fmt.Errorf("assembled %d bytes, declared %d: %w",
			written, info.TotalSize, models.ErrSizeMismatch)
	}
	if err != nil {
		_ = e.Objects.DiscardStaged(ctx, tempID)
		return models.FinalObject{}, err
	}

	obj := models.FinalObject{
		ID:        uuid.NewString(),
		Size:      written,
		Digest:    sum,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.Objects.CommitStaged(ctx, tempID, obj.ID); err != nil {
		_ = e.Objects.DiscardStaged(ctx, tempID)
		return models.FinalObject{}, fmt.Errorf("commit: %w", err)
	}

	return obj, nil
}

// streamChunks читает части по порядку индексов и пишет их в dst, накапливая
// сквозной дайджест. Подкачка частей идёт параллельно через пайпы, запись —
// строго последовательно.
func (e *Engine) streamChunks(ctx context.Context, info models.UploadSession, dst io.Writer) (int64, string, error) {
	total := info.ExpectedChunks()

	prefetch := e.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, egCtx := errgroup.WithContext(streamCtx)
	sem := make(chan struct{}, prefetch)

	pipes := make([]*io.PipeReader, total)

	// Подкачка: каждая горутина льёт свою часть в pipeWriter.
	for idx := 0; idx < total; idx++ {
		idx := idx

		pr, pw := io.Pipe()
		pipes[idx] = pr

		eg.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-egCtx.Done():
				_ = pw.CloseWithError(egCtx.Err())
				return egCtx.Err()
			}
			defer func() { <-sem }()

			rc, err := e.Chunks.Open(egCtx, info.ID, idx)
			if err != nil {
				_ = pw.CloseWithError(err)
				return err
			}
			defer rc.Close()

			_, copyErr := io.Copy(pw, rc)
			_ = pw.CloseWithError(copyErr)
			return copyErr
		})
	}

	hasher := e.Algo.Hasher()
	out := io.MultiWriter(dst, hasher)

	// Писатель: вычитывает пайпы в порядке индексов.
	var written int64
	for idx := 0; idx < total; idx++ {
		n, err := io.Copy(out, pipes[idx])
		written += n
		if err != nil {
			cancel()
			for j := idx; j < total; j++ {
				_ = pipes[j].CloseWithError(err)
			}
			_ = eg.Wait()
			return written, "", fmt.Errorf("chunk %d: %w", idx, err)
		}
		_ = pipes[idx].Close()
	}

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return written, "", err
	}

	return written, hasher.Sum(), nil
}
