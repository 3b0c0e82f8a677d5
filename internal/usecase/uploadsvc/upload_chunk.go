package uploadsvc

import (
	"context"
	"errors"
	"io"

	"github.com/sir_venger/upload_lite/internal/models"
)

// UploadChunk принимает одну часть: сохраняет байты со серверным дайджестом,
// отмечает часть в реестре и, если сессия стала ReadyToAssemble, синхронно
// запускает сборку. clientDigest (если клиент его прислал) сверяется с
// пересчитанным на сервере — клиентскому значению само по себе не верим.
func (s *Uploads) UploadChunk(ctx context.Context, sessionID string, idx int, r io.Reader, clientDigest string) (ChunkResult, error) {
	// Дешёвая предпроверка до переноса байтов: неизвестная сессия, индекс
	// вне диапазона и немутабельное состояние отсекаются сразу.
	expected, err := s.Registry.ExpectedChunk(sessionID, idx)
	if err != nil {
		return ChunkResult{}, err
	}

	// Перенос байтов и хеширование идут без пер-сессионного лока. Хранилище
	// сверяет clientDigest с пересчитанным и при расхождении ничего не публикует.
	chunk, err := s.Chunks.PutChunk(ctx, sessionID, idx, r, expected, clientDigest)
	if err != nil {
		return ChunkResult{}, err
	}

	state, err := s.Registry.RecordChunkAccepted(ctx, sessionID, idx, chunk.Size, chunk.Digest)
	if err != nil {
		return ChunkResult{}, err
	}

	res := ChunkResult{State: state, Chunk: chunk}
	if state != models.StateReadyToAssemble {
		return res, nil
	}

	obj, err := s.Assembler.Assemble(ctx, sessionID)
	switch {
	case err == nil:
		res.State = models.StateFinalized
		res.Object = &obj
	case errors.Is(err, models.ErrAlreadyAssembling):
		// Параллельный ретрай последней части уже запустил сборку.
		res.State = models.StateAssembling
	default:
		return ChunkResult{}, err
	}

	return res, nil
}

// AbortUpload удаляет сессию и её части. Идущую сборку abort не прерывает:
// дожидается её исхода и зачищает то, что осталось.
func (s *Uploads) AbortUpload(ctx context.Context, sessionID string) error {
	if err := s.Registry.AwaitAssembly(ctx, sessionID); err != nil {
		return err
	}

	if err := s.Registry.DeleteSession(ctx, sessionID); err != nil {
		return err
	}

	return s.Chunks.DeleteSession(ctx, sessionID)
}
