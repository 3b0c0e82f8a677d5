package chunkstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sir_venger/upload_lite/internal/models"
	"github.com/sir_venger/upload_lite/pkg/digest"
	"github.com/sir_venger/upload_lite/pkg/keymutex"
)

// Disk хранит части в каталоге на локальном диске: по директории на сессию,
// внутри — файлы chunk_%06d и meta.json.
type Disk struct {
	root  string
	algo  digest.Algo
	locks *keymutex.KeyMutex
}

// NewDisk создаёт дисковое хранилище частей поверх каталога root.
func NewDisk(root string, algo digest.Algo) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk root: %w", err)
	}

	return &Disk{
		root:  root,
		algo:  algo,
		locks: keymutex.New(),
	}, nil
}

var _ Store = (*Disk)(nil)

// PutChunk пишет байты во временный файл, считая дайджест на лету, и под
// пер-сессионным мьютексом публикует часть. Перенос байтов не держит лок,
// чтобы параллельные части одной сессии не тормозили друг друга.
func (d *Disk) PutChunk(ctx context.Context, sessionID string, idx int, r io.Reader, expected int64, clientDigest string) (models.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return models.Chunk{}, err
	}

	dir := d.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.Chunk{}, fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, fmt.Sprintf(chunkFilenameFormat+".*.tmp", idx))
	if err != nil {
		return models.Chunk{}, fmt.Errorf("create temp chunk: %w", err)
	}
	tmpPath := tmp.Name()

	h := d.algo.Hasher()
	// Читаем на один байт больше ожидаемого, чтобы отличить «ровно» от «длиннее».
	n, err := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(r, expected+1))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return models.Chunk{}, fmt.Errorf("write chunk %s/%d: %w", sessionID, idx, err)
	}
	if n != expected {
		_ = os.Remove(tmpPath)
		return models.Chunk{}, fmt.Errorf("chunk %s/%d: got %d bytes, want %d: %w",
			sessionID, idx, n, expected, models.ErrChunkLengthMismatch)
	}

	chunk := models.Chunk{Index: idx, Size: n, Digest: h.Sum()}
	if clientDigest != "" && clientDigest != chunk.Digest {
		_ = os.Remove(tmpPath)
		return models.Chunk{}, fmt.Errorf("chunk %s/%d: client digest %s, server computed %s: %w",
			sessionID, idx, clientDigest, chunk.Digest, models.ErrChecksumMismatch)
	}

	unlock := d.locks.Lock(sessionID)
	defer unlock()

	metaPath := filepath.Join(dir, metaFileName)
	sm, err := readMeta(metaPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return models.Chunk{}, fmt.Errorf("read session meta: %w", err)
	}

	if prev, ok := sm.Chunks[idx]; ok && prev.Digest != chunk.Digest {
		_ = os.Remove(tmpPath)
		return models.Chunk{}, fmt.Errorf("chunk %s/%d already stored with digest %s: %w",
			sessionID, idx, prev.Digest, models.ErrConflictingChunkContent)
	}

	if err := os.Rename(tmpPath, d.chunkPath(sessionID, idx)); err != nil {
		_ = os.Remove(tmpPath)
		return models.Chunk{}, fmt.Errorf("publish chunk: %w", err)
	}

	if err := writeMeta(metaPath, sessionID, chunk); err != nil {
		return models.Chunk{}, fmt.Errorf("write session meta: %w", err)
	}

	return chunk, nil
}

// GetChunk возвращает байты части целиком.
func (d *Disk) GetChunk(ctx context.Context, sessionID string, idx int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := os.ReadFile(d.chunkPath(sessionID, idx))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("chunk %s/%d: %w", sessionID, idx, models.ErrMissingChunk)
		}
		return nil, err
	}

	return b, nil
}

// Open отдаёт поток части; используется сборкой для строго упорядоченного чтения.
func (d *Disk) Open(ctx context.Context, sessionID string, idx int) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(d.chunkPath(sessionID, idx))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("chunk %s/%d: %w", sessionID, idx, models.ErrMissingChunk)
		}
		return nil, err
	}

	return f, nil
}

// DeleteSession удаляет каталог сессии со всеми частями.
func (d *Disk) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := d.locks.Lock(sessionID)
	defer unlock()

	return os.RemoveAll(d.sessionDir(sessionID))
}

// Close дисковому бэкенду не нужен, оставлен ради интерфейса.
func (d *Disk) Close() error { return nil }

func (d *Disk) sessionDir(sessionID string) string {
	return filepath.Join(d.root, sessionID)
}

func (d *Disk) chunkPath(sessionID string, idx int) string {
	return filepath.Join(d.sessionDir(sessionID), fmt.Sprintf(chunkFilenameFormat, idx))
}
