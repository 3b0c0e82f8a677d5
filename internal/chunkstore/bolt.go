package chunkstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sir_venger/upload_lite/internal/models"
	"github.com/sir_venger/upload_lite/pkg/digest"
)

var (
	chunkDataBucket = []byte("chunk_data")
	chunkMetaBucket = []byte("chunk_meta")
)

// Bolt хранит части в одном файле BoltDB: байты в бакете chunk_data,
// метаданные (JSON) в chunk_meta, ключи вида "<sessionID>/<idx>".
// Удобен для единственного узла без отдельного каталога данных.
type Bolt struct {
	db   *bolt.DB
	algo digest.Algo
}

// NewBolt открывает (или создаёт) файл хранилища частей.
func NewBolt(path string, algo digest.Algo) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt chunk store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(chunkDataBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(chunkMetaBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt buckets: %w", err)
	}

	return &Bolt{db: db, algo: algo}, nil
}

var _ Store = (*Bolt)(nil)

// PutChunk вычитывает часть в память (bbolt принимает только []byte),
// затем публикует её в одной write-транзакции.
func (b *Bolt) PutChunk(ctx context.Context, sessionID string, idx int, r io.Reader, expected int64, clientDigest string) (models.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return models.Chunk{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, expected+1))
	if err != nil {
		return models.Chunk{}, fmt.Errorf("read chunk %s/%d: %w", sessionID, idx, err)
	}
	if int64(len(data)) != expected {
		return models.Chunk{}, fmt.Errorf("chunk %s/%d: got %d bytes, want %d: %w",
			sessionID, idx, len(data), expected, models.ErrChunkLengthMismatch)
	}

	chunk := models.Chunk{Index: idx, Size: expected, Digest: b.algo.Sum(data)}
	if clientDigest != "" && clientDigest != chunk.Digest {
		return models.Chunk{}, fmt.Errorf("chunk %s/%d: client digest %s, server computed %s: %w",
			sessionID, idx, clientDigest, chunk.Digest, models.ErrChecksumMismatch)
	}
	key := chunkKey(sessionID, idx)

	err = b.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(chunkMetaBucket)
		if raw := meta.Get(key); raw != nil {
			var prev models.Chunk
			if err := json.Unmarshal(raw, &prev); err != nil {
				return fmt.Errorf("decode chunk meta: %w", err)
			}
			if prev.Digest != chunk.Digest {
				return fmt.Errorf("chunk %s/%d already stored with digest %s: %w",
					sessionID, idx, prev.Digest, models.ErrConflictingChunkContent)
			}
			// Идентичный повтор: перезаписываем молча, это ретрай сети.
		}

		raw, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if err := meta.Put(key, raw); err != nil {
			return err
		}
		return tx.Bucket(chunkDataBucket).Put(key, data)
	})
	if err != nil {
		return models.Chunk{}, err
	}

	return chunk, nil
}

// GetChunk возвращает байты части либо models.ErrMissingChunk.
func (b *Bolt) GetChunk(ctx context.Context, sessionID string, idx int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(chunkDataBucket).Get(chunkKey(sessionID, idx))
		if raw == nil {
			return fmt.Errorf("chunk %s/%d: %w", sessionID, idx, models.ErrMissingChunk)
		}
		out = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Open отдаёт поток поверх скопированных из транзакции байтов.
func (b *Bolt) Open(ctx context.Context, sessionID string, idx int) (io.ReadCloser, error) {
	data, err := b.GetChunk(ctx, sessionID, idx)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// DeleteSession удаляет все части сессии курсором по префиксу ключа.
func (b *Bolt) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := []byte(sessionID + "/")
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{chunkDataBucket, chunkMetaBucket} {
			c := tx.Bucket(name).Cursor()
			for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Close закрывает файл базы.
func (b *Bolt) Close() error { return b.db.Close() }

func chunkKey(sessionID string, idx int) []byte {
	return []byte(fmt.Sprintf("%s/%012d", sessionID, idx))
}
