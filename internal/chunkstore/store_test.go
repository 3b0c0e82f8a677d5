package chunkstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sir_venger/upload_lite/internal/models"
	"github.com/sir_venger/upload_lite/pkg/digest"
)

// backends перечисляет все реализации Store, прогоняемые через общий набор тестов.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	algo, err := digest.New(digest.SHA256)
	if err != nil {
		t.Fatal(err)
	}

	disk, err := NewDisk(t.TempDir(), algo)
	if err != nil {
		t.Fatal(err)
	}

	bdb, err := NewBolt(filepath.Join(t.TempDir(), "chunks.db"), algo)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = bdb.Close() })

	return map[string]Store{"disk": disk, "bolt": bdb}
}

func TestPutGetRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			payload := []byte("0123456789")

			chunk, err := store.PutChunk(ctx, "s1", 0, bytes.NewReader(payload), int64(len(payload)), "")
			if err != nil {
				t.Fatal(err)
			}
			if chunk.Size != int64(len(payload)) || chunk.Digest == "" {
				t.Fatalf("bad chunk meta: %+v", chunk)
			}

			got, err := store.GetChunk(ctx, "s1", 0)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("chunk bytes mismatch: got %q", got)
			}

			rc, err := store.Open(ctx, "s1", 0)
			if err != nil {
				t.Fatal(err)
			}
			streamed, _ := io.ReadAll(rc)
			_ = rc.Close()
			if !bytes.Equal(streamed, payload) {
				t.Fatal("streamed bytes mismatch")
			}
		})
	}
}

func TestPutLengthMismatch(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// Короче ожидаемого.
			_, err := store.PutChunk(ctx, "s1", 0, bytes.NewReader([]byte("abc")), 5, "")
			if !errors.Is(err, models.ErrChunkLengthMismatch) {
				t.Fatalf("short chunk: err = %v, want ErrChunkLengthMismatch", err)
			}

			// Длиннее ожидаемого.
			_, err = store.PutChunk(ctx, "s1", 0, bytes.NewReader([]byte("abcdef")), 5, "")
			if !errors.Is(err, models.ErrChunkLengthMismatch) {
				t.Fatalf("long chunk: err = %v, want ErrChunkLengthMismatch", err)
			}

			// Неудачные попытки не оставляют часть в хранилище.
			if _, err := store.GetChunk(ctx, "s1", 0); !errors.Is(err, models.ErrMissingChunk) {
				t.Fatalf("after failed puts: err = %v, want ErrMissingChunk", err)
			}
		})
	}
}

func TestPutIdempotentRetry(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			payload := []byte("same-bytes")

			first, err := store.PutChunk(ctx, "s1", 3, bytes.NewReader(payload), int64(len(payload)), "")
			if err != nil {
				t.Fatal(err)
			}
			second, err := store.PutChunk(ctx, "s1", 3, bytes.NewReader(payload), int64(len(payload)), "")
			if err != nil {
				t.Fatalf("identical retry must succeed: %v", err)
			}
			if first.Digest != second.Digest {
				t.Fatal("digest changed on retry")
			}
		})
	}
}

func TestPutConflict(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			original := []byte("original--")

			if _, err := store.PutChunk(ctx, "s1", 1, bytes.NewReader(original), 10, ""); err != nil {
				t.Fatal(err)
			}

			_, err := store.PutChunk(ctx, "s1", 1, bytes.NewReader([]byte("different!")), 10, "")
			if !errors.Is(err, models.ErrConflictingChunkContent) {
				t.Fatalf("err = %v, want ErrConflictingChunkContent", err)
			}

			// Исходная часть не тронута.
			got, err := store.GetChunk(ctx, "s1", 1)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, original) {
				t.Fatal("original chunk was overwritten by conflicting put")
			}
		})
	}
}

func TestDeleteSession(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for idx := 0; idx < 3; idx++ {
				if _, err := store.PutChunk(ctx, "gone", idx, bytes.NewReader([]byte("xx")), 2, ""); err != nil {
					t.Fatal(err)
				}
			}
			// Чужая сессия не должна пострадать.
			if _, err := store.PutChunk(ctx, "kept", 0, bytes.NewReader([]byte("yy")), 2, ""); err != nil {
				t.Fatal(err)
			}

			if err := store.DeleteSession(ctx, "gone"); err != nil {
				t.Fatal(err)
			}

			for idx := 0; idx < 3; idx++ {
				if _, err := store.GetChunk(ctx, "gone", idx); !errors.Is(err, models.ErrMissingChunk) {
					t.Fatalf("chunk %d survived delete: %v", idx, err)
				}
			}
			if _, err := store.GetChunk(ctx, "kept", 0); err != nil {
				t.Fatalf("unrelated session lost its chunk: %v", err)
			}
		})
	}
}

func TestConcurrentPutsSameSession(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			const chunks = 16
			var wg sync.WaitGroup
			errs := make([]error, chunks)
			for idx := 0; idx < chunks; idx++ {
				wg.Add(1)
				go func(idx int) {
					defer wg.Done()
					payload := bytes.Repeat([]byte{byte(idx)}, 128)
					_, errs[idx] = store.PutChunk(ctx, "par", idx, bytes.NewReader(payload), 128, "")
				}(idx)
			}
			wg.Wait()

			for idx, err := range errs {
				if err != nil {
					t.Fatalf("chunk %d: %v", idx, err)
				}
			}
			for idx := 0; idx < chunks; idx++ {
				got, err := store.GetChunk(ctx, "par", idx)
				if err != nil {
					t.Fatal(err)
				}
				if !bytes.Equal(got, bytes.Repeat([]byte{byte(idx)}, 128)) {
					t.Fatalf("chunk %d corrupted by concurrent puts", idx)
				}
			}
		})
	}
}

func TestPutChunkClientDigest(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			algo, _ := digest.New(digest.SHA256)
			payload := []byte("verified payload")

			// Расхождение с клиентским дайджестом: ничего не опубликовано.
			_, err := store.PutChunk(ctx, "cd", 0, bytes.NewReader(payload), int64(len(payload)), "sha256:deadbeef")
			if !errors.Is(err, models.ErrChecksumMismatch) {
				t.Fatalf("err = %v, want ErrChecksumMismatch", err)
			}
			if _, err := store.GetChunk(ctx, "cd", 0); !errors.Is(err, models.ErrMissingChunk) {
				t.Fatal("rejected chunk was published")
			}

			// Последующая корректная запись того же индекса проходит.
			chunk, err := store.PutChunk(ctx, "cd", 0, bytes.NewReader(payload), int64(len(payload)), algo.Sum(payload))
			if err != nil {
				t.Fatal(err)
			}
			if chunk.Digest != algo.Sum(payload) {
				t.Fatalf("digest = %s", chunk.Digest)
			}
		})
	}
}
