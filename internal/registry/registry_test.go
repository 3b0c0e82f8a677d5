package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sir_venger/upload_lite/internal/models"
	sessionrepo "github.com/sir_venger/upload_lite/internal/repo/session"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(sessionrepo.NewMemoryStore())
}

func TestCreateSessionValidation(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	cases := []struct {
		name         string
		total, chunk int64
		filename     string
	}{
		{"zero total", 0, 1, "a.bin"},
		{"zero chunk", 10, 0, "a.bin"},
		{"negative total", -5, 1, "a.bin"},
		{"chunk larger than file", 5, 10, "a.bin"},
		{"empty filename", 10, 3, "  "},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := r.CreateSession(ctx, c.total, c.chunk, c.filename, "")
			if !errors.Is(err, models.ErrInvalidSessionParameters) {
				t.Fatalf("err = %v, want ErrInvalidSessionParameters", err)
			}
		})
	}

	info, err := r.CreateSession(ctx, 10, 3, "report.pdf", "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if info.ExpectedChunks() != 4 {
		t.Fatalf("ExpectedChunks = %d, want 4", info.ExpectedChunks())
	}
	if st, _ := r.GetState(info.ID); st != models.StateIncomplete {
		t.Fatalf("new session state = %s", st)
	}
}

func TestRecordChunkErrors(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	info, err := r.CreateSession(ctx, 5, 2, "a.bin", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.RecordChunkAccepted(ctx, "no-such-session", 0, 2, "sha256:aa"); !errors.Is(err, models.ErrUnknownSession) {
		t.Errorf("unknown session: err = %v", err)
	}
	if _, err := r.RecordChunkAccepted(ctx, info.ID, 3, 2, "sha256:aa"); !errors.Is(err, models.ErrChunkIndexOutOfRange) {
		t.Errorf("out of range: err = %v", err)
	}
	// Последняя часть: остаток 1 байт, полный размер 2 — отклоняется.
	if _, err := r.RecordChunkAccepted(ctx, info.ID, 2, 2, "sha256:aa"); !errors.Is(err, models.ErrChunkLengthMismatch) {
		t.Errorf("last chunk full length: err = %v", err)
	}
	if _, err := r.RecordChunkAccepted(ctx, info.ID, 2, 1, "sha256:aa"); err != nil {
		t.Errorf("last chunk remainder length: err = %v", err)
	}
}

func TestIdempotentRetryAndConflict(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	info, _ := r.CreateSession(ctx, 6, 2, "a.bin", "")

	st1, err := r.RecordChunkAccepted(ctx, info.ID, 0, 2, "sha256:aa")
	if err != nil {
		t.Fatal(err)
	}
	st2, err := r.RecordChunkAccepted(ctx, info.ID, 0, 2, "sha256:aa")
	if err != nil {
		t.Fatalf("identical retry: %v", err)
	}
	if st1 != st2 {
		t.Fatalf("retry changed state: %s -> %s", st1, st2)
	}

	if _, err := r.RecordChunkAccepted(ctx, info.ID, 0, 2, "sha256:bb"); !errors.Is(err, models.ErrConflictingChunkContent) {
		t.Fatalf("conflict: err = %v", err)
	}

	// Конфликт не мутирует состояние.
	p, _ := r.GetProgress(info.ID)
	if p.Accepted != 1 {
		t.Fatalf("accepted = %d after conflict, want 1", p.Accepted)
	}
}

func TestCompletenessExactlyAtFullCardinality(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	info, _ := r.CreateSession(ctx, 10, 3, "a.bin", "")
	expected := info.ExpectedChunks() // 4

	// Принимаем все, кроме последней — состояние остаётся Incomplete.
	for idx := 0; idx < expected-1; idx++ {
		st, err := r.RecordChunkAccepted(ctx, info.ID, idx, info.ChunkLength(idx), fmt.Sprintf("sha256:%02d", idx))
		if err != nil {
			t.Fatal(err)
		}
		if st != models.StateIncomplete {
			t.Fatalf("after %d of %d chunks state = %s", idx+1, expected, st)
		}
	}

	last := expected - 1
	st, err := r.RecordChunkAccepted(ctx, info.ID, last, info.ChunkLength(last), "sha256:last")
	if err != nil {
		t.Fatal(err)
	}
	if st != models.StateReadyToAssemble {
		t.Fatalf("after all chunks state = %s, want ready_to_assemble", st)
	}

	p, _ := r.GetProgress(info.ID)
	if p.Accepted != expected || p.Expected != expected {
		t.Fatalf("progress = %+v", p)
	}
}

func TestAtMostOneAssembly(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	info, _ := r.CreateSession(ctx, 4, 2, "a.bin", "")
	for idx := 0; idx < 2; idx++ {
		if _, err := r.RecordChunkAccepted(ctx, info.ID, idx, 2, fmt.Sprintf("sha256:%d", idx)); err != nil {
			t.Fatal(err)
		}
	}

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.BeginAssembly(ctx, info.ID)
		}(i)
	}
	wg.Wait()

	var winners, losers int
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, models.ErrAlreadyAssembling):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 || losers != racers-1 {
		t.Fatalf("winners = %d, losers = %d", winners, losers)
	}

	// Пока идёт сборка, мутации запрещены.
	if _, err := r.RecordChunkAccepted(ctx, info.ID, 0, 2, "sha256:0"); !errors.Is(err, models.ErrSessionNotMutable) {
		t.Fatalf("mutation during assembly: err = %v", err)
	}
}

func TestFinishAssembly(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	info, _ := r.CreateSession(ctx, 2, 2, "a.bin", "")
	if _, err := r.RecordChunkAccepted(ctx, info.ID, 0, 2, "sha256:0"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.BeginAssembly(ctx, info.ID); err != nil {
		t.Fatal(err)
	}

	obj := &models.FinalObject{ID: "obj-1", Size: 2, Digest: "sha256:whole", CreatedAt: time.Now()}
	if err := r.FinishAssembly(ctx, info.ID, obj); err != nil {
		t.Fatal(err)
	}

	if st, _ := r.GetState(info.ID); st != models.StateFinalized {
		t.Fatalf("state = %s, want finalized", st)
	}
	got, err := r.FinalObjectOf(info.ID)
	if err != nil || got.ID != "obj-1" {
		t.Fatalf("final object = %+v, err = %v", got, err)
	}
}

func TestFinishAssemblyFailed(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	info, _ := r.CreateSession(ctx, 2, 2, "a.bin", "")
	_, _ = r.RecordChunkAccepted(ctx, info.ID, 0, 2, "sha256:0")
	_, _ = r.BeginAssembly(ctx, info.ID)

	if err := r.FinishAssembly(ctx, info.ID, nil); err != nil {
		t.Fatal(err)
	}
	if st, _ := r.GetState(info.ID); st != models.StateFailed {
		t.Fatalf("state = %s, want failed", st)
	}
	// Failed — терминальное состояние, повторная сборка не запускается.
	if _, err := r.BeginAssembly(ctx, info.ID); err == nil {
		t.Fatal("assembly restarted from failed state")
	}
}

func TestAwaitAssembly(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	info, _ := r.CreateSession(ctx, 2, 2, "a.bin", "")
	_, _ = r.RecordChunkAccepted(ctx, info.ID, 0, 2, "sha256:0")
	_, _ = r.BeginAssembly(ctx, info.ID)

	released := make(chan error, 1)
	go func() {
		released <- r.AwaitAssembly(ctx, info.ID)
	}()

	select {
	case <-released:
		t.Fatal("await returned while assembly in progress")
	case <-time.After(50 * time.Millisecond):
	}

	if err := r.FinishAssembly(ctx, info.ID, nil); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-released:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("await did not release after assembly finished")
	}
}

func TestExpireInactive(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	base := time.Now()
	r.now = func() time.Time { return base }

	stale, _ := r.CreateSession(ctx, 4, 2, "stale.bin", "")
	assembling, _ := r.CreateSession(ctx, 2, 2, "busy.bin", "")
	_, _ = r.RecordChunkAccepted(ctx, assembling.ID, 0, 2, "sha256:0")
	_, _ = r.BeginAssembly(ctx, assembling.ID)

	// Сдвигаем часы за TTL и добавляем свежую сессию.
	r.now = func() time.Time { return base.Add(2 * time.Hour) }
	fresh, _ := r.CreateSession(ctx, 4, 2, "fresh.bin", "")

	expired, err := r.ExpireInactive(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 || expired[0] != stale.ID {
		t.Fatalf("expired = %v, want only %s", expired, stale.ID)
	}

	if _, err := r.GetState(stale.ID); !errors.Is(err, models.ErrUnknownSession) {
		t.Error("stale session survived sweep")
	}
	if _, err := r.GetState(fresh.ID); err != nil {
		t.Error("fresh session expired")
	}
	// Сессия в сборке не выметается никогда.
	if st, err := r.GetState(assembling.ID); err != nil || st != models.StateAssembling {
		t.Errorf("assembling session: state = %s, err = %v", st, err)
	}
}

func TestRestoreMarksInterruptedAssemblyFailed(t *testing.T) {
	ctx := context.Background()
	store := sessionrepo.NewMemoryStore()

	r1 := New(store)
	info, _ := r1.CreateSession(ctx, 2, 2, "a.bin", "")
	_, _ = r1.RecordChunkAccepted(ctx, info.ID, 0, 2, "sha256:0")
	_, _ = r1.BeginAssembly(ctx, info.ID)

	// «Падение» процесса: новый реестр поверх тех же строк.
	r2 := New(store)
	if err := r2.Restore(ctx); err != nil {
		t.Fatal(err)
	}

	st, err := r2.GetState(info.ID)
	if err != nil {
		t.Fatal(err)
	}
	if st != models.StateFailed {
		t.Fatalf("restored state = %s, want failed", st)
	}
}

func TestParallelSessionsDoNotSerialize(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	const sessions = 16
	ids := make([]string, sessions)
	for i := range ids {
		info, err := r.CreateSession(ctx, 8, 2, fmt.Sprintf("f-%d.bin", i), "")
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = info.ID
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			for idx := 0; idx < 4; idx++ {
				if _, err := r.RecordChunkAccepted(ctx, id, idx, 2, fmt.Sprintf("sha256:%d-%d", i, idx)); err != nil {
					t.Errorf("session %d chunk %d: %v", i, idx, err)
					return
				}
			}
		}(i, id)
	}
	wg.Wait()

	for _, id := range ids {
		if st, _ := r.GetState(id); st != models.StateReadyToAssemble {
			t.Fatalf("session %s state = %s", id, st)
		}
	}
}
