// Package registry ведёт жизненный цикл сессий загрузки: ожидаемое число
// частей, карту принятых индексов и переходы состояний вплоть до финализации.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sir_venger/upload_lite/internal/models"
	"github.com/sir_venger/upload_lite/pkg/keymutex"
)

// Store — bookkeeping-хранилище строк сессий и частей.
type Store interface {
	SaveSession(ctx context.Context, rec models.SessionRecord) error
	SaveChunk(ctx context.Context, sessionID string, c models.Chunk) error
	UpdateState(ctx context.Context, sessionID string, state models.CompletionState, at time.Time) error
	DeleteSession(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context) ([]models.SessionRecord, error)
}

// session — авторитетное состояние одной сессии в памяти реестра.
// mu охраняет изменяемые поля; длинные операции (приём части, сборка)
// дополнительно сериализуются мьютексом реестра по id сессии.
type session struct {
	info models.UploadSession // неизменяемо после создания

	mu           sync.RWMutex
	state        models.CompletionState
	chunks       map[int]models.Chunk
	lastActivity time.Time
	// assemblyDone не-nil, пока идёт сборка; закрывается в FinishAssembly.
	assemblyDone chan struct{}
	object       *models.FinalObject
}

func (s *session) snapshot() (models.CompletionState, int, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, len(s.chunks), s.lastActivity
}

// Registry — реестр сессий. Мутации одной сессии сериализуются мьютексом
// по её id (шардированная карта локов); разные сессии идут параллельно.
type Registry struct {
	mu       sync.RWMutex // охраняет только карту sessions
	sessions map[string]*session
	locks    *keymutex.KeyMutex
	store    Store
	now      func() time.Time
}

// New создаёт реестр поверх bookkeeping-хранилища.
func New(store Store) *Registry {
	return &Registry{
		sessions: map[string]*session{},
		locks:    keymutex.New(),
		store:    store,
		now:      time.Now,
	}
}

// Restore поднимает сессии из bookkeeping-строк при старте сервиса.
// Сессии, застрявшие в Assembling после падения процесса, помечаются Failed:
// их staging-артефакт потерян, а части остаются для диагностики.
func (r *Registry) Restore(ctx context.Context) error {
	recs, err := r.store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range recs {
		st := rec.State
		if st == models.StateAssembling {
			st = models.StateFailed
			if err := r.store.UpdateState(ctx, rec.ID, st, r.now()); err != nil {
				return fmt.Errorf("mark interrupted assembly failed: %w", err)
			}
		}

		r.sessions[rec.ID] = &session{
			info:         rec.UploadSession,
			state:        st,
			chunks:       rec.Clone().Chunks,
			lastActivity: rec.UpdatedAt,
		}
	}

	return nil
}

// CreateSession валидирует параметры, выделяет id и заводит пустую сессию.
func (r *Registry) CreateSession(ctx context.Context, totalSize, chunkSize int64, filename, ownerID string) (models.UploadSession, error) {
	if totalSize <= 0 || chunkSize <= 0 || chunkSize > totalSize || strings.TrimSpace(filename) == "" {
		return models.UploadSession{}, fmt.Errorf(
			"totalSize=%d chunkSize=%d filename=%q: %w",
			totalSize, chunkSize, filename, models.ErrInvalidSessionParameters)
	}

	now := r.now()
	info := models.UploadSession{
		ID:        uuid.NewString(),
		OwnerID:   strings.TrimSpace(ownerID),
		FileName:  strings.TrimSpace(filename),
		TotalSize: totalSize,
		ChunkSize: chunkSize,
		CreatedAt: now,
	}

	rec := models.SessionRecord{
		UploadSession: info,
		State:         models.StateIncomplete,
		UpdatedAt:     now,
		Chunks:        map[int]models.Chunk{},
	}
	if err := r.store.SaveSession(ctx, rec); err != nil {
		return models.UploadSession{}, fmt.Errorf("persist session: %w", err)
	}

	r.mu.Lock()
	r.sessions[info.ID] = &session{
		info:         info,
		state:        models.StateIncomplete,
		chunks:       map[int]models.Chunk{},
		lastActivity: now,
	}
	r.mu.Unlock()

	return info, nil
}

// Session возвращает неизменяемое описание сессии.
func (r *Registry) Session(sessionID string) (models.UploadSession, error) {
	s, err := r.get(sessionID)
	if err != nil {
		return models.UploadSession{}, err
	}
	return s.info, nil
}

// ExpectedChunk проверяет, что часть с данным индексом сейчас можно принять,
// и возвращает её ожидаемую длину. Дешёвая предпроверка до переноса байтов;
// авторитетная проверка повторяется в RecordChunkAccepted.
func (r *Registry) ExpectedChunk(sessionID string, idx int) (int64, error) {
	s, err := r.get(sessionID)
	if err != nil {
		return 0, err
	}

	state, _, _ := s.snapshot()
	if !state.Mutable() {
		return 0, fmt.Errorf("session %s is %s: %w", sessionID, state, models.ErrSessionNotMutable)
	}
	if idx < 0 || idx >= s.info.ExpectedChunks() {
		return 0, fmt.Errorf("index %d, expected [0, %d): %w",
			idx, s.info.ExpectedChunks(), models.ErrChunkIndexOutOfRange)
	}

	return s.info.ChunkLength(idx), nil
}

// RecordChunkAccepted отмечает часть принятой и возвращает новое состояние.
// Повтор уже принятого индекса с тем же дайджестом — идемпотентный no-op;
// с другим дайджестом — конфликт без мутации состояния.
func (r *Registry) RecordChunkAccepted(ctx context.Context, sessionID string, idx int, length int64, dgst string) (models.CompletionState, error) {
	unlock := r.locks.Lock(sessionID)
	defer unlock()

	s, err := r.get(sessionID)
	if err != nil {
		return "", err
	}

	state, accepted, _ := s.snapshot()
	if !state.Mutable() {
		return "", fmt.Errorf("session %s is %s: %w", sessionID, state, models.ErrSessionNotMutable)
	}

	expected := s.info.ExpectedChunks()
	if idx < 0 || idx >= expected {
		return "", fmt.Errorf("index %d, expected [0, %d): %w", idx, expected, models.ErrChunkIndexOutOfRange)
	}
	if want := s.info.ChunkLength(idx); length != want {
		return "", fmt.Errorf("chunk %d: length %d, want %d: %w",
			idx, length, want, models.ErrChunkLengthMismatch)
	}

	// Под пер-сессионным локом карта частей меняется только нами,
	// поэтому читать её здесь безопасно без s.mu.
	if prev, ok := s.chunks[idx]; ok {
		if prev.Digest == dgst {
			return state, nil
		}
		return "", fmt.Errorf("chunk %d already accepted with digest %s: %w",
			idx, prev.Digest, models.ErrConflictingChunkContent)
	}

	chunk := models.Chunk{Index: idx, Size: length, Digest: dgst}
	now := r.now()

	// Сначала строки, потом память: при падении хранилища сессия остаётся
	// в прежнем состоянии и клиент может повторить ту же часть.
	if err := r.store.SaveChunk(ctx, sessionID, chunk); err != nil {
		return "", fmt.Errorf("persist chunk: %w", err)
	}

	next := state
	if accepted+1 == expected {
		next = models.StateReadyToAssemble
		if err := r.store.UpdateState(ctx, sessionID, next, now); err != nil {
			return "", fmt.Errorf("persist state: %w", err)
		}
	}

	s.mu.Lock()
	s.chunks[idx] = chunk
	s.state = next
	s.lastActivity = now
	s.mu.Unlock()

	return next, nil
}

// GetState возвращает текущее состояние сессии.
func (r *Registry) GetState(sessionID string) (models.CompletionState, error) {
	s, err := r.get(sessionID)
	if err != nil {
		return "", err
	}
	state, _, _ := s.snapshot()
	return state, nil
}

// GetProgress возвращает состояние вместе со счётчиками частей.
func (r *Registry) GetProgress(sessionID string) (models.Progress, error) {
	s, err := r.get(sessionID)
	if err != nil {
		return models.Progress{}, err
	}

	state, accepted, _ := s.snapshot()
	return models.Progress{
		State:    state,
		Accepted: accepted,
		Expected: s.info.ExpectedChunks(),
	}, nil
}

// AcceptedChunks возвращает копию карты принятых частей.
func (r *Registry) AcceptedChunks(sessionID string) (map[int]models.Chunk, error) {
	s, err := r.get(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]models.Chunk, len(s.chunks))
	for idx, c := range s.chunks {
		out[idx] = c
	}
	return out, nil
}

// FinalObjectOf возвращает дескриптор собранного объекта финализированной сессии.
func (r *Registry) FinalObjectOf(sessionID string) (models.FinalObject, error) {
	s, err := r.get(sessionID)
	if err != nil {
		return models.FinalObject{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.object == nil {
		return models.FinalObject{}, fmt.Errorf("session %s has no final object: %w",
			sessionID, models.ErrUnknownSession)
	}
	return *s.object, nil
}

// BeginAssembly выполняет CAS-переход ReadyToAssemble -> Assembling.
// Ровно один вызывающий выигрывает; остальные получают ErrAlreadyAssembling.
func (r *Registry) BeginAssembly(ctx context.Context, sessionID string) (models.UploadSession, error) {
	unlock := r.locks.Lock(sessionID)
	defer unlock()

	s, err := r.get(sessionID)
	if err != nil {
		return models.UploadSession{}, err
	}

	state, _, _ := s.snapshot()
	switch state {
	case models.StateReadyToAssemble:
	case models.StateAssembling:
		return models.UploadSession{}, fmt.Errorf("session %s: %w", sessionID, models.ErrAlreadyAssembling)
	default:
		return models.UploadSession{}, fmt.Errorf("session %s is %s, not ready to assemble", sessionID, state)
	}

	now := r.now()
	if err := r.store.UpdateState(ctx, sessionID, models.StateAssembling, now); err != nil {
		return models.UploadSession{}, fmt.Errorf("persist state: %w", err)
	}

	s.mu.Lock()
	s.state = models.StateAssembling
	s.assemblyDone = make(chan struct{})
	s.lastActivity = now
	s.mu.Unlock()

	return s.info, nil
}

// FinishAssembly завершает сборку: Finalized с дескриптором объекта либо Failed.
func (r *Registry) FinishAssembly(ctx context.Context, sessionID string, obj *models.FinalObject) error {
	unlock := r.locks.Lock(sessionID)
	defer unlock()

	s, err := r.get(sessionID)
	if err != nil {
		return err
	}

	state, _, _ := s.snapshot()
	if state != models.StateAssembling {
		return fmt.Errorf("session %s is %s, not assembling", sessionID, state)
	}

	next := models.StateFailed
	if obj != nil {
		next = models.StateFinalized
	}

	now := r.now()
	if err := r.store.UpdateState(ctx, sessionID, next, now); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}

	s.mu.Lock()
	s.state = next
	s.object = obj
	s.lastActivity = now
	if s.assemblyDone != nil {
		close(s.assemblyDone)
		s.assemblyDone = nil
	}
	s.mu.Unlock()

	return nil
}

// AwaitAssembly блокируется, пока сессия в состоянии Assembling.
// Нужен кооперативному abort: он не прерывает сборку, а дожидается её исхода.
func (r *Registry) AwaitAssembly(ctx context.Context, sessionID string) error {
	s, err := r.get(sessionID)
	if err != nil {
		return nil // сессии нет — ждать нечего
	}

	s.mu.RLock()
	done := s.assemblyDone
	s.mu.RUnlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeleteSession удаляет сессию и её bookkeeping-строки. Сессию в состоянии
// Assembling удалять нельзя — вызывающий обязан сперва дождаться AwaitAssembly.
func (r *Registry) DeleteSession(ctx context.Context, sessionID string) error {
	unlock := r.locks.Lock(sessionID)
	defer unlock()

	s, err := r.get(sessionID)
	if err != nil {
		return err
	}
	if state, _, _ := s.snapshot(); state == models.StateAssembling {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrAlreadyAssembling)
	}

	if err := r.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session rows: %w", err)
	}

	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	return nil
}

// ExpireInactive удаляет сессии, не менявшиеся дольше olderThan, кроме тех,
// что в состоянии Assembling. Возвращает id снятых сессий, чтобы вызывающий
// мог зачистить и их части в chunk-хранилище.
func (r *Registry) ExpireInactive(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := r.now().Add(-olderThan)

	r.mu.RLock()
	var stale []string
	for id, s := range r.sessions {
		state, _, last := s.snapshot()
		if state != models.StateAssembling && last.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	var expired []string
	for _, id := range stale {
		unlock := r.locks.Lock(id)

		s, err := r.get(id)
		if err != nil {
			unlock()
			continue
		}
		// Перепроверяем под локом: сессия могла ожить или уйти в сборку.
		state, _, last := s.snapshot()
		if state == models.StateAssembling || !last.Before(cutoff) {
			unlock()
			continue
		}

		if err := r.store.DeleteSession(ctx, id); err != nil {
			unlock()
			return expired, fmt.Errorf("delete session rows: %w", err)
		}

		r.mu.Lock()
		delete(r.sessions, id)
		r.mu.Unlock()
		unlock()

		expired = append(expired, id)
	}

	return expired, nil
}

// get возвращает живую запись сессии.
func (r *Registry) get(sessionID string) (*session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrUnknownSession)
	}
	return s, nil
}
