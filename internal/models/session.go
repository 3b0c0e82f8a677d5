package models

import "time"

// CompletionState — состояние жизненного цикла сессии загрузки.
type CompletionState string

const (
	// StateIncomplete — принято меньше частей, чем ожидается.
	StateIncomplete CompletionState = "incomplete"
	// StateReadyToAssemble — приняты все части, можно собирать.
	StateReadyToAssemble CompletionState = "ready_to_assemble"
	// StateAssembling — сборка идёт; любые мутации частей запрещены.
	StateAssembling CompletionState = "assembling"
	// StateFinalized — объект собран и закоммичен.
	StateFinalized CompletionState = "finalized"
	// StateFailed — сборка необратимо упала; сессия остаётся для диагностики.
	StateFailed CompletionState = "failed"
)

// Terminal сообщает, достигла ли сессия конечного состояния.
func (s CompletionState) Terminal() bool {
	return s == StateFinalized || s == StateFailed
}

// Mutable сообщает, разрешён ли приём частей в данном состоянии.
func (s CompletionState) Mutable() bool {
	return s == StateIncomplete || s == StateReadyToAssemble
}

// UploadSession описывает одну многочастную загрузку. Неизменяемая часть
// записи: после создания меняется только состояние и набор принятых частей.
type UploadSession struct {
	ID        string    `json:"session_id"`
	OwnerID   string    `json:"owner_id,omitempty"` // пустая строка — анонимная загрузка
	FileName  string    `json:"file_name"`
	TotalSize int64     `json:"total_size"`
	ChunkSize int64     `json:"chunk_size"`
	CreatedAt time.Time `json:"created_at"`
}

// ExpectedChunks возвращает число частей: ceil(TotalSize / ChunkSize).
// Деление ровное — последняя часть полноразмерная, лишней нулевой части нет.
func (u UploadSession) ExpectedChunks() int {
	return int((u.TotalSize + u.ChunkSize - 1) / u.ChunkSize)
}

// ChunkLength возвращает ожидаемую длину части с данным индексом:
// ChunkSize для всех, кроме последней, остаток — для последней.
func (u UploadSession) ChunkLength(idx int) int64 {
	total := u.ExpectedChunks()
	if idx < 0 || idx >= total {
		return 0
	}
	if idx == total-1 {
		return u.TotalSize - u.ChunkSize*int64(total-1)
	}
	return u.ChunkSize
}

// Chunk — принятая часть: индекс, длина и дайджест содержимого,
// посчитанный на сервере.
type Chunk struct {
	Index  int    `json:"index"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

// SessionRecord — строка bookkeeping-хранилища: сессия вместе с состоянием
// и принятыми частями.
type SessionRecord struct {
	UploadSession
	State     CompletionState `json:"state"`
	UpdatedAt time.Time       `json:"updated_at"`
	Chunks    map[int]Chunk   `json:"chunks"`
}

// Clone возвращает копию записи, чтобы не делиться внутренними картами.
func (r SessionRecord) Clone() SessionRecord {
	out := r
	out.Chunks = make(map[int]Chunk, len(r.Chunks))
	for idx, c := range r.Chunks {
		out.Chunks[idx] = c
	}
	return out
}

// FinalObject — дескриптор собранного объекта в конечном хранилище.
// Дайджест считается заново по всему потоку сборки, независимо от
// дайджестов частей.
type FinalObject struct {
	ID        string    `json:"id"`
	Size      int64     `json:"size"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"created_at"`
}

// Progress — счётчики для статусного ответа.
type Progress struct {
	State    CompletionState `json:"state"`
	Accepted int             `json:"accepted_chunks"`
	Expected int             `json:"expected_chunks"`
}
