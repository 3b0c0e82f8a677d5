package models

import "errors"

// Ошибки клиентского ввода: состояние не меняется, запрос можно повторить
// после исправления.
var (
	ErrInvalidSessionParameters = errors.New("invalid session parameters")
	ErrUnknownSession           = errors.New("unknown session")
	ErrSessionNotMutable        = errors.New("session is not mutable")
	ErrChunkIndexOutOfRange     = errors.New("chunk index out of range")
	ErrChunkLengthMismatch      = errors.New("chunk length mismatch")
	ErrConflictingChunkContent  = errors.New("conflicting chunk content")
	ErrChecksumMismatch         = errors.New("checksum mismatch")
)

// Ошибки сборки.
var (
	// ErrAlreadyAssembling получает проигравший гонку за переход
	// ReadyToAssemble -> Assembling; сборка запускается ровно один раз на сессию.
	ErrAlreadyAssembling = errors.New("assembly already in progress")
	// ErrMissingChunk — нарушение консистентности: реестр считает часть принятой,
	// а в хранилище её нет. Сессия помечается Failed и остаётся для диагностики.
	ErrMissingChunk = errors.New("missing chunk during assembly")
	// ErrSizeMismatch — длина собранного объекта не совпала с заявленной.
	ErrSizeMismatch = errors.New("assembled size mismatch")
)
