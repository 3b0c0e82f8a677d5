// Package objectstore — конечное хранилище собранных объектов.
// Запись проходит через staging-артефакт: объект публикуется только после
// успешного коммита, частично записанный результат снаружи не виден.
package objectstore

import (
	"context"
	"io"
)

// Store — контракт конечного хранилища.
type Store interface {
	// StageWrite открывает поток staging-записи под временным идентификатором.
	// Артефакт принадлежит вызывающему до CommitStaged либо DiscardStaged.
	StageWrite(ctx context.Context, tempID string) (io.WriteCloser, error)

	// CommitStaged атомарно публикует staging-артефакт под конечным id.
	CommitStaged(ctx context.Context, tempID, finalID string) error

	// DiscardStaged удаляет staging-артефакт; вызывается при любой неудаче сборки.
	DiscardStaged(ctx context.Context, tempID string) error
}
