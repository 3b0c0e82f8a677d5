package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const stagingDirName = ".staging"

// Disk хранит объекты в каталоге на локальном диске. Staging-файлы живут в
// поддиректории .staging; коммит — это os.Rename, на одной файловой системе
// он атомарен.
type Disk struct {
	root string
}

// NewDisk создаёт дисковое хранилище объектов поверх каталога root.
func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(filepath.Join(root, stagingDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create object store dirs: %w", err)
	}
	return &Disk{root: root}, nil
}

var _ Store = (*Disk)(nil)

// StageWrite открывает staging-файл на запись.
func (d *Disk) StageWrite(ctx context.Context, tempID string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Create(d.stagingPath(tempID))
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	return f, nil
}

// CommitStaged публикует staging-файл под конечным идентификатором.
func (d *Disk) CommitStaged(ctx context.Context, tempID, finalID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Rename(d.stagingPath(tempID), filepath.Join(d.root, finalID)); err != nil {
		return fmt.Errorf("commit staged object: %w", err)
	}
	return nil
}

// DiscardStaged удаляет staging-файл; отсутствие файла не ошибка.
func (d *Disk) DiscardStaged(ctx context.Context, tempID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(d.stagingPath(tempID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discard staged object: %w", err)
	}
	return nil
}

func (d *Disk) stagingPath(tempID string) string {
	return filepath.Join(d.root, stagingDirName, tempID)
}
