// Package digest считает криптографические дайджесты частей и целых объектов.
// Дайджест сериализуется как "<algo>:<hex>", чтобы алгоритм можно было
// менять конфигурацией без переразметки хранилища.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
)

// Поддерживаемые алгоритмы. Оба дают 256-битный дайджест.
const (
	SHA256 = "sha256"
	BLAKE3 = "blake3"
)

// Algo — фабрика хешеров одного алгоритма.
type Algo struct {
	name string
	new  func() hash.Hash
}

// New возвращает фабрику по имени алгоритма.
func New(name string) (Algo, error) {
	switch name {
	case "", SHA256:
		return Algo{name: SHA256, new: func() hash.Hash { return sha256.New() }}, nil
	case BLAKE3:
		return Algo{name: BLAKE3, new: func() hash.Hash { return blake3.New() }}, nil
	default:
		return Algo{}, fmt.Errorf("unknown digest algorithm %q", name)
	}
}

// Name возвращает имя алгоритма.
func (a Algo) Name() string { return a.name }

// Sum считает дайджест байтов целиком. Чистая функция без состояния.
func (a Algo) Sum(b []byte) string {
	h := a.new()
	_, _ = h.Write(b)
	return a.encode(h.Sum(nil))
}

// Hasher возвращает потоковый хешер для длинных потоков (сборка объекта).
func (a Algo) Hasher() *Hasher {
	return &Hasher{algo: a, h: a.new()}
}

func (a Algo) encode(sum []byte) string {
	return a.name + ":" + hex.EncodeToString(sum)
}

// Hasher накапливает дайджест по мере записи; реализует io.Writer,
// удобен для io.TeeReader / io.MultiWriter.
type Hasher struct {
	algo Algo
	h    hash.Hash
}

func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum возвращает дайджест накопленных данных в сериализованном виде.
func (h *Hasher) Sum() string {
	return h.algo.encode(h.h.Sum(nil))
}
