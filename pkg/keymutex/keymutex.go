// Package keymutex — шардированная карта мьютексов по строковому ключу.
// Сериализует работу с одной сессией, не блокируя остальные.
package keymutex

import (
	"hash/fnv"
	"sync"
)

const shardCount = 32

type shard struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyMutex раздаёт мьютексы по ключу. Запись под ключом живёт, пока
// хотя бы один обладатель держит или ждёт её.
type KeyMutex struct {
	shards [shardCount]shard
}

// New создаёт пустую карту мьютексов.
func New() *KeyMutex {
	km := &KeyMutex{}
	for i := range km.shards {
		km.shards[i].locks = make(map[string]*entry)
	}
	return km
}

// Lock захватывает мьютекс ключа и возвращает функцию освобождения.
func (km *KeyMutex) Lock(key string) (unlock func()) {
	sh := &km.shards[shardIndex(key)]

	sh.mu.Lock()
	e, ok := sh.locks[key]
	if !ok {
		e = &entry{}
		sh.locks[key] = e
	}
	e.refs++
	sh.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		sh.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(sh.locks, key)
		}
		sh.mu.Unlock()
	}
}

func shardIndex(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}
