package store

import (
	"sort"
	"sync"
)

// Memory is an in-process KeyValueStore, used by package tests and by
// chainsync/gossip/miner tests that need a chain store without a
// filesystem dependency — mirroring tosdb/memorydb's role alongside
// tosdb/leveldb in the teacher's storage layer.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory KeyValueStore.
func NewMemory() *Memory { return &Memory{data: make(map[string][]byte)} }

func (m *Memory) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}

func (m *Memory) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *Memory) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *Memory) NewIteratorWithPrefix(prefix []byte) Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := string(prefix)
	var keys []string
	for k := range m.data {
		if len(k) >= len(p) && k[:len(p)] == p {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return &memoryIterator{keys: keys, data: m.data}
}

func (m *Memory) Close() error { return nil }

type memoryIterator struct {
	keys []string
	data map[string][]byte
	pos  int
}

func (it *memoryIterator) Next() bool {
	if it.pos >= len(it.keys) {
		return false
	}
	it.pos++
	return it.pos <= len(it.keys)
}

func (it *memoryIterator) Key() []byte   { return []byte(it.keys[it.pos-1]) }
func (it *memoryIterator) Value() []byte { return it.data[it.keys[it.pos-1]] }
func (it *memoryIterator) Release()      {}
