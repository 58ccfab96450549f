package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// MemoryEngine is an in-memory implementation of Engine. Update
// transactions are serialized by a single writer lock and staged in an
// overlay that is applied only when the callback succeeds.
type MemoryEngine struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryEngine creates a new in-memory persistence engine
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		data: make(map[string][]byte),
	}
}

func (m *MemoryEngine) View(fn func(tx Txn) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return fn(&memoryTxn{base: m.data})
}

func (m *MemoryEngine) Update(fn func(tx Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTxn{base: m.data, writes: make(map[string][]byte), deletes: make(map[string]struct{})}
	if err := fn(tx); err != nil {
		return err
	}
	for key := range tx.deletes {
		delete(m.data, key)
	}
	for key, value := range tx.writes {
		m.data[key] = value
	}
	return nil
}

func (m *MemoryEngine) Close() error {
	return nil
}

// Backup writes a JSON snapshot of every key
func (m *MemoryEngine) Backup(path string) error {
	m.mu.RLock()
	snapshot := make(map[string]json.RawMessage, len(m.data))
	for key, value := range m.data {
		if json.Valid(value) {
			snapshot[key] = value
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			m.mu.RUnlock()
			return err
		}
		snapshot[key] = raw
	}
	m.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backup file: %w", err)
	}
	return nil
}

type memoryTxn struct {
	base    map[string][]byte
	writes  map[string][]byte // nil for read-only transactions
	deletes map[string]struct{}
}

func (t *memoryTxn) Get(key string) ([]byte, error) {
	if _, ok := t.deletes[key]; ok {
		return nil, ErrKeyNotFound
	}
	if value, ok := t.writes[key]; ok {
		return cloneBytes(value), nil
	}
	if value, ok := t.base[key]; ok {
		return cloneBytes(value), nil
	}
	return nil, ErrKeyNotFound
}

func (t *memoryTxn) Set(key string, value []byte) error {
	if t.writes == nil {
		return fmt.Errorf("set %q: read-only transaction", key)
	}
	delete(t.deletes, key)
	t.writes[key] = cloneBytes(value)
	return nil
}

func (t *memoryTxn) Delete(key string) error {
	if t.writes == nil {
		return fmt.Errorf("delete %q: read-only transaction", key)
	}
	delete(t.writes, key)
	t.deletes[key] = struct{}{}
	return nil
}

func (t *memoryTxn) Scan(prefix string, fn func(key string, value []byte) error) error {
	seen := make(map[string]struct{})
	var keys []string
	for key := range t.base {
		if _, gone := t.deletes[key]; gone {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	for key := range t.writes {
		if _, ok := seen[key]; !ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		value, _ := t.Get(key)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
