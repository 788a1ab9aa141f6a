package contract

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"maps"
	"os"
	"sync"
)

// MemoryStore keeps state in a map. With a filename set it snapshots the full
// map as JSON after every applied write set, handy for local debugging.
type MemoryStore struct {
	mu       sync.RWMutex
	db       map[string]string
	filename string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{db: make(map[string]string)}
}

// NewFileBackedStore loads an existing snapshot (if any) and keeps writing to it.
func NewFileBackedStore(filename string) (*MemoryStore, error) {
	m := &MemoryStore{db: make(map[string]string), filename: filename}
	if err := m.loadFromFile(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemoryStore) Get(key string) (*string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.db[key]
	if !ok {
		return nil, nil
	}
	return &val, nil
}

func (m *MemoryStore) Apply(writes map[string]*string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := maps.Clone(m.db)
	for k, v := range writes {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = *v
	}
	if m.filename != "" {
		if err := saveToFile(m.filename, next); err != nil {
			return err
		}
	}
	m.db = next
	return nil
}

// Len is the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.db)
}

// saveToFile writes the full map to a JSON file. Keys and values carry packed
// binary ids so both are hex encoded.
func saveToFile(filename string, db map[string]string) error {
	out := make(map[string]string, len(db))
	for k, v := range db {
		out[hex.EncodeToString([]byte(k))] = hex.EncodeToString([]byte(v))
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

func (m *MemoryStore) loadFromFile() error {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil // file doesn't exist yet
		}
		return err
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		key, err := hex.DecodeString(k)
		if err != nil {
			return err
		}
		val, err := hex.DecodeString(v)
		if err != nil {
			return err
		}
		m.db[string(key)] = string(val)
	}
	return nil
}
