package artifact

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
	}
}

func (m *MemoryStore) Put(_ context.Context, jobID string, content []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key(jobID)
	m.objects[key] = append([]byte(nil), content...)
	m.puts++
	return "memory://" + key, nil
}

func (m *MemoryStore) Get(_ context.Context, jobID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	content, ok := m.objects[Key(jobID)]
	if !ok {
		return nil, fmt.Errorf("artifact not found for job %s", jobID)
	}
	return append([]byte(nil), content...), nil
}

func (m *MemoryStore) Exists(_ context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[Key(jobID)]
	return ok, nil
}

// PutCount returns how many writes the store has seen. Test hook.
func (m *MemoryStore) PutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
