package kvstore

import (
	"context"
	"sync"
)

// Memory is an in-process Backend. Open falls back to it when REDIS_URL is
// empty; tests use it directly.
type Memory struct {
	mu          sync.RWMutex
	values      map[string][]byte
	subscribers map[int]chan Change
	nextID      int
}

// NewMemory creates an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{
		values:      make(map[string][]byte),
		subscribers: make(map[int]chan Change),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	m.values[key] = stored
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

// Publish delivers to every subscriber, dropping the change for any subscriber whose buffer is full
func (m *Memory) Publish(_ context.Context, change Change) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.subscribers {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context) (<-chan Change, func(), error) {
	ch := make(chan Change, 64)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = ch
	m.mu.Unlock()

	ctx, stop := context.WithCancel(ctx)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			close(ch)
			m.mu.Unlock()
		})
		stop()
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel, nil
}
