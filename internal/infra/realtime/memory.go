package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Feed streams mirror changes to live listeners.
type Feed interface {
	Subscribe(ctx context.Context) (<-chan Change, error)
}

// Memory is an in-process mirror used when no Redis URL is configured.
type Memory struct {
	mu        sync.RWMutex
	data      map[string]json.RawMessage
	listeners map[chan Change]struct{}
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]json.RawMessage), listeners: make(map[chan Change]struct{})}
}

func (m *Memory) Put(_ context.Context, path string, payload []byte) error {
	cp := make(json.RawMessage, len(payload))
	copy(cp, payload)
	m.mu.Lock()
	m.data[path] = cp
	m.broadcast(Change{Op: "set", Path: path, Data: cp, At: time.Now().UTC()})
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	delete(m.data, path)
	m.broadcast(Change{Op: "remove", Path: path, At: time.Now().UTC()})
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, path string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[path]
	return v, ok, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Subscribe streams changes until ctx is cancelled. A listener that falls
// behind misses changes rather than stalling writers.
func (m *Memory) Subscribe(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, 16)
	m.mu.Lock()
	m.listeners[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.listeners, ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}

// broadcast must be called with m.mu held.
func (m *Memory) broadcast(c Change) {
	for ch := range m.listeners {
		select {
		case ch <- c:
		default:
		}
	}
}
