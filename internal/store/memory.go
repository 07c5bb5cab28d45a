package store

import (
	"context"
	"sync"
)

// MemoryStore 进程内存储，一把互斥锁串行化所有写事务（用于开发/测试）
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) read(name string) ([]byte, bool, error) {
	data, ok := s.data[name]
	return data, ok, nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newTxn(s.read, false))
}

func (s *MemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := newTxn(s.read, true)
	if err := fn(t); err != nil {
		return err
	}
	for name, data := range t.staged {
		s.data[name] = data
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
