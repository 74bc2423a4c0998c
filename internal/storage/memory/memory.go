package memory

import (
	"context"
	"sync"

	"github.com/ButyrinIA/bookblog/internal/storage"
)

// MemoryStorage - хранилище в памяти для тестов и локального запуска
type MemoryStorage struct {
	data  map[string][]byte
	used  int
	quota int
	mu    sync.RWMutex
}

// New создаёт хранилище без ограничения размера.
func New() *MemoryStorage {
	return NewWithQuota(0)
}

// NewWithQuota ограничивает суммарный размер ключей и значений в байтах,
// как квота браузерного хранилища. quota <= 0 - без ограничения.
func NewWithQuota(quota int) *MemoryStorage {
	return &MemoryStorage{
		data:  make(map[string][]byte),
		quota: quota,
	}
}

func (s *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.data[key]
	if !exists {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *MemoryStorage) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used
	if old, exists := s.data[key]; exists {
		used -= len(key) + len(old)
	}
	used += len(key) + len(value)
	if s.quota > 0 && used > s.quota {
		return storage.ErrQuotaExceeded
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[key] = stored
	s.used = used
	return nil
}

func (s *MemoryStorage) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, exists := s.data[key]; exists {
		s.used -= len(key) + len(old)
		delete(s.data, key)
	}
	return nil
}

// Close очищает хранилище.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]byte)
	s.used = 0
	return nil
}
