// Package cached оборачивает Storage кэшем последних прочитанных снимков.
// Запись идёт сквозь кэш; повторная запись идентичного снимка пропускается.
package cached

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ButyrinIA/bookblog/internal/storage"
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	value []byte
	sum   uint64
}

type Storage struct {
	inner storage.Storage
	cache *lru.Cache[string, entry]
}

func New(inner storage.Storage, size int) (*Storage, error) {
	cache, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &Storage{inner: inner, cache: cache}, nil
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if e, ok := s.cache.Get(key); ok {
		return bytes.Clone(e.value), nil
	}
	value, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, entry{value: bytes.Clone(value), sum: xxhash.Sum64(value)})
	return value, nil
}

func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	sum := xxhash.Sum64(value)
	if e, ok := s.cache.Get(key); ok && e.sum == sum && bytes.Equal(e.value, value) {
		return nil
	}
	if err := s.inner.Set(ctx, key, value); err != nil {
		// после неудачной записи содержимое бэкенда неизвестно
		s.cache.Remove(key)
		return err
	}
	s.cache.Add(key, entry{value: bytes.Clone(value), sum: sum})
	return nil
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	s.cache.Remove(key)
	return s.inner.Remove(ctx, key)
}

func (s *Storage) Close() error {
	s.cache.Purge()
	return s.inner.Close()
}
