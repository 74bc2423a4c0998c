package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound возвращается Get для отсутствующего ключа.
	ErrNotFound = errors.New("key not found")
	// ErrQuotaExceeded возвращается Set, когда значение не помещается в хранилище.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Storage - хранилище ключ-значение. Значения - JSON-снимки целых коллекций,
// частичных записей нет.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Load читает значение по ключу в dst. Отсутствующий ключ не является
// ошибкой: dst остаётся нетронутым, found=false.
func Load[T any](ctx context.Context, s Storage, key string, dst *T) (found bool, err error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Save сериализует v целиком и записывает под ключом.
func Save[T any](ctx context.Context, s Storage, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
