// AngelaMos | 2026
// list.go

package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nfphealth/nfp-backend/internal/core"
)

// CorruptSuffix names the key that keeps the raw bytes of a list that
// could not be decoded.
const CorruptSuffix = ".corrupt"

// List is an ordered JSON array stored under one key. Operations on the
// same List value are serialized; separate processes sharing a backend are
// not coordinated.
type List[T any] struct {
	backend Backend
	key     string
	logger  *slog.Logger
	mu      sync.Mutex
}

func NewList[T any](backend Backend, key string) *List[T] {
	return &List[T]{backend: backend, key: key, logger: slog.Default()}
}

// SetLogger replaces the logger used to report corrupt data.
func (l *List[T]) SetLogger(logger *slog.Logger) *List[T] {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// All returns the stored items. Corrupt data is copied to the key with
// CorruptSuffix and then reads as an empty list.
func (l *List[T]) All(ctx context.Context) ([]T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.read(ctx)
}

func (l *List[T]) Append(ctx context.Context, items ...T) error {
	return l.Update(ctx, func(cur []T) ([]T, error) {
		return append(cur, items...), nil
	})
}

// Update runs a read-modify-write cycle under the list lock. Returning an
// error from fn leaves the stored list untouched.
func (l *List[T]) Update(ctx context.Context, fn func([]T) ([]T, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, err := l.read(ctx)
	if err != nil {
		return err
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}

	return l.write(ctx, next)
}

func (l *List[T]) read(ctx context.Context) ([]T, error) {
	data, err := l.backend.Load(ctx, l.key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w: %w", l.key, core.ErrStorage, err)
	}

	var items []T
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, l.quarantine(ctx, data, err)
	}
	return items, nil
}

// quarantine keeps undecodable bytes under a side key so the next write
// cannot destroy them. If the copy fails the read fails too.
func (l *List[T]) quarantine(ctx context.Context, data []byte, cause error) error {
	backup := l.key + CorruptSuffix
	if err := l.backend.Save(ctx, backup, data); err != nil {
		return fmt.Errorf("keep corrupt %s: %w: %w", l.key, core.ErrStorage, err)
	}

	l.logger.WarnContext(ctx, "corrupt local list moved aside",
		"key", l.key,
		"backup", backup,
		"bytes", len(data),
		"error", cause,
	)
	return nil
}

func (l *List[T]) write(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", l.key, err)
	}

	if err := l.backend.Save(ctx, l.key, data); err != nil {
		return fmt.Errorf("save %s: %w: %w", l.key, core.ErrStorage, err)
	}
	return nil
}
