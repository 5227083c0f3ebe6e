// AngelaMos | 2026
// backend.go

package localstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/nfphealth/nfp-backend/internal/config"
	"github.com/nfphealth/nfp-backend/internal/core"
)

// Storage keys for the three independent lists kept on the client.
const (
	KeySubmissions = "nfp_server_submissions"
	KeyRatings     = "nfp_program_ratings"
	KeyOutbox      = "nfp_outbox_enquiries"
)

// Backend persists opaque values by key. Load returns nil, nil for a
// missing key.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Open builds the backend named by cfg.Driver. The returned close func is
// never nil.
func Open(
	ctx context.Context,
	cfg config.StoreConfig,
	redisCfg config.RedisConfig,
) (Backend, func() error, error) {
	switch cfg.Driver {
	case "", "file":
		b, err := NewFileBackend(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return b, func() error { return nil }, nil

	case "redis":
		r, err := core.NewRedis(ctx, redisCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis store: %w", err)
		}
		return NewRedisBackend(r.Client, cfg.Prefix), r.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("file store: mkdir %s: %w", dir, err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, key)
	return filepath.Join(b.dir, safe+".json")
}

func (b *FileBackend) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Save replaces the value atomically so readers never observe a partial
// write.
func (b *FileBackend) Save(_ context.Context, key string, data []byte) error {
	if err := WriteFileAtomic(b.path(key), data, 0o600); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) key(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + ":" + key
}

func (b *RedisBackend) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (b *RedisBackend) Save(ctx context.Context, key string, data []byte) error {
	if err := b.client.Set(ctx, b.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
