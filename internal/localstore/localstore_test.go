// AngelaMos | 2026
// localstore_test.go

package localstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfphealth/nfp-backend/internal/config"
	"github.com/nfphealth/nfp-backend/internal/core"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestFileBackend_MissingKey(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	data, err := b.Load(context.Background(), KeyOutbox)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestList_AppendAndUpdate(t *testing.T) {
	ctx := context.Background()
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	list := NewList[item](b, KeySubmissions)
	require.NoError(t, list.Append(ctx, item{ID: "1", Name: "a"}))
	require.NoError(t, list.Append(ctx, item{ID: "2", Name: "b"}, item{ID: "3", Name: "c"}))

	all, err := list.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids(all))

	err = list.Update(ctx, func(cur []item) ([]item, error) {
		return cur[1:], nil
	})
	require.NoError(t, err)

	reopened := NewList[item](b, KeySubmissions)
	all, err = reopened.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids(all))
}

func TestList_UpdateErrorKeepsData(t *testing.T) {
	ctx := context.Background()
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	list := NewList[item](b, KeyRatings)
	require.NoError(t, list.Append(ctx, item{ID: "1"}))

	err = list.Update(ctx, func([]item) ([]item, error) {
		return nil, errors.New("abort")
	})
	require.Error(t, err)

	all, err := list.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestList_CorruptDataIsKeptAside(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)

	garbage := []byte("{not json")
	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyOutbox+".json"), garbage, 0o600))

	list := NewList[item](b, KeyOutbox)
	all, err := list.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, list.Append(ctx, item{ID: "1"}))

	kept, err := b.Load(ctx, KeyOutbox+CorruptSuffix)
	require.NoError(t, err)
	assert.Equal(t, garbage, kept)

	all, err = list.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(all))
}

type corruptBackend struct{}

func (corruptBackend) Load(context.Context, string) ([]byte, error) {
	return []byte("[{"), nil
}

func (corruptBackend) Save(context.Context, string, []byte) error {
	return errors.New("read-only")
}

func TestList_CorruptDataNotOverwrittenWhenBackupFails(t *testing.T) {
	list := NewList[item](corruptBackend{}, KeyOutbox)

	_, err := list.All(context.Background())
	assert.ErrorIs(t, err, core.ErrStorage)

	err = list.Append(context.Background(), item{ID: "1"})
	assert.ErrorIs(t, err, core.ErrStorage)
}

type failingBackend struct{}

func (failingBackend) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk unavailable")
}

func (failingBackend) Save(context.Context, string, []byte) error {
	return errors.New("disk unavailable")
}

func TestList_BackendFailureIsStorageError(t *testing.T) {
	list := NewList[item](failingBackend{}, KeySubmissions)

	_, err := list.All(context.Background())
	assert.ErrorIs(t, err, core.ErrStorage)

	err = list.Append(context.Background(), item{ID: "1"})
	assert.ErrorIs(t, err, core.ErrStorage)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, _, err := Open(context.Background(), config.StoreConfig{Driver: "s3"}, config.RedisConfig{})
	require.Error(t, err)
}

func ids(items []item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
