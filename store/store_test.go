package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/fraudkit/core"
)

func backends(t *testing.T) map[string]core.Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	out := map[string]core.Store{
		"memory": NewMemoryStore(),
		"file":   fs,
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rs, err := NewRedisStore(context.Background(), addr, 15)
		require.NoError(t, err)
		out["redis"] = rs
	}
	return out
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			_, err := s.Get(ctx, "artifacts/missing.json")
			assert.True(t, core.IsStoreNotFound(err))

			require.NoError(t, s.Set(ctx, "artifacts/threshold.json", []byte(`{"threshold":0.5}`)))
			got, err := s.Get(ctx, "artifacts/threshold.json")
			require.NoError(t, err)
			assert.Equal(t, `{"threshold":0.5}`, string(got))

			require.NoError(t, s.BatchSet(ctx, map[string][]byte{
				"artifacts/model.json":        []byte("m"),
				"artifacts/preprocessor.json": []byte("p"),
			}))
			all, err := s.BatchGet(ctx, []string{"artifacts/model.json", "artifacts/preprocessor.json", "artifacts/nope"})
			require.NoError(t, err)
			assert.Equal(t, map[string][]byte{
				"artifacts/model.json":        []byte("m"),
				"artifacts/preprocessor.json": []byte("p"),
			}, all)

			require.NoError(t, s.Delete(ctx, "artifacts/model.json"))
			_, err = s.Get(ctx, "artifacts/model.json")
			assert.True(t, core.IsStoreNotFound(err))
			require.NoError(t, s.Delete(ctx, "artifacts/model.json"))
		})
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	v := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", v))
	v[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	got[1] = 'y'

	again, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }

	require.NoError(t, s.Set(ctx, "session", []byte("v"), 1))
	require.NoError(t, s.Set(ctx, "artifacts/model.json", []byte("m")))

	got, err := s.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	s.now = func() time.Time { return t0.Add(2 * time.Second) }
	_, err = s.Get(ctx, "session")
	assert.True(t, core.IsStoreNotFound(err))
	batch, err := s.BatchGet(ctx, []string{"session", "artifacts/model.json"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"artifacts/model.json": []byte("m")}, batch)

	// 下一次写入清除过期条目，不带 TTL 的制品保留
	require.NoError(t, s.Set(ctx, "other", []byte("o")))
	assert.Len(t, s.data, 2)
	assert.NotContains(t, s.data, "session")
}

func TestFileStore_BatchSet(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	kvs := map[string][]byte{
		"artifacts/preprocessor.json": []byte("p"),
		"artifacts/model.json":        []byte("m"),
		"artifacts/threshold.json":    []byte("t"),
	}
	require.NoError(t, s.BatchSet(ctx, kvs))

	entries, err := os.ReadDir(filepath.Join(dir, "artifacts"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	for k, v := range kvs {
		got, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	err = s.BatchSet(ctx, map[string][]byte{"artifacts/a": []byte("a"), "../escape": []byte("x")})
	require.Error(t, err)
	_, err = s.Get(ctx, "artifacts/a")
	assert.True(t, core.IsStoreNotFound(err))
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "artifacts/evaluation_report.csv", []byte("a,b\n")))
	data, err := os.ReadFile(filepath.Join(dir, "artifacts", "evaluation_report.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	// 不留下临时文件
	entries, err := os.ReadDir(filepath.Join(dir, "artifacts"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = s.Get(ctx, "../escape")
	assert.Error(t, err)
	assert.False(t, core.IsStoreNotFound(err))

	err = s.Set(ctx, "k", []byte("v"), 10)
	assert.ErrorIs(t, err, core.ErrStoreNotSupported)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Name())

	s, err = Open(ctx, Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "file", s.Name())

	s, err = Open(ctx, Options{Backend: BackendHTTP, BaseURL: "http://localhost"})
	require.NoError(t, err)
	assert.Equal(t, "http", s.Name())

	_, err = Open(ctx, Options{Backend: BackendHTTP})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Backend: "s3"})
	assert.True(t, core.IsNotSupported(err))
}

func TestHTTPStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, fs.BatchSet(ctx, map[string][]byte{
		"artifacts/threshold.json": []byte(`{"threshold":0.5}`),
		"artifacts/model.json":     []byte(`{}`),
	}))

	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	s := NewHTTPStore(srv.URL+"/", 0)
	data, err := s.Get(ctx, "artifacts/threshold.json")
	require.NoError(t, err)
	assert.Equal(t, `{"threshold":0.5}`, string(data))

	_, err = s.Get(ctx, "artifacts/missing.json")
	assert.ErrorIs(t, err, core.ErrStoreNotFound)

	got, err := s.BatchGet(ctx, []string{"artifacts/model.json", "artifacts/missing.json"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"artifacts/model.json": []byte(`{}`)}, got)

	assert.ErrorIs(t, s.Set(ctx, "k", []byte("v")), core.ErrStoreNotSupported)
	assert.ErrorIs(t, s.BatchSet(ctx, map[string][]byte{"k": nil}), core.ErrStoreNotSupported)
	assert.ErrorIs(t, s.Delete(ctx, "k"), core.ErrStoreNotSupported)

	srv.Close()
	_, err = s.Get(ctx, "artifacts/threshold.json")
	assert.True(t, core.IsUnavailable(err))
}
