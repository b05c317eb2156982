package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rushteam/fraudkit/core"
)

// FileStore 把每个 key 存为根目录下的一个文件，key 中的 "/" 对应子目录。
// 写入先落临时文件再 rename，读者不会看到写了一半的文件。不支持 TTL。
type FileStore struct {
	root string
	mu   sync.RWMutex
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

func (f *FileStore) Name() string { return "file" }

// Root 根目录
func (f *FileStore) Root() string { return f.root }

func (f *FileStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, fmt.Sprintf("invalid key %q", key))
	}
	return filepath.Join(f.root, clean), nil
}

func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.read(key)
}

func (f *FileStore) read(key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.ErrStoreNotFound
	}
	return data, err
}

func (f *FileStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	return f.BatchSet(ctx, map[string][]byte{key: value}, ttl...)
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *FileStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	for _, k := range keys {
		data, err := f.read(k)
		if core.IsStoreNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[k] = data
	}
	return result, nil
}

// BatchSet 先把整批写入临时文件，全部成功后在写锁内依次 rename。
// 任何临时文件写入失败时整批放弃，已有文件保持不变。
func (f *FileStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	if len(ttl) > 0 && ttl[0] > 0 {
		return core.ErrStoreNotSupported
	}

	staged := make(map[string]string, len(kvs))
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}
	for k, v := range kvs {
		p, err := f.path(k)
		if err != nil {
			cleanup()
			return err
		}
		tmp, err := writeTemp(p, v)
		if err != nil {
			cleanup()
			return fmt.Errorf("stage %s: %w", k, err)
		}
		staged[p] = tmp
	}

	paths := make([]string, 0, len(staged))
	for p := range staged {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		if err := os.Rename(staged[p], p); err != nil {
			cleanup()
			return fmt.Errorf("commit %s: %w", p, err)
		}
		delete(staged, p)
	}
	return nil
}

func writeTemp(path string, data []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (f *FileStore) Close() error { return nil }

var _ core.Store = (*FileStore)(nil)
