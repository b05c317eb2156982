package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rushteam/fraudkit/core"
)

// HTTPStore 只读存储：Get 对应 GET {baseURL}/{key}。
// 适用于打分服务从静态文件服务或对象存储的公开地址拉取制品。
//
// 用法：
//
//	s := store.NewHTTPStore("https://models.example.com/fraud/", 10*time.Second)
type HTTPStore struct {
	base   string
	client *http.Client
}

func NewHTTPStore(baseURL string, timeout time.Duration) *HTTPStore {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPStore{
		base:   strings.TrimRight(baseURL, "/") + "/",
		client: &http.Client{Timeout: timeout},
	}
}

// NewHTTPStoreWithClient 使用自定义 HTTP 客户端
func NewHTTPStoreWithClient(baseURL string, client *http.Client) *HTTPStore {
	return &HTTPStore{base: strings.TrimRight(baseURL, "/") + "/", client: client}
}

func (s *HTTPStore) Name() string { return "http" }

func (s *HTTPStore) Get(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+escapeKey(key), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "http get "+key, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.ErrStoreNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeUnavailable,
			fmt.Sprintf("http get %s: status=%d", key, resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *HTTPStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, err := s.Get(ctx, k)
		if core.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (s *HTTPStore) Set(context.Context, string, []byte, ...int) error {
	return core.ErrStoreNotSupported
}

func (s *HTTPStore) Delete(context.Context, string) error {
	return core.ErrStoreNotSupported
}

func (s *HTTPStore) BatchSet(context.Context, map[string][]byte, ...int) error {
	return core.ErrStoreNotSupported
}

func (s *HTTPStore) Close() error { return nil }

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var _ core.Store = (*HTTPStore)(nil)
