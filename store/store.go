package store

import (
	"context"
	"fmt"

	"github.com/rushteam/fraudkit/core"
)

// 注意：此包只包含实现，接口定义在 core 包。
//
// 示例：
//   var s core.Store = store.NewMemoryStore()

// 后端名称
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendHTTP   = "http"
)

// Options 打开存储后端所需的配置
type Options struct {
	Backend   string
	Dir       string // file 后端根目录
	RedisAddr string
	RedisDB   int
	BaseURL   string // http 后端（只读）
}

// Open 按 Backend 创建存储，空 Backend 视为 file
func Open(ctx context.Context, opts Options) (core.Store, error) {
	switch opts.Backend {
	case BackendFile, "":
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		return NewFileStore(dir)
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisAddr, opts.RedisDB)
	case BackendHTTP:
		if opts.BaseURL == "" {
			return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "http store requires a base url")
		}
		return NewHTTPStore(opts.BaseURL, 0), nil
	default:
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotSupported,
			fmt.Sprintf("unknown store backend %q", opts.Backend))
	}
}
