package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rushteam/fraudkit/artifact"
	"github.com/rushteam/fraudkit/scoring"
	"github.com/rushteam/fraudkit/store"
)

// 默认值
const (
	DefaultEnv          = "development"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"
	DefaultPort         = "8080"
	DefaultArtifactDir  = "."
	DefaultModelTimeout = 2 * time.Second
	DefaultModelName    = "fraud-detector"
	DefaultRateLimitRPS = 100
	DefaultAuditTopic   = "fraud-decisions"
)

// App 进程级配置，全部来自环境变量
type App struct {
	Env       string
	LogLevel  string
	LogFormat string // console / json
	Port      string

	// 制品存储
	ArtifactBackend string
	ArtifactDir     string
	ArtifactPrefix  string
	RedisAddr       string
	RedisDB         int
	ArtifactURL     string

	// 模型后端
	ModelBackend  string
	ModelEndpoint string
	ModelTimeout  time.Duration
	ModelName     string
	ModelProtocol string

	// RateLimitRPS /predict 每秒请求上限，<=0 表示不限流
	RateLimitRPS int

	// 决策审计，KafkaBrokers 为空时不投递
	KafkaBrokers []string
	AuditTopic   string
}

// LoadApp 读取环境变量。存在 .env 时先加载（不覆盖已有环境变量）。
func LoadApp() (*App, error) {
	_ = godotenv.Load()

	cfg := &App{
		Env:             getEnv("FRAUDKIT_ENV", DefaultEnv),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:       getEnv("LOG_FORMAT", DefaultLogFormat),
		Port:            getEnv("PORT", DefaultPort),
		ArtifactBackend: getEnv("ARTIFACT_BACKEND", store.BackendFile),
		ArtifactDir:     getEnv("ARTIFACT_DIR", DefaultArtifactDir),
		ArtifactPrefix:  getEnv("ARTIFACT_PREFIX", artifact.DefaultPrefix),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisDB:         int(getEnvInt64("REDIS_DB", 0)),
		ArtifactURL:     os.Getenv("ARTIFACT_URL"),
		ModelBackend:    getEnv("MODEL_BACKEND", scoring.BackendLocal),
		ModelEndpoint:   os.Getenv("MODEL_ENDPOINT"),
		ModelTimeout:    getEnvDuration("MODEL_TIMEOUT", DefaultModelTimeout),
		ModelName:       getEnv("MODEL_NAME", DefaultModelName),
		ModelProtocol:   getEnv("MODEL_PROTOCOL", "v2"),
		RateLimitRPS:    int(getEnvInt64("RATE_LIMIT_RPS", DefaultRateLimitRPS)),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		AuditTopic:      getEnv("AUDIT_TOPIC", DefaultAuditTopic),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查各后端所需的配置是否齐全
func (c *App) Validate() error {
	switch c.ArtifactBackend {
	case store.BackendFile, store.BackendMemory:
	case store.BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for redis artifact backend")
		}
	case store.BackendHTTP:
		if c.ArtifactURL == "" {
			return fmt.Errorf("ARTIFACT_URL is required for http artifact backend")
		}
	default:
		return fmt.Errorf("unknown ARTIFACT_BACKEND %q", c.ArtifactBackend)
	}

	switch c.ModelBackend {
	case scoring.BackendLocal:
	case scoring.BackendRPC, scoring.BackendKServe:
		if c.ModelEndpoint == "" {
			return fmt.Errorf("MODEL_ENDPOINT is required for %s model backend", c.ModelBackend)
		}
	default:
		return fmt.Errorf("unknown MODEL_BACKEND %q", c.ModelBackend)
	}
	return nil
}

// IsProduction 是否生产环境
func (c *App) IsProduction() bool { return c.Env == "production" }

// StoreOptions 制品存储配置
func (c *App) StoreOptions() store.Options {
	return store.Options{
		Backend:   c.ArtifactBackend,
		Dir:       c.ArtifactDir,
		RedisAddr: c.RedisAddr,
		RedisDB:   c.RedisDB,
		BaseURL:   c.ArtifactURL,
	}
}

// ScoringConfig 打分服务配置
func (c *App) ScoringConfig() scoring.Config {
	return scoring.Config{
		Prefix:        c.ArtifactPrefix,
		ModelBackend:  c.ModelBackend,
		ModelEndpoint: c.ModelEndpoint,
		ModelTimeout:  c.ModelTimeout,
		ModelName:     c.ModelName,
		ModelProtocol: c.ModelProtocol,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
