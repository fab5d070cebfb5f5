// Package config loads and validates ingestor configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// AppName names the data directory under the XDG data home.
const AppName = "site-ingestor"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Profiler  ProfilerConfig  `mapstructure:"profiler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Index     IndexConfig     `mapstructure:"index"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Events    EventsConfig    `mapstructure:"events"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                 int `mapstructure:"port"`
	RequestTimeoutSec    int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSec   int `mapstructure:"shutdown_timeout_seconds"`
	ReadHeaderTimeoutSec int `mapstructure:"read_header_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig governs the static fetcher and crawl bounds.
type CrawlerConfig struct {
	UserAgent         string  `mapstructure:"user_agent"`
	RequestTimeoutSec int     `mapstructure:"request_timeout_seconds"`
	RespectRobots     bool    `mapstructure:"respect_robots"`
	MaxPages          int     `mapstructure:"max_pages"`
	MaxFrontier       int     `mapstructure:"max_frontier"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// HeadlessConfig configures the browser-backed fetcher.
type HeadlessConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	MaxParallel    int    `mapstructure:"max_parallel"`
	NavTimeoutSec  int    `mapstructure:"nav_timeout_seconds"`
	SettleDelaySec int    `mapstructure:"settle_delay_seconds"`
	ExecPath       string `mapstructure:"exec_path"`
}

// ProfilerConfig bounds technology detection.
type ProfilerConfig struct {
	TimeoutSec int `mapstructure:"timeout_seconds"`
}

// StorageConfig selects the document and session store.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	DSN       string `mapstructure:"dsn"`
	MaxConns  int32  `mapstructure:"max_conns"`
	SQLiteDir string `mapstructure:"sqlite_dir"`
}

// ArtifactsConfig selects where final documents are written.
type ArtifactsConfig struct {
	Provider string `mapstructure:"provider"`
	Dir      string `mapstructure:"dir"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// IndexConfig tunes the retrieval index cache.
type IndexConfig struct {
	Durable        string `mapstructure:"durable"`
	Dir            string `mapstructure:"dir"`
	ChunkSize      int    `mapstructure:"chunk_size"`
	ChunkOverlap   int    `mapstructure:"chunk_overlap"`
	TopK           int    `mapstructure:"top_k"`
	EmbedBatchSize int    `mapstructure:"embed_batch_size"`
	PoolSize       int    `mapstructure:"pool_size"`
}

// LLMConfig points at the embedding and chat models.
type LLMConfig struct {
	Provider       string  `mapstructure:"provider"`
	Host           string  `mapstructure:"host"`
	Token          string  `mapstructure:"token"`
	ChatModel      string  `mapstructure:"chat_model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	Temperature    float64 `mapstructure:"temperature"`
}

// EventsConfig selects where session events are published.
type EventsConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// DispatchConfig sizes the worker pool.
type DispatchConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INGESTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// DataDir is the default root for local state.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

func setDefaults(v *viper.Viper) {
	data := DataDir()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("server.read_header_timeout_seconds", 10)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("crawler.user_agent", "site-ingestor/0.1")
	v.SetDefault("crawler.request_timeout_seconds", 10)
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("crawler.max_pages", 0)
	v.SetDefault("crawler.max_frontier", 0)
	v.SetDefault("crawler.requests_per_second", 0)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.settle_delay_seconds", 5)
	v.SetDefault("profiler.timeout_seconds", 15)
	v.SetDefault("storage.provider", "sqlite")
	v.SetDefault("storage.sqlite_dir", filepath.Join(data, "db"))
	v.SetDefault("artifacts.provider", "local")
	v.SetDefault("artifacts.dir", filepath.Join(data, "documents"))
	v.SetDefault("index.durable", "local")
	v.SetDefault("index.dir", filepath.Join(data, "index"))
	v.SetDefault("index.chunk_size", 1000)
	v.SetDefault("index.chunk_overlap", 100)
	v.SetDefault("index.top_k", 4)
	v.SetDefault("index.embed_batch_size", 32)
	v.SetDefault("index.pool_size", 4)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.host", "http://localhost:11434/v1")
	v.SetDefault("llm.chat_model", "gemma:7b")
	v.SetDefault("llm.embedding_model", "all-minilm")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("events.provider", "none")
	v.SetDefault("events.topic", "ingestor-sessions")
	v.SetDefault("dispatch.workers", 2)
	v.SetDefault("dispatch.queue_depth", 64)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Crawler.RequestTimeoutSec <= 0 {
		return fmt.Errorf("crawler.request_timeout_seconds must be > 0")
	}
	if c.Crawler.MaxPages < 0 || c.Crawler.MaxFrontier < 0 || c.Crawler.RequestsPerSecond < 0 {
		return fmt.Errorf("crawler bounds must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Headless.SettleDelaySec < 0 {
		return fmt.Errorf("headless.settle_delay_seconds must be >= 0")
	}
	if c.Profiler.TimeoutSec <= 0 {
		return fmt.Errorf("profiler.timeout_seconds must be > 0")
	}
	switch c.Storage.Provider {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for postgres")
		}
	case "sqlite":
		if c.Storage.SQLiteDir == "" {
			return fmt.Errorf("storage.sqlite_dir is required for sqlite")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	switch c.Artifacts.Provider {
	case "none":
	case "local":
		if c.Artifacts.Dir == "" {
			return fmt.Errorf("artifacts.dir is required for local artifacts")
		}
	case "gcs":
		if c.Artifacts.Bucket == "" {
			return fmt.Errorf("artifacts.bucket is required for gcs artifacts")
		}
	default:
		return fmt.Errorf("unknown artifacts.provider %q", c.Artifacts.Provider)
	}
	switch c.Index.Durable {
	case "local", "badger", "memory":
	case "gcs":
		if c.Artifacts.Bucket == "" {
			return fmt.Errorf("artifacts.bucket is required for the gcs index tier")
		}
	default:
		return fmt.Errorf("unknown index.durable %q", c.Index.Durable)
	}
	if (c.Index.Durable == "local" || c.Index.Durable == "badger") && c.Index.Dir == "" {
		return fmt.Errorf("index.dir is required")
	}
	// Both write <docID>.json at the top of their directory.
	if c.Artifacts.Provider == "local" && c.Index.Durable == "local" &&
		filepath.Clean(c.Artifacts.Dir) == filepath.Clean(c.Index.Dir) {
		return fmt.Errorf("artifacts.dir and index.dir must differ")
	}
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("index.chunk_size must be > 0")
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("index.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Index.TopK <= 0 {
		return fmt.Errorf("index.top_k must be > 0")
	}
	if c.LLM.Provider != "offline" {
		if _, err := url.ParseRequestURI(c.LLM.Host); err != nil {
			return fmt.Errorf("llm.host must be a URL: %w", err)
		}
	}
	switch c.Events.Provider {
	case "memory", "none":
	case "pubsub":
		if c.Events.ProjectID == "" || c.Events.Topic == "" {
			return fmt.Errorf("events.project_id and events.topic are required for pubsub")
		}
	default:
		return fmt.Errorf("unknown events.provider %q", c.Events.Provider)
	}
	if c.Dispatch.Workers <= 0 {
		return fmt.Errorf("dispatch.workers must be > 0")
	}
	if c.Dispatch.QueueDepth <= 0 {
		return fmt.Errorf("dispatch.queue_depth must be > 0")
	}
	return nil
}

// RequestTimeout is the static fetch timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.RequestTimeoutSec) * time.Second
}

// ProfilerTimeout bounds each technology detector.
func (c Config) ProfilerTimeout() time.Duration {
	return time.Duration(c.Profiler.TimeoutSec) * time.Second
}

// NavTimeout bounds one headless navigation.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// SettleDelay is the fixed wait after headless navigation.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Headless.SettleDelaySec) * time.Second
}

// ServerRequestTimeout bounds one API request.
func (c Config) ServerRequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSec) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}
