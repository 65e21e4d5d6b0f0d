package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string // SITECONF_HTTP_ADDR (default ":3000")
	GRPCAddr     string // SITECONF_GRPC_ADDR (default ":9090"; "off" = disabled)
	DatabaseURL  string // SITECONF_DATABASE_URL (optional, empty = in-memory store)
	RedisURL     string // SITECONF_REDIS_URL (optional, subscribers kept in redis when set)
	NATSURL      string // SITECONF_NATS_URL (optional, empty = no bus events)
	DefaultsFile string // SITECONF_DEFAULTS_FILE (optional TOML deployment defaults)
	LogLevel     string // SITECONF_LOG_LEVEL (default "info")
	LogFormat    string // SITECONF_LOG_FORMAT (default "text"; "json")

	// Delivery settings
	WebhookTimeout time.Duration // SITECONF_WEBHOOK_TIMEOUT (default 5s)
	SubscriberTTL  time.Duration // SITECONF_SUBSCRIBER_TTL (default 168h; 0 = never expire)
	ReapInterval   time.Duration // SITECONF_REAP_INTERVAL (default 1m)
	SaveRetries    int           // SITECONF_SAVE_RETRIES (default 5)

	// Snapshot settings
	SnapshotInterval   time.Duration // SITECONF_SNAPSHOT_INTERVAL (default 0 = disabled)
	SnapshotS3Bucket   string        // SITECONF_SNAPSHOT_S3_BUCKET (enables S3 when set)
	SnapshotS3Endpoint string        // SITECONF_SNAPSHOT_S3_ENDPOINT (custom endpoint for MinIO)
	SnapshotS3Region   string        // SITECONF_SNAPSHOT_S3_REGION (default "us-east-1")
	SnapshotS3Key      string        // SITECONF_SNAPSHOT_S3_KEY (default "sitesync/site-config.json")
	SnapshotS3History  string        // SITECONF_SNAPSHOT_S3_HISTORY (key prefix for per-version copies; empty = off)
	SnapshotGitRepo    string        // SITECONF_SNAPSHOT_GIT_REPO (enables git when set; path to clone)
	SnapshotGitFile    string        // SITECONF_SNAPSHOT_GIT_FILE (default "data/site-config.json")
	SnapshotGitBranch  string        // SITECONF_SNAPSHOT_GIT_BRANCH (default "main")
	SnapshotGitAuthor  string        // SITECONF_SNAPSHOT_GIT_AUTHOR ("Name <email>"; empty = repo config)
}

func Load() (*Config, error) {
	c := &Config{
		HTTPAddr:           envOrDefault("SITECONF_HTTP_ADDR", ":3000"),
		GRPCAddr:           envOrDefault("SITECONF_GRPC_ADDR", ":9090"),
		DatabaseURL:        os.Getenv("SITECONF_DATABASE_URL"),
		RedisURL:           os.Getenv("SITECONF_REDIS_URL"),
		NATSURL:            os.Getenv("SITECONF_NATS_URL"),
		DefaultsFile:       os.Getenv("SITECONF_DEFAULTS_FILE"),
		LogLevel:           envOrDefault("SITECONF_LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("SITECONF_LOG_FORMAT", "text"),
		SnapshotS3Bucket:   os.Getenv("SITECONF_SNAPSHOT_S3_BUCKET"),
		SnapshotS3Endpoint: os.Getenv("SITECONF_SNAPSHOT_S3_ENDPOINT"),
		SnapshotS3Region:   envOrDefault("SITECONF_SNAPSHOT_S3_REGION", "us-east-1"),
		SnapshotS3Key:      envOrDefault("SITECONF_SNAPSHOT_S3_KEY", "sitesync/site-config.json"),
		SnapshotS3History:  os.Getenv("SITECONF_SNAPSHOT_S3_HISTORY"),
		SnapshotGitRepo:    os.Getenv("SITECONF_SNAPSHOT_GIT_REPO"),
		SnapshotGitFile:    envOrDefault("SITECONF_SNAPSHOT_GIT_FILE", "data/site-config.json"),
		SnapshotGitBranch:  envOrDefault("SITECONF_SNAPSHOT_GIT_BRANCH", "main"),
		SnapshotGitAuthor:  os.Getenv("SITECONF_SNAPSHOT_GIT_AUTHOR"),
	}
	if c.GRPCAddr == "off" {
		c.GRPCAddr = ""
	}

	var err error
	if c.WebhookTimeout, err = durationEnv("SITECONF_WEBHOOK_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if c.WebhookTimeout <= 0 {
		return nil, fmt.Errorf("SITECONF_WEBHOOK_TIMEOUT must be positive")
	}
	if c.SubscriberTTL, err = durationEnv("SITECONF_SUBSCRIBER_TTL", "168h"); err != nil {
		return nil, err
	}
	if c.ReapInterval, err = durationEnv("SITECONF_REAP_INTERVAL", "1m"); err != nil {
		return nil, err
	}
	if c.SnapshotInterval, err = durationEnv("SITECONF_SNAPSHOT_INTERVAL", "0"); err != nil {
		return nil, err
	}
	if c.SaveRetries, err = intEnv("SITECONF_SAVE_RETRIES", 5); err != nil {
		return nil, err
	}
	if c.SaveRetries < 1 {
		return nil, fmt.Errorf("SITECONF_SAVE_RETRIES must be at least 1")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return nil, fmt.Errorf("SITECONF_LOG_LEVEL: %w", err)
	}

	return c, nil
}

// AgentConfig configures the client-site adapter daemon.
type AgentConfig struct {
	OriginURL      string        // SITEAGENT_ORIGIN_URL (required)
	ListenAddr     string        // SITEAGENT_LISTEN_ADDR (default ":4000")
	PublicURL      string        // SITEAGENT_PUBLIC_URL (optional; enables webhook registration)
	WebhookPath    string        // SITEAGENT_WEBHOOK_PATH (default "/webhooks/site-config")
	WebhookSecret  string        // SITEAGENT_WEBHOOK_SECRET (required when PublicURL is set)
	PollInterval   time.Duration // SITEAGENT_POLL_INTERVAL (default 30s; 0 = disabled)
	CacheDir       string        // SITEAGENT_CACHE_DIR (default "./data")
	RebuildCmd     string        // SITEAGENT_REBUILD_CMD (optional shell command run after apply)
	RebuildTimeout int           // SITEAGENT_REBUILD_TIMEOUT seconds (default 0 = executor default)
	NATSURL        string        // SITEAGENT_NATS_URL (optional bus subscription)
	LogLevel       string        // SITEAGENT_LOG_LEVEL (default "info")
}

func LoadAgent() (*AgentConfig, error) {
	c := &AgentConfig{
		OriginURL:     strings.TrimRight(os.Getenv("SITEAGENT_ORIGIN_URL"), "/"),
		ListenAddr:    envOrDefault("SITEAGENT_LISTEN_ADDR", ":4000"),
		PublicURL:     strings.TrimRight(os.Getenv("SITEAGENT_PUBLIC_URL"), "/"),
		WebhookPath:   envOrDefault("SITEAGENT_WEBHOOK_PATH", "/webhooks/site-config"),
		WebhookSecret: os.Getenv("SITEAGENT_WEBHOOK_SECRET"),
		CacheDir:      envOrDefault("SITEAGENT_CACHE_DIR", "./data"),
		RebuildCmd:    os.Getenv("SITEAGENT_REBUILD_CMD"),
		NATSURL:       os.Getenv("SITEAGENT_NATS_URL"),
		LogLevel:      envOrDefault("SITEAGENT_LOG_LEVEL", "info"),
	}
	if c.OriginURL == "" {
		return nil, fmt.Errorf("SITEAGENT_ORIGIN_URL is required")
	}
	if c.PublicURL != "" && c.WebhookSecret == "" {
		return nil, fmt.Errorf("SITEAGENT_WEBHOOK_SECRET is required when SITEAGENT_PUBLIC_URL is set")
	}
	if !strings.HasPrefix(c.WebhookPath, "/") {
		c.WebhookPath = "/" + c.WebhookPath
	}

	var err error
	if c.PollInterval, err = durationEnv("SITEAGENT_POLL_INTERVAL", "30s"); err != nil {
		return nil, err
	}
	if c.RebuildTimeout, err = intEnv("SITEAGENT_REBUILD_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return nil, fmt.Errorf("SITEAGENT_LOG_LEVEL: %w", err)
	}
	return c, nil
}

// CallbackURL is the webhook URL the agent registers with the origin.
func (c *AgentConfig) CallbackURL() string {
	if c.PublicURL == "" {
		return ""
	}
	return c.PublicURL + c.WebhookPath
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win, and a missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// NewLogger builds the process logger; format "json" selects the JSON
// handler, anything else the text handler.
func NewLogger(level, format string) *slog.Logger {
	l, _ := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: l}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	if s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
