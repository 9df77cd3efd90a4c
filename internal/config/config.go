package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"gopkg.in/yaml.v3"
)

// Config is the complete parley configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Dialog   DialogConfig   `yaml:"dialog"`
	State    StateConfig    `yaml:"state"`
	Handlers HandlersConfig `yaml:"handlers"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds listener addresses.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	MCPPort  int    `yaml:"mcp_port"`
}

// DialogConfig holds the routing knobs. See runtime.Config.
type DialogConfig struct {
	MinHandlerConfidence        float64  `yaml:"min_handler_confidence"`
	MaxSideSpeechConfidence     float64  `yaml:"max_side_speech_confidence"`
	IgnoreSideSpeech            bool     `yaml:"ignore_side_speech"`
	MaxStoreSizeBytes           int      `yaml:"max_store_size_bytes"`
	AllowedGlobalProfileEditors []string `yaml:"allowed_global_profile_editors"`
	MaxConversationHistory      int      `yaml:"max_conversation_history"`
	MaxRecursionDepth           int      `yaml:"max_recursion_depth"`
	TriggerConcurrency          int      `yaml:"trigger_concurrency"`
	CommonDomain                string   `yaml:"common_domain"`
	SideSpeechDomain            string   `yaml:"side_speech_domain"`
	SystemDomain                string   `yaml:"system_domain"`

	CachedActionGrace    time.Duration `yaml:"-"`
	CachedActionGraceRaw string        `yaml:"cached_action_grace"`
}

// StateConfig selects and tunes the conversation state backend.
type StateConfig struct {
	// Backend is "memory", "file" or "redis".
	Backend     string           `yaml:"backend"`
	Redis       RedisConfig      `yaml:"redis"`
	File        FileConfig       `yaml:"file"`
	Encryption  EncryptionConfig `yaml:"encryption"`
	PIIPatterns []string         `yaml:"pii_patterns"`

	TTL          time.Duration `yaml:"-"`
	LockTTL      time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`

	TTLRaw          string `yaml:"ttl"`
	LockTTLRaw      string `yaml:"lock_ttl"`
	WriteTimeoutRaw string `yaml:"write_timeout"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// FileConfig holds the file backend settings.
type FileConfig struct {
	Dir string `yaml:"dir"`
}

// EncryptionConfig holds base64-encoded AES-256 keys. An empty Key disables
// encryption at rest.
type EncryptionConfig struct {
	Key          string   `yaml:"key"`
	FallbackKeys []string `yaml:"fallback_keys"`
}

// HandlersConfig lists handler definition sources.
type HandlersConfig struct {
	Dir   string   `yaml:"dir"`
	Files []string `yaml:"files"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds the metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the stock configuration: in-memory state, handlers from
// ./handlers, metrics on /metrics.
func Default() Config {
	d := runtime.DefaultConfig()
	return Config{
		Server: ServerConfig{HTTPAddr: ":8080"},
		Dialog: DialogConfig{
			MinHandlerConfidence:    d.MinHandlerConfidence,
			MaxSideSpeechConfidence: d.MaxSideSpeechConfidence,
			MaxStoreSizeBytes:       d.MaxStoreSizeBytes,
			MaxConversationHistory:  d.MaxConversationHistory,
			MaxRecursionDepth:       d.MaxRecursionDepth,
			CommonDomain:            d.CommonDomain,
			SideSpeechDomain:        d.SideSpeechDomain,
			SystemDomain:            d.SystemDomain,
			CachedActionGrace:       d.CachedActionGrace,
			CachedActionGraceRaw:    d.CachedActionGrace.String(),
		},
		State: StateConfig{
			Backend:         "memory",
			Redis:           RedisConfig{Addr: "localhost:6379", Prefix: "parley:"},
			File:            FileConfig{Dir: ".parley/state"},
			TTL:             24 * time.Hour,
			LockTTL:         10 * time.Second,
			WriteTimeout:    5 * time.Second,
			TTLRaw:          "24h",
			LockTTLRaw:      "10s",
			WriteTimeoutRaw: "5s",
		},
		Handlers: HandlersConfig{Dir: "handlers"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Metrics:  MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load reads the configuration file at path. Keys absent from the file keep
// their Default values. ${VAR} references are expanded from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, completes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

var envVar = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value, or nothing when unset.
func expandEnvVars(s string) string {
	return envVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVar.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"dialog.cached_action_grace", cfg.Dialog.CachedActionGraceRaw, &cfg.Dialog.CachedActionGrace},
		{"state.ttl", cfg.State.TTLRaw, &cfg.State.TTL},
		{"state.lock_ttl", cfg.State.LockTTLRaw, &cfg.State.LockTTL},
		{"state.write_timeout", cfg.State.WriteTimeoutRaw, &cfg.State.WriteTimeout},
	}
	for _, f := range fields {
		if f.raw == "" {
			*f.dst = 0
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	d := c.Dialog
	if d.MinHandlerConfidence < 0 || d.MinHandlerConfidence > 1 {
		return fmt.Errorf("dialog.min_handler_confidence must be within [0, 1], got %v", d.MinHandlerConfidence)
	}
	if d.MaxSideSpeechConfidence < 0 || d.MaxSideSpeechConfidence > 1 {
		return fmt.Errorf("dialog.max_side_speech_confidence must be within [0, 1], got %v", d.MaxSideSpeechConfidence)
	}
	if d.MaxStoreSizeBytes < 0 {
		return fmt.Errorf("dialog.max_store_size_bytes must not be negative")
	}
	if d.MaxRecursionDepth <= 0 {
		return fmt.Errorf("dialog.max_recursion_depth must be positive")
	}
	if d.MaxConversationHistory < 0 {
		return fmt.Errorf("dialog.max_conversation_history must not be negative")
	}

	switch c.State.Backend {
	case "memory":
	case "file":
		if c.State.File.Dir == "" {
			return fmt.Errorf("state.file.dir is required when state.backend is file")
		}
	case "redis":
		if c.State.Redis.Addr == "" {
			return fmt.Errorf("state.redis.addr is required when state.backend is redis")
		}
	default:
		return fmt.Errorf("state.backend must be memory, file or redis, got %q", c.State.Backend)
	}
	if _, _, err := c.State.Encryption.Middleware(); err != nil {
		return err
	}
	if len(c.State.PIIPatterns) > 0 {
		if _, err := middleware.NewPIIMiddleware(c.State.PIIPatterns); err != nil {
			return fmt.Errorf("state.pii_patterns: %w", err)
		}
	}

	if c.Handlers.Dir == "" && len(c.Handlers.Files) == 0 {
		return fmt.Errorf("handlers.dir or handlers.files is required")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// Runtime converts the dialog section into the engine configuration.
func (d DialogConfig) Runtime() runtime.Config {
	return runtime.Config{
		MinHandlerConfidence:        d.MinHandlerConfidence,
		MaxSideSpeechConfidence:     d.MaxSideSpeechConfidence,
		IgnoreSideSpeech:            d.IgnoreSideSpeech,
		MaxStoreSizeBytes:           d.MaxStoreSizeBytes,
		AllowedGlobalProfileEditors: d.AllowedGlobalProfileEditors,
		MaxConversationHistory:      d.MaxConversationHistory,
		MaxRecursionDepth:           d.MaxRecursionDepth,
		TriggerConcurrency:          d.TriggerConcurrency,
		CachedActionGrace:           d.CachedActionGrace,
		CommonDomain:                d.CommonDomain,
		SideSpeechDomain:            d.SideSpeechDomain,
		SystemDomain:                d.SystemDomain,
	}
}

// Middleware decodes the keys and builds the encryption middleware. It
// returns false when encryption is disabled.
func (e EncryptionConfig) Middleware() (middleware.Middleware, bool, error) {
	if e.Key == "" {
		if len(e.FallbackKeys) > 0 {
			return nil, false, fmt.Errorf("state.encryption.fallback_keys requires state.encryption.key")
		}
		return nil, false, nil
	}
	active, err := decodeKey("state.encryption.key", e.Key)
	if err != nil {
		return nil, false, err
	}
	cfg := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range e.FallbackKeys {
		fb, err := decodeKey(fmt.Sprintf("state.encryption.fallback_keys[%d]", i), k)
		if err != nil {
			return nil, false, err
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, fb)
	}
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	if err != nil {
		return nil, false, fmt.Errorf("state.encryption: %w", err)
	}
	return mw, true, nil
}

func decodeKey(name, s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", name, err)
	}
	return b, nil
}
