package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied by WithDefaults.
const (
	DefaultPageSize       = 20
	DefaultMaxFreeChat    = 10
	DefaultRevealDelay    = 500 * time.Millisecond
	DefaultRequestTimeout = 15 * time.Second
	DefaultPreviewTimeout = 5 * time.Second
	DefaultCacheSize      = 256
	DefaultCacheTTL       = 10 * time.Minute
	DefaultWelcomeText    = "Tell me, how can I help?"
	DefaultLiveTransport  = "sse"
)

// Config represents the global ~/.twin/config.toml.
type Config struct {
	DefaultSession string             `toml:"default_session"`
	Platform       Platform           `toml:"platform"`
	Chat           Chat               `toml:"chat"`
	Preview        Preview            `toml:"preview"`
	Daemon         Daemon             `toml:"daemon"`
	Sessions       map[string]Session `toml:"sessions,omitempty"`
}

// Platform holds the remote endpoints.
type Platform struct {
	APIBaseURL     string   `toml:"api_base_url"`
	SSEBaseURL     string   `toml:"sse_base_url"`
	MetadataURL    string   `toml:"metadata_url"`
	LiveTransport  string   `toml:"live_transport"`
	RequestTimeout Duration `toml:"request_timeout"`
}

// Chat holds conversation behaviour settings.
type Chat struct {
	PageSize     int      `toml:"page_size"`
	MaxFreeChat  int      `toml:"max_free_chat"`
	RevealDelay  Duration `toml:"reveal_delay"`
	WelcomeText  string   `toml:"welcome_text"`
	SubscribeURL string   `toml:"subscribe_url"`
}

// Preview configures link enrichment.
type Preview struct {
	Timeout   Duration `toml:"timeout"`
	CacheSize int      `toml:"cache_size"`
	CacheTTL  Duration `toml:"cache_ttl"`
}

// Daemon configures the optional HTTP listener.
type Daemon struct {
	HTTPListen string `toml:"http_listen"`
}

// Session is the per-session bot binding.
type Session struct {
	BotCode string `toml:"bot_code"`
	Token   string `toml:"token"`
}

// Duration is a time.Duration written as a string ("500ms", "15s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", b, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to defaults when the file is missing.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return (&Config{}).WithDefaults(), nil
		}
		return nil, err
	}
	return cfg.WithDefaults(), nil
}

// WithDefaults fills zero values in place and returns cfg.
func (cfg *Config) WithDefaults() *Config {
	if cfg.Platform.LiveTransport == "" {
		cfg.Platform.LiveTransport = DefaultLiveTransport
	}
	if cfg.Platform.RequestTimeout.Duration <= 0 {
		cfg.Platform.RequestTimeout.Duration = DefaultRequestTimeout
	}
	if cfg.Chat.PageSize <= 0 {
		cfg.Chat.PageSize = DefaultPageSize
	}
	if cfg.Chat.MaxFreeChat <= 0 {
		cfg.Chat.MaxFreeChat = DefaultMaxFreeChat
	}
	if cfg.Chat.RevealDelay.Duration <= 0 {
		cfg.Chat.RevealDelay.Duration = DefaultRevealDelay
	}
	if cfg.Chat.WelcomeText == "" {
		cfg.Chat.WelcomeText = DefaultWelcomeText
	}
	if cfg.Preview.Timeout.Duration <= 0 {
		cfg.Preview.Timeout.Duration = DefaultPreviewTimeout
	}
	if cfg.Preview.CacheSize <= 0 {
		cfg.Preview.CacheSize = DefaultCacheSize
	}
	if cfg.Preview.CacheTTL.Duration <= 0 {
		cfg.Preview.CacheTTL.Duration = DefaultCacheTTL
	}
	return cfg
}

// Session returns the binding for name.
func (cfg *Config) Session(name string) (Session, error) {
	s, ok := cfg.Sessions[name]
	if !ok {
		return Session{}, fmt.Errorf("session %q is not configured", name)
	}
	if s.BotCode == "" {
		return Session{}, fmt.Errorf("session %q has no bot_code", name)
	}
	return s, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
