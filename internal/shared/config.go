package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Service    ServiceConfig    `toml:"service"`
	Editor     EditorConfig     `toml:"editor"`
	Typewriter TypewriterConfig `toml:"typewriter"`
	History    HistoryConfig    `toml:"history"`
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
}

// ServiceConfig locates the analysis service and its push channel.
type ServiceConfig struct {
	BaseURL          string        `toml:"base_url"`
	WSURL            string        `toml:"ws_url"`
	AnalyzePath      string        `toml:"analyze_path"`
	WSPath           string        `toml:"ws_path"`
	HandshakeTimeout time.Duration `toml:"handshake_timeout"`
}

// EditorConfig contains input surface settings.
type EditorConfig struct {
	MinLines int `toml:"min_lines"`
}

// TypewriterConfig contains result animation settings.
type TypewriterConfig struct {
	Interval time.Duration `toml:"interval"`
}

// HistoryConfig contains session job history settings.
type HistoryConfig struct {
	Path string `toml:"path"`
}

// ServerConfig contains mock analysis server settings.
type ServerConfig struct {
	Host            string  `toml:"host"`
	Port            int     `toml:"port"`
	AllowedOrigin   string  `toml:"allowed_origin"`
	EventsPerSecond float64 `toml:"events_per_second"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads a TOML configuration file from the specified path and decodes it over the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the settings that would otherwise fail late, at dial or tick time.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Service.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: service.base_url must be an http(s) URL, got %q", ErrInvalidConfig, c.Service.BaseURL)
	}
	if c.Service.WSURL != "" {
		u, err := url.Parse(c.Service.WSURL)
		if err != nil || u.Host == "" || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("%w: service.ws_url must be a ws(s) URL, got %q", ErrInvalidConfig, c.Service.WSURL)
		}
	}
	if c.Typewriter.Interval <= 0 {
		return fmt.Errorf("%w: typewriter.interval must be positive", ErrInvalidConfig)
	}
	if c.Editor.MinLines < 0 {
		return fmt.Errorf("%w: editor.min_lines must not be negative", ErrInvalidConfig)
	}
	return nil
}

// PushURL returns the push channel base URL, deriving it from the service base URL when unset.
func (s ServiceConfig) PushURL() string {
	if s.WSURL != "" {
		return strings.TrimRight(s.WSURL, "/")
	}

	base := strings.TrimRight(s.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}

// Addr returns the mock server listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
