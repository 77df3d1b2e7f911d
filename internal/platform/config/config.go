package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvInt64 is GetEnvInt for 64-bit values.
func GetEnvInt64(key string, fallback int64) int64 {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat returns the float value of key, or fallback if unset or invalid.
func GetEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

// GetEnvDuration parses key with time.ParseDuration ("10s", "1m30s").
// A bare integer is read as seconds.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// GetEnvBool returns the boolean value of key, or fallback if unset or invalid.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// Renderer backends.
const (
	RendererWebSocket = "websocket"
	RendererTerminal  = "terminal"
	RendererNone      = "none"
)

// Rotation modes.
const (
	RotationInternal = "internal"
	RotationExternal = "external"
)

// Settings is the full runtime configuration of the carousel server.
type Settings struct {
	Port             string        `yaml:"port"`
	LogLevel         string        `yaml:"log_level"`
	LogFormat        string        `yaml:"log_format"`
	LogFile          string        `yaml:"log_file"`
	RotationInterval time.Duration `yaml:"rotation_interval"`
	ServiceSpacing   float64       `yaml:"service_spacing"`
	Renderer         string        `yaml:"renderer"`
	RotationMode     string        `yaml:"rotation_mode"`
	SourceURL        string        `yaml:"source_url"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	AutoStart        bool          `yaml:"auto_start"`
	MaxChunkBytes    int64         `yaml:"max_chunk_bytes"`
}

// DefaultSettings returns the settings used when neither a file nor the
// environment says otherwise.
func DefaultSettings() Settings {
	return Settings{
		Port:             "8080",
		LogLevel:         "info",
		LogFormat:        "json",
		RotationInterval: 10 * time.Second,
		ServiceSpacing:   0.3,
		Renderer:         RendererWebSocket,
		RotationMode:     RotationInternal,
		PollInterval:     5 * time.Second,
		AutoStart:        true,
		MaxChunkBytes:    32 << 20,
	}
}

// LoadFile reads settings from a YAML file on top of DefaultSettings.
// A missing file is not an error.
func LoadFile(path string) (Settings, error) {
	cfg := DefaultSettings()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Settings{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides s with any environment variables that are set.
func ApplyEnv(s Settings) Settings {
	s.Port = GetEnv("PORT", s.Port)
	s.LogLevel = GetEnv("LOG_LEVEL", s.LogLevel)
	s.LogFormat = GetEnv("LOG_FORMAT", s.LogFormat)
	s.LogFile = GetEnv("LOG_FILE", s.LogFile)
	s.RotationInterval = GetEnvDuration("ROTATION_INTERVAL", s.RotationInterval)
	s.ServiceSpacing = GetEnvFloat("SERVICE_SPACING", s.ServiceSpacing)
	s.Renderer = GetEnv("RENDERER", s.Renderer)
	s.RotationMode = GetEnv("ROTATION_MODE", s.RotationMode)
	s.SourceURL = GetEnv("SOURCE_URL", s.SourceURL)
	s.PollInterval = GetEnvDuration("POLL_INTERVAL", s.PollInterval)
	s.AutoStart = GetEnvBool("AUTO_START", s.AutoStart)
	s.MaxChunkBytes = GetEnvInt64("MAX_CHUNK_BYTES", s.MaxChunkBytes)
	return s
}

// Validate normalises zero values and rejects unknown enum values.
func (s *Settings) Validate() error {
	def := DefaultSettings()
	if s.Port == "" {
		s.Port = def.Port
	}
	if s.RotationInterval <= 0 {
		s.RotationInterval = def.RotationInterval
	}
	if s.ServiceSpacing <= 0 {
		s.ServiceSpacing = def.ServiceSpacing
	}
	if s.PollInterval <= 0 {
		s.PollInterval = def.PollInterval
	}
	if s.MaxChunkBytes <= 0 {
		s.MaxChunkBytes = def.MaxChunkBytes
	}

	s.Renderer = strings.ToLower(s.Renderer)
	switch s.Renderer {
	case "":
		s.Renderer = def.Renderer
	case RendererWebSocket, RendererTerminal, RendererNone:
	default:
		return fmt.Errorf("unknown renderer %q", s.Renderer)
	}

	s.RotationMode = strings.ToLower(s.RotationMode)
	switch s.RotationMode {
	case "":
		s.RotationMode = def.RotationMode
	case RotationInternal, RotationExternal:
	default:
		return fmt.Errorf("unknown rotation mode %q", s.RotationMode)
	}

	if s.Renderer == RendererTerminal && s.LogFile == "" {
		return errors.New("terminal renderer requires log_file: the terminal is owned by the renderer")
	}
	return nil
}
