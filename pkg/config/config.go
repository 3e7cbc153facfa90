package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultBind         = "127.0.0.1:5555"
	DefaultDatabasePath = "askandsay.db"
	DefaultLogDir       = "logs"
	DefaultAIModel      = "gemini-1.5-flash"
	DefaultAIBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	DefaultAITimeout    = 60 * time.Second
	DefaultAIMarker     = "@ai"
	DefaultTokenTTL     = 24 * time.Hour

	// MinSecretLength is the minimum recommended length for the JWT secret
	MinSecretLength = 32
)

// Config represents the complete server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Relay    RelayConfig    `yaml:"relay"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Bind           string   `yaml:"bind"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AuthConfig controls token issuance and verification
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// DatabaseConfig controls the SQLite store
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AIConfig controls the AI responder backend
type AIConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// RelayConfig controls the real-time relay
type RelayConfig struct {
	AIMarker        string `yaml:"ai_marker"`
	RoomQueueSize   int    `yaml:"room_queue_size"`
	ClientQueueSize int    `yaml:"client_queue_size"`
	MaxMessageBytes int64  `yaml:"max_message_bytes"`
	MaxClients      int    `yaml:"max_clients"`
	// Per-sender chat events per second, with an equal burst.
	SenderRateLimit float64 `yaml:"sender_rate_limit"`
}

// LoggingConfig controls structured log output
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Bind:           DefaultBind,
			AllowedOrigins: []string{"http://localhost", "http://127.0.0.1"},
		},
		Auth: AuthConfig{
			TokenTTL: DefaultTokenTTL,
		},
		Database: DatabaseConfig{
			Path: DefaultDatabasePath,
		},
		AI: AIConfig{
			BaseURL: DefaultAIBaseURL,
			Model:   DefaultAIModel,
			Timeout: DefaultAITimeout,
		},
		Relay: RelayConfig{
			AIMarker:        DefaultAIMarker,
			RoomQueueSize:   256,
			ClientQueueSize: 64,
			MaxMessageBytes: 64 << 10,
			MaxClients:      512,
			SenderRateLimit: 10,
		},
		Logging: LoggingConfig{
			Dir:   DefaultLogDir,
			Level: "info",
		},
	}
}

// Load reads configuration from an optional YAML file, applies environment
// overrides, and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("ASKANDSAY_BIND")); v != "" {
		c.Server.Bind = v
	} else if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			c.Server.Bind = net.JoinHostPort("0.0.0.0", port)
		}
	}
	if v := strings.TrimSpace(os.Getenv("ASKANDSAY_JWT_SECRET")); v != "" {
		c.Auth.JWTSecret = v
	} else if v := strings.TrimSpace(os.Getenv("JWT_SECRET")); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("ASKANDSAY_DB_PATH")); v != "" {
		c.Database.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_AI_KEY")); v != "" {
		c.AI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ASKANDSAY_AI_BASE_URL")); v != "" {
		c.AI.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ASKANDSAY_LOG_DIR")); v != "" {
		c.Logging.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("ASKANDSAY_ALLOWED_ORIGINS")); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		if len(origins) > 0 {
			c.Server.AllowedOrigins = origins
		}
	}
}

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.Server.Bind) == "" {
		c.Server.Bind = def.Server.Bind
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = def.Auth.TokenTTL
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = def.Database.Path
	}
	if strings.TrimSpace(c.AI.BaseURL) == "" {
		c.AI.BaseURL = def.AI.BaseURL
	}
	if strings.TrimSpace(c.AI.Model) == "" {
		c.AI.Model = def.AI.Model
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = def.AI.Timeout
	}
	if strings.TrimSpace(c.Relay.AIMarker) == "" {
		c.Relay.AIMarker = def.Relay.AIMarker
	}
	if c.Relay.RoomQueueSize <= 0 {
		c.Relay.RoomQueueSize = def.Relay.RoomQueueSize
	}
	if c.Relay.ClientQueueSize <= 0 {
		c.Relay.ClientQueueSize = def.Relay.ClientQueueSize
	}
	if c.Relay.MaxMessageBytes <= 0 {
		c.Relay.MaxMessageBytes = def.Relay.MaxMessageBytes
	}
	if c.Relay.MaxClients <= 0 {
		c.Relay.MaxClients = def.Relay.MaxClients
	}
	if c.Relay.SenderRateLimit <= 0 {
		c.Relay.SenderRateLimit = def.Relay.SenderRateLimit
	}
	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = def.Logging.Dir
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = def.Logging.Level
	}
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required (set ASKANDSAY_JWT_SECRET)")
	}
	if len(c.Auth.JWTSecret) < MinSecretLength && !isLoopbackBind(c.Server.Bind) {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters when binding to %q", MinSecretLength, c.Server.Bind)
	}
	if strings.ContainsAny(c.Relay.AIMarker, " \t\r\n") {
		return fmt.Errorf("relay.ai_marker must be a single token, got %q", c.Relay.AIMarker)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug|info|warn|error, got %q", c.Logging.Level)
	}
	return nil
}

func isLoopbackBind(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	host = strings.TrimSpace(host)
	switch strings.ToLower(host) {
	case "localhost":
		return true
	case "0.0.0.0", "::":
		return false
	default:
		ip := net.ParseIP(host)
		if ip == nil {
			return false
		}
		return ip.IsLoopback()
	}
}
