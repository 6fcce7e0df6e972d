package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

var validate = validator.New()

// ServerConfig holds settings for the chat server runtime.
type ServerConfig struct {
	ListenAddr      string        `envconfig:"ROOMCAST_LISTEN_ADDR" default:":8765"`
	AllowedOrigins  []string      `envconfig:"ROOMCAST_ALLOWED_ORIGINS" default:"*"`
	ReadTimeout     time.Duration `envconfig:"ROOMCAST_READ_TIMEOUT" default:"60s" validate:"gt=0"`
	WriteTimeout    time.Duration `envconfig:"ROOMCAST_WRITE_TIMEOUT" default:"10s" validate:"gt=0"`
	PingInterval    time.Duration `envconfig:"ROOMCAST_PING_INTERVAL" default:"30s" validate:"gt=0,ltfield=ReadTimeout"`
	MaxMessageBytes int64         `envconfig:"ROOMCAST_MAX_MESSAGE_BYTES" default:"1048576" validate:"gt=0"`
	OutQueueSize    int           `envconfig:"ROOMCAST_OUT_QUEUE_SIZE" default:"200" validate:"gt=0"`
	RoomQueueSize   int           `envconfig:"ROOMCAST_ROOM_QUEUE_SIZE" default:"256" validate:"gt=0"`
	NameMinLen      int           `envconfig:"ROOMCAST_NAME_MIN_LEN" default:"3" validate:"gt=0"`
	NameMaxLen      int           `envconfig:"ROOMCAST_NAME_MAX_LEN" default:"20" validate:"gtefield=NameMinLen"`
	LogLevel        string        `envconfig:"ROOMCAST_LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

// ClientConfig holds settings for the terminal client.
type ClientConfig struct {
	ServerURL     string `envconfig:"ROOMCAST_SERVER_URL" default:"ws://localhost:8765/ws" validate:"required"`
	Username      string `envconfig:"ROOMCAST_USERNAME"`
	CommandPrefix string `envconfig:"ROOMCAST_COMMAND_PREFIX" default:"/" validate:"required"`
}

// LoadServerConfig reads server settings from ROOMCAST_-prefixed
// environment variables and validates them.
func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("process env: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate: %w", err)
	}
	return cfg, nil
}

// LoadClientConfig reads client settings from the environment.
func LoadClientConfig() (ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("process env: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps the configured level onto slog. Unknown values fall
// back to info.
func (c ServerConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
