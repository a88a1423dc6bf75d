package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"taxi-realtime/internal/shared/models"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default}.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

func Default() *models.Config {
	return &models.Config{
		Server: models.ServerConfig{
			Port:            "3000",
			ShutdownTimeout: 5 * time.Second,
		},
		Storage: models.StorageConfig{Backend: "memory"},
		Database: models.DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Database: "taxi",
		},
		RabbitMQ: models.RabbitMQConfig{
			Host:     "localhost",
			Port:     "5672",
			User:     "guest",
			Password: "guest",
			Exchange: "trip_topic",
		},
		WebSocket: models.WebSocketConfig{
			AuthTimeout:  5 * time.Second,
			PingInterval: 30 * time.Second,
			PongWait:     60 * time.Second,
			WriteWait:    10 * time.Second,
			SendBuffer:   64,
		},
		JWT: models.JWTConfig{
			Secret: "supersecret",
			TTL:    15 * time.Hour,
		},
		Trips: models.TripsConfig{ExclusiveDriverAssignment: true},
		Log:   models.LogConfig{Level: "info"},
	}
}

// LoadConfig reads filename on top of the defaults. A missing file is not an
// error; the defaults (and environment) are used as is.
func LoadConfig(filename string) (*models.Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse expands environment references in data and decodes it into cfg.
func Parse(data []byte, cfg *models.Config) error {
	expanded := envPattern.ReplaceAllStringFunc(string(data), func(ref string) string {
		m := envPattern.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1]); ok {
			return v
		}
		return m[2]
	})
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
