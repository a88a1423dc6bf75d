package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ServerConfig struct {
	Port            string        `yaml:"port" validate:"required,numeric"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory postgres"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Exchange string `yaml:"exchange"`
}

type WebSocketConfig struct {
	AuthTimeout  time.Duration `yaml:"auth_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	PongWait     time.Duration `yaml:"pong_wait"`
	WriteWait    time.Duration `yaml:"write_wait"`
	SendBuffer   int           `yaml:"send_buffer" validate:"gte=1"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret" validate:"required"`
	TTL    time.Duration `yaml:"ttl"`
}

type TripsConfig struct {
	ExclusiveDriverAssignment bool `yaml:"exclusive_driver_assignment"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	JWT       JWTConfig       `yaml:"jwt"`
	Trips     TripsConfig     `yaml:"trips"`
	Log       LogConfig       `yaml:"log"`
}

// Claims is the token payload understood by every endpoint.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
