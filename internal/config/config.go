package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
	Auth     AuthConfig
	SMTP     SMTPConfig
	SMS      SMSConfig
	Push     PushConfig
	Delivery DeliveryConfig
	Progress ProgressConfig
	Drill    DrillConfig
}

type ServerConfig struct {
	Host      string
	Port      int
	RateLimit int // requests per second, 0 disables
}

// WorkerConfig bounds the delivery fan-out of a single dispatch.
type WorkerConfig struct {
	Count      int
	BufferSize int
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

type AuthConfig struct {
	JWTSecret string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Security string // none, starttls or tls
	Timeout  time.Duration
}

type SMSConfig struct {
	GatewayURL string
	Secret     string
	RatePerSec int
	Timeout    time.Duration
}

type PushConfig struct {
	ServiceURL string
	Token      string
	Timeout    time.Duration
}

// DeliveryConfig.LogOnly logs messages for media without a configured
// transport and records them as sent. Meant for local development only.
type DeliveryConfig struct {
	LogOnly bool
}

// ProgressConfig selects where per-sender alert counters live. An empty
// RedisAddr keeps them in SQLite.
type ProgressConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type DrillConfig struct {
	Grace time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "localhost"),
			Port:      getEnvInt("SERVER_PORT", 8080),
			RateLimit: getEnvInt("SERVER_RATE_LIMIT", 20),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 16),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 64),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/alert-dispatch.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
			Security: getEnv("SMTP_SECURITY", "starttls"),
			Timeout:  getEnvDuration("SMTP_TIMEOUT", 10*time.Second),
		},
		SMS: SMSConfig{
			GatewayURL: getEnv("SMS_GATEWAY_URL", ""),
			Secret:     getEnv("SMS_GATEWAY_SECRET", ""),
			RatePerSec: getEnvInt("SMS_RATE_PER_SEC", 10),
			Timeout:    getEnvDuration("SMS_TIMEOUT", 10*time.Second),
		},
		Push: PushConfig{
			ServiceURL: getEnv("PUSH_SERVICE_URL", ""),
			Token:      getEnv("PUSH_SERVICE_TOKEN", ""),
			Timeout:    getEnvDuration("PUSH_TIMEOUT", 10*time.Second),
		},
		Delivery: DeliveryConfig{
			LogOnly: getEnvBool("DELIVERY_LOG_ONLY", false),
		},
		Progress: ProgressConfig{
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
		Drill: DrillConfig{
			Grace: getEnvDuration("DRILL_ALERT_GRACE", time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.Worker.BufferSize < 0 {
		return fmt.Errorf("worker buffer size must not be negative")
	}

	switch c.SMTP.Security {
	case "none", "starttls", "tls":
	default:
		return fmt.Errorf("invalid smtp security mode: %s", c.SMTP.Security)
	}

	if c.SMS.RatePerSec < 0 {
		return fmt.Errorf("sms rate must not be negative")
	}

	if c.Drill.Grace < 0 {
		return fmt.Errorf("drill alert grace must not be negative")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
