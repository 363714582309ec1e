package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию для Drama Server.
type Config struct {
	// Настройки сервера
	Port     string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBPassword    string        `envconfig:"DB_PASSWORD" required:"true"`
	DBName        string        `envconfig:"DB_NAME" default:"drama"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`

	// Настройки Redis (пер-сессионные блокировки)
	RedisURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	// Model backend (Replicate predictions API)
	ReplicateToken   string        `envconfig:"REPLICATE_API_TOKEN" required:"true"`
	ReplicateBaseURL string        `envconfig:"REPLICATE_BASE_URL" default:"https://api.replicate.com/v1"`
	ReplicateModel   string        `envconfig:"REPLICATE_MODEL" default:"openai/gpt-5-mini"`
	GenerateTimeout  time.Duration `envconfig:"AI_STREAM_TIMEOUT" default:"300s"`
	CreateTimeout    time.Duration `envconfig:"AI_CREATE_TIMEOUT" default:"30s"`
	CreateRetries    int           `envconfig:"AI_CREATE_RETRIES" default:"2"`

	// Narrative engine (ink runtime endpoint)
	EngineBaseURL string        `envconfig:"ENGINE_BASE_URL" required:"true"`
	EngineTimeout time.Duration `envconfig:"ENGINE_TIMEOUT" default:"30s"`

	// CORS
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// AllowedOrigins разбирает список разрешенных CORS origin'ов.
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadConfig загружает конфигурацию из переменных окружения. Отсутствие
// обязательных значений (токен модели, endpoint движка, пароль БД) — это
// фатальная ошибка конфигурации.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации drama-server: %w", err)
	}
	return &cfg, nil
}
