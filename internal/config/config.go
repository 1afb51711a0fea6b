// Package config загружает конфигурацию движка из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Бэкенды хранения кулдаунов.
const (
	RateLimitBackendMemory   = "memory"
	RateLimitBackendPostgres = "postgres"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP API ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// Таймауты HTTP-сервера; persistence наследует дедлайн запроса
	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"gamification"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"campushub"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- NATS (очередь уведомлений) ---
	NATSURL string `envconfig:"NATS_URL" default:"nats://nats:4222"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Admin ---
	// Argon2id-хеш токена для ручных корректировок баллов
	// (формат как у scripts/generate_hash.go)
	AdminTokenHash string `envconfig:"ADMIN_TOKEN_HASH" required:"true"`

	// --- Rate Limiting ---
	// memory — кулдауны в памяти процесса (один инстанс),
	// postgres — атомарный check-and-set в общей БД (несколько инстансов)
	RateLimitBackend string `envconfig:"RATE_LIMIT_BACKEND" default:"postgres"`

	// --- Notifications ---
	NotifyQueueSize      int  `envconfig:"NOTIFY_QUEUE_SIZE" default:"1024"`
	NotifyWorkers        int  `envconfig:"NOTIFY_WORKERS" default:"4"`
	NotifyRetentionDays  int  `envconfig:"NOTIFY_RETENTION_DAYS" default:"90"`
	FeatureNotifyEnabled bool `envconfig:"FEATURE_NOTIFICATIONS_ENABLED" default:"true"`

	// --- Push worker ---
	// Токен телеграм-бота, через которого pushworker доставляет сообщения.
	// Движку он не нужен, поэтому не required.
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.RateLimitBackend != RateLimitBackendMemory && c.RateLimitBackend != RateLimitBackendPostgres {
		return fmt.Errorf("RATE_LIMIT_BACKEND должен быть memory или postgres, получено %q", c.RateLimitBackend)
	}
	if c.NotifyQueueSize <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE должен быть > 0")
	}
	if c.NotifyWorkers <= 0 {
		return fmt.Errorf("NOTIFY_WORKERS должен быть > 0")
	}
	if c.NotifyRetentionDays <= 0 {
		return fmt.Errorf("NOTIFY_RETENTION_DAYS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
