// Пакет config — конфигурация docvault из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// Бэкенды хранилища журнала.
const (
	LedgerBackendFile     = "file"
	LedgerBackendRedis    = "redis"
	LedgerBackendPostgres = "postgres"
)

// Config — конфигурация приложения.
type Config struct {
	// Port — порт HTTP-сервера (DV_PORT)
	Port int
	// DataDir — каталог blob-хранилища (DV_DATA_DIR)
	DataDir string

	// LedgerBackend — бэкенд журнала: file, redis или postgres (DV_LEDGER_BACKEND)
	LedgerBackend string
	// LedgerPath — путь JSON-файла журнала для file-бэкенда (DV_LEDGER_PATH)
	LedgerPath string
	// RedisURL — URL Redis для redis-бэкенда (DV_REDIS_URL)
	RedisURL string
	// PostgresDSN — DSN PostgreSQL для postgres-бэкенда (DV_POSTGRES_DSN)
	PostgresDSN string

	// MaxFileSize — максимальный размер документа в байтах (DV_MAX_FILE_SIZE)
	MaxFileSize int64
	// Dedup — дедупликация по отпечатку содержимого (DV_DEDUP)
	Dedup bool
	// AllowPermanent — разрешён ли вариант permanent (DV_ALLOW_PERMANENT)
	AllowPermanent bool

	// GrantSecret — секрет подписи токенов доступа (DV_GRANT_SECRET)
	GrantSecret string
	// BaseURL — внешний базовый URL сервиса для подписанных URL (DV_BASE_URL)
	BaseURL string
	// GrantMaxTTL — верхняя граница срока действия токена доступа (DV_GRANT_MAX_TTL)
	GrantMaxTTL time.Duration
	// GrantCacheTTL — срок жизни записей кэша выданных прав (DV_GRANT_CACHE_TTL)
	GrantCacheTTL time.Duration
	// GrantCacheSize — размер LRU-кэша выданных прав (DV_GRANT_CACHE_SIZE)
	GrantCacheSize int

	// ReapInterval — интервал фоновой очистки (DV_REAP_INTERVAL)
	ReapInterval time.Duration
	// ReapCron — cron-выражение расписания очистки, имеет приоритет
	// над интервалом (DV_REAP_CRON)
	ReapCron string

	// JWKSURL — URL JWKS провайдера идентичности; пусто — режим
	// без аутентификации (DV_JWKS_URL)
	JWKSURL string
	// JWTLeeway — допустимое отклонение времени при проверке JWT (DV_JWT_LEEWAY)
	JWTLeeway time.Duration

	// LogLevel — уровень логирования: debug, info, warn, error (DV_LOG_LEVEL)
	LogLevel string
	// LogFormat — формат логов: json или text (DV_LOG_FORMAT)
	LogFormat string

	// ShutdownTimeout — таймаут graceful shutdown (DV_SHUTDOWN_TIMEOUT)
	ShutdownTimeout time.Duration

	// ServiceID — имя вершины графа зависимостей (DV_SERVICE_ID)
	ServiceID string
	// DephealthEnabled — мониторинг зависимостей (DV_DEPHEALTH_ENABLED)
	DephealthEnabled bool
	// DephealthGroup — группа в метриках топологии (DV_DEPHEALTH_GROUP)
	DephealthGroup string
	// DephealthDepName — имя зависимости JWKS в графе (DV_DEPHEALTH_DEP_NAME)
	DephealthDepName string
	// DephealthCheckInterval — интервал проверки зависимостей (DV_DEPHEALTH_CHECK_INTERVAL)
	DephealthCheckInterval time.Duration
}

// Load читает конфигурацию из переменных окружения.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnvInt("DV_PORT", 8080),
		DataDir:       os.Getenv("DV_DATA_DIR"),
		LedgerBackend: getEnv("DV_LEDGER_BACKEND", LedgerBackendFile),
		LedgerPath:    os.Getenv("DV_LEDGER_PATH"),
		RedisURL:      os.Getenv("DV_REDIS_URL"),
		PostgresDSN:   os.Getenv("DV_POSTGRES_DSN"),

		MaxFileSize:    getEnvInt64("DV_MAX_FILE_SIZE", 100<<20),
		Dedup:          getEnvBool("DV_DEDUP", true),
		AllowPermanent: getEnvBool("DV_ALLOW_PERMANENT", false),

		GrantSecret:    os.Getenv("DV_GRANT_SECRET"),
		BaseURL:        getEnv("DV_BASE_URL", "http://localhost:8080"),
		GrantMaxTTL:    getEnvDuration("DV_GRANT_MAX_TTL", 720*time.Hour),
		GrantCacheTTL:  getEnvDuration("DV_GRANT_CACHE_TTL", 5*time.Minute),
		GrantCacheSize: getEnvInt("DV_GRANT_CACHE_SIZE", 1024),

		ReapInterval: getEnvDuration("DV_REAP_INTERVAL", time.Hour),
		ReapCron:     os.Getenv("DV_REAP_CRON"),

		JWKSURL:   os.Getenv("DV_JWKS_URL"),
		JWTLeeway: getEnvDuration("DV_JWT_LEEWAY", 30*time.Second),

		LogLevel:  getEnv("DV_LOG_LEVEL", "info"),
		LogFormat: getEnv("DV_LOG_FORMAT", "json"),

		ShutdownTimeout: getEnvDuration("DV_SHUTDOWN_TIMEOUT", 30*time.Second),

		ServiceID:              getEnv("DV_SERVICE_ID", "docvault"),
		DephealthEnabled:       getEnvBool("DV_DEPHEALTH_ENABLED", false),
		DephealthGroup:         getEnv("DV_DEPHEALTH_GROUP", "docvault"),
		DephealthDepName:       getEnv("DV_DEPHEALTH_DEP_NAME", "idp-jwks"),
		DephealthCheckInterval: getEnvDuration("DV_DEPHEALTH_CHECK_INTERVAL", 30*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DV_DATA_DIR обязателен")
	}
	if c.GrantSecret == "" {
		return fmt.Errorf("DV_GRANT_SECRET обязателен")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("DV_PORT вне диапазона 1-65535: %d", c.Port)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("DV_MAX_FILE_SIZE должен быть положительным")
	}

	switch c.LedgerBackend {
	case LedgerBackendFile:
		if c.LedgerPath == "" {
			c.LedgerPath = c.DataDir + "/history.json"
		}
	case LedgerBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("DV_REDIS_URL обязателен для бэкенда redis")
		}
	case LedgerBackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("DV_POSTGRES_DSN обязателен для бэкенда postgres")
		}
	default:
		return fmt.Errorf("неизвестный бэкенд журнала %q (допустимы: file, redis, postgres)", c.LedgerBackend)
	}

	// Кэш выданных прав должен жить заметно меньше минимального срока
	// хранения (1h), иначе закэшированный URL может вернуться мёртвым
	if c.GrantCacheTTL >= time.Hour {
		return fmt.Errorf("DV_GRANT_CACHE_TTL должен быть меньше 1h: %s", c.GrantCacheTTL)
	}
	if c.GrantMaxTTL < time.Hour {
		return fmt.Errorf("DV_GRANT_MAX_TTL не может быть меньше 1h: %s", c.GrantMaxTTL)
	}

	if c.ReapCron != "" {
		if !gronx.New().IsValid(c.ReapCron) {
			return fmt.Errorf("некорректное cron-выражение DV_REAP_CRON: %q", c.ReapCron)
		}
	} else if c.ReapInterval < time.Minute {
		return fmt.Errorf("DV_REAP_INTERVAL не может быть меньше 1m: %s", c.ReapInterval)
	}

	if c.DephealthEnabled && c.JWKSURL == "" {
		return fmt.Errorf("DV_DEPHEALTH_ENABLED требует DV_JWKS_URL")
	}

	return nil
}

// Addr возвращает адрес прослушивания HTTP-сервера.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SetupLogger создаёт slog.Logger по настройкам конфигурации.
func (c *Config) SetupLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// --- helpers чтения переменных окружения ---

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
