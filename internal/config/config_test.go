package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DV_DATA_DIR", "/var/lib/docvault")
	t.Setenv("DV_GRANT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: неожиданная ошибка %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port: хотели 8080, получили %d", cfg.Port)
	}
	if cfg.LedgerBackend != LedgerBackendFile {
		t.Errorf("LedgerBackend: хотели file, получили %s", cfg.LedgerBackend)
	}
	if cfg.LedgerPath != "/var/lib/docvault/history.json" {
		t.Errorf("LedgerPath по умолчанию: получили %s", cfg.LedgerPath)
	}
	if !cfg.Dedup {
		t.Errorf("Dedup по умолчанию: хотели true")
	}
	if cfg.AllowPermanent {
		t.Errorf("AllowPermanent по умолчанию: хотели false")
	}
	if cfg.MaxFileSize != 100<<20 {
		t.Errorf("MaxFileSize: хотели %d, получили %d", 100<<20, cfg.MaxFileSize)
	}
	if cfg.GrantMaxTTL != 720*time.Hour {
		t.Errorf("GrantMaxTTL: хотели 720h, получили %s", cfg.GrantMaxTTL)
	}
	if cfg.ReapInterval != time.Hour {
		t.Errorf("ReapInterval: хотели 1h, получили %s", cfg.ReapInterval)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr: хотели :8080, получили %s", cfg.Addr())
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DV_GRANT_SECRET", "secret")
	if _, err := Load(); err == nil {
		t.Errorf("Load без DV_DATA_DIR: хотели ошибку, получили nil")
	}

	t.Setenv("DV_DATA_DIR", "/var/lib/docvault")
	t.Setenv("DV_GRANT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Errorf("Load без DV_GRANT_SECRET: хотели ошибку, получили nil")
	}
}

func TestLoadLedgerBackends(t *testing.T) {
	setRequired(t)

	t.Setenv("DV_LEDGER_BACKEND", "redis")
	if _, err := Load(); err == nil {
		t.Errorf("redis без DV_REDIS_URL: хотели ошибку, получили nil")
	}
	t.Setenv("DV_REDIS_URL", "redis://localhost:6379")
	if _, err := Load(); err != nil {
		t.Errorf("redis с URL: неожиданная ошибка %v", err)
	}

	t.Setenv("DV_LEDGER_BACKEND", "postgres")
	if _, err := Load(); err == nil {
		t.Errorf("postgres без DV_POSTGRES_DSN: хотели ошибку, получили nil")
	}
	t.Setenv("DV_POSTGRES_DSN", "postgres://localhost/docvault")
	if _, err := Load(); err != nil {
		t.Errorf("postgres с DSN: неожиданная ошибка %v", err)
	}

	t.Setenv("DV_LEDGER_BACKEND", "etcd")
	if _, err := Load(); err == nil {
		t.Errorf("неизвестный бэкенд: хотели ошибку, получили nil")
	}
}

func TestLoadValidationBounds(t *testing.T) {
	setRequired(t)

	t.Setenv("DV_PORT", "70000")
	if _, err := Load(); err == nil {
		t.Errorf("порт вне диапазона: хотели ошибку, получили nil")
	}
	t.Setenv("DV_PORT", "8080")

	// Кэш прав должен жить меньше минимального срока хранения
	t.Setenv("DV_GRANT_CACHE_TTL", "2h")
	if _, err := Load(); err == nil {
		t.Errorf("DV_GRANT_CACHE_TTL >= 1h: хотели ошибку, получили nil")
	}
	t.Setenv("DV_GRANT_CACHE_TTL", "5m")

	t.Setenv("DV_REAP_INTERVAL", "5s")
	if _, err := Load(); err == nil {
		t.Errorf("DV_REAP_INTERVAL < 1m: хотели ошибку, получили nil")
	}
	t.Setenv("DV_REAP_INTERVAL", "1h")

	t.Setenv("DV_REAP_CRON", "не cron")
	if _, err := Load(); err == nil {
		t.Errorf("некорректный DV_REAP_CRON: хотели ошибку, получили nil")
	}
	t.Setenv("DV_REAP_CRON", "*/30 * * * *")
	if _, err := Load(); err != nil {
		t.Errorf("валидный DV_REAP_CRON: неожиданная ошибка %v", err)
	}
}

func TestLoadDephealthRequiresJWKS(t *testing.T) {
	setRequired(t)

	t.Setenv("DV_DEPHEALTH_ENABLED", "true")
	if _, err := Load(); err == nil {
		t.Errorf("dephealth без DV_JWKS_URL: хотели ошибку, получили nil")
	}

	t.Setenv("DV_JWKS_URL", "https://idp.example.com/jwks")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: неожиданная ошибка %v", err)
	}
	if !cfg.DephealthEnabled {
		t.Errorf("DephealthEnabled: хотели true")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("DV_TEST_INT", "не число")
	if got := getEnvInt("DV_TEST_INT", 42); got != 42 {
		t.Errorf("getEnvInt с мусором: хотели 42, получили %d", got)
	}

	t.Setenv("DV_TEST_BOOL", "true")
	if !getEnvBool("DV_TEST_BOOL", false) {
		t.Errorf("getEnvBool: хотели true")
	}

	t.Setenv("DV_TEST_DUR", "90s")
	if got := getEnvDuration("DV_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("getEnvDuration: хотели 90s, получили %s", got)
	}
}
