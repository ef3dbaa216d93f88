// docvault — сервис хранения документов с ограниченным сроком доступа.
//
// Загрузка с дедупликацией по отпечатку содержимого, журнал истории
// с write-through сохранением, выдача подписанных URL просмотра,
// фоновая очистка просроченных объектов.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/arturkryukov/docvault/internal/api/handlers"
	"github.com/arturkryukov/docvault/internal/api/middleware"
	"github.com/arturkryukov/docvault/internal/config"
	"github.com/arturkryukov/docvault/internal/grant"
	"github.com/arturkryukov/docvault/internal/server"
	"github.com/arturkryukov/docvault/internal/service"
	"github.com/arturkryukov/docvault/internal/storage/blobstore"
	"github.com/arturkryukov/docvault/internal/storage/ledger"
)

func main() {
	// .env — только для локальной разработки, отсутствие файла не ошибка
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := cfg.SetupLogger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Приложение завершилось с ошибкой", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Запуск docvault",
		slog.String("addr", cfg.Addr()),
		slog.String("ledger_backend", cfg.LedgerBackend),
		slog.String("data_dir", cfg.DataDir),
	)

	// Blob-хранилище
	blobs, err := blobstore.NewDiskStore(cfg.DataDir)
	if err != nil {
		return err
	}

	// Хранилище журнала и probe его доступности
	store, probe, closeStore, err := buildLedgerStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Журнал: полная недоступность хранилища при старте не фатальна,
	// сервис стартует с пустым журналом и отдаёт 503 на readiness
	ldg := ledger.New(store, logger)
	if err := ldg.Load(ctx); err != nil {
		if errors.Is(err, ledger.ErrUnavailable) {
			logger.Warn("Журнал истории недоступен при старте, продолжаем с пустым",
				slog.String("error", err.Error()),
			)
		} else {
			return err
		}
	}

	// Эмитент прав доступа
	issuer := grant.NewIssuer(
		[]byte(cfg.GrantSecret),
		cfg.BaseURL,
		cfg.GrantMaxTTL,
		cfg.GrantCacheTTL,
		cfg.GrantCacheSize,
		logger,
	)

	// Оркестратор загрузки
	uploader := service.NewUploader(service.UploaderConfig{
		Dedup:          cfg.Dedup,
		AllowPermanent: cfg.AllowPermanent,
		MaxFileSize:    cfg.MaxFileSize,
	}, blobs, ldg, probe, logger)

	// Фоновая очистка просроченных документов
	reaper := service.NewReaper(blobs, ldg, cfg.ReapInterval, cfg.ReapCron, logger)
	reaper.Start(ctx)
	defer reaper.Stop()

	// Мониторинг зависимостей (опционально)
	if cfg.DephealthEnabled {
		dh, err := service.NewDephealth(
			cfg.ServiceID,
			cfg.DephealthGroup,
			cfg.DephealthDepName,
			cfg.JWKSURL,
			cfg.DephealthCheckInterval,
			logger,
		)
		if err != nil {
			return err
		}
		if err := dh.Start(ctx); err != nil {
			return err
		}
		defer dh.Stop()
	}

	// JWT-аутентификация (опционально: без JWKS URL — режим anonymous)
	var auth *middleware.JWTAuth
	if cfg.JWKSURL != "" {
		auth, err = middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSURL,
			ClientTimeout:   10 * time.Second,
			RefreshInterval: time.Hour,
			Leeway:          cfg.JWTLeeway,
		}, logger)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("DV_JWKS_URL не задан: аутентификация отключена, все запросы от anonymous")
	}

	docs := handlers.NewDocuments(uploader, issuer, blobs, ldg, probe, cfg.AllowPermanent, logger)
	health := handlers.NewHealth(ldg, probe, logger)

	srv := server.New(server.Config{
		Addr:              cfg.Addr(),
		ShutdownTimeout:   cfg.ShutdownTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}, docs, health, auth, logger)

	return srv.Run(ctx)
}

// buildLedgerStore создаёт хранилище журнала по конфигурации.
// Возвращает store, probe доступности и функцию освобождения ресурсов.
func buildLedgerStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Store, service.Probe, func(), error) {
	switch cfg.LedgerBackend {
	case config.LedgerBackendRedis:
		rs, err := ledger.NewRedisStore(cfg.RedisURL, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		probe := service.NewPingProbe("redis", rs.Ping, logger)
		return rs, probe, func() { _ = rs.Close() }, nil

	case config.LedgerBackendPostgres:
		ps, err := ledger.NewPGStore(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		probe := service.NewPingProbe("postgres", ps.Ping, logger)
		return ps, probe, ps.Close, nil

	default:
		fs := ledger.NewFileStore(cfg.LedgerPath, logger)
		return fs, service.AlwaysAvailable(), func() {}, nil
	}
}
