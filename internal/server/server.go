// Пакет server — HTTP-сервер docvault.
// Маршрутизация chi, graceful shutdown по SIGINT/SIGTERM.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arturkryukov/docvault/internal/api/handlers"
	"github.com/arturkryukov/docvault/internal/api/middleware"
)

// Config — параметры HTTP-сервера.
type Config struct {
	// Addr — адрес прослушивания, например ":8080"
	Addr string
	// ShutdownTimeout — таймаут graceful shutdown
	ShutdownTimeout time.Duration
	// ReadHeaderTimeout — таймаут чтения заголовков запроса
	ReadHeaderTimeout time.Duration
}

// Server — HTTP-сервер docvault.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger *slog.Logger
}

// New создаёт HTTP-сервер с настроенной маршрутизацией.
// auth == nil — режим без провайдера идентичности: все запросы
// выполняются от имени anonymous.
func New(
	cfg Config,
	docs *handlers.Documents,
	health *handlers.Health,
	auth *middleware.JWTAuth,
	logger *slog.Logger,
) *Server {
	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Публичные endpoints: health-пробы, метрики, просмотр по токену
	router.Get("/health/live", health.Live)
	router.Get("/health/ready", health.Ready)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/api/v1/documents/view", docs.View)

	// Защищённые endpoints
	router.Group(func(r chi.Router) {
		if auth != nil {
			r.Use(jwtAuthWithExclusions(auth))
		}

		r.Post("/api/v1/documents", docs.Upload)
		r.Get("/api/v1/documents", docs.List)
		r.Post("/api/v1/documents/grant", docs.Grant)
		r.Delete("/api/v1/documents", docs.Clear)
		r.Delete("/api/v1/documents/*", docs.Delete)
	})

	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		logger: logger.With(slog.String("component", "http_server")),
	}
}

// jwtAuthWithExclusions применяет JWT-аутентификацию ко всем путям,
// кроме публичных. Группа выше уже не содержит публичных маршрутов,
// но исключения оставлены как страховка от перестановки маршрутов.
func jwtAuthWithExclusions(auth *middleware.JWTAuth) func(http.Handler) http.Handler {
	excluded := []string{"/health/", "/metrics", "/api/v1/documents/view"}
	authMw := auth.Middleware()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range excluded {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}
			authMw(next).ServeHTTP(w, r)
		})
	}
}

// Handler возвращает корневой HTTP handler (для тестов).
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run запускает сервер и блокируется до SIGINT/SIGTERM,
// затем выполняет graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.cfg.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.logger.Info("Получен сигнал остановки", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст приложения отменён")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Ошибка graceful shutdown", slog.String("error", err.Error()))
		return err
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
