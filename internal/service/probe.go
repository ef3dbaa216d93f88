// probe.go — проверка доступности внешних хранилищ перед сетевыми
// операциями. Позволяет вернуть понятную ошибку сразу, вместо
// заведомо обречённого сетевого вызова.
package service

import (
	"context"
	"log/slog"
	"time"
)

// probeTimeout — таймаут одной проверки доступности.
const probeTimeout = 2 * time.Second

// Probe — проверка доступности внешнего хранилища.
type Probe interface {
	// IsAvailable возвращает true, если хранилище отвечает.
	IsAvailable(ctx context.Context) bool
}

// staticProbe — всегда доступно (локальные backend-ы).
type staticProbe struct{}

func (staticProbe) IsAvailable(ctx context.Context) bool { return true }

// AlwaysAvailable возвращает probe для backend-ов без сети.
func AlwaysAvailable() Probe {
	return staticProbe{}
}

// pingProbe — проверка через ping-функцию backend-а.
type pingProbe struct {
	name   string
	ping   func(ctx context.Context) error
	logger *slog.Logger
}

// NewPingProbe создаёт probe поверх ping-функции хранилища
// (redis Ping, pgxpool Ping).
func NewPingProbe(name string, ping func(ctx context.Context) error, logger *slog.Logger) Probe {
	return &pingProbe{
		name:   name,
		ping:   ping,
		logger: logger.With(slog.String("component", "probe")),
	}
}

func (p *pingProbe) IsAvailable(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := p.ping(pingCtx); err != nil {
		p.logger.Warn("Хранилище недоступно",
			slog.String("store", p.name),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}
