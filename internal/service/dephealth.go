// dephealth.go — интеграция с topologymetrics SDK для мониторинга
// зависимостей.
//
// docvault мониторит JWKS endpoint провайдера идентичности
// (HTTP GET, critical). Метрики доступны на /metrics вместе
// с остальными Prometheus-метриками.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks" // Регистрация фабрик checker-ов
)

// Dephealth — сервис мониторинга зависимостей.
type Dephealth struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealth создаёт сервис мониторинга зависимостей.
//
// Параметры:
//   - serviceID — имя вершины графа текущего приложения (DV_SERVICE_ID)
//   - group — имя группы в метриках (DV_DEPHEALTH_GROUP)
//   - depName — имя зависимости (DV_DEPHEALTH_DEP_NAME)
//   - jwksURL — URL JWKS endpoint для проверки (DV_JWKS_URL)
//   - checkInterval — интервал проверки (DV_DEPHEALTH_CHECK_INTERVAL)
func NewDephealth(
	serviceID string,
	group string,
	depName string,
	jwksURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*Dephealth, error) {
	dh, err := dephealth.New(
		serviceID,
		group,
		dephealth.WithLogger(logger),
		dephealth.HTTP(depName,
			dephealth.FromURL(jwksURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		),
	)
	if err != nil {
		return nil, err
	}

	return &Dephealth{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (d *Dephealth) Start(ctx context.Context) error {
	d.logger.Info("Мониторинг зависимостей запущен")
	return d.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (d *Dephealth) Stop() {
	d.dh.Stop()
	d.logger.Info("Мониторинг зависимостей остановлен")
}
