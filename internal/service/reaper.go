// reaper.go — фоновая очистка просроченных документов.
//
// Reaper сканирует журнал и для каждой записи с истёкшим сроком
// хранения удаляет сначала объект в blob-хранилище, затем запись
// журнала. Порядок важен: осиротевшая запись без объекта безопасна
// (следующий sweep её доберёт), осиротевший объект без записи — нет.
//
// Best-effort процесс: система допускает ограниченное окно, в котором
// просроченный объект ещё физически существует — доступ к нему уже
// закрыт истечением подписанного URL.
//
// Запускается как горутина: немедленный проход при старте, затем
// периодический тикер (DV_REAP_INTERVAL) или cron-расписание
// (DV_REAP_CRON).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/docvault/internal/domain/model"
	"github.com/arturkryukov/docvault/internal/storage/blobstore"
	"github.com/arturkryukov/docvault/internal/storage/ledger"
)

// Prometheus метрики reaper-а
var (
	// reapRunsTotal — количество проходов очистки.
	reapRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dv_reap_runs_total",
		Help: "Общее количество проходов очистки просроченных документов",
	})

	// reapedTotal — количество удалённых просроченных документов.
	reapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dv_reaped_total",
		Help: "Общее количество удалённых просроченных документов",
	})

	// reapErrorsTotal — количество ошибок при очистке.
	reapErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dv_reap_errors_total",
		Help: "Общее количество ошибок при очистке просроченных документов",
	})

	// reapDurationSeconds — длительность прохода очистки.
	reapDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dv_reap_duration_seconds",
		Help:    "Длительность прохода очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult — результат одного прохода очистки.
type SweepResult struct {
	// Reaped — количество удалённых просроченных документов
	Reaped int
	// Errors — количество ошибок (записи оставлены до следующего прохода)
	Errors int
	// Duration — длительность прохода
	Duration time.Duration
}

// Reaper — сервис очистки просроченных документов.
type Reaper struct {
	blobs    blobstore.BlobStore
	ldg      *ledger.Ledger
	interval time.Duration
	cronExpr string
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewReaper создаёт сервис очистки.
// При непустом cronExpr расписание задаётся cron-выражением,
// иначе — интервалом.
func NewReaper(
	blobs blobstore.BlobStore,
	ldg *ledger.Ledger,
	interval time.Duration,
	cronExpr string,
	logger *slog.Logger,
) *Reaper {
	return &Reaper{
		blobs:    blobs,
		ldg:      ldg,
		interval: interval,
		cronExpr: cronExpr,
		logger:   logger.With(slog.String("component", "reaper")),
	}
}

// Start запускает фоновую горутину очистки.
// Вызывается один раз при старте приложения.
func (r *Reaper) Start(ctx context.Context) {
	reapCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.run(reapCtx)

	if r.cronExpr != "" {
		r.logger.Info("Очистка запущена", slog.String("cron", r.cronExpr))
	} else {
		r.logger.Info("Очистка запущена", slog.String("interval", r.interval.String()))
	}
}

// Stop останавливает фоновый процесс очистки.
func (r *Reaper) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.logger.Info("Очистка остановлена")
}

// run — основной цикл фоновой горутины.
func (r *Reaper) run(ctx context.Context) {
	// Первый проход — сразу после старта
	r.RunOnce(ctx)

	if r.cronExpr != "" {
		r.runCron(ctx)
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// runCron спит до следующего срабатывания cron-выражения и запускает проход.
func (r *Reaper) runCron(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(r.cronExpr, time.Now().UTC(), false)
		if err != nil {
			r.logger.Error("Ошибка вычисления cron-расписания",
				slog.String("cron", r.cronExpr),
				slog.String("error", err.Error()),
			)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			r.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce выполняет один проход очистки.
// Потокобезопасен: mutex защищает от параллельного запуска.
//
// Для каждой просроченной записи: удаление объекта (отсутствующий
// объект — успех, blob-хранилище идемпотентно), затем удаление записи
// журнала. Любая другая ошибка оставляет запись до следующего прохода.
func (r *Reaper) RunOnce(ctx context.Context) *SweepResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}
	now := model.NowMillis()

	for _, rec := range r.ldg.List() {
		if !rec.IsExpired(now) {
			continue
		}

		// Сначала объект, потом запись
		if err := r.blobs.Delete(ctx, rec.StoragePath); err != nil {
			r.logger.Error("Ошибка удаления просроченного объекта",
				slog.String("storage_path", rec.StoragePath),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		if err := r.ldg.Remove(ctx, rec.StoragePath); err != nil {
			r.logger.Error("Ошибка удаления записи журнала",
				slog.String("storage_path", rec.StoragePath),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		r.logger.Debug("Просроченный документ удалён",
			slog.String("storage_path", rec.StoragePath),
			slog.String("display_name", rec.DisplayName),
		)
		result.Reaped++
	}

	result.Duration = time.Since(start)

	reapRunsTotal.Inc()
	reapedTotal.Add(float64(result.Reaped))
	reapErrorsTotal.Add(float64(result.Errors))
	reapDurationSeconds.Observe(result.Duration.Seconds())

	r.logger.Info("Проход очистки завершён",
		slog.Int("reaped", result.Reaped),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}
