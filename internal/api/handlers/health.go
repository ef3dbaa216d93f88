// health.go — liveness и readiness probes.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/arturkryukov/docvault/internal/service"
	"github.com/arturkryukov/docvault/internal/storage/ledger"
)

// Health — обработчики health-проб.
type Health struct {
	ldg    *ledger.Ledger
	probe  service.Probe
	logger *slog.Logger
}

// NewHealth создаёт обработчики health-проб.
func NewHealth(ldg *ledger.Ledger, probe service.Probe, logger *slog.Logger) *Health {
	return &Health{
		ldg:    ldg,
		probe:  probe,
		logger: logger.With(slog.String("component", "health_handler")),
	}
}

// Live обрабатывает GET /health/live.
// Процесс жив — всегда 200.
func (h *Health) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

// Ready обрабатывает GET /health/ready.
// Готовность: журнал загружен и хранилище отвечает.
func (h *Health) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.ldg.Loaded() {
		writeJSON(w, http.StatusServiceUnavailable, struct {
			Status string `json:"status"`
			Reason string `json:"reason"`
		}{Status: "unavailable", Reason: "журнал истории не загружен"})
		return
	}

	if !h.probe.IsAvailable(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, struct {
			Status string `json:"status"`
			Reason string `json:"reason"`
		}{Status: "unavailable", Reason: "хранилище журнала не отвечает"})
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}
