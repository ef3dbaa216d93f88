// metrics.go — Prometheus метрики эмитента прав доступа.
package grant

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// grantsIssuedTotal — количество выданных прав доступа.
	grantsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dv_grants_issued_total",
		Help: "Общее количество выданных прав доступа",
	})

	// grantCacheHitsTotal — попадания в кэш выданных прав.
	grantCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dv_grant_cache_hits_total",
		Help: "Общее количество попаданий в кэш прав доступа",
	})

	// grantCacheMissesTotal — промахи кэша выданных прав.
	grantCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dv_grant_cache_misses_total",
		Help: "Общее количество промахов кэша прав доступа",
	})
)
