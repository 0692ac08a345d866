// Package metrics registra y expone los contadores Prometheus del
// servicio. El registro es idempotente: registrar dos veces el mismo
// collector no rompe (tests levantan el wiring más de una vez).
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	oauthExchangesTotal   *prometheus.CounterVec
	oauthRefreshesTotal   *prometheus.CounterVec
	oauthRevokesTotal     *prometheus.CounterVec
	refreshSharedTotal    *prometheus.CounterVec
	providerCallDuration  *prometheus.HistogramVec
	deadConnectionsTotal  *prometheus.CounterVec
	statesIssuedTotal     *prometheus.CounterVec
	stateValidationsTotal *prometheus.CounterVec
)

// registerCollector registra tolerando duplicados.
func registerCollector(c prometheus.Collector) {
	if err := prometheus.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			panic(err)
		}
	}
}

// Init crea y registra todos los collectors. Idempotente.
func Init() {
	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backvault_http_requests_total",
			Help: "Requests HTTP por método, ruta y status.",
		}, []string{"method", "route", "status"})

		httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backvault_http_request_duration_seconds",
			Help:    "Duración de requests HTTP.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		oauthExchangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backvault_oauth_exchanges_total",
			Help: "Intercambios code->token por provider y resultado.",
		}, []string{"provider", "result"})

		oauthRefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backvault_oauth_refreshes_total",
			Help: "Refresh de tokens por provider y resultado.",
		}, []string{"provider", "result"})

		oauthRevokesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backvault_oauth_revokes_total",
			Help: "Revocaciones por provider y resultado.",
		}, []string{"provider", "result"})

		refreshSharedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backvault_oauth_refresh_singleflight_shared_total",
			Help: "Llamadas de refresh que compartieron un vuelo en curso.",
		}, []string{"provider"})

		providerCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backvault_provider_call_duration_seconds",
			Help:    "Duración de llamadas HTTP a endpoints de providers.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider", "op"})

		deadConnectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backvault_dead_connections_total",
			Help: "Conexiones marcadas muertas (refresh token inválido).",
		}, []string{"provider"})

		statesIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backvault_oauth_states_issued_total",
			Help: "States de autorización emitidos por provider.",
		}, []string{"provider"})

		stateValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backvault_oauth_state_validations_total",
			Help: "Validaciones de state por resultado (ok, not_found, expired).",
		}, []string{"result"})

		registerCollector(httpRequestsTotal)
		registerCollector(httpDuration)
		registerCollector(oauthExchangesTotal)
		registerCollector(oauthRefreshesTotal)
		registerCollector(oauthRevokesTotal)
		registerCollector(refreshSharedTotal)
		registerCollector(providerCallDuration)
		registerCollector(deadConnectionsTotal)
		registerCollector(statesIssuedTotal)
		registerCollector(stateValidationsTotal)
	})
}

// Handler expone /metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// Todas las funciones Record* son nil-safe: si Init no corrió, no hacen
// nada. Así los tests de paquetes individuales no dependen de metrics.

func RecordHTTPRequest(method, route string, status int, dur time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, route, httpStatusLabel(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(dur.Seconds())
}

func RecordExchange(provider, result string) {
	if oauthExchangesTotal == nil {
		return
	}
	oauthExchangesTotal.WithLabelValues(provider, result).Inc()
}

func RecordRefresh(provider, result string) {
	if oauthRefreshesTotal == nil {
		return
	}
	oauthRefreshesTotal.WithLabelValues(provider, result).Inc()
}

func RecordRevoke(provider, result string) {
	if oauthRevokesTotal == nil {
		return
	}
	oauthRevokesTotal.WithLabelValues(provider, result).Inc()
}

func RecordRefreshShared(provider string) {
	if refreshSharedTotal == nil {
		return
	}
	refreshSharedTotal.WithLabelValues(provider).Inc()
}

func RecordProviderCall(provider, op string, dur time.Duration) {
	if providerCallDuration == nil {
		return
	}
	providerCallDuration.WithLabelValues(provider, op).Observe(dur.Seconds())
}

func RecordDeadConnection(provider string) {
	if deadConnectionsTotal == nil {
		return
	}
	deadConnectionsTotal.WithLabelValues(provider).Inc()
}

func RecordStateIssued(provider string) {
	if statesIssuedTotal == nil {
		return
	}
	statesIssuedTotal.WithLabelValues(provider).Inc()
}

func RecordStateValidation(result string) {
	if stateValidationsTotal == nil {
		return
	}
	stateValidationsTotal.WithLabelValues(result).Inc()
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
