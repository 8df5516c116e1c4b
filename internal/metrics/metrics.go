package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "smartbot_entries_total", Help: "Positions opened"},
		[]string{"side"},
	)
	ExitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "smartbot_exits_total", Help: "Positions closed"},
		[]string{"side", "reason"},
	)
	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "smartbot_rejections_total", Help: "Venue order rejections"},
		[]string{"stage"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "smartbot_open_positions", Help: "Currently open positions"},
	)
	BiasRecomputesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "smartbot_bias_recomputes_total", Help: "Bias consensus recomputations"},
	)
)

func init() {
	prometheus.MustRegister(EntriesTotal, ExitsTotal, RejectionsTotal, OpenPositions, BiasRecomputesTotal)
}

// Serve exposes /metrics on addr and returns the server for shutdown.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
