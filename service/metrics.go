package service

import (
	"github.com/kwv/coordenv/coordenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors updated by the worker.
type Metrics struct {
	// Sites counts processed sites by outcome: matched, skipped, error.
	Sites *prometheus.CounterVec

	SiteDuration *prometheus.HistogramVec
	BestCSM      prometheus.Histogram
	Fallbacks    prometheus.Counter
	Batches      prometheus.Counter
	BatchErrors  prometheus.Counter
	Published    *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Sites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coordenv_sites_total",
			Help: "Sites processed by outcome",
		}, []string{"outcome"}),
		SiteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coordenv_site_duration_seconds",
			Help:    "Time spent matching one site",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
		}, []string{"best_symbol"}),
		BestCSM: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "coordenv_best_csm",
			Help:    "Best continuous symmetry measure per site",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 50, 100},
		}),
		Fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "coordenv_fallback_alignments_total",
			Help: "Alignments that used random permutations because no separation plane matched",
		}),
		Batches: factory.NewCounter(prometheus.CounterOpts{
			Name: "coordenv_batches_total",
			Help: "Batches run",
		}),
		BatchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "coordenv_batch_errors_total",
			Help: "Batches aborted by a catalog error",
		}),
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coordenv_published_total",
			Help: "MQTT publishes by result",
		}, []string{"result"}),
	}
}

// ObserveReport records one site report.
func (m *Metrics) ObserveReport(report coordenv.SiteReport) {
	switch {
	case report.Skipped:
		m.Sites.WithLabelValues("skipped").Inc()
		return
	case report.Err != nil:
		m.Sites.WithLabelValues("error").Inc()
		return
	}
	m.Sites.WithLabelValues("matched").Inc()

	symbol := "none"
	if len(report.Environments) > 0 {
		if best, ok := report.Environments[0].Best(); ok {
			symbol = best.Symbol
			m.BestCSM.Observe(best.CSM)
		}
	}
	// copied reports did no work of their own
	if report.Representative != "" {
		return
	}
	m.SiteDuration.WithLabelValues(symbol).Observe(report.Duration.Seconds())
	for _, env := range report.Environments {
		for _, r := range env.Ranking {
			if r.Algorithm == coordenv.AlgorithmFallback {
				m.Fallbacks.Inc()
			}
		}
	}
}
