package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricPagesTotal          = "feed_pages_total"
	MetricPageItems           = "feed_page_items"
	MetricPageDuration        = "feed_page_duration_seconds"
	MetricInvalidCursorsTotal = "feed_invalid_cursors_total"
	MetricSearchMissesTotal   = "search_not_found_total"
)

// Metrics contains Prometheus metrics for feed and search pages.
// All operations are thread-safe.
type Metrics struct {
	pagesTotal     *prometheus.CounterVec
	pageItems      *prometheus.HistogramVec
	pageDuration   *prometheus.HistogramVec
	invalidCursors *prometheus.CounterVec
	searchMisses   prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		pagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPagesTotal,
			Help: "Total number of pages served, by mode",
		}, []string{"mode"}),
		pageItems: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricPageItems,
			Help:    "Number of items returned per page, by mode",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		}, []string{"mode"}),
		pageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricPageDuration,
			Help:    "Histogram of page computation duration in seconds, by mode",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"mode"}),
		invalidCursors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricInvalidCursorsTotal,
			Help: "Total number of rejected cursors, by mode",
		}, []string{"mode"}),
		searchMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSearchMissesTotal,
			Help: "Total number of searches that matched no posts",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObservePage records a served page.
func (m *Metrics) ObservePage(mode string, items int, seconds float64) {
	m.pagesTotal.WithLabelValues(mode).Inc()
	m.pageItems.WithLabelValues(mode).Observe(float64(items))
	m.pageDuration.WithLabelValues(mode).Observe(seconds)
}

// IncInvalidCursor increments the rejected cursor counter.
func (m *Metrics) IncInvalidCursor(mode string) {
	m.invalidCursors.WithLabelValues(mode).Inc()
}

// IncSearchMiss increments the empty search counter.
func (m *Metrics) IncSearchMiss() {
	m.searchMisses.Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.pagesTotal,
		m.pageItems,
		m.pageDuration,
		m.invalidCursors,
		m.searchMisses,
	}
}
