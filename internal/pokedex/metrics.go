package pokedex

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK    = "ok"
	resultError = "error"

	labelEndpoint = "endpoint"
	labelResult   = "result"
)

// Metrics describes catalog activity. A nil *Metrics records nothing.
type Metrics struct {
	Refreshes *prometheus.CounterVec
	Upstream  *prometheus.CounterVec
	Backfills prometheus.Counter
	Entries   prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pokedex_refreshes_total",
				Help: "Full catalog refreshes by result",
			},
			[]string{labelResult},
		),
		Upstream: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pokedex_upstream_requests_total",
				Help: "Upstream API calls by endpoint and result",
			},
			[]string{labelEndpoint, labelResult},
		),
		Backfills: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pokedex_detail_backfills_total",
				Help: "Entries whose stats and types were fetched and persisted",
			},
		),
		Entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pokedex_catalog_entries",
				Help: "Entries in the last refreshed catalog",
			},
		),
	}

	reg.MustRegister(m.Refreshes, m.Upstream, m.Backfills, m.Entries)
	return m
}

func (m *Metrics) observeUpstream(endpoint, result string) {
	if m == nil {
		return
	}
	m.Upstream.WithLabelValues(endpoint, result).Inc()
}

func (m *Metrics) observeRefresh(result string, entries int) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(result).Inc()
	if result == resultOK {
		m.Entries.Set(float64(entries))
	}
}

func (m *Metrics) observeBackfill() {
	if m == nil {
		return
	}
	m.Backfills.Inc()
}
