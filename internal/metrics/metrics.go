// Package metrics exposes Prometheus collectors for a running crawl.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/linkspider/internal/model"
)

const namespace = "linkspider"

// Outcome label values for the fetch counter.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector groups the crawl metrics.
// All methods are safe to call on a nil *Collector, which records nothing.
type Collector struct {
	InFlight      prometheus.Gauge
	Visited       prometheus.Gauge
	Pending       prometheus.Gauge
	Fetches       *prometheus.CounterVec
	LinksFound    prometheus.Counter
	FetchDuration prometheus.Histogram

	gatherer prometheus.Gatherer
}

// NewCollector registers the crawl metrics with reg.
// Passing a fresh prometheus.NewRegistry() keeps tests isolated.
func NewCollector(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Number of fetch tasks dispatched and not yet completed.",
		}),
		Visited: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frontier_visited_urls",
			Help:      "Number of URLs dequeued from the frontier.",
		}),
		Pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frontier_pending_urls",
			Help:      "Number of URLs waiting in the frontier.",
		}),
		Fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Total number of completed fetch tasks.",
		}, []string{"outcome"}),
		LinksFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_found_total",
			Help:      "Total number of absolute links extracted.",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of fetch-extract tasks.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		gatherer: reg,
	}
}

// SetQueue updates the frontier and in-flight gauges.
func (c *Collector) SetQueue(inFlight, visited, pending int) {
	if c == nil {
		return
	}
	c.InFlight.Set(float64(inFlight))
	c.Visited.Set(float64(visited))
	c.Pending.Set(float64(pending))
}

// ObserveFetch records a finished task.
func (c *Collector) ObserveFetch(rec model.FetchRecord) {
	if c == nil {
		return
	}
	c.FetchDuration.Observe(rec.Duration.Seconds())
	if !rec.Succeeded() {
		c.Fetches.WithLabelValues(OutcomeFailure).Inc()
		return
	}
	c.Fetches.WithLabelValues(OutcomeSuccess).Inc()
	c.LinksFound.Add(float64(rec.LinkCount()))
}

// Handler returns an HTTP handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
