// Package metrics exposes crawl and filter counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Extraction outcomes.
const (
	OutcomeSaved     = "saved"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Recorder is what the use cases report to.
type Recorder interface {
	RecordArticle(source, outcome string)
	RecordBatch(duration time.Duration)
	RecordRun(kind string, duration time.Duration, failures int)
	RecordFilter(outcome string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	articles    *prometheus.CounterVec
	batchTime   prometheus.Histogram
	runTime     *prometheus.HistogramVec
	runFailures *prometheus.CounterVec
	filter      *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector registers the metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		articles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiddonews_articles_total",
			Help: "Crawled articles by source and outcome.",
		}, []string{"source", "outcome"}),
		batchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kiddonews_batch_duration_seconds",
			Help:    "Time spent extracting one batch, excluding the inter-batch delay.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		runTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kiddonews_run_duration_seconds",
			Help:    "Duration of crawl and filter runs.",
			Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600},
		}, []string{"kind"}),
		runFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiddonews_run_failures_total",
			Help: "Failed items per run kind.",
		}, []string{"kind"}),
		filter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiddonews_filter_total",
			Help: "Summarizer outcomes.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(c.articles, c.batchTime, c.runTime, c.runFailures, c.filter)
	return c
}

// RecordArticle counts one crawled URL.
func (c *Collector) RecordArticle(source, outcome string) {
	c.articles.WithLabelValues(source, outcome).Inc()
}

// RecordBatch observes a batch duration.
func (c *Collector) RecordBatch(duration time.Duration) {
	c.batchTime.Observe(duration.Seconds())
}

// RecordRun observes a finished run.
func (c *Collector) RecordRun(kind string, duration time.Duration, failures int) {
	c.runTime.WithLabelValues(kind).Observe(duration.Seconds())
	c.runFailures.WithLabelValues(kind).Add(float64(failures))
}

// RecordFilter counts one summarizer outcome.
func (c *Collector) RecordFilter(outcome string) {
	c.filter.WithLabelValues(outcome).Inc()
}

// Nop discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordArticle(string, string) {}
func (Nop) RecordBatch(time.Duration) {}
func (Nop) RecordRun(string, time.Duration, int) {}
func (Nop) RecordFilter(string) {}

// Handler serves the gatherer for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
