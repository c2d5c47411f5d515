// Package metrics exposes stream counters as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/slidegen/internal/slidestream"
)

// Metrics holds the collectors on a private registry. It implements
// slidestream.Observer and is safe for concurrent streams.
type Metrics struct {
	registry *prometheus.Registry

	streams    *prometheus.CounterVec
	slides     prometheus.Counter
	malformed  prometheus.Counter
	characters prometheus.Counter
	duration   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slidegen_streams_total",
			Help: "Slide streams by outcome.",
		}, []string{"outcome"}),
		slides: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slidegen_slides_created_total",
			Help: "Slides finalized and delivered.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slidegen_malformed_objects_total",
			Help: "Slide objects discarded because they were not valid JSON.",
		}),
		characters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slidegen_character_events_total",
			Help: "Character (typing) events delivered.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slidegen_stream_duration_seconds",
			Help:    "Wall time from stream start to terminal event.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	m.registry.MustRegister(
		m.streams, m.slides, m.malformed, m.characters, m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) CharacterEmitted(slidestream.FieldUpdate) { m.characters.Inc() }

func (m *Metrics) SlideCreated(int, slidestream.Slide) { m.slides.Inc() }

func (m *Metrics) ObjectDiscarded(int, error) { m.malformed.Inc() }

func (m *Metrics) StreamFinished(outcome slidestream.Outcome, _ int, elapsed time.Duration) {
	m.streams.WithLabelValues(string(outcome)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
