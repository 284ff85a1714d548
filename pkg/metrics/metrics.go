// Package metrics exposes sync progress as Prometheus metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blinksync"

// Recorder owns a private registry. All methods are safe on a nil *Recorder,
// which records nothing.
type Recorder struct {
	registry *prometheus.Registry

	cycles          prometheus.Counter
	listingFailures prometheus.Counter
	cameraFailures  prometheus.Counter
	pageFailures    prometheus.Counter
	downloads       *prometheus.CounterVec
	bytes           *prometheus.CounterVec
	lastSuccess     prometheus.Gauge
	state           *prometheus.GaugeVec

	mu           sync.Mutex
	currentState string
	lastCycleAt  time.Time
}

// NewRecorder creates a Recorder with Go runtime and process collectors
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Recorder{registry: reg}

	r.cycles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Completed enumeration and download cycles",
	})
	r.listingFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "network_listing_failures_total",
		Help:      "Failed network listing attempts",
	})
	r.cameraFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "camera_failures_total",
		Help:      "Cameras skipped because their detail could not be fetched",
	})
	r.pageFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "media_page_failures_total",
		Help:      "Media listing pages that failed and ended pagination",
	})
	r.downloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloads_total",
		Help:      "Download attempts by kind and outcome",
	}, []string{"kind", "outcome"})
	r.bytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloaded_bytes_total",
		Help:      "Bytes written to the mirror by kind",
	}, []string{"kind"})
	r.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_cycle_success_timestamp_seconds",
		Help:      "Unix time the last cycle finished",
	})
	r.state = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "state",
		Help:      "Current poll loop state (1 for the active state)",
	}, []string{"state"})

	reg.MustRegister(r.cycles, r.listingFailures, r.cameraFailures, r.pageFailures,
		r.downloads, r.bytes, r.lastSuccess, r.state)
	return r
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// CycleCompleted counts a finished cycle
func (r *Recorder) CycleCompleted(at time.Time) {
	if r == nil {
		return
	}
	r.cycles.Inc()
	r.lastSuccess.Set(float64(at.Unix()))

	r.mu.Lock()
	r.lastCycleAt = at
	r.mu.Unlock()
}

// ListingFailed counts a failed network listing
func (r *Recorder) ListingFailed() {
	if r == nil {
		return
	}
	r.listingFailures.Inc()
}

// CameraFailed counts a skipped camera
func (r *Recorder) CameraFailed() {
	if r == nil {
		return
	}
	r.cameraFailures.Inc()
}

// PageFailed counts a media page that could not be fetched
func (r *Recorder) PageFailed() {
	if r == nil {
		return
	}
	r.pageFailures.Inc()
}

// Download records one download result
func (r *Recorder) Download(kind, outcome string, bytes int64) {
	if r == nil {
		return
	}
	r.downloads.WithLabelValues(kind, outcome).Inc()
	if bytes > 0 {
		r.bytes.WithLabelValues(kind).Add(float64(bytes))
	}
}

// SetState marks state as the active poll loop state
func (r *Recorder) SetState(state string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentState != "" {
		r.state.WithLabelValues(r.currentState).Set(0)
	}
	r.state.WithLabelValues(state).Set(1)
	r.currentState = state
}

// Snapshot returns the current state and the time of the last finished cycle
func (r *Recorder) Snapshot() (state string, lastCycle time.Time) {
	if r == nil {
		return "", time.Time{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentState, r.lastCycleAt
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
