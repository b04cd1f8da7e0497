package web

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/taigrr/stlview/pkg/viewer"
)

// Load results used as the "result" label.
const (
	resultOK        = "ok"
	resultRejected  = "rejected"
	resultTooLarge  = "too_large"
	resultDecode    = "decode_error"
	resultCanceled  = "canceled"
	resultInvalid   = "invalid"
	resultReadError = "error"
)

// Metrics holds the browser host's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	LoadsTotal    *prometheus.CounterVec
	LoadDuration  prometheus.Histogram
	LoadBytes     prometheus.Counter
	ClientsActive prometheus.Gauge
	FramesTotal   prometheus.Counter
	ControlsTotal *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry. liveBuffers, if
// not nil, reports the number of mesh buffers currently held by all sessions.
func NewMetrics(liveBuffers func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		LoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stlview_loads_total",
				Help: "Total number of file loads by result",
			},
			[]string{"result"},
		),
		LoadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stlview_load_duration_seconds",
				Help:    "Time taken to read, decode and present a file",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
		),
		LoadBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stlview_load_bytes_total",
				Help: "Total bytes of successfully loaded files",
			},
		),
		ClientsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "stlview_clients_active",
				Help: "Number of connected browser clients",
			},
		),
		FramesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stlview_frames_total",
				Help: "Total number of frames sent to clients",
			},
		),
		ControlsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stlview_controls_total",
				Help: "Total number of control changes by control name",
			},
			[]string{"control"},
		),
	}

	if liveBuffers != nil {
		factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "stlview_live_buffers",
				Help: "Number of mesh buffers currently allocated",
			},
			liveBuffers,
		)
	}
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordLoad records the outcome of one ingestion.
func (m *Metrics) RecordLoad(err error, size int, duration time.Duration) {
	result := loadResult(err)
	m.LoadsTotal.WithLabelValues(result).Inc()
	if result == resultOK {
		m.LoadDuration.Observe(duration.Seconds())
		m.LoadBytes.Add(float64(size))
	}
}

func loadResult(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, viewer.ErrInvalidFileType):
		return resultRejected
	case errors.Is(err, viewer.ErrFileTooLarge):
		return resultTooLarge
	case errors.Is(err, viewer.ErrDecode):
		return resultDecode
	case errors.Is(err, viewer.ErrInvalidValue):
		return resultInvalid
	case isCanceled(err):
		return resultCanceled
	default:
		return resultReadError
	}
}
