// Package metrics exposes panel activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll results.
const (
	PollSuccess   = "success"
	PollNetwork   = "network"
	PollMalformed = "malformed"
	PollStale     = "stale"
)

// Recorder records panel metrics into its own registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	reg *prometheus.Registry

	polls        *prometheus.CounterVec
	pollDuration prometheus.Histogram
	angle        *prometheus.GaugeVec
	commands     *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a recorder with a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		reg: reg,
		polls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turntable_polls_total",
				Help: "Status polls by result",
			},
			[]string{"result"},
		),
		pollDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "turntable_poll_duration_seconds",
				Help:    "Duration of /status requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
		),
		angle: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "turntable_angle_degrees",
				Help: "Last applied angle per axis",
			},
			[]string{"axis"},
		),
		commands: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turntable_commands_total",
				Help: "Commands sent to the controller",
			},
			[]string{"axis", "kind", "result"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turntable_http_requests_total",
				Help: "Panel HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "turntable_http_request_duration_seconds",
				Help:    "Panel HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}

// ObservePoll records one poll outcome and how long the fetch took.
// Stale polls are counted but their duration is not observed twice.
func (r *Recorder) ObservePoll(result string, d time.Duration) {
	if r == nil {
		return
	}
	r.polls.WithLabelValues(result).Inc()
	if result != PollStale {
		r.pollDuration.Observe(d.Seconds())
	}
}

// SetAngle records the displayed angle of an axis.
func (r *Recorder) SetAngle(axis string, deg float64) {
	if r == nil {
		return
	}
	r.angle.WithLabelValues(axis).Set(deg)
}

// ObserveCommand counts one command sent for an axis.
func (r *Recorder) ObserveCommand(axis, kind string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.commands.WithLabelValues(axis, kind, result).Inc()
}

// ObserveHTTP records one served request.
func (r *Recorder) ObserveHTTP(route, method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Registry returns the underlying registry, or nil for a nil recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
