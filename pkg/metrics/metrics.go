// Package metrics exposes estimator counters and thresholds in Prometheus
// text format.
package metrics

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Metrics of a single tracker. Each recorder owns its own set so several
// trackers can live in one process.
type Recorder struct {
	set *metrics.Set

	succeeded     *metrics.Counter
	timedOut      *metrics.Counter
	closed        *metrics.Counter
	networkResets *metrics.Counter
	rejected      *metrics.Counter
	discarded     *metrics.Counter

	timeoutMs  *metrics.Gauge
	closeMs    *metrics.Gauge
	xm         *metrics.Gauge
	alpha      *metrics.Gauge
	total      *metrics.Gauge
	networkUp  *metrics.Gauge
	buildTimes *metrics.Histogram
}

func NewRecorder() *Recorder {
	s := metrics.NewSet()
	return &Recorder{
		set: s,

		succeeded:     s.NewCounter(`cbt_circuits_total{outcome="succeeded"}`),
		timedOut:      s.NewCounter(`cbt_circuits_total{outcome="timed_out"}`),
		closed:        s.NewCounter(`cbt_circuits_total{outcome="closed"}`),
		networkResets: s.NewCounter(`cbt_network_resets_total`),
		rejected:      s.NewCounter(`cbt_rejected_samples_total`),
		discarded:     s.NewCounter(`cbt_discarded_samples_total`),

		timeoutMs:  s.NewGauge(`cbt_timeout_ms`, nil),
		closeMs:    s.NewGauge(`cbt_close_ms`, nil),
		xm:         s.NewGauge(`cbt_xm_ms`, nil),
		alpha:      s.NewGauge(`cbt_alpha`, nil),
		total:      s.NewGauge(`cbt_build_times`, nil),
		networkUp:  s.NewGauge(`cbt_network_live`, nil),
		buildTimes: s.NewHistogram(`cbt_build_time_ms`),
	}
}

func (r *Recorder) CircuitSucceeded() { r.succeeded.Inc() }

func (r *Recorder) CircuitTimedOut() { r.timedOut.Inc() }

func (r *Recorder) CircuitClosed() { r.closed.Inc() }

func (r *Recorder) NetworkReset() { r.networkResets.Inc() }

// SampleRejected counts build times outside the accepted range
func (r *Recorder) SampleRejected() { r.rejected.Inc() }

// SampleDiscarded counts build times dropped as clock jumps
func (r *Recorder) SampleDiscarded() { r.discarded.Inc() }

// BuildTime records an accepted build time
func (r *Recorder) BuildTime(ms uint32) {
	r.buildTimes.Update(float64(ms))
}

// Thresholds publishes the current estimator state
func (r *Recorder) Thresholds(timeoutMs, closeMs float64, xm uint32, alpha float64, total int) {
	r.timeoutMs.Set(timeoutMs)
	r.closeMs.Set(closeMs)
	r.xm.Set(float64(xm))
	r.alpha.Set(alpha)
	r.total.Set(float64(total))
}

func (r *Recorder) NetworkLive(live bool) {
	if live {
		r.networkUp.Set(1)
	} else {
		r.networkUp.Set(0)
	}
}

// Counts of the outcome counters, for status output
func (r *Recorder) Outcomes() (succeeded, timedOut, closed uint64) {
	return r.succeeded.Get(), r.timedOut.Get(), r.closed.Get()
}

func (r *Recorder) NetworkResets() uint64 {
	return r.networkResets.Get()
}

// NetworkLiveGauge is the last liveness reported, false before any
func (r *Recorder) NetworkLiveGauge() bool {
	return r.networkUp.Get() == 1
}

func (r *Recorder) TimeoutMs() float64 {
	return r.timeoutMs.Get()
}

// WritePrometheus writes every metric of this recorder
func (r *Recorder) WritePrometheus(w io.Writer) {
	r.set.WritePrometheus(w)
}
