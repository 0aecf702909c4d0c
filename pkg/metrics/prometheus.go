package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ORBScanner/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	scanDuration  *prometheus.HistogramVec
	symbolErrors  *prometheus.CounterVec
	breakouts     *prometheus.CounterVec
	invalidRanges *prometheus.CounterVec
	vix           prometheus.Gauge
	ticks         *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New registers the collectors on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		scanDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orbscanner_scan_duration_seconds",
				Help:    "Duration of one scan cycle",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"kind"},
		),
		symbolErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbscanner_symbol_errors_total",
				Help: "Per-symbol failures that dropped a symbol from a cycle",
			},
			[]string{"symbol", "kind"},
		),
		breakouts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbscanner_breakouts_total",
				Help: "Breakouts recorded on the ledger",
			},
			[]string{"symbol", "timeframe", "direction"},
		),
		invalidRanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbscanner_invalid_ranges_total",
				Help: "Opening ranges finalized without ticks",
			},
			[]string{"symbol", "timeframe"},
		),
		vix: f.NewGauge(prometheus.GaugeOpts{
			Name: "orbscanner_vix",
			Help: "Last VIX level used for sizing",
		}),
		ticks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbscanner_ticks_total",
				Help: "Ticks accepted by the realtime pipeline",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbscanner_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orbscanner_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordScan(kind string, seconds float64) {
	r.scanDuration.WithLabelValues(kind).Observe(seconds)
}

func (r *Recorder) RecordSymbolError(symbol, kind string) {
	r.symbolErrors.WithLabelValues(symbol, kind).Inc()
}

func (r *Recorder) RecordBreakout(symbol string, tf models.Timeframe, dir models.Direction) {
	r.breakouts.WithLabelValues(symbol, string(tf), string(dir)).Inc()
}

func (r *Recorder) RecordInvalidRange(symbol string, tf models.Timeframe) {
	r.invalidRanges.WithLabelValues(symbol, string(tf)).Inc()
}

func (r *Recorder) RecordVIX(vix float64) { r.vix.Set(vix) }

func (r *Recorder) RecordTick(symbol string) { r.ticks.WithLabelValues(symbol).Inc() }

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordScan(string, float64) {}
func (Nop) RecordSymbolError(string, string) {}
func (Nop) RecordBreakout(string, models.Timeframe, models.Direction) {}
func (Nop) RecordInvalidRange(string, models.Timeframe) {}
func (Nop) RecordVIX(float64) {}
func (Nop) RecordTick(string) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
