package prommetrics

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-roundup/core"
)

// DefaultLabels are the tag keys the round-up service emits. Tags outside the
// label set are dropped and missing ones are exported as empty values.
var DefaultLabels = []string{"operation", "status", "reason", "error_code"}

var DefaultBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

type Option func(*Recorder)

func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(r *Recorder) {
		if registerer != nil {
			r.registerer = registerer
		}
	}
}

func WithLabels(labels ...string) Option {
	return func(r *Recorder) {
		if len(labels) > 0 {
			r.labels = append([]string(nil), labels...)
		}
	}
}

func WithBuckets(buckets ...float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// Recorder implements core.MetricsRecorder on top of prometheus vectors. One
// vector is created lazily per metric name.
type Recorder struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	labels     []string
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	onError    func(name string, err error)
}

// New builds a recorder with its own registry unless WithRegisterer is given.
func New(opts ...Option) *Recorder {
	registry := prometheus.NewRegistry()
	r := &Recorder{
		registerer: registry,
		gatherer:   registry,
		labels:     append([]string(nil), DefaultLabels...),
		buckets:    append([]float64(nil), DefaultBuckets...),
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if gatherer, ok := r.registerer.(prometheus.Gatherer); ok {
		r.gatherer = gatherer
	} else {
		r.gatherer = prometheus.DefaultGatherer
	}
	return r
}

// OnRegisterError sets a callback for collectors that fail to register.
func (r *Recorder) OnRegisterError(fn func(name string, err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = fn
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	vec := r.counter(name)
	if vec == nil {
		return
	}
	vec.WithLabelValues(r.labelValues(tags)...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	vec := r.histogram(name)
	if vec == nil {
		return
	}
	vec.WithLabelValues(r.labelValues(tags)...).Observe(value)
}

// Handler exposes the recorder's registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.gatherer
}

func (r *Recorder) counter(name string) *prometheus.CounterVec {
	metric := MetricName(name)
	if metric == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[metric]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metric,
		Help: "Round-up counter " + strings.TrimSpace(name),
	}, r.labels)
	if err := r.registerer.Register(vec); err != nil {
		if existing, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if shared, ok := existing.ExistingCollector.(*prometheus.CounterVec); ok {
				r.counters[metric] = shared
				return shared
			}
		}
		r.reportError(metric, err)
		return nil
	}
	r.counters[metric] = vec
	return vec
}

func (r *Recorder) histogram(name string) *prometheus.HistogramVec {
	metric := MetricName(name)
	if metric == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[metric]; ok {
		return vec
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metric,
		Help:    "Round-up histogram " + strings.TrimSpace(name),
		Buckets: r.buckets,
	}, r.labels)
	if err := r.registerer.Register(vec); err != nil {
		if existing, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if shared, ok := existing.ExistingCollector.(*prometheus.HistogramVec); ok {
				r.histograms[metric] = shared
				return shared
			}
		}
		r.reportError(metric, err)
		return nil
	}
	r.histograms[metric] = vec
	return vec
}

func (r *Recorder) reportError(name string, err error) {
	if r.onError != nil {
		r.onError(name, err)
	}
}

func (r *Recorder) labelValues(tags map[string]string) []string {
	values := make([]string, len(r.labels))
	for index, label := range r.labels {
		values[index] = strings.TrimSpace(tags[label])
	}
	return values
}

// MetricName converts a dotted metric name into a valid prometheus name.
func MetricName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	for index, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_', ch == ':':
			b.WriteRune(ch)
		case ch >= '0' && ch <= '9':
			if index == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(ch)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

var _ core.MetricsRecorder = (*Recorder)(nil)
