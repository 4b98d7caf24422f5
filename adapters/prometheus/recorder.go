package prometheus

import (
	"context"
	"net/http"
	"strings"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-integrations/core"
)

const defaultNamespace = "integrations"

// labelNames is the fixed label set shared by every metric. Tags outside it
// are dropped and missing tags are recorded as empty.
var labelNames = []string{"operation", "status", "provider", "text_code", "refresh_outcome"}

var defaultDurationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Recorder implements core.MetricsRecorder on a prometheus registry. Metric
// vectors are created on first use.
type Recorder struct {
	registry  *prom.Registry
	namespace string
	buckets   []float64

	mu         sync.Mutex
	counters   map[string]*prom.CounterVec
	histograms map[string]*prom.HistogramVec
}

type Option func(*Recorder)

func WithRegistry(registry *prom.Registry) Option {
	return func(r *Recorder) {
		if registry != nil {
			r.registry = registry
		}
	}
}

func WithBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		registry:   prom.NewRegistry(),
		namespace:  defaultNamespace,
		buckets:    defaultDurationBuckets,
		counters:   map[string]*prom.CounterVec{},
		histograms: map[string]*prom.HistogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) Registry() *prom.Registry {
	return r.registry
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value <= 0 {
		return
	}
	vec := r.counter(MetricName(name))
	if vec == nil {
		return
	}
	vec.With(labels(tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	vec := r.histogram(MetricName(name))
	if vec == nil {
		return
	}
	vec.With(labels(tags)).Observe(value)
}

func (r *Recorder) counter(name string) *prom.CounterVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[name]; ok {
		return vec
	}
	vec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      "Integration broker counter " + name,
	}, labelNames)
	if err := r.registry.Register(vec); err != nil {
		return nil
	}
	r.counters[name] = vec
	return vec
}

func (r *Recorder) histogram(name string) *prom.HistogramVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[name]; ok {
		return vec
	}
	vec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      "Integration broker histogram " + name,
		Buckets:   r.buckets,
	}, labelNames)
	if err := r.registry.Register(vec); err != nil {
		return nil
	}
	r.histograms[name] = vec
	return vec
}

// MetricName converts a dotted recorder name into a prometheus metric name
// without the namespace prefix. "integrations.callback.total" becomes
// "callback_total".
func MetricName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.TrimPrefix(name, defaultNamespace+".")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "unnamed"
	}
	return out
}

func labels(tags map[string]string) prom.Labels {
	out := make(prom.Labels, len(labelNames))
	for _, key := range labelNames {
		out[key] = strings.TrimSpace(tags[key])
	}
	return out
}

var _ core.MetricsRecorder = (*Recorder)(nil)
