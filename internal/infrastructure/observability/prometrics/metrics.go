package prometrics

import (
	"sync"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry resolves metric keys to Prometheus vectors, registering each on first use.
type Registry struct {
	reg       prometheus.Registerer
	namespace string
	specs     map[observability.MetricKey]observability.MetricSpec

	mu         sync.Mutex
	counters   map[observability.MetricKey]*prometheus.CounterVec
	histograms map[observability.MetricKey]*prometheus.HistogramVec
}

var _ observability.Metrics = (*Registry)(nil)

// New builds a registry over reg. A nil reg falls back to prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Registry{
		reg:        reg,
		namespace:  namespace,
		specs:      observability.Specs,
		counters:   make(map[observability.MetricKey]*prometheus.CounterVec),
		histograms: make(map[observability.MetricKey]*prometheus.HistogramVec),
	}
}

func (r *Registry) Counter(name observability.MetricKey) observability.Counter {
	spec, ok := r.specs[name]
	if !ok {
		return observability.NopCounter()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cv, ok := r.counters[name]; ok {
		return &counter{v: cv, keys: spec.Labels}
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace, Name: string(name), Help: spec.Help,
	}, spec.Labels)
	cv = registerOrExisting(r.reg, cv)
	r.counters[name] = cv
	return &counter{v: cv, keys: spec.Labels}
}

func (r *Registry) Histogram(name observability.MetricKey) observability.Histogram {
	spec, ok := r.specs[name]
	if !ok {
		return observability.NopHistogram()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if hv, ok := r.histograms[name]; ok {
		return &histogram{v: hv, keys: spec.Labels}
	}
	buckets := spec.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace, Name: string(name), Help: spec.Help, Buckets: buckets,
	}, spec.Labels)
	hv = registerOrExisting(r.reg, hv)
	r.histograms[name] = hv
	return &histogram{v: hv, keys: spec.Labels}
}

func registerOrExisting[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

type counter struct {
	v    *prometheus.CounterVec
	keys []string
}

func (c *counter) Add(d float64, labels ...observability.Label) {
	c.v.With(labelMap(c.keys, labels)).Add(d)
}

type histogram struct {
	v    *prometheus.HistogramVec
	keys []string
}

func (h *histogram) Observe(v float64, labels ...observability.Label) {
	h.v.With(labelMap(h.keys, labels)).Observe(v)
}

// labelMap fills every declared key so a missing label never panics inside client_golang.
func labelMap(keys []string, ls []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(keys))
	for _, k := range keys {
		m[k] = ""
	}
	for _, l := range ls {
		if _, ok := m[l.Key]; ok {
			m[l.Key] = l.Value
		}
	}
	return m
}
