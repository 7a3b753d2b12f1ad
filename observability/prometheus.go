package observability

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var _ MetricFactory = (*PrometheusFactory)(nil)

// PrometheusFactory creates Prometheus collectors on demand and registers
// them with its registry. Dotted names become underscore separated.
type PrometheusFactory struct {
	registry prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusFactory returns a factory registering into reg. A nil reg
// uses a fresh private registry; pass prometheus.DefaultRegisterer to expose
// the metrics on the default /metrics handler.
func NewPrometheusFactory(reg prometheus.Registerer) *PrometheusFactory {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &PrometheusFactory{
		registry:   reg,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Counter implements MetricFactory.
func (f *PrometheusFactory) Counter(name string) Counter {
	name = metricName(name) + "_total"

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	var c prometheus.Counter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: "Remit counter " + name,
	})
	if existing, ok := register(f.registry, c).(prometheus.Counter); ok {
		c = existing
	}
	f.counters[name] = c
	return c
}

// Histogram implements MetricFactory.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	name = metricName(name)

	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	var h prometheus.Histogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    "Remit histogram " + name,
		Buckets: prometheus.ExponentialBuckets(5, 2, 12),
	})
	if existing, ok := register(f.registry, h).(prometheus.Histogram); ok {
		h = existing
	}
	f.histograms[name] = h
	return h
}

// register adds c to reg. When an identical collector is already
// registered (a second factory on the default registry) the existing one is
// returned so both factories share it.
func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
