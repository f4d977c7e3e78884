package r8econf

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "r8econf"

type registryMetrics struct {
	compilations *prometheus.CounterVec
	cached       prometheus.GaugeFunc
	samplers     *samplerCollector
}

func newRegistryMetrics(r *Registry) *registryMetrics {
	return &registryMetrics{
		compilations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "compilations_total",
				Help:      "Policy compilations by result.",
			},
			[]string{"result"},
		),
		cached: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "cached_policies",
				Help:      "Number of compiled policies held by the registry.",
			},
			func() float64 { return float64(r.Len()) },
		),
		samplers: &samplerCollector{registry: r},
	}
}

func (m *registryMetrics) mustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.compilations, m.cached, m.samplers)
}

func (m *registryMetrics) compiled() {
	m.compilations.WithLabelValues("success").Inc()
}

func (m *registryMetrics) compileFailed() {
	m.compilations.WithLabelValues("failure").Inc()
}

var (
	sampledDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "policy", "executions"),
		"Executions observed in the policy's metrics window.",
		[]string{"policy"}, nil,
	)
	failedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "policy", "failures"),
		"Failed executions observed in the policy's metrics window.",
		[]string{"policy"}, nil,
	)
	meanDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "policy", "mean_seconds"),
		"Mean execution time in the policy's metrics window.",
		[]string{"policy"}, nil,
	)
	p95Desc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "policy", "p95_seconds"),
		"95th percentile execution time in the policy's metrics window.",
		[]string{"policy"}, nil,
	)
)

// samplerCollector exports the metrics sampler of every cached policy
// compiled with a metrics step. Values are read at scrape time.
type samplerCollector struct {
	registry *Registry
}

func (c *samplerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- sampledDesc
	ch <- failedDesc
	ch <- meanDesc
	ch <- p95Desc
}

func (c *samplerCollector) Collect(ch chan<- prometheus.Metric) {
	for _, p := range c.registry.Policies() {
		if !p.MetricsEnabled() {
			continue
		}

		snap := p.Metrics().Snapshot()
		name := p.Key()

		ch <- prometheus.MustNewConstMetric(sampledDesc, prometheus.GaugeValue, float64(snap.Count), name)
		ch <- prometheus.MustNewConstMetric(failedDesc, prometheus.GaugeValue, float64(snap.Failures), name)
		ch <- prometheus.MustNewConstMetric(meanDesc, prometheus.GaugeValue, snap.Mean.Seconds(), name)
		ch <- prometheus.MustNewConstMetric(p95Desc, prometheus.GaugeValue, snap.P95.Seconds(), name)
	}
}
