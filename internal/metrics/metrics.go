// Package metrics exports run statistics as Prometheus metrics.
//
// RunMetrics observes fixture events from the resolver and test events
// from the runner. After a run the registry can be written to a node
// exporter textfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/fixturekit/internal/resolver"
	"github.com/roach88/fixturekit/internal/runner"
	"github.com/roach88/fixturekit/internal/testcase"
)

// Namespace prefixes every metric name.
const Namespace = "fixturekit"

// RunMetrics contains the Prometheus metrics of test runs.
type RunMetrics struct {
	outcomesTotal       *prometheus.CounterVec
	rerunsTotal         prometheus.Counter
	testDuration        *prometheus.HistogramVec
	fixtureEventsTotal  *prometheus.CounterVec
	fixtureSetupSeconds *prometheus.HistogramVec
	setupErrorsTotal    *prometheus.CounterVec
	teardownErrorsTotal *prometheus.CounterVec
	runsTotal           *prometheus.CounterVec
	lastRunTimestamp    prometheus.Gauge

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

var (
	_ resolver.Observer = (*RunMetrics)(nil)
	_ runner.Reporter   = (*RunMetrics)(nil)
)

// NewRunMetrics creates the metrics and registers them on registry.
func NewRunMetrics(registry prometheus.Registerer) (*RunMetrics, error) {
	m := &RunMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("register run metrics: %w", err)
	}
	return m, nil
}

func (m *RunMetrics) initMetrics() {
	m.outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "outcomes_total",
			Help:      "Test results by outcome",
		},
		[]string{"outcome"},
	)
	m.rerunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "reruns_total",
		Help:      "Extra attempts made for failed tests",
	})
	m.testDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "test_duration_seconds",
			Help:      "Wall time of a test, fixture setup and reruns included",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		[]string{"module"},
	)
	m.fixtureEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fixture_events_total",
			Help:      "Fixture setups, reuses and teardowns by scope",
		},
		[]string{"kind", "scope"},
	)
	m.fixtureSetupSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "fixture_setup_duration_seconds",
			Help:      "Time spent in fixture providers",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 15),
		},
		[]string{"scope"},
	)
	m.setupErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fixture_setup_errors_total",
			Help:      "Fixture providers that failed",
		},
		[]string{"fixture"},
	)
	m.teardownErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "teardown_errors_total",
			Help:      "Teardowns that failed, by scope",
		},
		[]string{"scope"},
	)
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Finished runs by status",
		},
		[]string{"status"}, // ok, failed, degraded, aborted
	)
	m.lastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})

	m.collectors = []prometheus.Collector{
		m.outcomesTotal,
		m.rerunsTotal,
		m.testDuration,
		m.fixtureEventsTotal,
		m.fixtureSetupSeconds,
		m.setupErrorsTotal,
		m.teardownErrorsTotal,
		m.runsTotal,
		m.lastRunTimestamp,
	}
}

// Describe implements the Collector interface
func (m *RunMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *RunMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// FixtureEvent records a resolver event.
func (m *RunMetrics) FixtureEvent(e resolver.Event) {
	scope := string(e.Scope)
	m.fixtureEventsTotal.WithLabelValues(string(e.Kind), scope).Inc()
	switch e.Kind {
	case resolver.EventSetup:
		m.fixtureSetupSeconds.WithLabelValues(scope).Observe(e.Duration.Seconds())
		if e.Err != nil {
			m.setupErrorsTotal.WithLabelValues(e.Fixture).Inc()
		}
	case resolver.EventTeardown:
		if e.Err != nil {
			m.teardownErrorsTotal.WithLabelValues(scope).Inc()
		}
	}
}

// RunStarted implements runner.Reporter.
func (m *RunMetrics) RunStarted(string, []*testcase.Case) {}

// TestStarted implements runner.Reporter.
func (m *RunMetrics) TestStarted(*testcase.Case) {}

// TestFinished records the outcome and duration of a test.
func (m *RunMetrics) TestFinished(res *runner.Result) {
	m.outcomesTotal.WithLabelValues(string(res.Outcome)).Inc()
	if res.Attempts > 1 {
		m.rerunsTotal.Add(float64(res.Attempts - 1))
	}
	m.testDuration.WithLabelValues(res.Case.Module).Observe(res.Duration.Seconds())
}

// ScopeClosed implements runner.Reporter. Teardown errors are counted
// from fixture events.
func (m *RunMetrics) ScopeClosed(resolver.ClosureReport) {}

// RunFinished records the run status.
func (m *RunMetrics) RunFinished(report *runner.Report) {
	m.runsTotal.WithLabelValues(report.Status()).Inc()
	m.lastRunTimestamp.Set(float64(report.FinishedAt.UnixNano()) / 1e9)
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
