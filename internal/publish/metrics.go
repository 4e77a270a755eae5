package publish

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamespace = "docpub"

const resultLabel = "result"

type resultLabelVal string

const (
	resultLabelSuccessVal resultLabelVal = "success"
	resultLabelFailureVal resultLabelVal = "failure"
)

type metricCollector struct {
	runs                *prometheus.CounterVec
	supersededPRsClosed prometheus.Counter
	merges              *prometheus.CounterVec
	siteBuildDuration   prometheus.Histogram
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		runs: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "publish_runs_total",
				Help:      "count of finished publish runs per result",
			},
			[]string{resultLabel},
		),
		supersededPRsClosed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "superseded_pull_requests_closed_total",
				Help:      "count of stale open pull requests that were closed before a new one was created",
			},
		),
		merges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "merges_total",
				Help:      "count of squash-merge attempts per result",
			},
			[]string{resultLabel},
		),
		siteBuildDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Name:      "site_build_duration_seconds",
				Help:      "duration of documentation site builds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
	}
}

func (m *metricCollector) RunFinishedInc(succeeded bool) {
	m.runs.WithLabelValues(string(toResultLabelVal(succeeded))).Inc()
}

func (m *metricCollector) SupersededPRClosedInc() {
	m.supersededPRsClosed.Inc()
}

func (m *metricCollector) MergeInc(succeeded bool) {
	m.merges.WithLabelValues(string(toResultLabelVal(succeeded))).Inc()
}

func (m *metricCollector) SiteBuildDurationObserve(seconds float64) {
	m.siteBuildDuration.Observe(seconds)
}

func toResultLabelVal(succeeded bool) resultLabelVal {
	if succeeded {
		return resultLabelSuccessVal
	}

	return resultLabelFailureVal
}
