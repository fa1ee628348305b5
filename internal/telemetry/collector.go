// Package telemetry exposes the cached KPI state as Prometheus metrics.
package telemetry

import (
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cast"
	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/scorecard"
	"github.com/sw33tLie/kpiscope/pkg/storage"
)

const namespace = "kpiscope"

var (
	baselineDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "baseline_present"),
		"Whether baseline counts exist in the cache.", nil, nil)
	countDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "baseline", "count"),
		"Cached baseline counts.", []string{"name"}, nil)
	statusDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "kpi", "status"),
		"Current status of each cached KPI, 1 for the active status.", []string{"kpi", "status"}, nil)
	metricDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "kpi", "metric"),
		"Numeric metrics of each cached KPI.", []string{"kpi", "metric"}, nil)
	scoreDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "kpi", "score"),
		"Scorecard score of each weighted KPI.", []string{"kpi"}, nil)
	overallDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "overall_score"),
		"Weighted overall scorecard score.", []string{"band"}, nil)
	lastRunDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "last_run", "timestamp_seconds"),
		"Unix time of the last successful run.", []string{"mode"}, nil)
	lastRunRecordsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "last_run", "records"),
		"Records processed by the last successful run.", nil, nil)
	lastRunDurationDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "last_run", "duration_seconds"),
		"Duration of the last successful run.", nil, nil)
)

// Collector reads the cache store on every scrape.
type Collector struct {
	store *storage.Store
	cfg   *config.Config
	now   func() time.Time
}

// NewCollector returns a collector over store. cfg is used to score the
// cached KPIs and may be nil, in which case no scores are exported.
func NewCollector(store *storage.Store, cfg *config.Config) *Collector {
	return &Collector{store: store, cfg: cfg, now: time.Now}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- baselineDesc
	ch <- countDesc
	ch <- statusDesc
	ch <- metricDesc
	ch <- scoreDesc
	ch <- overallDesc
	ch <- lastRunDesc
	ch <- lastRunRecordsDesc
	ch <- lastRunDurationDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counts := c.store.LoadCounts()
	present := 0.0
	if len(counts) > 0 {
		present = 1
	}
	ch <- prometheus.MustNewConstMetric(baselineDesc, prometheus.GaugeValue, present)
	for name, v := range counts {
		ch <- prometheus.MustNewConstMetric(countDesc, prometheus.GaugeValue, float64(v), name)
	}

	kpis := c.store.LoadKPIs()
	ids := make([]string, 0, len(kpis))
	for id := range kpis {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		res := kpis[id]
		ch <- prometheus.MustNewConstMetric(statusDesc, prometheus.GaugeValue, 1, id, res.Status)
		for name, v := range res.Metrics {
			if f, ok := numeric(v); ok {
				ch <- prometheus.MustNewConstMetric(metricDesc, prometheus.GaugeValue, f, id, name)
			}
		}
	}

	if c.cfg != nil && len(kpis) > 0 {
		sc := scorecard.Aggregate(c.cfg, kpis, c.now())
		for id, s := range sc.KPIScores {
			ch <- prometheus.MustNewConstMetric(scoreDesc, prometheus.GaugeValue, s.Score, id)
		}
		ch <- prometheus.MustNewConstMetric(overallDesc, prometheus.GaugeValue, sc.OverallScore, sc.PerformanceBand)
	}

	if run, ok := c.store.LoadRunMetadata(); ok {
		if ts, err := time.Parse(time.RFC3339, run.Timestamp); err == nil {
			ch <- prometheus.MustNewConstMetric(lastRunDesc, prometheus.GaugeValue, float64(ts.Unix()), run.ProcessingMode)
		}
		ch <- prometheus.MustNewConstMetric(lastRunRecordsDesc, prometheus.GaugeValue, float64(run.RecordCount))
		ch <- prometheus.MustNewConstMetric(lastRunDurationDesc, prometheus.GaugeValue, float64(run.DurationMS)/1000)
	}
}

// numeric accepts the scalar metric values of a KPI result. Maps and lists
// such as country distributions are skipped.
func numeric(v interface{}) (float64, bool) {
	switch v.(type) {
	case int, int64, float64, float32, bool:
		return cast.ToFloat64(v), true
	}
	return 0, false
}

// Registry returns a registry holding only c.
func Registry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	return reg
}

// WriteTextfile writes the current metrics to path in the text exposition
// format, for the node exporter textfile collector.
func WriteTextfile(path string, c *Collector) error {
	return prometheus.WriteToTextfile(path, Registry(c))
}

var _ prometheus.Collector = (*Collector)(nil)

