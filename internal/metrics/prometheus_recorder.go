package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "tutoragent"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	opDuration      *prom.HistogramVec
	cacheLookups    *prom.CounterVec
	cacheEvictions  prom.Counter
	cacheBytes      prom.Gauge
	languagesLoaded prom.Gauge
	progressUpdates *prom.CounterVec
	backups         *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil registry gets a private one, which keeps tests isolated.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		opDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of content, progress and storage operations",
			Buckets:   prom.DefBuckets,
		}, []string{"operation", "result"}),
		cacheLookups: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Content cache lookups by result",
		}, []string{"result"}),
		cacheEvictions: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries evicted from the content cache to make room",
		}),
		cacheBytes: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_bytes",
			Help:      "Estimated bytes held by the content cache",
		}),
		languagesLoaded: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "languages_loaded",
			Help:      "Languages loaded by the last content load",
		}),
		progressUpdates: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "progress_updates_total",
			Help:      "Topic progress updates by language and completion",
		}, []string{"language", "completed"}),
		backups: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "database_backups_total",
			Help:      "Database backups by result",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.opDuration, pr.cacheLookups, pr.cacheEvictions, pr.cacheBytes,
		pr.languagesLoaded, pr.progressUpdates, pr.backups)
	return pr
}

func (p *PrometheusRecorder) ObserveOperation(op string, d time.Duration, result ResultLabel) {
	if p == nil {
		return
	}
	p.opDuration.WithLabelValues(op, string(result)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCacheLookup(hit bool) {
	if p == nil {
		return
	}
	res := "miss"
	if hit {
		res = "hit"
	}
	p.cacheLookups.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncCacheEviction() {
	if p == nil {
		return
	}
	p.cacheEvictions.Inc()
}

func (p *PrometheusRecorder) SetCacheBytes(n int64) {
	if p == nil {
		return
	}
	p.cacheBytes.Set(float64(n))
}

func (p *PrometheusRecorder) SetLanguagesLoaded(n int) {
	if p == nil {
		return
	}
	p.languagesLoaded.Set(float64(n))
}

func (p *PrometheusRecorder) IncProgressUpdate(language string, completed bool) {
	if p == nil {
		return
	}
	c := "false"
	if completed {
		c = "true"
	}
	p.progressUpdates.WithLabelValues(language, c).Inc()
}

func (p *PrometheusRecorder) IncBackup(success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.backups.WithLabelValues(res).Inc()
}
