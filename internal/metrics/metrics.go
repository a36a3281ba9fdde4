// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// パイプラインやジョブランナーから利用する。
type MetricsCollector interface {
	RecordScrapeSuccess(sourceTag string)
	RecordScrapeFailure(sourceTag string, reason string)
	RecordFallback()
	RecordProbeStatus(statusCode int)
	RecordPipelineLatency(duration time.Duration)
	RecordCandidatesAccepted(count int)
	RecordCandidatesDiscarded(count int)
	RecordProductsUpserted(count int)
	RecordJobFinished(status string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	scrapeSuccess       *prometheus.CounterVec
	scrapeFail          *prometheus.CounterVec
	fallback            prometheus.Counter
	probeStatus         *prometheus.CounterVec
	pipelineLatency     prometheus.Histogram
	candidatesAccepted  prometheus.Counter
	candidatesDiscarded prometheus.Counter
	productsUpserted    prometheus.Counter
	jobsFinished        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scrapeSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropscout_scrape_success_total",
			Help: "候補取得成功の合計数（ソースタグ別）",
		}, []string{"source"}),
		scrapeFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropscout_scrape_fail_total",
			Help: "候補取得失敗の合計数（ソースタグ別）",
		}, []string{"source"}),
		fallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dropscout_fallback_total",
			Help: "合成フォールバックが発動した合計数",
		}),
		probeStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropscout_probe_status_total",
			Help: "到達性プローブのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		pipelineLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dropscout_pipeline_latency_seconds",
			Help:    "フィルターパイプラインのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		candidatesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dropscout_candidates_accepted_total",
			Help: "フィルター検証を通過した候補の合計数",
		}),
		candidatesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dropscout_candidates_discarded_total",
			Help: "フィルター検証で破棄された候補の合計数",
		}),
		productsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dropscout_products_upserted_total",
			Help: "カタログにアップサートされた商品の合計数",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropscout_jobs_finished_total",
			Help: "終了したスクレイプジョブの合計数（終了ステータス別）",
		}, []string{"status"}),
	}

	reg.MustRegister(
		c.scrapeSuccess,
		c.scrapeFail,
		c.fallback,
		c.probeStatus,
		c.pipelineLatency,
		c.candidatesAccepted,
		c.candidatesDiscarded,
		c.productsUpserted,
		c.jobsFinished,
	)

	return c
}

// RecordScrapeSuccess は候補取得成功を記録する。
func (c *Collector) RecordScrapeSuccess(sourceTag string) {
	c.scrapeSuccess.WithLabelValues(sourceTag).Inc()
}

// RecordScrapeFailure は候補取得失敗を記録する。
func (c *Collector) RecordScrapeFailure(sourceTag string, reason string) {
	c.scrapeFail.WithLabelValues(sourceTag).Inc()
}

// RecordFallback は合成フォールバックの発動を記録する。
func (c *Collector) RecordFallback() {
	c.fallback.Inc()
}

// RecordProbeStatus は到達性プローブのHTTPステータスコードを記録する。
func (c *Collector) RecordProbeStatus(statusCode int) {
	c.probeStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordPipelineLatency はパイプラインのレイテンシを記録する。
func (c *Collector) RecordPipelineLatency(duration time.Duration) {
	c.pipelineLatency.Observe(duration.Seconds())
}

// RecordCandidatesAccepted は受理された候補数を記録する。
func (c *Collector) RecordCandidatesAccepted(count int) {
	c.candidatesAccepted.Add(float64(count))
}

// RecordCandidatesDiscarded は破棄された候補数を記録する。
func (c *Collector) RecordCandidatesDiscarded(count int) {
	c.candidatesDiscarded.Add(float64(count))
}

// RecordProductsUpserted はアップサートされた商品数を記録する。
func (c *Collector) RecordProductsUpserted(count int) {
	c.productsUpserted.Add(float64(count))
}

// RecordJobFinished はジョブの終了を終了ステータス別に記録する。
func (c *Collector) RecordJobFinished(status string) {
	c.jobsFinished.WithLabelValues(status).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
