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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordAuthOutcome(outcome string)
	RecordPrediction(label string, fallback bool)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authOutcome    *prometheus.CounterVec
	predictions    *prometheus.CounterVec
	fallbackDecode prometheus.Counter
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raincast_auth_total",
			Help: "認証試行の結果別の合計数",
		}, []string{"outcome"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raincast_predictions_total",
			Help: "予測実行のラベル別の合計数",
		}, []string{"label"}),
		fallbackDecode: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raincast_fallback_decode_total",
			Help: "フォールバックラベルマッピングが適用された予測の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raincast_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "raincast_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.authOutcome,
		c.predictions,
		c.fallbackDecode,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordAuthOutcome は認証試行の結果を記録する。
// outcomeはregistered、authenticated、rejectedのいずれか。
func (c *Collector) RecordAuthOutcome(outcome string) {
	c.authOutcome.WithLabelValues(outcome).Inc()
}

// RecordPrediction は予測実行をラベル別に記録する。
// フォールバックデコードが適用された場合は専用カウンタも増加する。
func (c *Collector) RecordPrediction(label string, fallback bool) {
	c.predictions.WithLabelValues(label).Inc()
	if fallback {
		c.fallbackDecode.Inc()
	}
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
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
