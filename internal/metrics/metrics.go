// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証ミドルウェアの判定結果ラベル。
const (
	AuthAllowed        = "allowed"
	AuthMissingToken   = "missing_token"
	AuthInactiveToken  = "inactive_token"
	AuthIntrospectFail = "introspect_error"
	AuthNoSubject      = "no_subject"
)

// MetricsCollector はメトリクス収集のインターフェース。
// IDサービスクライアント、ミドルウェア、ハンドラーから利用する。
type MetricsCollector interface {
	RecordIdentityCall(operation string, statusCode int, duration time.Duration)
	RecordAuthDecision(result string)
	RecordOAuthCallback(outcome string)
	RecordTodoOperation(operation string, success bool)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	identityCalls   *prometheus.CounterVec
	identityLatency *prometheus.HistogramVec
	authDecisions   *prometheus.CounterVec
	oauthCallbacks  *prometheus.CounterVec
	todoOperations  *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		identityCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoclient_identity_calls_total",
			Help: "IDサービス呼び出しの合計数（操作・ステータスコード別）",
		}, []string{"operation", "status_code"}),
		identityLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todoclient_identity_call_latency_seconds",
			Help:    "IDサービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		authDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoclient_auth_decisions_total",
			Help: "認証ミドルウェアの判定結果別の合計数",
		}, []string{"result"}),
		oauthCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoclient_oauth_callbacks_total",
			Help: "OAuthコールバックの結果別の合計数",
		}, []string{"outcome"}),
		todoOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoclient_todo_operations_total",
			Help: "ToDo操作の合計数（操作・結果別）",
		}, []string{"operation", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoclient_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.identityCalls,
		c.identityLatency,
		c.authDecisions,
		c.oauthCallbacks,
		c.todoOperations,
		c.httpStatus,
	)

	return c
}

// RecordIdentityCall はIDサービス呼び出しを記録する。
// 通信エラーでレスポンスがない場合はstatusCodeに0を渡す。
func (c *Collector) RecordIdentityCall(operation string, statusCode int, duration time.Duration) {
	c.identityCalls.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	c.identityLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAuthDecision は認証ミドルウェアの判定結果を記録する。
func (c *Collector) RecordAuthDecision(result string) {
	c.authDecisions.WithLabelValues(result).Inc()
}

// RecordOAuthCallback はOAuthコールバックの結果を記録する。
func (c *Collector) RecordOAuthCallback(outcome string) {
	c.oauthCallbacks.WithLabelValues(outcome).Inc()
}

// RecordTodoOperation はToDo操作の結果を記録する。
func (c *Collector) RecordTodoOperation(operation string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.todoOperations.WithLabelValues(operation, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。メトリクスが不要なテストや構成で使う。
type Nop struct{}

func (Nop) RecordIdentityCall(string, int, time.Duration) {}
func (Nop) RecordAuthDecision(string)                     {}
func (Nop) RecordOAuthCallback(string)                    {}
func (Nop) RecordTodoOperation(string, bool)              {}
func (Nop) RecordHTTPStatus(int)                          {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
