// Package metrics 提供 Prometheus 监控指标
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xingcheng_http_requests_total",
		Help: "HTTP请求总数",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xingcheng_http_request_duration_seconds",
		Help:    "HTTP请求延迟",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"method", "path"})

	planGenerationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xingcheng_plan_generation_total",
		Help: "行程生成次数",
	}, []string{"mode", "status"})

	planGenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xingcheng_plan_generation_duration_seconds",
		Help:    "行程生成延迟",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
	}, []string{"mode"})

	solverStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xingcheng_solver_status_total",
		Help: "精确求解结果分布",
	}, []string{"status"})

	reoptStrategyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xingcheng_reopt_strategy_total",
		Help: "重优化策略使用次数",
	}, []string{"strategy", "status"})

	solutionScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "xingcheng_solution_score",
		Help: "行程综合评分",
	}, []string{"tour_id"})

	rejectedPOIs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "xingcheng_rejected_pois",
		Help: "最近一次求解的落选 POI 数",
	}, []string{"tour_id"})

	dbConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "xingcheng_db_connections",
		Help: "数据库连接数",
	}, []string{"state"})
)

// Handler 返回指标 HTTP 处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequestMetrics 记录请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordPlanGeneration 记录行程生成指标
func RecordPlanGeneration(mode string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	planGenerationTotal.WithLabelValues(mode, status).Inc()
	planGenerationDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordSolverStatus 记录精确求解结果
func RecordSolverStatus(status string) {
	solverStatusTotal.WithLabelValues(status).Inc()
}

// RecordReoptStrategy 记录重优化策略
func RecordReoptStrategy(strategy string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	reoptStrategyTotal.WithLabelValues(strategy, status).Inc()
}

// SetSolutionScore 设置行程综合评分
func SetSolutionScore(tourID string, score float64) {
	solutionScore.WithLabelValues(tourID).Set(score)
}

// SetRejectedPOIs 设置落选 POI 数
func SetRejectedPOIs(tourID string, count int) {
	rejectedPOIs.WithLabelValues(tourID).Set(float64(count))
}

// SetDBConnections 设置数据库连接数
func SetDBConnections(state string, count int) {
	dbConnections.WithLabelValues(state).Set(float64(count))
}
