package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EvaluationsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "grader", Name: "evaluations_submitted_total", Help: "Persisted evaluations",
	})
	Rejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader", Name: "rejections_total", Help: "Rejected engine operations by error code",
	}, []string{"op", "code"})
	Redistributions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "grader", Name: "redistributions_total", Help: "Completed team redistributions",
	})
	TeamsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "grader", Name: "teams_created_total", Help: "Teams created by redistribution",
	})
	PeriodTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader", Name: "period_transitions_total", Help: "Period status transitions",
	}, []string{"status"})
	StoreRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader", Name: "store_retries_total", Help: "Retried store operations by reason",
	}, []string{"op", "reason"})
	OpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grader", Name: "operation_duration_seconds", Help: "Engine operation latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader", Name: "http_requests_total", Help: "Handled HTTP requests",
	}, []string{"method", "status"})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "grader", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		EvaluationsSubmitted, Rejections, Redistributions, TeamsCreated,
		PeriodTransitions, StoreRetries, OpDuration, HTTPRequests, DBPing,
	)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

// ObserveOp — defer metrics.ObserveOp("evaluations.submit", time.Now())
func ObserveOp(op string, start time.Time) {
	OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
