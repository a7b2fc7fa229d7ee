package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	// LMS 调用延迟（秒）
	LMSRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lms_request_duration_seconds",
			Help:    "LMS API request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"endpoint", "status"},
	)

	// 用户信息查询结果计数
	UserLookupCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_user_lookup_total",
			Help: "Total number of user profile lookups",
		},
		[]string{"result"}, // result: ok, degraded
	)

	SubmissionsCollected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_submissions_collected_total",
			Help: "Total number of quiz submissions included in a digest",
		},
	)

	// 摘要邮件发送计数
	DigestSentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_sent_total",
			Help: "Total number of digest emails attempted",
		},
		[]string{"status"}, // status: success, failed
	)

	// checkpoint 读写延迟（秒）
	CheckpointOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkpoint_op_duration_seconds",
			Help:    "Checkpoint storage operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"backend", "op"},
	)

	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quizdigest_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		},
	)
)

// RecordLMSRequestDuration 记录 LMS 调用延迟
func RecordLMSRequestDuration(endpoint, status string, duration time.Duration) {
	LMSRequestDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())
}

// IncrementUserLookup 增加用户查询计数
func IncrementUserLookup(result string) {
	UserLookupCount.WithLabelValues(result).Inc()
}

// AddSubmissionsCollected 增加收集到的提交数
func AddSubmissionsCollected(n int) {
	SubmissionsCollected.Add(float64(n))
}

// IncrementDigestSent 增加摘要发送计数
func IncrementDigestSent(status string) {
	DigestSentCount.WithLabelValues(status).Inc()
}

// RecordCheckpointOp 记录 checkpoint 读写延迟
func RecordCheckpointOp(backend, op string, duration time.Duration) {
	CheckpointOpDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// MarkRunCompleted 记录本次运行完成时间
func MarkRunCompleted(t time.Time) {
	LastRunTimestamp.Set(float64(t.Unix()))
}

// Push 将默认 registry 推送到 Pushgateway；批处理任务退出前调用
func Push(ctx context.Context, url, job string) error {
	if job == "" {
		job = "quizdigest"
	}
	return push.New(url, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx)
}
