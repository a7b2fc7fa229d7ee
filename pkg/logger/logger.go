package logger

import (
	"context"

	"go.uber.org/zap"

	"quizdigest/pkg/trace"
)

const ServiceName = "quizdigest"

// NewLogger 返回 production logger，每条日志带 service 字段
func NewLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return l.With(zap.String("service", ServiceName))
}

// WithQuiz 为本次运行附加课程与测验 ID
func WithQuiz(logger *zap.Logger, courseID, quizID string) *zap.Logger {
	return logger.With(
		zap.String("course_id", courseID),
		zap.String("quiz_id", quizID),
	)
}

// WithTrace 从 context 中提取 trace_id 并添加到 logger
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID := trace.FromContext(ctx)
	if traceID != "" {
		return logger.With(zap.String("trace_id", traceID))
	}
	return logger
}
