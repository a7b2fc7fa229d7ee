package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	mqcontracts "quizdigest/contracts/mq"
	"quizdigest/internal/digest"
	"quizdigest/internal/model"
	"quizdigest/pkg/logger"
	"quizdigest/pkg/metrics"
	"quizdigest/pkg/trace"
	"quizdigest/pkg/util"
)

type CheckpointStore interface {
	Read(ctx context.Context) (*time.Time, error)
	Write(ctx context.Context, now time.Time) error
}

type SubmissionFetcher interface {
	Fetch(ctx context.Context, since *time.Time) ([]model.SubmissionRecord, error)
}

type DigestRenderer interface {
	Render(since *time.Time, records []model.SubmissionRecord) (digest.Digest, error)
}

type DigestSender interface {
	Send(ctx context.Context, d digest.Digest) (int, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type RunnerConfig struct {
	CourseID string
	QuizID   string
}

// RunResult describes one completed pass.
type RunResult struct {
	TraceID      string
	Since        *time.Time
	CheckpointAt time.Time
	Records      []model.SubmissionRecord
	Digest       digest.Digest
	EmailStatus  int
	EmailErr     error
}

// DigestRunner drives one pass: read checkpoint, fetch, write checkpoint,
// render, notify. Checkpoint and fetch errors abort the pass; a failed send
// is reported and the pass still completes.
type DigestRunner struct {
	store     CheckpointStore
	fetcher   SubmissionFetcher
	renderer  DigestRenderer
	sender    DigestSender
	publisher EventPublisher
	cfg       RunnerConfig
	now       func() time.Time
	logger    *zap.Logger
}

func NewDigestRunner(
	store CheckpointStore,
	fetcher SubmissionFetcher,
	renderer DigestRenderer,
	sender DigestSender,
	cfg RunnerConfig,
	logger *zap.Logger,
) *DigestRunner {
	return &DigestRunner{
		store:    store,
		fetcher:  fetcher,
		renderer: renderer,
		sender:   sender,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// WithPublisher enables the quiz.digest.completed event.
func (r *DigestRunner) WithPublisher(p EventPublisher) *DigestRunner {
	r.publisher = p
	return r
}

func (r *DigestRunner) Run(ctx context.Context) (*RunResult, error) {
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		traceID = trace.GenerateTraceID()
		ctx = trace.WithContext(ctx, traceID)
	}
	log := logger.WithTrace(ctx, r.logger)
	result := &RunResult{TraceID: traceID}

	since, err := r.store.Read(ctx)
	if err != nil {
		log.Error("Checkpoint read failed", zap.Error(err))
		return nil, err
	}
	result.Since = since
	log.Info("Last run time", zap.Timep("since", since))

	records, err := r.fetcher.Fetch(ctx, since)
	if err != nil {
		log.Error("Submission fetch failed",
			zap.String("error_type", util.ClassifyError(err)),
			zap.Error(err),
		)
		return nil, err
	}
	result.Records = records

	result.CheckpointAt = r.now()
	if err := r.store.Write(ctx, result.CheckpointAt); err != nil {
		log.Error("Checkpoint write failed", zap.Error(err))
		return nil, err
	}

	if since == nil {
		// First run: the listing only establishes the baseline and is not reported.
		log.Info("No previous checkpoint, submissions are not reported this run",
			zap.Int("fetched", len(records)),
		)
	} else {
		metrics.AddSubmissionsCollected(len(records))
	}

	d, err := r.renderer.Render(since, records)
	if err != nil {
		log.Error("Digest render failed", zap.Error(err))
		return nil, err
	}
	result.Digest = d

	result.EmailStatus, result.EmailErr = r.sender.Send(ctx, d)
	if result.EmailErr != nil {
		log.Warn("Digest email not delivered, run continues",
			zap.String("error_type", util.ClassifyError(result.EmailErr)),
		)
	}

	r.publishCompleted(ctx, result)
	metrics.MarkRunCompleted(result.CheckpointAt)

	log.Info("Digest run completed",
		zap.Int("submissions", len(records)),
		zap.Time("checkpoint_at", result.CheckpointAt),
		zap.Int("email_status", result.EmailStatus),
	)
	return result, nil
}

func (r *DigestRunner) publishCompleted(ctx context.Context, result *RunResult) {
	if r.publisher == nil {
		return
	}

	payload := mqcontracts.DigestCompletedPayload{
		TraceID:         result.TraceID,
		CourseID:        r.cfg.CourseID,
		QuizID:          r.cfg.QuizID,
		Since:           result.Since,
		CheckpointAt:    result.CheckpointAt,
		SubmissionCount: len(result.Records),
		UserIDs:         make([]int64, 0, len(result.Records)),
		Subject:         result.Digest.Subject,
		EmailStatus:     result.EmailStatus,
	}
	for _, rec := range result.Records {
		payload.UserIDs = append(payload.UserIDs, rec.UserID)
	}
	if result.EmailErr != nil {
		payload.EmailError = result.EmailErr.Error()
	}

	if err := r.publisher.Publish(ctx, mqcontracts.RoutingKeyDigestCompleted, payload); err != nil {
		logger.WithTrace(ctx, r.logger).Warn("Failed to publish digest event",
			zap.String("routing_key", mqcontracts.RoutingKeyDigestCompleted),
			zap.Error(err),
		)
	}
}
