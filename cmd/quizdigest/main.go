package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"quizdigest/internal/checkpoint"
	"quizdigest/internal/config"
	"quizdigest/internal/digest"
	"quizdigest/internal/lms"
	"quizdigest/internal/notifier"
	"quizdigest/internal/service"
	"quizdigest/pkg/logger"
	"quizdigest/pkg/metrics"
	"quizdigest/pkg/mq"
	"quizdigest/pkg/trace"
)

func main() {
	// .env is optional; real deployments inject the variables directly
	_ = godotenv.Load()

	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log = logger.WithQuiz(log, cfg.LMS.CourseID, cfg.LMS.QuizID)
	ctx := trace.WithContext(context.Background(), trace.GenerateTraceID())
	runLog := logger.WithTrace(ctx, log)

	runLog.Info("Starting quizdigest...",
		zap.String("checkpoint_backend", cfg.Checkpoint.Backend),
	)

	// Checkpoint
	store, closeStore, err := checkpoint.Open(ctx, cfg, log)
	if err != nil {
		runLog.Fatal("Failed to init checkpoint store", zap.Error(err))
	}
	defer closeStore()

	// LMS
	client, err := lms.NewClient(cfg.LMS.BaseURL, cfg.LMS.Token, cfg.LMS.Timeout(), log)
	if err != nil {
		runLog.Fatal("Failed to init LMS client", zap.Error(err))
	}
	fetcher := lms.NewFetcher(client, lms.FetcherConfig{
		CourseID:     cfg.LMS.CourseID,
		QuizID:       cfg.LMS.QuizID,
		AssignmentID: cfg.LMS.AssignmentID,
		PerPage:      cfg.LMS.PerPage,
		WebURL:       cfg.LMS.WebURL,
	}, log)

	// Digest + email
	renderer := digest.NewRenderer(cfg.Digest.Title, cfg.Location())
	sender := notifier.New(
		notifier.NewSendGridMailer(cfg.SendGrid.APIKey),
		notifier.DefaultSender,
		notifier.DefaultRecipients,
		log,
	)

	runner := service.NewDigestRunner(store, fetcher, renderer, sender, service.RunnerConfig{
		CourseID: cfg.LMS.CourseID,
		QuizID:   cfg.LMS.QuizID,
	}, log)

	// MQ Publisher (optional)
	if cfg.MQ.URL != "" {
		publisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			runLog.Warn("Failed to init MQ publisher, run events disabled", zap.Error(err))
		} else {
			defer publisher.Close()
			runner.WithPublisher(publisher)
		}
	}

	result, err := runner.Run(ctx)
	if err != nil {
		closeStore()
		runLog.Fatal("Digest run failed", zap.Error(err))
	}

	if cfg.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := metrics.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			runLog.Warn("Failed to push metrics", zap.Error(err))
		}
		cancel()
	}

	runLog.Info("quizdigest finished",
		zap.Int("submissions", len(result.Records)),
		zap.Int("email_status", result.EmailStatus),
	)
}
