package lms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"quizdigest/internal/model"
	"quizdigest/pkg/logger"
	"quizdigest/pkg/metrics"
	"quizdigest/pkg/util"
)

type FetcherConfig struct {
	CourseID     string
	QuizID       string
	AssignmentID string
	PerPage      int
	// WebURL is the LMS web root used for speed grader links.
	WebURL string
}

// Fetcher collects the quiz submissions finished after a checkpoint and joins
// in each submitter's profile. All calls are made one at a time.
type Fetcher struct {
	client  *Client
	cfg     FetcherConfig
	logger  *zap.Logger
}

func NewFetcher(client *Client, cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if cfg.PerPage <= 0 {
		cfg.PerPage = 100
	}
	return &Fetcher{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Fetch returns the submissions finished strictly after since, in listing order.
// A nil since disables both the server-side filter and the client-side check.
// Listing errors are returned; profile lookup failures only blank name and email.
func (f *Fetcher) Fetch(ctx context.Context, since *time.Time) ([]model.SubmissionRecord, error) {
	log := logger.WithTrace(ctx, f.logger)
	log.Info("Fetching quiz submissions",
		zap.String("course_id", f.cfg.CourseID),
		zap.String("quiz_id", f.cfg.QuizID),
		zap.Timep("since", since),
	)

	var records []model.SubmissionRecord
	pages := 0
	for subs, err := range f.client.SubmissionPages(ctx, f.cfg.CourseID, f.cfg.QuizID, f.cfg.PerPage, since) {
		if err != nil {
			return nil, err
		}
		pages++

		for _, sub := range subs {
			if sub.FinishedAt == nil {
				continue
			}
			if since != nil && !sub.FinishedAt.After(*since) {
				continue
			}

			name, email := f.lookupUser(ctx, sub.UserID)
			records = append(records, model.SubmissionRecord{
				UserID:     sub.UserID,
				Name:       name,
				Email:      email,
				Score:      sub.Score,
				FinishedAt: *sub.FinishedAt,
				ReviewURL:  f.ReviewURL(sub.UserID),
			})
		}
	}

	log.Info("Quiz submissions fetched",
		zap.Int("pages", pages),
		zap.Int("included", len(records)),
	)
	return records, nil
}

// ReviewURL links to the speed grader view of the user's attempt.
func (f *Fetcher) ReviewURL(userID int64) string {
	return fmt.Sprintf("%s/courses/%s/gradebook/speed_grader?assignment_id=%s&student_id=%d",
		strings.TrimRight(f.cfg.WebURL, "/"), f.cfg.CourseID, f.cfg.AssignmentID, userID)
}

// lookupUser is issued once per included submission. A failure only blanks
// that submission's name and email.
func (f *Fetcher) lookupUser(ctx context.Context, userID int64) (name, email *string) {
	user, err := f.client.GetUser(ctx, userID)
	if err != nil {
		metrics.IncrementUserLookup("degraded")
		logger.WithTrace(ctx, f.logger).Warn("User lookup failed, continuing without profile",
			zap.Int64("user_id", userID),
			zap.String("error_type", util.ClassifyError(err)),
			zap.Error(err),
		)
		return nil, nil
	}

	metrics.IncrementUserLookup("ok")
	return user.Name, user.Email
}
