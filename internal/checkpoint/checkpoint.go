// Package checkpoint persists the watermark that bounds each incremental fetch.
package checkpoint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"quizdigest/pkg/logger"
	"quizdigest/pkg/metrics"
)

// Layout matches an ISO-8601 timestamp with offset and microsecond precision.
const Layout = "2006-01-02T15:04:05.999999Z07:00"

// Backend holds the raw checkpoint text.
type Backend interface {
	// Load returns exists=false when the storage itself is absent.
	Load(ctx context.Context) (value string, exists bool, err error)
	Save(ctx context.Context, value string) error
	Name() string
}

type Store struct {
	backend Backend
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger
}

func NewStore(backend Backend, loc *time.Location, logger *zap.Logger) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		backend: backend,
		loc:     loc,
		now:     time.Now,
		logger:  logger,
	}
}

// Read returns the stored checkpoint in the store's zone, or nil when there is
// no baseline. Absent storage is initialized with the current time; empty
// storage is left untouched.
func (s *Store) Read(ctx context.Context) (*time.Time, error) {
	log := logger.WithTrace(ctx, s.logger)
	start := time.Now()
	defer func() { metrics.RecordCheckpointOp(s.backend.Name(), "read", time.Since(start)) }()

	raw, exists, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint from %s: %w", s.backend.Name(), err)
	}

	if !exists {
		log.Info("Checkpoint does not exist, creating it for the first run",
			zap.String("backend", s.backend.Name()),
		)
		if err := s.backend.Save(ctx, Format(s.now(), s.loc)); err != nil {
			return nil, fmt.Errorf("failed to initialize checkpoint in %s: %w", s.backend.Name(), err)
		}
		return nil, nil
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		log.Info("Checkpoint is empty, this might be the first run",
			zap.String("backend", s.backend.Name()),
		)
		return nil, nil
	}

	t, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %q: %w", raw, err)
	}
	t = t.In(s.loc)
	return &t, nil
}

// Write overwrites the checkpoint with now, expressed in the store's zone.
func (s *Store) Write(ctx context.Context, now time.Time) error {
	start := time.Now()
	defer func() { metrics.RecordCheckpointOp(s.backend.Name(), "write", time.Since(start)) }()

	if err := s.backend.Save(ctx, Format(now, s.loc)); err != nil {
		return fmt.Errorf("failed to write checkpoint to %s: %w", s.backend.Name(), err)
	}
	return nil
}

func Format(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(Layout)
}

func Parse(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}
