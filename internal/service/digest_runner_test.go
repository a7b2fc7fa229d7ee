package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"quizdigest/internal/checkpoint"
	"quizdigest/internal/digest"
	"quizdigest/internal/model"
	"quizdigest/pkg/trace"
)

type mockFetcher struct {
	records []model.SubmissionRecord
	err     error
	calls   []*time.Time
	steps   *[]string
}

func (m *mockFetcher) Fetch(ctx context.Context, since *time.Time) ([]model.SubmissionRecord, error) {
	m.calls = append(m.calls, since)
	if m.steps != nil {
		*m.steps = append(*m.steps, "fetch")
	}
	return m.records, m.err
}

type mockSender struct {
	sent   []digest.Digest
	status int
	err    error
	steps  *[]string
	// checkpointOnSend captures the stored checkpoint at send time.
	path             string
	checkpointOnSend string
}

func (m *mockSender) Send(ctx context.Context, d digest.Digest) (int, error) {
	m.sent = append(m.sent, d)
	if m.steps != nil {
		*m.steps = append(*m.steps, "notify")
	}
	if m.path != "" {
		data, _ := os.ReadFile(m.path)
		m.checkpointOnSend = string(data)
	}
	return m.status, m.err
}

type recordingStore struct {
	CheckpointStore
	steps *[]string
}

func (s *recordingStore) Read(ctx context.Context) (*time.Time, error) {
	*s.steps = append(*s.steps, "read")
	return s.CheckpointStore.Read(ctx)
}

func (s *recordingStore) Write(ctx context.Context, now time.Time) error {
	*s.steps = append(*s.steps, "write")
	return s.CheckpointStore.Write(ctx, now)
}

type mockPublisher struct {
	keys     []string
	payloads []any
	err      error
}

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	m.keys = append(m.keys, routingKey)
	m.payloads = append(m.payloads, payload)
	return m.err
}

func strPtr(s string) *string { return &s }

type fixture struct {
	path    string
	store   *checkpoint.Store
	fetcher *mockFetcher
	sender  *mockSender
	runner  *DigestRunner
	now     time.Time
	steps   []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		path: filepath.Join(t.TempDir(), "last_run.txt"),
		now:  time.Date(2024, 3, 5, 20, 0, 0, 0, time.UTC),
	}
	log := zaptest.NewLogger(t)
	f.store = checkpoint.NewStore(checkpoint.NewFileBackend(f.path), time.UTC, log)
	f.fetcher = &mockFetcher{steps: &f.steps}
	f.sender = &mockSender{status: 202, steps: &f.steps, path: f.path}
	f.runner = NewDigestRunner(
		&recordingStore{CheckpointStore: f.store, steps: &f.steps},
		f.fetcher,
		digest.NewRenderer("Test Workshop", time.UTC),
		f.sender,
		RunnerConfig{CourseID: "1", QuizID: "2"},
		log,
	)
	f.runner.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) seed(t *testing.T, value string) {
	t.Helper()
	if err := os.WriteFile(f.path, []byte(value), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRunSequence(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "2024-03-04T20:00:00Z")
	f.fetcher.records = []model.SubmissionRecord{
		{UserID: 1, Name: strPtr("Ada"), FinishedAt: time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)},
	}

	result, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"read", "fetch", "write", "notify"}
	if strings.Join(f.steps, ",") != strings.Join(want, ",") {
		t.Errorf("steps = %v, want %v", f.steps, want)
	}
	if got := f.fetcher.calls[0]; got == nil || !got.Equal(time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC)) {
		t.Errorf("fetch since = %v", got)
	}
	if f.sender.checkpointOnSend != "2024-03-05T20:00:00Z" {
		t.Errorf("checkpoint at send time = %q", f.sender.checkpointOnSend)
	}
	if result.Digest.Subject != "Quiz Submissions Report for Test Workshop" {
		t.Errorf("subject = %q", result.Digest.Subject)
	}
	if !strings.Contains(result.Digest.HTML, "User ID: 1, Name: Ada") {
		t.Errorf("body = %s", result.Digest.HTML)
	}
	if result.EmailStatus != 202 || result.TraceID == "" {
		t.Errorf("result = %+v", result)
	}
}

func TestRunFirstRun(t *testing.T) {
	f := newFixture(t)
	f.fetcher.records = []model.SubmissionRecord{{UserID: 99}}

	result, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.fetcher.calls) != 1 || f.fetcher.calls[0] != nil {
		t.Errorf("fetch should run once without a checkpoint, calls = %v", f.fetcher.calls)
	}
	if result.Digest.Subject != "Quiz Submissions Report" {
		t.Errorf("subject = %q", result.Digest.Subject)
	}
	if result.Digest.HTML != "<p>Unable to determine the last run time.</p>" {
		t.Errorf("body = %q", result.Digest.HTML)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "2024-03-05T20:00:00Z" {
		t.Errorf("checkpoint = %q, want the run time", data)
	}
}

func TestRunNotifyFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "2024-03-04T20:00:00Z")
	f.sender.status = 0
	f.sender.err = errors.New("connection reset")

	result, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned %v, notify failures must not abort the run", err)
	}
	if result.EmailErr == nil {
		t.Error("EmailErr should carry the send failure")
	}

	data, _ := os.ReadFile(f.path)
	if string(data) != "2024-03-05T20:00:00Z" {
		t.Errorf("checkpoint = %q, want the write made before notify", data)
	}
}

func TestRunFetchFailureKeepsCheckpoint(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "2024-03-04T20:00:00Z")
	f.fetcher.err = errors.New("lms down")

	if _, err := f.runner.Run(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if len(f.sender.sent) != 0 {
		t.Error("nothing should be sent after a fetch failure")
	}

	data, _ := os.ReadFile(f.path)
	if string(data) != "2024-03-04T20:00:00Z" {
		t.Errorf("checkpoint = %q, should be untouched", data)
	}
}

func TestRunCheckpointReadFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "not a time")

	if _, err := f.runner.Run(context.Background()); err == nil {
		t.Fatal("expected checkpoint error")
	}
	if len(f.fetcher.calls) != 0 {
		t.Error("fetch must not run without a readable checkpoint")
	}
}

func TestRunPublishesCompletedEvent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "2024-03-04T20:00:00Z")
	f.fetcher.records = []model.SubmissionRecord{{UserID: 3}, {UserID: 4}}
	pub := &mockPublisher{err: errors.New("broker unavailable")}
	f.runner.WithPublisher(pub)

	ctx := trace.WithContext(context.Background(), "trace-123")
	result, err := f.runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.TraceID != "trace-123" {
		t.Errorf("trace id = %q", result.TraceID)
	}
	if len(pub.keys) != 1 || pub.keys[0] != "quiz.digest.completed" {
		t.Fatalf("published = %v", pub.keys)
	}
}
