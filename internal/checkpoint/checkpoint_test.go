package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap/zaptest"
)

func mustLoadLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

// backendFactories returns fresh backends with embeddable storage.
func backendFactories(t *testing.T) map[string]func() Backend {
	return map[string]func() Backend{
		"file": func() Backend {
			return NewFileBackend(filepath.Join(t.TempDir(), "state", "last_run.txt"))
		},
		"sqlite": func() Backend {
			b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "checkpoint.db"), "test")
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { b.Close() })
			return b
		},
	}
}

func TestReadMissingInitializesOnce(t *testing.T) {
	ctx := context.Background()
	loc := mustLoadLocation(t, "America/Los_Angeles")
	fixed := time.Date(2024, 3, 1, 18, 30, 15, 0, time.UTC)

	for name, newBackend := range backendFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(newBackend(), loc, zaptest.NewLogger(t))
			store.now = func() time.Time { return fixed }

			first, err := store.Read(ctx)
			if err != nil {
				t.Fatalf("first Read: %v", err)
			}
			if first != nil {
				t.Fatalf("first Read = %v, want nil", first)
			}

			second, err := store.Read(ctx)
			if err != nil {
				t.Fatalf("second Read: %v", err)
			}
			if second == nil {
				t.Fatal("second Read returned nil, want the initialized time")
			}
			if !second.Equal(fixed) {
				t.Errorf("second Read = %v, want %v", second, fixed)
			}
			if second.Location().String() != loc.String() {
				t.Errorf("location = %s, want %s", second.Location(), loc)
			}
		})
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	loc := mustLoadLocation(t, "America/Los_Angeles")
	now := time.Date(2024, 7, 4, 9, 15, 42, 123456789, time.UTC)

	for name, newBackend := range backendFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(newBackend(), loc, zaptest.NewLogger(t))

			if err := store.Write(ctx, now); err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := store.Read(ctx)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if got == nil {
				t.Fatal("Read returned nil after Write")
			}
			if !got.Truncate(time.Second).Equal(now.Truncate(time.Second)) {
				t.Errorf("Read = %v, want %v at second precision", got, now)
			}
			if got.Location().String() != "America/Los_Angeles" {
				t.Errorf("location = %s", got.Location())
			}
		})
	}
}

func TestReadEmptyDoesNotRewrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "last_run.txt")
	if err := os.WriteFile(path, []byte("  \n"), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(NewFileBackend(path), time.UTC, zaptest.NewLogger(t))
	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != nil {
		t.Errorf("Read = %v, want nil", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "  \n" {
		t.Errorf("file rewritten to %q", data)
	}
}

func TestReadTrimsWhitespaceAndNormalizesZone(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "last_run.txt")
	if err := os.WriteFile(path, []byte("2023-11-16T12:00:00.250000-08:00\n"), 0644); err != nil {
		t.Fatal(err)
	}
	loc := mustLoadLocation(t, "America/New_York")

	store := NewStore(NewFileBackend(path), loc, zaptest.NewLogger(t))
	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := time.Date(2023, 11, 16, 20, 0, 0, 250000000, time.UTC)
	if got == nil || !got.Equal(want) {
		t.Fatalf("Read = %v, want %v", got, want)
	}
	if got.Hour() != 15 {
		t.Errorf("hour in New York = %d, want 15", got.Hour())
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_run.txt")
	if err := os.WriteFile(path, []byte("yesterday"), 0644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(NewFileBackend(path), time.UTC, zaptest.NewLogger(t))
	if _, err := store.Read(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFormatUsesOffsetAndMicroseconds(t *testing.T) {
	loc := mustLoadLocation(t, "America/Los_Angeles")
	ts := time.Date(2024, 1, 10, 20, 0, 0, 123456789, time.UTC)

	if got, want := Format(ts, loc), "2024-01-10T12:00:00.123456-08:00"; got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}
