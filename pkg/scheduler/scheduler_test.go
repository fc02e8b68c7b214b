package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJobRunsOnFirstTick(t *testing.T) {
	s := New(discardLogger())
	var runs int32
	s.AddJob("test_job", time.Hour, func(_ context.Context, _ string) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	s.runDueJobs(context.Background())
	waitForCondition(t, func() bool { return atomic.LoadInt32(&runs) == 1 })
}

func TestJobSkippedWhileRunning(t *testing.T) {
	s := New(discardLogger())
	started := make(chan struct{})
	release := make(chan struct{})
	var runs int32

	s.AddJob("slow_job", time.Hour, func(_ context.Context, _ string) error {
		atomic.AddInt32(&runs, 1)
		close(started)
		<-release
		return nil
	})

	s.runDueJobs(context.Background())
	<-started

	// Job is still running; a second due check must not start a concurrent run.
	s.runDueJobs(context.Background())
	close(release)

	waitForCondition(t, func() bool { return atomic.LoadInt32(&runs) == 1 })
}

func TestTriggerRunsImmediately(t *testing.T) {
	s := New(discardLogger())
	var runs int32
	s.AddJob("manual_job", 24*time.Hour, func(_ context.Context, _ string) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	if err := s.Trigger(context.Background(), "manual_job"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if atomic.LoadInt32(&runs) != 1 {
		t.Errorf("expected 1 run after trigger, got %d", runs)
	}
}

func TestTriggerUnknownJob(t *testing.T) {
	s := New(discardLogger())
	if err := s.Trigger(context.Background(), "nonexistent"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
