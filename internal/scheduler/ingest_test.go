package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coinpulse/coinpulse-backend/internal/ingest"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRunner) RunCycle(ctx context.Context) (*ingest.CycleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ingest.CycleResult{Timestamp: time.Now().UTC()}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePurger struct {
	mu     sync.Mutex
	cutoff time.Time
	purged int64
}

func (f *fakePurger) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoff = cutoff
	return f.purged, nil
}

func TestIngestScheduler_StartStop(t *testing.T) {
	runner := &fakeRunner{}
	s := NewIngestScheduler(runner, IngestSchedulerConfig{Interval: 1 * time.Hour})

	if s.Running() {
		t.Fatal("scheduler should not be running before Start")
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !s.Running() {
		t.Fatal("scheduler should report running after Start")
	}

	// Start is idempotent
	if err := s.Start(); err != nil {
		t.Fatalf("second start failed: %v", err)
	}

	s.Stop()
	if s.Running() {
		t.Fatal("scheduler should not report running after Stop")
	}

	// Stop is idempotent
	s.Stop()
}

func TestIngestScheduler_StartupCycleFires(t *testing.T) {
	runner := &fakeRunner{}
	s := NewIngestScheduler(runner, IngestSchedulerConfig{Interval: 1 * time.Hour})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runner.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected an initial cycle shortly after Start")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestIngestScheduler_RunNow(t *testing.T) {
	runner := &fakeRunner{}
	s := NewIngestScheduler(runner, IngestSchedulerConfig{Interval: 1 * time.Hour})

	res, err := s.RunNow(context.Background())
	if err != nil {
		t.Fatalf("manual run failed: %v", err)
	}
	if res == nil {
		t.Fatal("expected a cycle result")
	}
	if runner.callCount() != 1 {
		t.Fatalf("expected 1 cycle, got %d", runner.callCount())
	}
}

func TestIngestScheduler_RunNowPropagatesError(t *testing.T) {
	wantErr := errors.New("provider down")
	runner := &fakeRunner{err: wantErr}
	s := NewIngestScheduler(runner, IngestSchedulerConfig{})

	_, err := s.RunNow(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected cycle error to propagate, got %v", err)
	}
}

func TestIngestScheduler_PurgeCutoff(t *testing.T) {
	runner := &fakeRunner{}
	prices := &fakePurger{purged: 4}
	volumes := &fakePurger{purged: 2}
	s := NewIngestScheduler(runner, IngestSchedulerConfig{RetentionDays: 30}, prices, volumes)

	s.purgeExpired()

	want := time.Now().UTC().AddDate(0, 0, -30)
	for i, p := range []*fakePurger{prices, volumes} {
		if p.cutoff.IsZero() {
			t.Fatalf("purger %d was not called", i)
		}
		if diff := want.Sub(p.cutoff); diff < -time.Minute || diff > time.Minute {
			t.Fatalf("purger %d cutoff %s too far from expected %s", i, p.cutoff, want)
		}
	}
}

func TestIngestScheduler_ConfigDefaults(t *testing.T) {
	s := NewIngestScheduler(&fakeRunner{}, IngestSchedulerConfig{})

	if s.cfg.Interval != 15*time.Minute {
		t.Fatalf("expected default interval 15m, got %s", s.cfg.Interval)
	}
	if s.cfg.RetentionDays != 90 {
		t.Fatalf("expected default retention 90 days, got %d", s.cfg.RetentionDays)
	}
	if s.cfg.CycleTimeout != 2*time.Minute {
		t.Fatalf("expected default cycle timeout 2m, got %s", s.cfg.CycleTimeout)
	}
}
