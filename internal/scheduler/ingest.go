package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/coinpulse/coinpulse-backend/internal/ingest"
)

// CycleRunner runs one full ingestion cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*ingest.CycleResult, error)
}

// Purger removes stored rows older than the cutoff.
type Purger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type IngestSchedulerConfig struct {
	Interval      time.Duration // e.g. 15*time.Minute
	RetentionDays int           // e.g. 90
	CycleTimeout  time.Duration // per-cycle deadline
}

type IngestScheduler struct {
	runner  CycleRunner
	purgers []Purger
	cfg     IngestSchedulerConfig

	mu      sync.Mutex
	running bool
	sched   gocron.Scheduler
}

func NewIngestScheduler(runner CycleRunner, cfg IngestSchedulerConfig, purgers ...Purger) *IngestScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 90
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 2 * time.Minute
	}
	return &IngestScheduler{
		runner:  runner,
		purgers: purgers,
		cfg:     cfg,
	}
}

func (s *IngestScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		fmt.Println("[SCHEDULER] Already running")
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(s.runCycle),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule ingest job: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 10, 0))),
		gocron.NewTask(s.purgeExpired),
	)
	if err != nil {
		return fmt.Errorf("schedule retention job: %w", err)
	}

	s.sched = sched
	s.running = true
	sched.Start()

	// Kick off the first cycle immediately so the store is never empty
	// for a full interval after startup.
	go s.runCycle()

	fmt.Printf("[SCHEDULER] Started (ingest every %s, retention %d days)\n",
		s.cfg.Interval, s.cfg.RetentionDays)
	return nil
}

func (s *IngestScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if err := s.sched.Shutdown(); err != nil {
		fmt.Printf("[SCHEDULER] Shutdown error: %v\n", err)
	}
	s.running = false
	fmt.Println("[SCHEDULER] Stopped")
}

func (s *IngestScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow triggers a cycle outside the normal schedule.
func (s *IngestScheduler) RunNow(ctx context.Context) (*ingest.CycleResult, error) {
	fmt.Println("[SCHEDULER] Manual ingest cycle triggered")
	return s.runner.RunCycle(ctx)
}

func (s *IngestScheduler) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CycleTimeout)
	defer cancel()

	if _, err := s.runner.RunCycle(ctx); err != nil {
		fmt.Printf("[SCHEDULER] Ingest cycle failed: %v\n", err)
	}
}

func (s *IngestScheduler) purgeExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
	var total int64
	for _, p := range s.purgers {
		n, err := p.PurgeExpired(ctx, cutoff)
		if err != nil {
			fmt.Printf("[SCHEDULER] Retention purge failed: %v\n", err)
			continue
		}
		total += n
	}
	fmt.Printf("[SCHEDULER] Retention purge removed %d rows older than %s\n",
		total, cutoff.Format("2006-01-02"))
}
