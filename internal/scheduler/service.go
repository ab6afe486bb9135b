package scheduler

import (
	"context"
	"sync"

	rcron "github.com/robfig/cron/v3"

	"ceopilot/internal/logging"
)

// Service runs scheduler passes on a cron schedule. It is an operational
// wrapper; all semantics live in Scheduler.Run.
type Service struct {
	scheduler  *Scheduler
	cronSpec   string
	identities []string
	opts       Options

	mu     sync.Mutex
	cron   *rcron.Cron
	cancel context.CancelFunc
}

// NewService creates a cron-driven scheduler service. cronSpec uses the
// standard 5-field cron syntax or descriptors like "@every 5m".
func NewService(scheduler *Scheduler, cronSpec string, identities []string, opts Options) *Service {
	return &Service{
		scheduler:  scheduler,
		cronSpec:   cronSpec,
		identities: identities,
		opts:       opts,
	}
}

// Start registers the cron entry and begins ticking. Non-blocking.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
	s.cron = rcron.New()

	_, err := s.cron.AddFunc(s.cronSpec, func() {
		summaries, err := s.scheduler.RunAll(runCtx, s.identities, s.opts)
		if err != nil {
			logging.Get(logging.CategoryScheduler).Error("scheduled sweep: %v", err)
			return
		}
		for identity, summary := range summaries {
			logging.SchedulerDebug("sweep %s: processed=%d executed=%d deferred=%d failed=%d",
				identity, summary.Processed, summary.Executed, summary.Deferred, summary.Failed)
		}
	})
	if err != nil {
		cancel()
		return err
	}

	s.cron.Start()
	logging.Scheduler("cron service started (spec=%q, identities=%d)", s.cronSpec, len(s.identities))
	return nil
}

// Stop halts the cron ticker and waits for an in-flight sweep to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	cron := s.cron
	cancel := s.cancel
	s.cron = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cron != nil {
		<-cron.Stop().Done()
	}
}
