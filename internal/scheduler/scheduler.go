package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/univsource/urp-portal-api/internal/service"
	"github.com/univsource/urp-portal-api/pkg/config"
)

// Scheduler drives the periodic workflow rules on independent tickers. The
// rule logic itself lives in service.SchedulerService; this type only owns
// the timing.
type Scheduler struct {
	rules  *service.SchedulerService
	cfg    config.SchedulerConfig
	logger *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// New builds a scheduler around the rule service.
func New(rules *service.SchedulerService, cfg config.SchedulerConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		rules:  rules,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches one goroutine per rule. Each rule fires once immediately
// and then on its own interval.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || !s.cfg.Enabled {
		return
	}
	s.started = true

	s.spawn("promotion", s.cfg.PromotionInterval, s.rules.RunPromotion)
	s.spawn("reminders", s.cfg.ReminderInterval, s.rules.RunReminders)

	s.logger.Info("scheduler started",
		zap.Duration("promotion_interval", s.cfg.PromotionInterval),
		zap.Duration("reminder_interval", s.cfg.ReminderInterval))
}

// Stop cancels the rule goroutines and waits for in-flight runs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) spawn(name string, interval time.Duration, run func(context.Context, time.Time) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.fire(name, run)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.fire(name, run)
			}
		}
	}()
}

func (s *Scheduler) fire(name string, run func(context.Context, time.Time) error) {
	if err := run(s.ctx, time.Now()); err != nil {
		s.logger.Error("scheduler rule failed", zap.String("rule", name), zap.Error(err))
	}
}
