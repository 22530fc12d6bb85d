package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ScratchSweeper removes scratch artifacts left behind by crashed runs
type ScratchSweeper interface {
	SweepOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// SweepTriggerConfig holds configuration for the periodic scratch sweep
type SweepTriggerConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// SweepTrigger periodically sweeps the scratch root
type SweepTrigger struct {
	config  SweepTriggerConfig
	sweeper ScratchSweeper
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSweepTrigger creates a new sweep trigger
func NewSweepTrigger(config SweepTriggerConfig, sweeper ScratchSweeper, logger *zap.Logger) *SweepTrigger {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepTrigger{
		config:  config,
		sweeper: sweeper,
		logger:  logger,
	}
}

// Start sweeps once immediately, then on every interval
func (s *SweepTrigger) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Scratch sweep started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("max_age", s.config.MaxAge),
	)
	return nil
}

// Stop stops the trigger
func (s *SweepTrigger) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SweepTrigger) runLoop(ctx context.Context) {
	defer s.wg.Done()

	s.sweep(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SweepTrigger) sweep(ctx context.Context) {
	removed, err := s.sweeper.SweepOlderThan(ctx, s.config.MaxAge)
	if err != nil {
		s.logger.Error("Scratch sweep incomplete", zap.Int("removed", removed), zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("Scratch sweep removed stale artifacts", zap.Int("removed", removed))
	}
}
