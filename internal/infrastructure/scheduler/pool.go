package scheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// PoolConfig holds run pool configuration
type PoolConfig struct {
	Workers   int
	QueueSize int
}

// DefaultPoolConfig returns default run pool configuration
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:   4,
		QueueSize: 64,
	}
}

// RunPool executes print runs on a fixed set of workers. Queued tasks are
// drained on Stop; a task is never dropped once Execute accepted it.
type RunPool struct {
	config PoolConfig
	logger *zap.Logger

	tasks     chan func()
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
}

// NewRunPool creates a new pool instance
func NewRunPool(config PoolConfig, logger *zap.Logger) (*RunPool, error) {
	if config.Workers <= 0 || config.QueueSize < 0 {
		return nil, ErrInvalidConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunPool{
		config: config,
		logger: logger,
	}, nil
}

// Start starts the workers
func (p *RunPool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isRunning {
		return nil
	}
	p.isRunning = true
	p.tasks = make(chan func(), p.config.QueueSize)

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(p.tasks, i)
	}

	p.logger.Info("Run pool started",
		zap.Int("workers", p.config.Workers),
		zap.Int("queue_size", p.config.QueueSize),
	)
	return nil
}

// Stop refuses new work and waits for queued and running tasks to finish
func (p *RunPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Run pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Run pool stop timed out")
		return ctx.Err()
	}
}

// Execute queues task without blocking
func (p *RunPool) Execute(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrJobQueueFull
	}
}

// Pending returns the number of queued tasks not yet picked up by a worker
func (p *RunPool) Pending() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.tasks == nil {
		return 0
	}
	return len(p.tasks)
}

func (p *RunPool) worker(tasks <-chan func(), workerID int) {
	defer p.wg.Done()
	for task := range tasks {
		p.run(task, workerID)
	}
	p.logger.Debug("Worker stopping", zap.Int("worker_id", workerID))
}

func (p *RunPool) run(task func(), workerID int) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task panicked",
				zap.Int("worker_id", workerID),
				zap.Any("panic", r),
				zap.Stack("stacktrace"),
			)
		}
	}()
	task()
}
