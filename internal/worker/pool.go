// Package worker runs blocking printing operations on a fixed set of
// goroutines so callers never wait on a spooler call themselves.
package worker

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adcondev/printbridge/internal/printing"
)

// Pool errors. Both carry the UNKNOWN taxonomy code.
var (
	ErrQueueFull  = printing.NewError(printing.CodeUnknown, "worker queue is full")
	ErrNotRunning = printing.NewError(printing.CodeUnknown, "worker pool is not running")
)

// Config holds pool sizing.
type Config struct {
	Workers   int // goroutines executing tasks
	QueueSize int // tasks accepted while all workers are busy
}

// DefaultConfig returns the sizing used when none is configured.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 100}
}

type task struct {
	name     string
	fn       func() error
	done     func(error)
	queuedAt time.Time
}

// Pool executes submitted tasks. Every accepted task has its done callback
// invoked exactly once, including tasks still queued when the pool stops.
type Pool struct {
	queue     chan task
	config    Config
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	stopped   bool
	log       *zap.Logger

	jobsProcessed int64
	jobsFailed    int64
	jobsRejected  int64
	lastJobTime   time.Time
}

// NewPool creates a pool. Non-positive sizes fall back to DefaultConfig.
func NewPool(cfg Config, log *zap.Logger) *Pool {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		queue:    make(chan task, cfg.QueueSize),
		config:   cfg,
		stopChan: make(chan struct{}),
		log:      log,
	}
}

// Start launches the worker goroutines. A stopped pool cannot be restarted.
func (p *Pool) Start() {
	p.mu.Lock()
	if p.isRunning || p.stopped {
		p.mu.Unlock()
		return
	}
	p.isRunning = true
	p.mu.Unlock()

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	p.log.Info("worker pool started", zap.Int("workers", p.config.Workers), zap.Int("queue_size", p.config.QueueSize))
}

// Stop waits for running tasks to finish. Tasks still queued are completed
// with ErrNotRunning.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = false
	p.stopped = true
	p.mu.Unlock()

	close(p.stopChan)
	p.wg.Wait()

	drained := 0
	for {
		select {
		case t := <-p.queue:
			t.done(ErrNotRunning)
			drained++
		default:
			stats := p.Stats()
			p.log.Info("worker pool stopped",
				zap.Int64("processed", stats.JobsProcessed),
				zap.Int64("failed", stats.JobsFailed),
				zap.Int("drained", drained))
			return
		}
	}
}

// Submit queues fn. done receives fn's error, or the error of a recovered
// panic. Submit never blocks: a full queue returns ErrQueueFull.
func (p *Pool) Submit(name string, fn func() error, done func(error)) error {
	if done == nil {
		done = func(error) {}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return ErrNotRunning
	}
	select {
	case p.queue <- task{name: name, fn: fn, done: done, queuedAt: time.Now()}:
		return nil
	default:
		p.jobsRejected++
		p.log.Warn("queue full, task rejected", zap.String("task", name), zap.Int("capacity", p.config.QueueSize))
		return ErrQueueFull
	}
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case t := <-p.queue:
			p.process(id, t)
		}
	}
}

func (p *Pool) process(id int, t task) {
	start := time.Now()
	err := p.execute(t)
	duration := time.Since(start)

	p.mu.Lock()
	if err != nil {
		p.jobsFailed++
	} else {
		p.jobsProcessed++
	}
	p.lastJobTime = time.Now()
	p.mu.Unlock()

	fields := []zap.Field{
		zap.String("task", t.name),
		zap.Int("worker", id),
		zap.Duration("waited", start.Sub(t.queuedAt)),
		zap.Duration("took", duration),
	}
	if err != nil {
		p.log.Debug("task failed", append(fields, zap.Error(err))...)
	} else {
		p.log.Debug("task completed", fields...)
	}

	t.done(err)
}

// execute runs the task, turning a panic into an error.
func (p *Pool) execute(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = printing.Wrap(fmt.Errorf("panic recovered in %s: %v", t.name, r), printing.CodeUnknown, "")
			p.log.Error("panic in task",
				zap.String("task", t.name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	return t.fn()
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Statistics{
		IsRunning:     p.isRunning,
		Workers:       p.config.Workers,
		QueueSize:     p.config.QueueSize,
		Queued:        len(p.queue),
		JobsProcessed: p.jobsProcessed,
		JobsFailed:    p.jobsFailed,
		JobsRejected:  p.jobsRejected,
		LastJobTime:   p.lastJobTime,
	}
}

// Statistics holds pool runtime statistics.
type Statistics struct {
	IsRunning     bool      `json:"is_running"`
	Workers       int       `json:"workers"`
	QueueSize     int       `json:"queue_size"`
	Queued        int       `json:"queued"`
	JobsProcessed int64     `json:"jobs_processed"`
	JobsFailed    int64     `json:"jobs_failed"`
	JobsRejected  int64     `json:"jobs_rejected"`
	LastJobTime   time.Time `json:"last_job_time,omitempty"`
}
