package workflow

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrQueueFull is returned when the background queue cannot accept
	// another job; callers should surface backpressure, not block.
	ErrQueueFull = errors.New("background queue is full")

	// ErrQueueClosed is returned after Shutdown.
	ErrQueueClosed = errors.New("background queue is closed")
)

// PoolConfig controls worker pool behaviour.
type PoolConfig struct {
	Workers   int
	QueueSize int
}

// Pool runs background jobs on a fixed set of workers with a bounded
// queue.
type Pool struct {
	queue  chan func()
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPool creates the pool and starts its workers.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 4
	}

	p := &Pool{
		queue:  make(chan func(), cfg.QueueSize),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			job()
		}
	}
}

// Submit queues a job without blocking.
func (p *Pool) Submit(job func()) error {
	if job == nil {
		return errors.New("pool submit: job is nil")
	}

	select {
	case <-p.stopCh:
		return ErrQueueClosed
	default:
	}

	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for running workers, bounded
// by ctx.
func (p *Pool) Shutdown(ctx context.Context) {
	p.once.Do(func() {
		close(p.stopCh)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
}
