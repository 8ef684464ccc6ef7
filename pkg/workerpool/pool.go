// Package workerpool provides a fixed-size worker pool used to plan
// independent queries in parallel.
package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Common errors
var (
	ErrPoolClosed   = errors.New("workerpool: pool is closed")
	ErrPoolRunning  = errors.New("workerpool: pool is already running")
	ErrInvalidSize  = errors.New("workerpool: invalid pool size")
	ErrTaskPanic    = errors.New("workerpool: task panicked")
	ErrTaskCanceled = errors.New("workerpool: task canceled")
)

// Task represents a unit of work to be executed by the pool
type Task func(ctx context.Context) error

// TaskFunc is a function that produces a result
type TaskFunc func(ctx context.Context) (interface{}, error)

// Result represents the result of a task execution
type Result struct {
	Value interface{}
	Error error
}

// Config holds worker pool configuration
type Config struct {
	// Size is the number of workers in the pool
	Size int
	// QueueSize is the task queue buffer size (0 = unbuffered)
	QueueSize int
}

// DefaultConfig sizes the pool to the number of CPUs.
func DefaultConfig() Config {
	return Config{
		Size:      runtime.GOMAXPROCS(0),
		QueueSize: 100,
	}
}

// Pool represents a worker pool. Tasks already queued when Close is called
// still run; Submit after Close fails with ErrPoolClosed.
type Pool struct {
	config  Config
	tasks   chan taskWrapper
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running atomic.Bool
	closed  atomic.Bool
	workers int32
	taskCnt int64
	errCnt  int64
}

type taskWrapper struct {
	fn     TaskFunc
	result chan Result
	ctx    context.Context
}

// New creates a new worker pool with the given configuration
func New(config Config) (*Pool, error) {
	if config.Size <= 0 || config.QueueSize < 0 {
		return nil, ErrInvalidSize
	}
	return &Pool{
		config: config,
		tasks:  make(chan taskWrapper, config.QueueSize),
	}, nil
}

// NewWithSize creates a new worker pool with a specific size
func NewWithSize(size int) (*Pool, error) {
	return New(Config{Size: size})
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return ErrPoolClosed
	}
	if p.running.Load() {
		return ErrPoolRunning
	}

	for i := 0; i < p.config.Size; i++ {
		p.startWorker()
	}
	p.running.Store(true)
	return nil
}

func (p *Pool) startWorker() {
	p.wg.Add(1)
	atomic.AddInt32(&p.workers, 1)

	go func() {
		defer p.wg.Done()
		defer atomic.AddInt32(&p.workers, -1)

		for wrapper := range p.tasks {
			wrapper.result <- p.executeTask(wrapper)
		}
	}()
}

// executeTask runs one task. A panic becomes ErrTaskPanic carrying the
// panic value; a task whose context is done before it starts is skipped.
func (p *Pool) executeTask(wrapper taskWrapper) (res Result) {
	atomic.AddInt64(&p.taskCnt, 1)

	defer func() {
		if r := recover(); r != nil {
			res = Result{Error: errors.Wrapf(ErrTaskPanic, "%v", r)}
		}
		if res.Error != nil {
			atomic.AddInt64(&p.errCnt, 1)
		}
	}()

	if err := wrapper.ctx.Err(); err != nil {
		return Result{Error: errors.Mark(errors.Wrap(err, ErrTaskCanceled.Error()), ErrTaskCanceled)}
	}
	val, err := wrapper.fn(wrapper.ctx)
	return Result{Value: val, Error: err}
}

// SubmitFunc submits a function that returns a value. The returned channel
// receives exactly one Result.
func (p *Pool) SubmitFunc(ctx context.Context, fn TaskFunc) (<-chan Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running.Load() || p.closed.Load() {
		return nil, ErrPoolClosed
	}

	resultCh := make(chan Result, 1)
	select {
	case p.tasks <- taskWrapper{fn: fn, result: resultCh, ctx: ctx}:
		return resultCh, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit submits a task to the pool and returns a channel for the result
func (p *Pool) Submit(ctx context.Context, task Task) (<-chan Result, error) {
	return p.SubmitFunc(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, task(ctx)
	})
}

// SubmitWait submits a task and waits for the result
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	resultCh, err := p.Submit(ctx, task)
	if err != nil {
		return err
	}

	select {
	case result := <-resultCh:
		return result.Error
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, waits for queued tasks to finish and
// stops the workers.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	p.mu.Lock()
	p.running.Store(false)
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// Stats holds pool statistics
type Stats struct {
	Workers       int
	TasksExecuted int64
	TasksFailed   int64
	QueueSize     int
	MaxQueueSize  int
	IsRunning     bool
	IsClosed      bool
}

// Stats returns current pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:       int(atomic.LoadInt32(&p.workers)),
		TasksExecuted: atomic.LoadInt64(&p.taskCnt),
		TasksFailed:   atomic.LoadInt64(&p.errCnt),
		QueueSize:     len(p.tasks),
		MaxQueueSize:  p.config.QueueSize,
		IsRunning:     p.running.Load(),
		IsClosed:      p.closed.Load(),
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("workers=%d executed=%d failed=%d queued=%d/%d",
		s.Workers, s.TasksExecuted, s.TasksFailed, s.QueueSize, s.MaxQueueSize)
}
