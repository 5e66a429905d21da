package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("task queue full")
	ErrQueueClosed = errors.New("task queue closed")
)

// Task is a unit of best-effort background work. Payload is JSON so the same
// task can travel through the in-process queue or through redis
type Task struct {
	Type    string
	Payload []byte
}

func NewTask(taskType string, payload any) (*Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload, %w", taskType, err)
	}

	return &Task{Type: taskType, Payload: b}, nil
}

type TaskHandler func(ctx context.Context, payload []byte) error

// TaskQueue runs tasks outside of the request that produced them. Enqueue
// must never block on the task itself, only on handing it over
type TaskQueue interface {
	Handle(taskType string, h TaskHandler)
	Enqueue(ctx context.Context, t *Task) error
	Start() error
	Close() error
}

// JobQueue is the in-process TaskQueue. Tasks are lost on restart, use the
// redis backed queue where that matters
type JobQueue struct {
	jobs     chan *Task
	handlers map[string]TaskHandler
	workers  int
	timeout  time.Duration
	running  atomic.Int32

	mu     sync.RWMutex
	closed bool
	wg     conc.WaitGroup
}

// NewJobQueue initializes a new job queue that holds at most size pending
// tasks and runs them on the given amount of workers
func NewJobQueue(workers, size int, timeout time.Duration) *JobQueue {
	if workers <= 0 {
		workers = 1
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	zap.L().Debug("Initializing job queue", zap.Int("workers", workers), zap.Int("max_jobs", size))

	return &JobQueue{
		jobs:     make(chan *Task, size),
		handlers: map[string]TaskHandler{},
		workers:  workers,
		timeout:  timeout,
	}
}

// Handle registers the handler for a task type. Handlers must be registered
// before Start
func (q *JobQueue) Handle(taskType string, h TaskHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[taskType] = h
}

func (q *JobQueue) Start() error {
	for range q.workers {
		q.wg.Go(q.worker)
	}

	return nil
}

func (q *JobQueue) worker() {
	for t := range q.jobs {
		q.run(t)
		q.running.Add(-1)
	}
}

func (q *JobQueue) run(t *Task) {
	q.mu.RLock()
	h, ok := q.handlers[t.Type]
	q.mu.RUnlock()

	if !ok {
		zap.L().Error("No handler registered for task", zap.String("task", t.Type))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	var err error
	var pc panics.Catcher
	pc.Try(func() {
		err = h(ctx, t.Payload)
	})

	if r := pc.Recovered(); r != nil {
		zap.L().Error("Task panicked", zap.String("task", t.Type), zap.Error(r.AsError()))
		return
	}

	if err != nil {
		zap.L().Error("Task finished with an error", zap.String("task", t.Type), zap.Error(err))
		return
	}

	zap.L().Debug("Task finished successfully", zap.String("task", t.Type))
}

func (q *JobQueue) Enqueue(ctx context.Context, t *Task) error {
	if t == nil {
		return errors.New("no task provided")
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.running.Add(1)

	select {
	case q.jobs <- t:
		zap.L().Debug("New task enqueued", zap.Int32("enqueued", q.running.Load()), zap.String("task", t.Type))
		return nil
	case <-ctx.Done():
		q.running.Add(-1)
		return ctx.Err()
	default:
		q.running.Add(-1)
		return ErrQueueFull
	}
}

// Pending is the number of tasks enqueued or running
func (q *JobQueue) Pending() int {
	return int(q.running.Load())
}

// Close stops accepting tasks and waits for the queued ones to finish
func (q *JobQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	if r := q.wg.WaitAndRecover(); r != nil {
		return r.AsError()
	}

	return nil
}
