package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const taskMaxRetry = 5

// AsynqQueue is the redis backed TaskQueue. Tasks survive restarts and
// failed ones are retried with backoff
type AsynqQueue struct {
	client  *asynq.Client
	server  *asynq.Server
	mux     *asynq.ServeMux
	timeout time.Duration
}

func NewAsynqQueue(opt asynq.RedisClientOpt, workers int, timeout time.Duration) *AsynqQueue {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: workers,
		Logger:      zap.S(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			zap.L().Error("Task finished with an error",
				zap.String("task", t.Type()),
				zap.Int("retried", retried),
				zap.Error(err))
		}),
	})

	return &AsynqQueue{
		client:  asynq.NewClient(opt),
		server:  server,
		mux:     asynq.NewServeMux(),
		timeout: timeout,
	}
}

func (q *AsynqQueue) Handle(taskType string, h TaskHandler) {
	q.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, t.Payload())
	})
}

func (q *AsynqQueue) Enqueue(ctx context.Context, t *Task) error {
	if t == nil {
		return errors.New("no task provided")
	}

	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload),
		asynq.MaxRetry(taskMaxRetry),
		asynq.Timeout(q.timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s, %w", t.Type, err)
	}

	zap.L().Debug("New task enqueued", zap.String("task", t.Type), zap.String("task_id", info.ID))
	return nil
}

func (q *AsynqQueue) Start() error {
	return q.server.Start(q.mux)
}

func (q *AsynqQueue) Close() error {
	q.server.Shutdown()
	return q.client.Close()
}
