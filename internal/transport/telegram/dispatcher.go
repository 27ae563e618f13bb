package telegram

import (
	"context"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

const defaultMaxPending = 32

// dispatcher runs jobs of one user strictly in arrival order while different
// users run concurrently. A user's worker exits as soon as its queue drains.
type dispatcher struct {
	mu         sync.Mutex
	queues     map[int64][]func(ctx context.Context)
	maxPending int
	wg         sync.WaitGroup
	logger     *zap.Logger
}

func newDispatcher(maxPending int, logger *zap.Logger) *dispatcher {
	if maxPending <= 0 {
		maxPending = defaultMaxPending
	}
	return &dispatcher{
		queues:     make(map[int64][]func(ctx context.Context)),
		maxPending: maxPending,
		logger:     logger,
	}
}

// dispatch enqueues job for userID. It reports false when the user's queue is full.
func (d *dispatcher) dispatch(ctx context.Context, userID int64, job func(ctx context.Context)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	queue, running := d.queues[userID]
	if len(queue) >= d.maxPending {
		return false
	}
	d.queues[userID] = append(queue, job)

	if !running {
		d.wg.Add(1)
		go d.work(ctx, userID)
	}
	return true
}

func (d *dispatcher) work(ctx context.Context, userID int64) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		queue := d.queues[userID]
		if len(queue) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		job := queue[0]
		d.queues[userID] = queue[1:]
		d.mu.Unlock()

		d.run(ctx, userID, job)
	}
}

func (d *dispatcher) run(ctx context.Context, userID int64, job func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while handling update",
				zap.Int64("user_id", userID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	job(ctx)
}

// wait blocks until every queued job has run.
func (d *dispatcher) wait() {
	d.wg.Wait()
}
