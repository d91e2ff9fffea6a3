package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"opengoat/internal/errs"
)

// queueTask is one unit of work bound to a session key.
type queueTask struct {
	fn     func(context.Context) error
	ctx    context.Context
	result chan error
}

// keyQueue holds the pending tasks for one session key.
type keyQueue struct {
	tasks     chan *queueTask
	closed    atomic.Bool
	closeCh   chan struct{}
	closeOnce sync.Once
}

// runQueue serializes runs per session key. Different keys run in
// parallel; workers for idle keys are reaped.
type runQueue struct {
	queues      sync.Map // map[string]*keyQueue
	wg          sync.WaitGroup
	closed      atomic.Bool
	mu          sync.Mutex
	idleTimeout time.Duration
	queueSize   int
}

func newRunQueue(queueSize int, idleTimeout time.Duration) *runQueue {
	if queueSize <= 0 {
		queueSize = 16
	}
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Second
	}
	return &runQueue{queueSize: queueSize, idleTimeout: idleTimeout}
}

// enqueue submits fn for the key and returns the result channel.
func (q *runQueue) enqueue(key string, ctx context.Context, fn func(context.Context) error) (<-chan error, error) {
	if q.closed.Load() {
		return nil, errs.Transient("run queue is shut down")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	task := &queueTask{fn: fn, ctx: ctx, result: make(chan error, 1)}
	kq := q.getOrCreate(key)
	if kq.closed.Load() {
		// The worker raced its idle reap; retry against a fresh queue.
		kq = q.getOrCreate(key)
	}

	select {
	case kq.tasks <- task:
		return task.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return nil, errs.Transient("session %s has too many queued runs", key)
	}
}

func (q *runQueue) getOrCreate(key string) *keyQueue {
	if v, ok := q.queues.Load(key); ok {
		return v.(*keyQueue)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if v, ok := q.queues.Load(key); ok {
		return v.(*keyQueue)
	}

	kq := &keyQueue{
		tasks:   make(chan *queueTask, q.queueSize),
		closeCh: make(chan struct{}),
	}
	q.queues.Store(key, kq)

	q.wg.Add(1)
	go q.worker(key, kq)
	return kq
}

func (q *runQueue) worker(key string, kq *keyQueue) {
	defer q.wg.Done()
	defer func() {
		kq.closed.Store(true)
		q.queues.Delete(key)
	}()

	idle := time.NewTimer(q.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case task, ok := <-kq.tasks:
			if !ok {
				return
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(q.idleTimeout)

			var err error
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = errs.Fatal("run panicked: %v", r)
					}
				}()
				if task.ctx.Err() != nil {
					err = task.ctx.Err()
					return
				}
				err = task.fn(task.ctx)
			}()
			task.result <- err
			close(task.result)

		case <-idle.C:
			return

		case <-kq.closeCh:
			return
		}
	}
}

// pending reports queued runs for a key.
func (q *runQueue) pending(key string) int {
	if v, ok := q.queues.Load(key); ok {
		return len(v.(*keyQueue).tasks)
	}
	return 0
}

// shutdown stops accepting work and waits for in-flight runs.
func (q *runQueue) shutdown(ctx context.Context) error {
	q.closed.Store(true)
	q.queues.Range(func(_, value any) bool {
		kq := value.(*keyQueue)
		kq.closed.Store(true)
		kq.closeOnce.Do(func() { close(kq.closeCh) })
		return true
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
