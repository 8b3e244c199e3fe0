package scheduler

import (
	"container/heap"
	"context"
	"sync"

	"github.com/google/uuid"
)

// execTask is one admitted job waiting for a worker. Ordering is priority
// first, then submission sequence.
type execTask struct {
	jobID    uuid.UUID
	priority int
	seq      uint64
}

type taskHeap []*execTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*execTask)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// execQueue is the base execution queue: a bounded-concurrency worker pool
// fed by a priority heap. The run callback performs the actual job execution
// and owns all state transitions.
type execQueue struct {
	workers int
	run     func(ctx context.Context, jobID uuid.UUID)

	mu      sync.Mutex
	tasks   taskHeap
	running map[uuid.UUID]context.CancelFunc

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newExecQueue(workers int, run func(ctx context.Context, jobID uuid.UUID)) *execQueue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &execQueue{
		workers: workers,
		run:     run,
		running: make(map[uuid.UUID]context.CancelFunc),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (q *execQueue) start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

// stop cancels all in-flight executions and waits for workers to drain.
func (q *execQueue) stop() {
	q.cancel()
	q.wg.Wait()
}

// enqueue adds an admitted job to the pool.
func (q *execQueue) enqueue(jobID uuid.UUID, priority int, seq uint64) {
	q.mu.Lock()
	heap.Push(&q.tasks, &execTask{jobID: jobID, priority: priority, seq: seq})
	q.mu.Unlock()
	q.signal()
}

// remove withdraws a not-yet-started job. Returns false if no task with
// that id is waiting.
func (q *execQueue) remove(jobID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.tasks {
		if t.jobID == jobID {
			heap.Remove(&q.tasks, i)
			return true
		}
	}
	return false
}

// cancelRunning best-effort-cancels an in-flight execution by cancelling
// its context. The handler decides whether to honor it.
func (q *execQueue) cancelRunning(jobID uuid.UUID) bool {
	q.mu.Lock()
	cancel, ok := q.running[jobID]
	q.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// depth returns the number of tasks waiting for a worker.
func (q *execQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *execQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *execQueue) pop() *execTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil
	}
	t := heap.Pop(&q.tasks).(*execTask)
	if len(q.tasks) > 0 {
		q.signal()
	}
	return t
}

func (q *execQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
			for {
				t := q.pop()
				if t == nil {
					break
				}
				q.execute(t)
			}
		}
	}
}

func (q *execQueue) execute(t *execTask) {
	jobCtx, cancel := context.WithCancel(q.ctx)
	q.mu.Lock()
	q.running[t.jobID] = cancel
	q.mu.Unlock()

	q.run(jobCtx, t.jobID)

	q.mu.Lock()
	delete(q.running, t.jobID)
	q.mu.Unlock()
	cancel()
}
