package charges

import "context"

// WorkerPool bounds the number of concurrently running gateway calls. It is
// an explicitly constructed object injected into the service, never ambient
// state.
type WorkerPool struct {
	slots chan struct{}
}

func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{slots: make(chan struct{}, size)}
}

// Submit runs task on its own goroutine once a slot frees up. The wait for a
// slot is bounded by ctx; the task itself is not, it runs detached.
func (p *WorkerPool) Submit(ctx context.Context, task func()) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	go func() {
		defer func() { <-p.slots }()
		task()
	}()
	return nil
}
