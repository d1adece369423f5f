package utils

import "sync"

// WorkerPool runs submitted jobs on at most maxWorkers goroutines.
type WorkerPool struct {
	maxWorkers int
	semaphore  chan struct{}
	wg         sync.WaitGroup
}

// NewWorkerPool creates a WorkerPool. maxWorkers below 1 is treated as 1.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
	}
}

// Submit starts job as soon as a worker slot is free. It blocks while all
// slots are taken.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Size returns the maximum number of concurrent jobs.
func (wp *WorkerPool) Size() int {
	return wp.maxWorkers
}

// ParallelFor calls fn(i) for every i in [0, n) on the pool and waits for
// all calls to return. Each index is handled by exactly one call.
func ParallelFor(pool *WorkerPool, n int, fn func(i int)) {
	for i := 0; i < n; i++ {
		pool.Submit(func() { fn(i) })
	}
	pool.Wait()
}
