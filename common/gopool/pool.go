package gopool

import (
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

var (
	// Init a instance pool when importing ants.
	defaultPool, _   = ants.NewPool(ants.DefaultAntsPoolSize, ants.WithExpiryDuration(10*time.Second))
	minNumberPerTask = 5
)

// Submit submits a task to pool.
func Submit(task func()) error {
	return defaultPool.Submit(task)
}

// Running returns the number of the currently running goroutines.
func Running() int {
	return defaultPool.Running()
}

// Cap returns the capacity of this default pool.
func Cap() int {
	return defaultPool.Cap()
}

// Threads returns the number of workers worth starting for the given number
// of tasks, at most one per CPU.
func Threads(tasks int) int {
	threads := tasks / minNumberPerTask
	if threads > runtime.NumCPU() {
		threads = runtime.NumCPU()
	} else if threads == 0 {
		threads = 1
	}
	return threads
}

// ForEach calls fn for every index in [0, n) on at most threads pool workers
// and waits for all of them. With a single thread fn runs on the caller's
// goroutine in index order.
func ForEach(n, threads int, fn func(i int)) error {
	if threads > n {
		threads = n
	}
	if threads <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return nil
	}
	tasks := make(chan int, n)
	for i := 0; i < n; i++ {
		tasks <- i
	}
	close(tasks)

	var wg sync.WaitGroup
	for t := 0; t < threads; t++ {
		wg.Add(1)
		err := Submit(func() {
			defer wg.Done()
			for i := range tasks {
				fn(i)
			}
		})
		if err != nil {
			// Workers already started drain the remaining tasks.
			wg.Done()
			if t == 0 {
				return err
			}
			break
		}
	}
	wg.Wait()
	return nil
}
