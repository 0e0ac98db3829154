package benchmark

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// runPool processes runs with size workers pulling from one pre-filled,
// closed channel. A panicking run is logged and its worker moves on.
func runPool(runs []*Run, size int, work func(r *Run)) {
	if size < 1 {
		return
	}
	jobs := make(chan *Run, len(runs))
	for _, r := range runs {
		jobs <- r
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				runSafely(r, work)
			}
		}()
	}
	wg.Wait()
}

func runSafely(r *Run, work func(r *Run)) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("benchmark run panicked", "run_id", r.ID, "panic", p, "stack", string(debug.Stack()))
		}
	}()
	work(r)
}
