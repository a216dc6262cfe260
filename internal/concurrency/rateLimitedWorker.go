package concurrency

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimitedWorker fans a job out over a set of arguments. Jobs run
// concurrently (the targets are independent devices) but starts are paced
// by the limiter so the bridge is not flooded.
type RateLimitedWorker struct {
	limiter     *rate.Limiter
	jobCallback func(arg string) error
}

func NewRateLimitedWorker(limiter *rate.Limiter, jobCallback func(arg string) error) RateLimitedWorker {
	return RateLimitedWorker{limiter: limiter, jobCallback: jobCallback}
}

// Run starts one job per argument and waits for all of them. Errors are
// collected per argument; a failing job never blocks its siblings.
func (w *RateLimitedWorker) Run(ctx context.Context, jobArgs []string) map[string]error {

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs = map[string]error{}
	)

	for _, arg := range jobArgs {
		if err := w.limiter.Wait(ctx); err != nil {
			mu.Lock()
			errs[arg] = err
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(arg string) {
			defer wg.Done()
			if err := w.jobCallback(arg); err != nil {
				mu.Lock()
				errs[arg] = err
				mu.Unlock()
			}
		}(arg)
	}

	wg.Wait()
	return errs
}
