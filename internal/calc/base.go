package calc

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the pool size used when none is configured
const DefaultWorkers = 30

// Pool represents a fixed-size worker pool
type Pool struct {
	numWorker int
}

// NewPool returns a Pool with numWorker workers. Non-positive sizes fall back
// to the number of CPUs.
func NewPool(numWorker int) *Pool {
	if numWorker <= 0 {
		numWorker = runtime.NumCPU()
	}

	return &Pool{numWorker: numWorker}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.numWorker
}

// Run calls job once for every index in [0, n). Jobs never see shared state
// from the pool; job i is expected to write only slot i of its output, so the
// caller gets results in input order regardless of completion order.
//
// The first failing job stops the feeding of the remaining indices. Run waits
// for every started job before returning that error. A cancelled ctx that
// leaves indices unfed is returned as the context error.
func (p *Pool) Run(ctx context.Context, n int, job func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	order := make(chan int, p.numWorker)

	workers := p.numWorker
	if workers > n {
		workers = n
	}

	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			for index := range order {
				if err := safeCall(egCtx, index, job); err != nil {
					return err
				}
			}
			return nil
		})
	}

	eg.Go(func() error {
		defer close(order)
		for i := 0; i < n; i++ {
			if err := egCtx.Err(); err != nil {
				return err
			}
			select {
			case order <- i:
			case <-egCtx.Done():
				return egCtx.Err()
			}
		}
		return nil
	})

	return eg.Wait()
}

func safeCall(ctx context.Context, index int, job func(ctx context.Context, i int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %d panicked: %v", index, r)
		}
	}()

	return job(ctx, index)
}

type statistic struct {
	avg float64
	std float64
}
