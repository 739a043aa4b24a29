// Package ensemble runs several independent driver instances side by side.
// Every member follows the same deterministic schedule; only rank 0 reports.
package ensemble

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/simrun/internal/driver"
)

// Factory builds the driver for one member. reporter is true only for rank 0
// and should be passed on with driver.WithReporter.
type Factory func(rank int, reporter func() bool) (*driver.Driver, error)

type Ensemble struct {
	size    int
	factory Factory
	limit   int
}

func New(size int, factory Factory) *Ensemble {
	return &Ensemble{size: size, factory: factory, limit: -1}
}

// SetLimit bounds how many members run at once. n <= 0 means no limit.
func (e *Ensemble) SetLimit(n int) {
	if n <= 0 {
		n = -1
	}
	e.limit = n
}

func (e *Ensemble) Size() int { return e.size }

// Run builds and runs every member. The first failure cancels the others at
// their next output point and is returned with the member's rank.
func (e *Ensemble) Run(ctx context.Context) ([]*driver.Result, error) {
	results := make([]*driver.Result, e.size)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for rank := 0; rank < e.size; rank++ {
		g.Go(func() error {
			isReporter := rank == 0
			d, err := e.factory(rank, func() bool { return isReporter })
			if err != nil {
				return fmt.Errorf("member %d: %w", rank, err)
			}
			res, err := d.Run(ctx)
			if err != nil {
				return fmt.Errorf("member %d: %w", rank, err)
			}
			results[rank] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
