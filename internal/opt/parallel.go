package opt

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// SolveParallel runs independent restarts concurrently, each seeded from seed
// and its restart index, and returns the restart with the cheapest best route.
// Ties go to the lowest index, so the outcome does not depend on scheduling.
// The per-restart metrics are returned in restart order.
func SolveParallel(ctx context.Context, p Problem, seed int64, restarts int) (Result, []Metrics, error) {
	if restarts <= 1 {
		r, err := Solve(ctx, p, seed)
		if err != nil {
			return Result{}, nil, err
		}
		return r, []Metrics{r.Metrics}, nil
	}
	if err := p.Matrix.Validate(); err != nil {
		return Result{}, nil, fmt.Errorf("solve: %w", err)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	results := make([]Result, restarts)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < restarts; i++ {
		i := i
		g.Go(func() error {
			r, err := solveRestart(gctx, p, deriveSeed(seed, i), i)
			if err != nil {
				return fmt.Errorf("restart %d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, nil, err
	}

	best := 0
	metrics := make([]Metrics, restarts)
	for i, r := range results {
		metrics[i] = r.Metrics
		if r.Best.Cost < results[best].Best.Cost {
			best = i
		}
	}
	return results[best], metrics, nil
}

// deriveSeed mixes base and the restart index with SplitMix64 so neighbouring
// restarts get unrelated streams. The result is never zero.
func deriveSeed(base int64, restart int) int64 {
	z := uint64(base) + uint64(restart+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z ^= z >> 31
	if z == 0 {
		z = 0x9E3779B97F4A7C15
	}
	return int64(z)
}
