package opt

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

type Problem struct {
	Matrix          DistanceMatrix
	HistoryLength   int           // late-acceptance window, DefaultHistoryLength when 0
	Replay          ReplayMode    // handling of unclassified stops while scoring
	IterationsLimit int           // optional iteration cap
	TimeBudget      time.Duration // optional wall-clock cap
	ProgressEvery   int           // OnProgress cadence in iterations; improvements are always reported
	// OnProgress is called from the solving goroutine. SolveParallel calls it
	// from several goroutines at once.
	OnProgress func(Progress)
}

type Progress struct {
	Restart     int
	Iteration   int
	CurrentCost float64
	BestCost    float64
	Improved    bool
}

type StopReason string

const (
	StopExhausted  StopReason = "exhausted"
	StopIterations StopReason = "iterations"
	StopTimeBudget StopReason = "time_budget"
	StopCanceled   StopReason = "canceled"
)

type Metrics struct {
	Seed         int64
	Restart      int
	Iterations   int // candidates that reached the acceptance test
	Evaluations  int // swaps replayed
	Infeasible   int
	Duplicates   int
	Accepted     int
	Improvements int
	InitialCost  float64
	BestCost     float64
	FinalCost    float64 // cost of the baseline when the search stopped
	Duration     time.Duration
	StopReason   StopReason
}

type Result struct {
	Initial Route
	Best    Route
	Metrics Metrics
}

// Solve builds a random initial route and improves it with Late Acceptance
// Hill Climbing over pairwise swaps. The search ends once every swap of the
// current baseline is infeasible or already visited. A zero seed is replaced
// by the current time.
func Solve(ctx context.Context, p Problem, seed int64) (Result, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return solveRestart(ctx, p, seed, 0)
}

func solveRestart(ctx context.Context, p Problem, seed int64, restart int) (Result, error) {
	if err := p.Matrix.Validate(); err != nil {
		return Result{}, fmt.Errorf("solve: %w", err)
	}
	s := &search{p: p, rng: rand.New(rand.NewSource(seed))}
	s.m.Seed = seed
	s.m.Restart = restart
	return s.run(ctx)
}

type search struct {
	p       Problem
	rng     *rand.Rand
	cur     Route
	pool    *Neighborhood
	best    Route
	history *lateHistory
	visited map[string]struct{}
	m       Metrics
}

func (s *search) run(ctx context.Context) (Result, error) {
	start := time.Now()
	initial, err := Construct(s.p.Matrix, s.rng)
	if err != nil {
		return Result{}, fmt.Errorf("solve: %w", err)
	}

	s.cur = initial.Clone()
	s.best = initial.Clone()
	s.pool = NewNeighborhood(len(initial.Stops))
	s.history = newLateHistory(s.p.HistoryLength, initial.Cost)
	s.visited = map[string]struct{}{initial.Key(): {}}
	s.m.InitialCost = initial.Cost
	s.m.BestCost = initial.Cost

	var deadline time.Time
	if s.p.TimeBudget > 0 {
		deadline = start.Add(s.p.TimeBudget)
	}

	for {
		if ctx.Err() != nil {
			s.m.StopReason = StopCanceled
			break
		}
		if s.p.IterationsLimit > 0 && s.m.Iterations >= s.p.IterationsLimit {
			s.m.StopReason = StopIterations
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			s.m.StopReason = StopTimeBudget
			break
		}

		cand, ok := s.nextCandidate()
		if !ok {
			s.m.StopReason = StopExhausted
			break
		}
		s.visited[cand.Key()] = struct{}{}
		s.m.Iterations++

		// late acceptance: compare with the cost pushed HistoryLength iterations ago
		if cand.Cost < s.history.Oldest() {
			s.cur = cand
			s.pool = NewNeighborhood(len(cand.Stops))
			s.m.Accepted++
		}
		improved := cand.Cost < s.best.Cost
		if improved {
			s.best = cand.Clone()
			s.m.Improvements++
			s.m.BestCost = cand.Cost
		}
		s.history.Push(cand.Cost)

		if s.p.OnProgress != nil && (improved || (s.p.ProgressEvery > 0 && s.m.Iterations%s.p.ProgressEvery == 0)) {
			s.p.OnProgress(Progress{
				Restart:     s.m.Restart,
				Iteration:   s.m.Iterations,
				CurrentCost: s.cur.Cost,
				BestCost:    s.best.Cost,
				Improved:    improved,
			})
		}
	}

	s.m.FinalCost = s.cur.Cost
	s.m.Duration = time.Since(start)
	return Result{Initial: initial, Best: s.best, Metrics: s.m}, nil
}

// nextCandidate consumes pairs from the baseline's pool until a swap yields a
// feasible sequence that was not visited before. It reports false once the
// pool is exhausted.
func (s *search) nextCandidate() (Route, bool) {
	for {
		pair, ok := s.pool.Take(s.rng)
		if !ok {
			return Route{}, false
		}
		stops := Swap(s.cur.Stops, pair)
		s.m.Evaluations++
		cost, err := Replay(s.p.Matrix, stops, s.p.Replay)
		if err != nil {
			s.m.Infeasible++
			continue
		}
		if _, seen := s.visited[stopsKey(stops)]; seen {
			s.m.Duplicates++
			continue
		}
		return Route{Stops: stops, Cost: cost}, true
	}
}
