package api

import (
	"fmt"

	"binroute/internal/model"
	"binroute/internal/opt"
)

const (
	maxNodes         = 500
	maxHistoryLength = 1_000_000
)

func validateOptimizeRequest(req *model.OptimizeRequest, maxRestarts int) error {
	if (req.Case == "") == (len(req.Matrix) == 0) {
		return fmt.Errorf("exactly one of case or matrix is required")
	}
	if len(req.Matrix) > maxNodes {
		return fmt.Errorf("matrix has %d nodes, limit is %d", len(req.Matrix), maxNodes)
	}
	if req.Restarts < 0 {
		return fmt.Errorf("restarts must be >= 0")
	}
	if maxRestarts > 0 && req.Restarts > maxRestarts {
		return fmt.Errorf("restarts must be <= %d", maxRestarts)
	}
	if req.HistoryLength < 0 || req.HistoryLength > maxHistoryLength {
		return fmt.Errorf("historyLength must be in [0,%d]", maxHistoryLength)
	}
	if req.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if req.MaxIterations < 0 {
		return fmt.Errorf("maxIterations must be >= 0")
	}
	if _, err := opt.ParseReplayMode(req.Replay); err != nil {
		return err
	}
	return nil
}
