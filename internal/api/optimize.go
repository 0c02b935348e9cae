package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"binroute/internal/config"
	"binroute/internal/metrics"
	"binroute/internal/model"
	"binroute/internal/opt"
)

// progressEvery is the iteration cadence of run.progress events.
const progressEvery = 500

// OptimizeHandler handles POST /v1/optimize
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanOptimize() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "operator or admin required", r.URL.Path)
		return
	}
	if !s.limiter.Allow(p.Tenant) {
		metrics.RateLimited.Inc()
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "optimize rate limit exceeded", r.URL.Path)
		return
	}
	var req model.OptimizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if req.TenantID == "" {
		req.TenantID = p.Tenant
	}
	if req.TenantID != p.Tenant {
		writeProblem(w, http.StatusForbidden, "Forbidden", "tenantId does not match caller", r.URL.Path)
		return
	}
	if err := validateOptimizeRequest(&req, s.Settings.MaxRestarts); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return
	}
	m, err := s.resolveMatrix(req)
	if errors.Is(err, config.ErrUnknownCase) {
		writeProblem(w, http.StatusNotFound, "Unknown case", err.Error(), r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid matrix", err.Error(), r.URL.Path)
		return
	}

	mode, _ := opt.ParseReplayMode(req.Replay)
	seed := req.Seed
	if seed == 0 {
		// fixed here so the stored run can be reproduced
		seed = time.Now().UnixNano()
	}
	restarts := req.Restarts
	if restarts == 0 {
		restarts = 1
	}
	run, err := s.Store.CreateRun(r.Context(), model.Run{
		TenantID: req.TenantID,
		Case:     req.Case,
		Nodes:    m.Size(),
		Seed:     seed,
		Restarts: restarts,
		Replay:   mode.String(),
	})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
		return
	}
	s.Broker.Publish(run.ID, model.RunEvent{Type: model.EventRunStarted, RunID: run.ID, TS: now(), Run: &run})

	problem := s.problemFor(run.ID, req, m, mode)
	if req.Async {
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			_, _ = s.execute(s.bgCtx, run, problem)
		}()
		writeJSON(w, http.StatusAccepted, map[string]any{
			"runId":  run.ID,
			"status": run.Status,
			"links": map[string]string{
				"self":   "/v1/runs/" + run.ID,
				"events": "/v1/runs/" + run.ID + "/events/stream",
			},
		})
		return
	}

	done, err := s.execute(r.Context(), run, problem)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Optimization failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, done)
}

func (s *Server) resolveMatrix(req model.OptimizeRequest) (opt.DistanceMatrix, error) {
	if req.Case != "" {
		return s.Cases.Get(req.Case)
	}
	m := opt.DistanceMatrix(req.Matrix)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Server) problemFor(runID string, req model.OptimizeRequest, m opt.DistanceMatrix, mode opt.ReplayMode) opt.Problem {
	history := req.HistoryLength
	if history == 0 {
		history = s.Settings.HistoryLength
	}
	return opt.Problem{
		Matrix:          m,
		HistoryLength:   history,
		Replay:          mode,
		IterationsLimit: req.MaxIterations,
		TimeBudget:      time.Duration(req.TimeBudgetMs) * time.Millisecond,
		ProgressEvery:   progressEvery,
		OnProgress: func(pr opt.Progress) {
			s.Broker.Publish(runID, model.RunEvent{
				Type:        model.EventRunProgress,
				RunID:       runID,
				TS:          now(),
				Restart:     pr.Restart,
				Iteration:   pr.Iteration,
				CurrentCost: pr.CurrentCost,
				BestCost:    pr.BestCost,
			})
		},
	}
}

// execute solves a created run and records the outcome in the store, the
// broker, the webhook queue and the metrics. Cancelling ctx stops the search
// early; the best route found so far is still recorded.
func (s *Server) execute(ctx context.Context, run model.Run, p opt.Problem) (model.Run, error) {
	start := time.Now()
	res, all, err := opt.SolveParallel(ctx, p, run.Seed, run.Restarts)
	metrics.OptimizeDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		// the reported cost must be reproducible from the route alone
		var cost float64
		cost, err = opt.Replay(p.Matrix, res.Best.Stops, p.Replay)
		if err == nil && cost != res.Best.Cost {
			err = fmt.Errorf("best route replays to %v, reported %v", cost, res.Best.Cost)
		}
	}
	recCtx := context.WithoutCancel(ctx)
	if err != nil {
		return s.failRun(recCtx, run, err), err
	}

	rm := make([]model.RunMetrics, len(all))
	for i, m := range all {
		rm[i] = toRunMetrics(m)
		metrics.OptimizeIterations.Observe(float64(m.Iterations))
	}
	label := run.Case
	if label == "" {
		label = "inline"
	}
	opt.RecordMetrics(run.TenantID, label, all)
	metrics.BestCost.WithLabelValues(label).Set(res.Best.Cost)
	if res.Initial.Cost > 0 {
		metrics.OptimizeImprovement.Observe(1 - res.Best.Cost/res.Initial.Cost)
	}

	done, err := s.Store.CompleteRun(recCtx, run.TenantID, run.ID, toRouteOut(res.Initial), toRouteOut(res.Best), rm)
	if err != nil {
		err = fmt.Errorf("record run %s: %w", run.ID, err)
		return s.failRun(recCtx, run, err), err
	}
	metrics.OptimizeRuns.WithLabelValues(model.RunCompleted).Inc()
	s.Broker.Publish(run.ID, model.RunEvent{Type: model.EventRunCompleted, RunID: run.ID, TS: now(), BestCost: res.Best.Cost, Run: &done})
	s.Pub.Emit(recCtx, run.TenantID, model.EventRunCompleted, done)
	log.Printf("optimize: run=%s tenant=%s case=%s nodes=%d restarts=%d initial=%g best=%g iterations=%d stop=%s dur=%s",
		run.ID, run.TenantID, label, run.Nodes, run.Restarts, res.Initial.Cost, res.Best.Cost,
		res.Metrics.Iterations, res.Metrics.StopReason, time.Since(start).Round(time.Millisecond))
	return done, nil
}

// failRun marks run failed and publishes the terminal event so stream
// subscribers and webhooks see an outcome. When the store cannot record the
// failure either, the event still carries the failed state.
func (s *Server) failRun(ctx context.Context, run model.Run, cause error) model.Run {
	metrics.OptimizeRuns.WithLabelValues(model.RunFailed).Inc()
	failed, err := s.Store.FailRun(ctx, run.TenantID, run.ID, cause.Error())
	if err != nil {
		log.Printf("optimize: run=%s record failure: %v", run.ID, err)
		failed = run
		failed.Status = model.RunFailed
		failed.Error = cause.Error()
	}
	s.Broker.Publish(run.ID, model.RunEvent{Type: model.EventRunFailed, RunID: run.ID, TS: now(), Run: &failed})
	s.Pub.Emit(ctx, run.TenantID, model.EventRunFailed, failed)
	log.Printf("optimize: run=%s tenant=%s status=failed err=%v", run.ID, run.TenantID, cause)
	return failed
}

func toRouteOut(r opt.Route) model.RouteOut {
	return model.RouteOut{Stops: append([]int(nil), r.Stops...), Cost: r.Cost}
}

func toRunMetrics(m opt.Metrics) model.RunMetrics {
	return model.RunMetrics{
		Restart:      m.Restart,
		Seed:         m.Seed,
		Iterations:   m.Iterations,
		Evaluations:  m.Evaluations,
		Infeasible:   m.Infeasible,
		Duplicates:   m.Duplicates,
		Accepted:     m.Accepted,
		Improvements: m.Improvements,
		InitialCost:  m.InitialCost,
		BestCost:     m.BestCost,
		DurationMs:   m.Duration.Milliseconds(),
		StopReason:   string(m.StopReason),
	}
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }
