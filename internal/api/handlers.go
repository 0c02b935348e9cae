package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"binroute/internal/model"
	"binroute/internal/opt"
	"binroute/internal/store"
)

// CasesHandler handles GET /v1/cases and GET /v1/cases/{name}
func (s *Server) CasesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/cases"), "/")
	if name == "" {
		items := []model.CaseInfo{}
		for _, n := range s.Cases.Names() {
			m := s.Cases[n]
			items = append(items, model.CaseInfo{Name: n, Nodes: m.Size(), Clients: m.Clients()})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}
	m, err := s.Cases.Get(name)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "nodes": m.Size(), "clients": m.Clients(), "matrix": m})
}

// RunsHandler handles GET /v1/runs
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	q := r.URL.Query()
	items, next, err := s.Store.ListRuns(r.Context(), p.Tenant, q.Get("case"), q.Get("cursor"), queryLimit(r))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler handles /v1/runs/{id}, /v1/runs/{id}/replay and
// /v1/runs/{id}/events/stream
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/runs/"), "/")
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	run, err := s.Store.GetRun(r.Context(), p.Tenant, id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Run not found", id, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path)
		return
	}

	switch {
	case len(parts) == 1:
		writeJSON(w, http.StatusOK, run)
	case len(parts) == 2 && parts[1] == "replay":
		s.replayRun(w, r, run)
	case len(parts) == 3 && parts[1] == "events" && parts[2] == "stream":
		s.streamRun(w, r, run)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

// replayRun re-scores the stored best route step by step.
func (s *Server) replayRun(w http.ResponseWriter, r *http.Request, run model.Run) {
	if run.Best == nil {
		writeProblem(w, http.StatusConflict, "Run not completed", run.Status, r.URL.Path)
		return
	}
	if run.Case == "" {
		writeProblem(w, http.StatusConflict, "Replay unavailable", "inline matrices are not stored", r.URL.Path)
		return
	}
	m, err := s.Cases.Get(run.Case)
	if err != nil {
		writeProblem(w, http.StatusConflict, "Replay unavailable", err.Error(), r.URL.Path)
		return
	}
	mode, _ := opt.ParseReplayMode(run.Replay)
	type step struct {
		Stop    int     `json:"stop"`
		Action  string  `json:"action,omitempty"`
		Skipped bool    `json:"skipped,omitempty"`
		Empty   int     `json:"empty"`
		Full    int     `json:"full"`
		Cost    float64 `json:"cost"`
	}
	steps := []step{}
	cost, err := opt.Simulate(m, run.Best.Stops, mode, func(st opt.Step) {
		out := step{Stop: st.Stop, Skipped: st.Skipped, Empty: st.State.Empty, Full: st.State.Full, Cost: st.Cost}
		if !st.Skipped {
			out.Action = st.Action.String()
		}
		steps = append(steps, out)
	})
	if err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Replay failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runId": run.ID, "cost": cost, "steps": steps})
}

// streamRun writes run events as server-sent events until the run reaches a
// terminal state or the client goes away.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, run model.Run) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	send := func(evt model.RunEvent) {
		b, _ := json.Marshal(evt)
		fmt.Fprintf(w, "event: %s\n", evt.Type)
		fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
	}

	// subscribe before the headers go out so a client that saw the response
	// cannot miss later events
	ch := s.Broker.Subscribe(run.ID)
	defer s.Broker.Unsubscribe(run.ID, ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// the run may have finished before the subscription was in place
	if cur, err := s.Store.GetRun(r.Context(), run.TenantID, run.ID); err == nil {
		run = cur
	}
	if evt, done := terminalEvent(run); done {
		send(evt)
		return
	}

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			send(evt)
			if evt.Terminal() {
				return
			}
		case <-heartbeat.C:
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", run.ID, now())
			flusher.Flush()
		}
	}
}

func terminalEvent(run model.Run) (model.RunEvent, bool) {
	switch run.Status {
	case model.RunCompleted:
		evt := model.RunEvent{Type: model.EventRunCompleted, RunID: run.ID, TS: now(), Run: &run}
		if run.Best != nil {
			evt.BestCost = run.Best.Cost
		}
		return evt, true
	case model.RunFailed:
		return model.RunEvent{Type: model.EventRunFailed, RunID: run.ID, TS: now(), Run: &run}, true
	}
	return model.RunEvent{}, false
}

var subscribableEvents = map[string]bool{
	model.EventRunCompleted: true,
	model.EventRunFailed:    true,
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		req.TenantID = p.Tenant
		if err := validateSubscription(req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, r.URL.Query().Get("cursor"), queryLimit(r))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		for i := range items {
			items[i].Secret = ""
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func validateSubscription(req model.SubscriptionRequest) error {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL")
	}
	if len(req.Events) == 0 {
		return fmt.Errorf("events must not be empty")
	}
	for _, e := range req.Events {
		if !subscribableEvents[e] {
			return fmt.Errorf("unsupported event %q", e)
		}
	}
	return nil
}

// Subscription delete (admin)
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Subscription not found", id, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, q.Get("status"), q.Get("cursor"), queryLimit(r))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler handles POST /v1/admin/webhook-deliveries/{id}/retry
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/retry") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
	err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Delivery not found", id, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Retry delivery failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 1})
}

// RunMetricsHandler returns the per-restart metrics of the latest run of each
// case for the caller's tenant.
func (s *Server) RunMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	cases := map[string][]model.RunMetrics{}
	for name, ms := range opt.GetMetrics(p.Tenant) {
		out := make([]model.RunMetrics, len(ms))
		for i, m := range ms {
			out[i] = toRunMetrics(m)
		}
		cases[name] = out
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenantId": p.Tenant, "cases": cases})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	type pinger interface{ Ping(ctx context.Context) error }
	if pb, ok := s.Broker.(pinger); ok {
		if err := pb.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "cases": len(s.Cases)})
}
