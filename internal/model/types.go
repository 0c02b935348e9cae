package model

import "time"

// OptimizeRequest starts a run on a named case or an inline distance matrix.
type OptimizeRequest struct {
	TenantID      string      `json:"tenantId"`
	Case          string      `json:"case,omitempty"`
	Matrix        [][]float64 `json:"matrix,omitempty"`
	Seed          int64       `json:"seed,omitempty"`
	Restarts      int         `json:"restarts,omitempty"`
	HistoryLength int         `json:"historyLength,omitempty"`
	MaxIterations int         `json:"maxIterations,omitempty"`
	TimeBudgetMs  int         `json:"timeBudgetMs,omitempty"`
	Replay        string      `json:"replay,omitempty"` // strict, lenient
	Async         bool        `json:"async,omitempty"`
}

type RouteOut struct {
	Stops []int   `json:"stops"`
	Cost  float64 `json:"cost"`
}

// RunMetrics is the per-restart search summary.
type RunMetrics struct {
	Restart      int     `json:"restart"`
	Seed         int64   `json:"seed"`
	Iterations   int     `json:"iterations"`
	Evaluations  int     `json:"evaluations"`
	Infeasible   int     `json:"infeasible"`
	Duplicates   int     `json:"duplicates"`
	Accepted     int     `json:"accepted"`
	Improvements int     `json:"improvements"`
	InitialCost  float64 `json:"initialCost"`
	BestCost     float64 `json:"bestCost"`
	DurationMs   int64   `json:"durationMs"`
	StopReason   string  `json:"stopReason"`
}

const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

type Run struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenantId"`
	Case        string       `json:"case,omitempty"`
	Status      string       `json:"status"`
	Nodes       int          `json:"nodes"`
	Seed        int64        `json:"seed"`
	Restarts    int          `json:"restarts"`
	Replay      string       `json:"replay"`
	Initial     *RouteOut    `json:"initial,omitempty"`
	Best        *RouteOut    `json:"best,omitempty"`
	Metrics     []RunMetrics `json:"metrics,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// Run event types, shared by the broker, the streams and webhooks.
const (
	EventRunStarted   = "run.started"
	EventRunProgress  = "run.progress"
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

type RunEvent struct {
	Type        string  `json:"type"`
	RunID       string  `json:"runId"`
	TS          string  `json:"ts"`
	Restart     int     `json:"restart,omitempty"`
	Iteration   int     `json:"iteration,omitempty"`
	CurrentCost float64 `json:"currentCost,omitempty"`
	BestCost    float64 `json:"bestCost,omitempty"`
	Run         *Run    `json:"run,omitempty"`
}

// Terminal reports whether no further events follow for the run.
func (e RunEvent) Terminal() bool {
	return e.Type == EventRunCompleted || e.Type == EventRunFailed
}

type CaseInfo struct {
	Name    string `json:"name"`
	Nodes   int    `json:"nodes"`
	Clients int    `json:"clients"`
}

type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}
