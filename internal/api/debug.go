package api

import (
	"net/http"
	"time"

	"binroute/internal/buildinfo"
)

// DebugJSON reports build data and the effective settings. Connection
// strings are reduced to presence flags.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	if !s.getPrincipal(r).IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	cfg := s.Settings
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                 cfg.Port,
			"CASES_PATH":           cfg.CasesPath,
			"OPTIMIZE_RATE_RPS":    cfg.RateRPS,
			"OPTIMIZE_RATE_BURST":  cfg.RateBurst,
			"LAHC_HISTORY_LENGTH":  cfg.HistoryLength,
			"LAHC_MAX_RESTARTS":    cfg.MaxRestarts,
			"WEBHOOK_MAX_ATTEMPTS": cfg.WebhookMaxAttempts,
			"HAS_DATABASE_URL":     cfg.DatabaseURL != "",
			"HAS_REDIS_URL":        cfg.RedisURL != "",
		},
		"cases": s.Cases.Names(),
	})
}
