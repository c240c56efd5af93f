package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gerenciador/internal/core"
	"gerenciador/internal/groups"
	"gerenciador/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{
			"active_clients": s.limiter.ActiveClients(),
			"rejected":       s.limiter.Hits(),
		},
		"security": map[string]any{
			"suspicious_requests": s.detector.SuspiciousRequests(),
		},
	}
	if err := s.ledger.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		checks["store"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	NewJSONResponse().Status(code).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleGroups lists every configured group, excluded ones included.
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string][]groups.Group{
		"groups": s.ledger.Registry().All(),
	}).Write(w)
}

func (s *Server) handleGroupTransactions(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	txs, err := s.ledger.ListGroup(r.Context(), key)
	if errors.Is(err, core.ErrUnknownGroup) {
		ErrorResponse(http.StatusNotFound, err.Error()).Write(w)
		return
	}
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().Data(map[string]any{
		"group":        key,
		"transactions": txs,
	}).Write(w)
}

// handleRefresh drops the ledger caches and reloads every group, returning
// the current-month totals computed from the fresh data.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.ledger.Refresh(r.Context())
	totals, err := s.ledger.CurrentMonthTotals(r.Context(), s.ledger.Today())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"refreshed": true,
		"summary":   totals,
	}).Write(w)
}
