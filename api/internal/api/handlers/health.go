package handlers

import (
	"context"
	"net/http"
	"time"

	"akatsuki/api/internal/core/domain"
)

const healthTimeout = 2 * time.Second

type HealthHandler struct {
	gateway domain.QueryGateway
}

func NewHealthHandler(gateway domain.QueryGateway) *HealthHandler {
	return &HealthHandler{gateway: gateway}
}

// Check handles GET /health by round-tripping a trivial query through the pool.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	// 🛡️ SLA: Use a tight timeout for health checks
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if _, err := h.gateway.QueryOne(ctx, "HealthHandler.Check", "SELECT 1 AS ok"); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unhealthy: database unreachable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("healthy"))
}
