package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/procurement/backend/internal/interfaces/http/dto"
)

// Check reports whether a dependency is reachable
type Check func(ctx context.Context) error

// HealthHandler answers liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	checks  map[string]Check
	timeout time.Duration
	started time.Time
}

// NewHealthHandler creates a handler running checks on readiness probes
func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second, started: time.Now()}
}

// HealthResponse is the body of both probes
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Live handles GET /health
func (h *HealthHandler) Live(c *gin.Context) {
	h.Success(c, HealthResponse{Status: "ok", Uptime: h.uptime()})
}

// Ready handles GET /health/ready. Any failing check answers 503.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Uptime: h.uptime(), Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}
	if resp.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, dto.Response{Data: resp, Error: &dto.ErrorInfo{
			Code:      "STORAGE_UNAVAILABLE",
			Message:   "a dependency is unreachable",
			RequestID: getRequestID(c),
		}})
		return
	}
	h.Success(c, resp)
}

func (h *HealthHandler) uptime() string {
	return time.Since(h.started).Round(time.Second).String()
}
