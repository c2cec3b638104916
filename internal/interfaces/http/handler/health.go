package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/erp/commerce-recurly/internal/infrastructure/persistence"
	"github.com/erp/commerce-recurly/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// DatabaseChecker reports database reachability.
type DatabaseChecker interface {
	Ping() error
	Stats() (persistence.ConnectionStats, error)
}

// HealthHandler serves GET /health
type HealthHandler struct {
	BaseHandler
	db        DatabaseChecker
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db DatabaseChecker, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                       `json:"status"`
	Version   string                       `json:"version"`
	GoVersion string                       `json:"go_version"`
	Uptime    string                       `json:"uptime"`
	Database  string                       `json:"database"`
	Stats     *persistence.ConnectionStats `json:"stats,omitempty"`
}

// Health reports service and database status. An unreachable database
// answers 503 so load balancers take the instance out of rotation.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Database:  "connected",
	}

	if err := h.db.Ping(); err != nil {
		resp.Status = "unhealthy"
		resp.Database = "disconnected"
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
		return
	}
	if stats, err := h.db.Stats(); err == nil {
		resp.Stats = &stats
	}

	h.Success(c, resp)
}
