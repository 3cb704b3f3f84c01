package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"

	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/pkg/errors"
	"github.com/kart-io/sentinel-rag/pkg/utils/response"
)

// healthTimeout bounds the backend ping of /healthz.
const healthTimeout = 3 * time.Second

// HealthChecker reports vector store reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// SystemHandler serves health, version and metrics endpoints.
type SystemHandler struct {
	health  HealthChecker
	metrics *metrics.RAGMetrics
	backend string
}

// NewSystemHandler creates a SystemHandler. m 为空时使用全局指标。
func NewSystemHandler(health HealthChecker, m *metrics.RAGMetrics, backend string) *SystemHandler {
	if m == nil {
		m = metrics.GetRAGMetrics()
	}
	return &SystemHandler{health: health, metrics: m, backend: backend}
}

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

// Healthz reports 200 when the vector store answers a ping, 503 otherwise.
func (h *SystemHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if h.health != nil && !h.health.HealthCheck(ctx) {
		resp := response.ErrWithData(errors.ErrServiceUnavailable, response.Lang(c),
			&HealthResponse{Status: "unhealthy", Backend: h.backend})
		response.Write(c, resp)
		return
	}
	response.OK(c, &HealthResponse{Status: "ok", Backend: h.backend})
}

// Version returns the build information.
func (h *SystemHandler) Version(c *gin.Context) {
	response.OK(c, version.Get())
}

// Metrics returns the counters snapshot, or Prometheus text with ?format=prometheus.
func (h *SystemHandler) Metrics(c *gin.Context) {
	if c.Query("format") == "prometheus" {
		c.String(http.StatusOK, h.metrics.Export("sentinel", "rag"))
		return
	}
	response.OK(c, h.metrics.Stats())
}
