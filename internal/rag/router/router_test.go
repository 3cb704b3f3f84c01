package router

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/kart-io/sentinel-rag/internal/rag/handler"
)

func TestRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	Register(engine, handler.NewRAGHandler(nil, nil), handler.NewSystemHandler(nil, nil, "memory"))

	got := map[string]bool{}
	for _, r := range engine.Routes() {
		got[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		http.MethodGet + " /healthz",
		http.MethodGet + " /version",
		http.MethodPost + " /v1/rag/jobs",
		http.MethodGet + " /v1/rag/jobs/:id",
		http.MethodPost + " /v1/rag/search",
		http.MethodPost + " /v1/rag/documents/:id/search",
		http.MethodGet + " /v1/rag/documents/:id/stats",
		http.MethodDelete + " /v1/rag/documents/:id",
		http.MethodGet + " /v1/rag/metrics",
	} {
		assert.True(t, got[want], want)
	}
}
