// Package router provides RAG service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-rag/internal/rag/handler"
)

// Register registers the RAG service routes on engine.
func Register(engine *gin.Engine, rag *handler.RAGHandler, system *handler.SystemHandler) {
	engine.GET("/healthz", system.Healthz)
	engine.GET("/version", system.Version)

	v1 := engine.Group("/v1")
	{
		r := v1.Group("/rag")
		{
			r.POST("/jobs", rag.CreateJob)
			r.GET("/jobs/:id", rag.GetJob)

			r.POST("/search", rag.SearchGlobal)

			r.POST("/documents/:id/search", rag.SearchInDocument)
			r.GET("/documents/:id/stats", rag.GetDocumentStats)
			r.DELETE("/documents/:id", rag.DeleteDocument)

			r.GET("/metrics", system.Metrics)
		}
	}

	logger.Infow("RAG routes registered", "routes", len(engine.Routes()))
}
