// Package httpapi is the HTTP front door: uploads, questions and raw search.
package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contextiq/internal/domain"
	"contextiq/internal/metrics"
)

type Handler struct {
	svc       domain.RAGService
	uploadDir string
}

func NewHandler(svc domain.RAGService, uploadDir string) *Handler {
	return &Handler{svc: svc, uploadDir: uploadDir}
}

// NewRouter wires the middleware chain and routes. m may be nil.
func NewRouter(h *Handler, m *metrics.Metrics, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID(log))
	router.Use(CORS())
	router.Use(AccessLog())
	router.Use(m.Middleware())

	router.GET("/health", h.Health)
	router.GET("/models", h.Models)
	router.POST("/upload", h.Upload)
	router.POST("/ask", h.Ask)
	router.GET("/search", h.Search)
	if m != nil {
		router.GET("/metrics", m.Handler())
	}
	return router
}
