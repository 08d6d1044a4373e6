// Package server exposes the document-analysis operations over a small JSON
// HTTP API suitable for an editor frontend.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	docanalysis "github.com/MegaGrindStone/go-doc-analysis"
)

// Config carries the request-independent settings of the API.
type Config struct {
	// Model overrides the agent's default model for review and summary calls.
	Model string
	// Concurrency bounds per-request LLM fan-out.
	Concurrency int

	ChunkOptions     docanalysis.ChunkOptions
	HierarchyOptions docanalysis.HierarchyOptions
}

// Server wires the analysis core to a gin engine.
type Server struct {
	engine *gin.Engine

	syncManager *docanalysis.DocSyncManager
	agent       docanalysis.Agent
	embedder    docanalysis.Embedder
	store       docanalysis.VectorStore

	cfg    Config
	logger *slog.Logger
}

// New creates a Server with all routes registered.
func New(syncManager *docanalysis.DocSyncManager, agent docanalysis.Agent, embedder docanalysis.Embedder, store docanalysis.VectorStore, cfg Config, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), corsMiddleware())

	s := &Server{
		engine:      engine,
		syncManager: syncManager,
		agent:       agent,
		embedder:    embedder,
		store:       store,
		cfg:         cfg,
		logger:      logger.With(slog.String("package", "server")),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP server on addr and blocks.
func (s *Server) Run(addr string) error {
	s.logger.Info("Starting HTTP server", slog.String("addr", addr))
	return s.engine.Run(addr)
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	analyze := s.engine.Group("/analyze")
	analyze.POST("/chunk", s.handleChunk)
	analyze.POST("/stats", s.handleStats)
	analyze.POST("/query", s.handleQuery)
	analyze.POST("/hierarchy", s.handleHierarchy)
	analyze.POST("/criticize", s.handleCriticize)
	analyze.POST("/suggest", s.handleSuggest)
	analyze.POST("/summarize", s.handleSummarize)
}

// corsMiddleware allows browser frontends on any origin to call the API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, docanalysis.ErrEmptyText) || errors.Is(err, docanalysis.ErrEmptyQuestion) {
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	count, err := s.store.Count(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "chunks": count})
}
