package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	docanalysis "github.com/MegaGrindStone/go-doc-analysis"
	"github.com/MegaGrindStone/go-doc-analysis/internal"
)

// chunkOptionsPayload distinguishes absent fields from explicit zeros, so a
// client can request overlap 0 without falling back to the default.
type chunkOptionsPayload struct {
	MaxChunkSize *int `json:"maxChunkSize"`
	Overlap      *int `json:"overlap"`
}

type hierarchyOptionsPayload struct {
	SimilarityThreshold        *float64 `json:"similarityThreshold"`
	MinSectionSize             *int     `json:"minSectionSize"`
	DocSummaryMaxSentences     *int     `json:"docSummaryMaxSentences"`
	SectionSummaryMaxSentences *int     `json:"sectionSummaryMaxSentences"`
	MaxOutlineDepth            *int     `json:"maxOutlineDepth"`
}

type textRequest struct {
	Text string `json:"text"`
}

type chunkRequest struct {
	Text         string               `json:"text"`
	Options      *chunkOptionsPayload `json:"options"`
	UseHierarchy bool                 `json:"useHierarchy"`
}

type queryRequest struct {
	Text     string `json:"text"`
	Question string `json:"question"`
	Options  *struct {
		Limit *int `json:"limit"`
	} `json:"options"`
}

type hierarchyRequest struct {
	Text    string                   `json:"text"`
	Options *hierarchyOptionsPayload `json:"options"`
}

func (s *Server) chunkOptions(payload *chunkOptionsPayload) docanalysis.ChunkOptions {
	opts := s.cfg.ChunkOptions
	if payload == nil {
		return opts
	}
	if payload.MaxChunkSize != nil {
		opts.MaxChunkSize = *payload.MaxChunkSize
	}
	if payload.Overlap != nil {
		opts.Overlap = *payload.Overlap
	}
	return opts
}

func (s *Server) hierarchyOptions(payload *hierarchyOptionsPayload) docanalysis.HierarchyOptions {
	opts := s.cfg.HierarchyOptions
	if payload == nil {
		return opts
	}
	if payload.SimilarityThreshold != nil {
		opts.SimilarityThreshold = *payload.SimilarityThreshold
	}
	if payload.MinSectionSize != nil {
		opts.MinSectionSize = *payload.MinSectionSize
	}
	if payload.DocSummaryMaxSentences != nil {
		opts.DocSummaryMaxSentences = *payload.DocSummaryMaxSentences
	}
	if payload.SectionSummaryMaxSentences != nil {
		opts.SectionSummaryMaxSentences = *payload.SectionSummaryMaxSentences
	}
	if payload.MaxOutlineDepth != nil {
		opts.MaxOutlineDepth = *payload.MaxOutlineDepth
	}
	return opts
}

func (s *Server) handleChunk(c *gin.Context) {
	var req chunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Text == "" {
		s.respondError(c, docanalysis.ErrEmptyText)
		return
	}

	var hierarchy *docanalysis.HierarchyMap
	if req.UseHierarchy {
		h, err := docanalysis.ExtractHierarchy(c.Request.Context(), req.Text, s.embedder, s.cfg.HierarchyOptions)
		if err != nil {
			s.respondError(c, err)
			return
		}
		hierarchy = &h
	}

	result := docanalysis.AnalyzeDocument(req.Text, s.chunkOptions(req.Options), hierarchy)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleStats(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Text == "" {
		s.respondError(c, docanalysis.ErrEmptyText)
		return
	}

	stats := docanalysis.AnalyzeText(req.Text)
	tokens, err := internal.CountTokens(req.Text)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totalCharacters": stats.TotalCharacters,
		"totalWords":      stats.TotalWords,
		"totalParagraphs": stats.TotalParagraphs,
		"totalTokens":     tokens,
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Text == "" {
		s.respondError(c, docanalysis.ErrEmptyText)
		return
	}
	if req.Question == "" {
		s.respondError(c, docanalysis.ErrEmptyQuestion)
		return
	}

	limit := 0
	if req.Options != nil && req.Options.Limit != nil {
		limit = *req.Options.Limit
	}

	result, err := s.syncManager.QueryWithSync(c.Request.Context(), req.Text, req.Question, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleHierarchy(c *gin.Context) {
	var req hierarchyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Text == "" {
		s.respondError(c, docanalysis.ErrEmptyText)
		return
	}

	hierarchy, err := docanalysis.ExtractHierarchy(c.Request.Context(), req.Text, s.embedder, s.hierarchyOptions(req.Options))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hierarchy)
}

func (s *Server) handleCriticize(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Text == "" {
		s.respondError(c, docanalysis.ErrEmptyText)
		return
	}

	criticisms, err := docanalysis.Criticize(c.Request.Context(), req.Text, s.agent, docanalysis.ReviewOptions{
		Model:       s.cfg.Model,
		Concurrency: s.cfg.Concurrency,
	}, s.logger)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, criticisms)
}

func (s *Server) handleSuggest(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Text == "" {
		s.respondError(c, docanalysis.ErrEmptyText)
		return
	}

	suggestions, err := docanalysis.SuggestChanges(c.Request.Context(), req.Text, s.agent, docanalysis.ReviewOptions{
		Model:       s.cfg.Model,
		Concurrency: s.cfg.Concurrency,
	}, s.logger)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, suggestions)
}

func (s *Server) handleSummarize(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Text == "" {
		s.respondError(c, docanalysis.ErrEmptyText)
		return
	}

	summary, err := docanalysis.Summarize(c.Request.Context(), req.Text, s.agent, docanalysis.SummarizeOptions{
		Model:       s.cfg.Model,
		Concurrency: s.cfg.Concurrency,
	}, s.logger)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
