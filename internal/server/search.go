package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/notare-app/notare/internal/ingest"
	"github.com/notare-app/notare/internal/search"
	"github.com/notare-app/notare/internal/store"
	"github.com/notare-app/notare/internal/telemetry"
)

// SearchHandler exposes the indexing and retrieval API.
type SearchHandler struct {
	Store        *store.Store
	Indexer      *search.Indexer
	Engine       *search.Engine
	Conversation *search.ConversationSearch
	Fetcher      *ingest.WebsiteFetcher
	Metrics      *telemetry.Metrics
}

func (h *SearchHandler) Register(g *echo.Group) {
	g.POST("/config", h.initConfig)
	g.GET("/config/:projectID", h.getConfig)
	g.POST("/content", h.indexContent)
	g.PUT("/content", h.updateContent)
	g.DELETE("/content", h.deleteContent)
	g.POST("/websites", h.indexWebsite)
	g.POST("/query", h.query)
	g.POST("/hybrid", h.hybrid)
	g.POST("/similar", h.similar)
	g.POST("/conversation", h.conversation)
}

type configRequest struct {
	ProjectID           string                 `json:"project_id"`
	EmbeddingModel      string                 `json:"embedding_model"`
	EmbeddingDimensions int                    `json:"embedding_dimensions"`
	ChunkSize           int                    `json:"chunk_size"`
	ChunkOverlap        int                    `json:"chunk_overlap"`
	RerankModel         *string                `json:"rerank_model"`
	Filters             map[string]interface{} `json:"filters"`
}

func (h *SearchHandler) initConfig(c echo.Context) error {
	var req configRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ProjectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id required")
	}
	id, err := h.Indexer.InitializeSearchConfig(c.Request().Context(), req.ProjectID, search.ConfigOptions{
		EmbeddingModel:      req.EmbeddingModel,
		EmbeddingDimensions: req.EmbeddingDimensions,
		ChunkSize:           req.ChunkSize,
		ChunkOverlap:        req.ChunkOverlap,
		RerankModel:         req.RerankModel,
		Filters:             req.Filters,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *SearchHandler) getConfig(c echo.Context) error {
	projectID := c.Param("projectID")
	cfg, err := h.Indexer.GetSearchConfig(c.Request().Context(), projectID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if cfg == nil {
		return echo.NewHTTPError(http.StatusNotFound, "search configuration not found for project "+projectID)
	}
	return c.JSON(http.StatusOK, cfg)
}

type contentRequest struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	ProjectID  string `json:"project_id"`
	Content    string `json:"content"`
}

func (h *SearchHandler) indexContent(c echo.Context) error {
	var req contentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err := h.Indexer.ProcessContent(c.Request().Context(), req.SourceType, req.SourceID, req.ProjectID, req.Content)
	h.Metrics.ObserveIndex("process", err)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"status": "indexed"})
}

func (h *SearchHandler) updateContent(c echo.Context) error {
	var req contentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err := h.Indexer.UpdateContent(c.Request().Context(), req.SourceType, req.SourceID, req.ProjectID, req.Content)
	h.Metrics.ObserveIndex("update", err)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "updated"})
}

func (h *SearchHandler) deleteContent(c echo.Context) error {
	sourceType := c.QueryParam("source_type")
	sourceID := c.QueryParam("source_id")
	if sourceType == "" || sourceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_type and source_id required")
	}
	err := h.Indexer.DeleteContent(c.Request().Context(), sourceType, sourceID)
	h.Metrics.ObserveIndex("delete", err)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

type websiteRequest struct {
	URL       string `json:"url"`
	ProjectID string `json:"project_id"`
}

// indexWebsite scrapes the URL and indexes its readable text, keyed by the
// URL itself so a later re-scrape replaces the same source.
func (h *SearchHandler) indexWebsite(c echo.Context) error {
	var req websiteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.URL == "" || req.ProjectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url and project_id required")
	}
	page, err := h.Fetcher.Fetch(c.Request().Context(), req.URL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	err = h.Indexer.UpdateContent(c.Request().Context(), store.SourceTypeWebsite, page.URL, req.ProjectID, page.Text)
	h.Metrics.ObserveIndex("website", err)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"status": "indexed", "title": page.Title})
}

// queryRequest is the decoded form shared by the query, hybrid and similar
// handlers. Weights apply to hybrid only, the exclusion to similar only.
type queryRequest struct {
	Query           string
	ProjectID       string
	SourceTypes     []string
	Options         *search.Options
	TextWeight      float64
	VectorWeight    float64
	ExcludeRecordID string
}

type queryRequestJSON struct {
	Query           string   `json:"query"`
	ProjectID       string   `json:"project_id"`
	SourceTypes     []string `json:"source_types"`
	MatchThreshold  float64  `json:"match_threshold"`
	MatchCount      int      `json:"match_count"`
	IncludeMetadata *bool    `json:"include_metadata"`
	TextWeight      float64  `json:"text_weight"`
	VectorWeight    float64  `json:"vector_weight"`
	ExcludeRecordID string   `json:"exclude_record_id"`
}

func bindQuery(c echo.Context) (queryRequest, error) {
	var raw queryRequestJSON
	if err := c.Bind(&raw); err != nil {
		return queryRequest{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	opts := search.DefaultOptions()
	if raw.MatchThreshold > 0 {
		opts.MatchThreshold = raw.MatchThreshold
	}
	if raw.MatchCount > 0 {
		opts.MatchCount = raw.MatchCount
	}
	if raw.IncludeMetadata != nil {
		opts.IncludeMetadata = *raw.IncludeMetadata
	}
	return queryRequest{
		Query:           raw.Query,
		ProjectID:       raw.ProjectID,
		SourceTypes:     raw.SourceTypes,
		Options:         &opts,
		TextWeight:      raw.TextWeight,
		VectorWeight:    raw.VectorWeight,
		ExcludeRecordID: raw.ExcludeRecordID,
	}, nil
}

func (h *SearchHandler) query(c echo.Context) error {
	req, err := bindQuery(c)
	if err != nil {
		return err
	}
	start := time.Now()
	results, err := h.Engine.SearchContent(c.Request().Context(), req.Query, req.ProjectID, req.SourceTypes, *req.Options)
	h.Metrics.ObserveSearch("vector", start, err)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"results": results})
}

func (h *SearchHandler) hybrid(c echo.Context) error {
	req, err := bindQuery(c)
	if err != nil {
		return err
	}
	start := time.Now()
	results, err := h.Engine.HybridSearch(c.Request().Context(), req.Query, req.ProjectID, req.SourceTypes, *req.Options, req.TextWeight, req.VectorWeight)
	h.Metrics.ObserveSearch("hybrid", start, err)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"results": results})
}

func (h *SearchHandler) similar(c echo.Context) error {
	req, err := bindQuery(c)
	if err != nil {
		return err
	}
	start := time.Now()
	results, err := h.Engine.SearchSimilarRecords(c.Request().Context(), req.Query, req.ProjectID, *req.Options, req.ExcludeRecordID)
	h.Metrics.ObserveSearch("similar", start, err)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"results": results})
}

func (h *SearchHandler) conversation(c echo.Context) error {
	var req search.ConversationQuery
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	start := time.Now()
	results, err := h.Conversation.Search(c.Request().Context(), req)
	h.Metrics.ObserveSearch("conversation", start, err)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"results": results})
}
