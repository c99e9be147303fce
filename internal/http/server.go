// Package http provides the HTTP API for vaultd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/indexer"
	"github.com/fyrsmithlabs/vaultd/internal/vectorstore"
)

// Index is the slice of the index manager the API exposes.
type Index interface {
	IndexFile(ctx context.Context, path, text string) error
	UpdateFile(ctx context.Context, path, text string) error
	RemoveFile(ctx context.Context, path string) error
	Search(ctx context.Context, query string, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error)
	Flush(ctx context.Context) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) indexer.Stats
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides HTTP endpoints over an Index.
type Server struct {
	echo   *echo.Echo
	index  Index
	logger *zap.Logger
	config Config
}

// NewServer creates the HTTP server.
func NewServer(index Index, logger *zap.Logger, cfg Config) (*Server, error) {
	if index == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8991
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:   e,
		index:  index,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/index", s.handleIndex)
	v1.POST("/search", s.handleSearch)
	v1.POST("/flush", s.handleFlush)
	v1.POST("/remove", s.handleRemove)
	v1.POST("/clear", s.handleClear)
	v1.GET("/stats", s.handleStats)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// IndexRequest is the request body for POST /api/v1/index.
type IndexRequest struct {
	Path string `json:"path"`
	Text string `json:"text"`
	// Update removes the file's previous records before indexing.
	Update bool `json:"update,omitempty"`
}

// SearchRequest is the request body for POST /api/v1/search.
type SearchRequest struct {
	Query string   `json:"query"`
	Limit int      `json:"limit,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// SearchResponse is the response body for POST /api/v1/search.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

// SearchHit is one ranked result.
type SearchHit struct {
	ID       string                    `json:"id"`
	Score    float32                   `json:"score"`
	Content  string                    `json:"content"`
	Metadata vectorstore.ChunkMetadata `json:"metadata"`
}

// RemoveRequest is the request body for POST /api/v1/remove.
type RemoveRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleIndex(c echo.Context) error {
	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path field is required")
	}

	ctx := c.Request().Context()
	var err error
	if req.Update {
		err = s.index.UpdateFile(ctx, req.Path, req.Text)
	} else {
		err = s.index.IndexFile(ctx, req.Path, req.Text)
	}
	if err != nil {
		s.logger.Warn("index request failed", zap.String("path", req.Path), zap.Error(err))
		return s.mapError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	results, err := s.index.Search(c.Request().Context(), req.Query, vectorstore.SearchOptions{
		Limit: req.Limit,
		Tags:  req.Tags,
	})
	if err != nil {
		s.logger.Warn("search request failed", zap.Error(err))
		return s.mapError(err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SearchHit{
			ID:       r.ID,
			Score:    r.Score,
			Content:  r.Content,
			Metadata: r.Metadata,
		})
	}
	return c.JSON(http.StatusOK, SearchResponse{Results: hits})
}

func (s *Server) handleFlush(c echo.Context) error {
	if err := s.index.Flush(c.Request().Context()); err != nil {
		s.logger.Warn("flush request failed", zap.Error(err))
		return s.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRemove(c echo.Context) error {
	var req RemoveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path field is required")
	}

	if err := s.index.RemoveFile(c.Request().Context(), req.Path); err != nil {
		s.logger.Warn("remove request failed", zap.String("path", req.Path), zap.Error(err))
		return s.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClear(c echo.Context) error {
	if err := s.index.Clear(c.Request().Context()); err != nil {
		s.logger.Warn("clear request failed", zap.Error(err))
		return s.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.index.Stats(c.Request().Context()))
}

// mapError converts domain errors to HTTP status codes. Backend
// connectivity failures become 503 so clients can tell them apart from an
// empty result.
func (s *Server) mapError(err error) error {
	if errors.Is(err, vectorstore.ErrBackendUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "vector backend unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
