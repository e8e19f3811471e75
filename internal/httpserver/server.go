package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/chanlog/internal/duckdb"
	"github.com/tinytelemetry/chanlog/internal/logparse"
	"github.com/tinytelemetry/chanlog/internal/model"
)

// QueryStore is the store contract required by the HTTP API.
type QueryStore interface {
	model.Repository
	SchemaStatus(ctx context.Context) (current int, pending int, err error)
}

// Server provides an HTTP API for querying stored log records.
type Server struct {
	addr      string
	store     QueryStore
	logger    *slog.Logger
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, store QueryStore, logger *slog.Logger) *Server {
	if addr == "" {
		addr = "127.0.0.1:3000"
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		store:  store,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/schema", s.handleSchema)
	api.GET("/channels", s.handleChannels)
	api.GET("/records", s.handleRecords)
	api.GET("/records/:id", s.handleRecord)
	api.DELETE("/records", s.handleDelete)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	count, err := s.store.Count(c.Request.Context(), model.Query{})
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"uptime":       time.Since(s.startTime).String(),
		"record_count": count,
	})
}

func (s *Server) handleSchema(c *gin.Context) {
	current, pending, err := s.store.SchemaStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read schema version"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version": current,
		"pending": pending,
	})
}

func (s *Server) handleChannels(c *gin.Context) {
	q, err := bindQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	channels, err := s.store.FindChannels(c.Request.Context(), q)
	if err != nil {
		s.queryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

func (s *Server) handleRecords(c *gin.Context) {
	q, err := bindQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	records, err := s.store.FindByQuery(ctx, q)
	if err != nil {
		s.queryError(c, err)
		return
	}
	total, err := s.store.Count(ctx, q)
	if err != nil {
		s.queryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"records":  records,
		"total":    total,
		"per_page": q.PerPage,
		"paged":    q.Paged,
	})
}

func (s *Server) handleRecord(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return
	}
	rec, err := s.store.Get(c.Request.Context(), id)
	if errors.Is(err, duckdb.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("record %d not found", id)})
		return
	}
	if err != nil {
		s.queryError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDelete(c *gin.Context) {
	q, err := bindQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dryRun, _ := strconv.ParseBool(c.Query("dry_run"))
	ctx := c.Request.Context()

	if dryRun {
		matched, err := s.store.FindByQuery(ctx, q)
		if err != nil {
			s.queryError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"matched": len(matched), "deleted": 0, "dry_run": true})
		return
	}

	deleted, err := s.store.DeleteByQuery(ctx, q)
	if errors.Is(err, duckdb.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"matched": 0, "deleted": 0})
		return
	}
	if err != nil {
		s.queryError(c, err)
		return
	}
	s.logger.Info("records deleted via api", "deleted", deleted)
	c.JSON(http.StatusOK, gin.H{"matched": deleted, "deleted": deleted})
}

func (s *Server) queryError(c *gin.Context, err error) {
	if errors.Is(err, duckdb.ErrInvalidFilter) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.logger.Error("query failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
}

// recordParams mirrors the query-string filters.
type recordParams struct {
	Channel   string `form:"channel"`
	Message   string `form:"message"`
	Level     string `form:"level"`
	LevelName string `form:"level_name"`
	Site      string `form:"site"`
	After     string `form:"after"`
	Before    string `form:"before"`
	OrderBy   string `form:"order_by"`
	Order     string `form:"order"`
	PerPage   string `form:"per_page"`
	Paged     string `form:"paged"`
}

// bindQuery converts query-string filters into a model.Query. per_page
// defaults to 10 and -1 returns every match.
func bindQuery(c *gin.Context) (model.Query, error) {
	var p recordParams
	if err := c.ShouldBindQuery(&p); err != nil {
		return model.Query{}, err
	}

	q := model.Query{
		Channel:   p.Channel,
		Message:   p.Message,
		LevelName: p.LevelName,
		After:     p.After,
		Before:    p.Before,
		OrderBy:   p.OrderBy,
		Order:     p.Order,
		PerPage:   model.DefaultPerPage,
		Paged:     1,
	}
	if p.Level != "" {
		level, err := logparse.ParseLevel(p.Level)
		if err != nil {
			return q, err
		}
		q.Level = level
	}
	if p.Site != "" {
		site, err := strconv.ParseInt(p.Site, 10, 64)
		if err != nil {
			return q, fmt.Errorf("site must be an integer")
		}
		q.SiteID = &site
	}
	if p.PerPage != "" {
		n, err := strconv.Atoi(p.PerPage)
		if err != nil {
			return q, fmt.Errorf("per_page must be an integer")
		}
		q.PerPage = n
	}
	if p.Paged != "" {
		n, err := strconv.Atoi(p.Paged)
		if err != nil {
			return q, fmt.Errorf("paged must be an integer")
		}
		q.Paged = n
	}
	return q, nil
}
