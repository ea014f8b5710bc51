//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package mockfeed serves synthetic stock summary feeds over HTTP for
// local end-to-end runs.
package mockfeed

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-stock-ingest/internal/config"
	"github.com/pgEdge/pgedge-stock-ingest/internal/datagen"
	"github.com/pgEdge/pgedge-stock-ingest/internal/logging"
	"github.com/pgEdge/pgedge-stock-ingest/internal/stock"
	"github.com/pgEdge/pgedge-stock-ingest/pkg/version"
)

const shutdownTimeout = 5 * time.Second

// Server is a synthetic feed server.
//
//	GET /                 feed for today, or ?date=YYYY-MM-DD
//	GET /empty            {"data": []}
//	GET /garbage          a body that is not JSON
//	GET /status/:code     an error status
//	GET /slow?delay=35s   a feed served after delay
//	GET /healthz          liveness
type Server struct {
	cfg    config.MockConfig
	router *gin.Engine
	now    func() time.Time
}

// New creates a Server for cfg.
func New(cfg config.MockConfig) *Server {
	s := &Server{cfg: cfg, now: time.Now}
	s.router = s.buildRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on cfg.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", s.cfg.Addr).
			Int("items", s.cfg.Items).
			Float64("malformed", s.cfg.Malformed).
			Msg("Serving mock feed")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogging())

	router.GET("/", s.serveFeed)
	router.GET("/slow", s.serveSlow)
	router.GET("/empty", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": []any{}})
	})
	router.GET("/garbage", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(`{"data": [{"StockCode": `))
	})
	router.GET("/status/:code", func(c *gin.Context) {
		code, err := strconv.Atoi(c.Param("code"))
		if err != nil || code < 400 || code > 599 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code must be between 400 and 599"})
			return
		}
		c.JSON(code, gin.H{"error": http.StatusText(code)})
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Short()})
	})

	return router
}

func (s *Server) serveFeed(c *gin.Context) {
	date := s.now()
	if d := c.Query("date"); d != "" {
		parsed, err := time.Parse(stock.DateLayout, d)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = parsed
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	items := s.cfg.Items
	if n := c.Query("items"); n != "" {
		v, err := strconv.Atoi(n)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "items must be a non-negative integer"})
			return
		}
		items = v
	}

	body, err := s.generator(date).Payload(items)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

func (s *Server) serveSlow(c *gin.Context) {
	delay, err := time.ParseDuration(c.DefaultQuery("delay", "35s"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delay"})
		return
	}

	select {
	case <-time.After(delay):
		s.serveFeed(c)
	case <-c.Request.Context().Done():
	}
}

// generator returns a feed generator for date. With a fixed seed the
// same date always yields the same feed.
func (s *Server) generator(date time.Time) *datagen.FeedGenerator {
	faker := datagen.NewFaker()
	if s.cfg.Seed != 0 {
		faker = datagen.NewFakerWithSeed(s.cfg.Seed + uint64(date.Unix()))
	}
	return datagen.NewFeedGenerator(faker, date).WithMalformed(s.cfg.Malformed)
}

func requestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := uuid.NewString()
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Writer.Header().Set("Server", version.UserAgent())

		c.Next()

		logging.Info().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("user_agent", c.Request.UserAgent()).
			Msg("Request")
	}
}
