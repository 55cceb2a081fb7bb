// Package metricsserver runs a minimal gin HTTP server exposing only a
// health check and the Prometheus scrape endpoint, the sliver of the
// teacher's API surface that still makes sense for a single local
// process with no job-CRUD-over-HTTP surface of its own.
package metricsserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps an http.Server running gin's router.
type Server struct {
	httpServer *http.Server
}

// New builds a Server bound to addr (e.g. ":9090"). The handler exposes
// GET /healthz (always 200 once the process is up) and GET /metrics
// (the Prometheus default registry).
func New(addr string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: router,
		},
	}
}

// Start runs the server until ctx is cancelled, then shuts it down with
// a 5-second grace period. ListenAndServe's ErrServerClosed is swallowed
// since it just means that shutdown ran.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
