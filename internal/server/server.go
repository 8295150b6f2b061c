// Package server exposes a Client over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hlop3z/formsandbox/internal/metrics"
	"github.com/hlop3z/formsandbox/pkg/formsandbox"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

// Server routes form requests to a Client.
type Server struct {
	client  *formsandbox.Client
	metrics *metrics.Collector
	logger  *slog.Logger
	router  *gin.Engine
}

// New builds the router. collector may be nil.
func New(client *formsandbox.Client, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{client: client, metrics: collector, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(logger))
	if collector != nil {
		r.Use(MetricsMiddleware(collector))
		r.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	r.GET("/healthz", s.health)
	r.GET("/forms", s.listForms)
	forms := r.Group("/forms/:name")
	{
		forms.GET("", s.getForm)
		forms.POST("/validate", s.validate)
		forms.POST("/evaluate", s.evaluate)
		forms.POST("/captcha", s.issueCaptcha)
	}
	r.POST("/render", s.render)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "address", "http://"+addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server shutdown completed")
	return nil
}
