// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package server implements the hazsim HTTP API.
//
// Routes:
//
//	GET    /                   service banner
//	GET    /health             liveness
//	GET    /metrics            prometheus metrics
//	GET    /api/               service banner
//	POST   /api/parse          parse and store an expression
//	POST   /api/detect         race and hazard detection
//	POST   /api/simulate       evaluate a circuit for an input assignment
//	GET    /api/circuits       list stored circuits
//	GET    /api/circuits/:id   stored circuit with its detection results
//	DELETE /api/circuits/:id   delete a stored circuit
//
// Every error response has the form {"status": "error", "message": "..."}.
//
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/db47h/hazsim/detect"
	"github.com/db47h/hazsim/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
)

// Version is reported by the banner routes.
//
const Version = "1.0"

const serviceName = "hazsim"

var tracer = otel.Tracer("hazsim/server")

// Options configures a Server.
//
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Registry receives the server metrics and is served on /metrics. If nil,
	// a new registry is created.
	Registry *prometheus.Registry
	// CORSOrigins lists allowed origins. "*" or an empty list allows any.
	CORSOrigins []string
	// Detect is the base configuration of every detection run. Its Logger
	// field is ignored.
	Detect detect.Options
}

// Server serves the HTTP API on top of a circuit store.
//
type Server struct {
	store   *store.Store
	log     *slog.Logger
	detect  detect.Options
	metrics *Metrics
	router  *gin.Engine
	now     func() time.Time
}

// New returns a new server using st for persistence.
//
func New(st *store.Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		store:   st,
		log:     opts.Logger,
		detect:  opts.Detect,
		metrics: NewMetrics(reg),
		now:     time.Now,
	}
	s.detect.Logger = opts.Logger

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests, s.metrics.middleware)
	r.Use(otelgin.Middleware(serviceName))
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))

	r.GET("/", s.handleIndex)
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("/", s.handleIndex)
	api.POST("/parse", s.handleParse)
	api.POST("/detect", s.handleDetect)
	api.POST("/simulate", s.handleSimulate)
	api.GET("/circuits", s.handleListCircuits)
	api.GET("/circuits/:id", s.handleGetCircuit)
	api.DELETE("/circuits/:id", s.handleDeleteCircuit)

	s.router = r
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	for _, o := range origins {
		if o == "*" {
			origins = nil
			break
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Handler returns the server's HTTP handler.
//
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves the API on addr until ctx is done, then shuts the server down
// gracefully.
//
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	lvl := slog.LevelInfo
	if c.Writer.Status() >= http.StatusInternalServerError {
		lvl = slog.LevelError
	}
	s.log.Log(c.Request.Context(), lvl, "request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start))
}
