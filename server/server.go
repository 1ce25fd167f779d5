// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes tourist tracking and the map layout over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/touristsafety/safemap/mapview"
	"github.com/touristsafety/safemap/tracking"
	"golang.org/x/net/netutil"
)

// DefaultAddr is where the server listens when no address is configured.
const DefaultAddr = "localhost:8000"

// Server serves the tracking API, the live update feed and the map layout.
type Server struct {
	repo      tracking.Repository
	hub       *tracking.Hub
	publisher tracking.Publisher
	mapConfig mapview.Config
	metrics   *metrics
}

// Option customizes a Server.
type Option func(*Server)

// WithPublisher sends location updates through p instead of straight to the
// hub. Used to route updates through the Redis relay.
func WithPublisher(p tracking.Publisher) Option {
	return func(s *Server) {
		s.publisher = p
	}
}

// WithMapConfig replaces the default Delhi map.
func WithMapConfig(cfg mapview.Config) Option {
	return func(s *Server) {
		s.mapConfig = cfg
	}
}

// NewServer creates a server over repo that broadcasts updates through hub.
func NewServer(repo tracking.Repository, hub *tracking.Hub, opts ...Option) *Server {
	s := &Server{
		repo:      repo,
		hub:       hub,
		publisher: hub,
		mapConfig: mapview.DefaultConfig(),
		metrics:   newMetrics(hub),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), allowAnyOrigin(), s.metrics.middleware())

	r.POST("/register", s.register)
	r.GET("/tourists", s.listTourists)
	r.POST("/update-location", s.updateLocation)
	r.GET("/ws", s.streamUpdates)

	api := r.Group("/api")
	api.GET("/map/clusters", s.mapClusters)
	api.GET("/map/project", s.mapProject)
	api.GET("/tourists/nearby", s.nearby)

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", s.metrics.handler())

	return r
}

// Run serves until ctx is cancelled. maxConns caps concurrent connections
// when positive.
func (s *Server) Run(ctx context.Context, addr string, maxConns int) error {
	if addr == "" {
		addr = DefaultAddr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)

	go func() {
		log.Printf("Serving on http://%s", ln.Addr())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.hub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// allowAnyOrigin lets the browser dashboards call the API from any host.
func allowAnyOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)

			return
		}

		c.Next()
	}
}
