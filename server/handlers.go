// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/touristsafety/safemap/api"
	"github.com/touristsafety/safemap/cluster"
	"github.com/touristsafety/safemap/mapview"
	"github.com/touristsafety/safemap/spatial"
	"github.com/touristsafety/safemap/tracking"
)

func (s *Server) fail(ctx *gin.Context, err error) {
	switch {
	case tracking.IsInvalidInput(err):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case tracking.IsNotFound(err):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("Error handling %s %s: %v", ctx.Request.Method, ctx.FullPath(), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server Error: " + err.Error()})
	}
}

func (s *Server) register(ctx *gin.Context) {
	var req api.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})

		return
	}

	t, err := req.Tourist()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	created, err := s.repo.Register(ctx.Request.Context(), t)
	if err != nil {
		s.fail(ctx, err)

		return
	}

	status := http.StatusOK

	if created {
		status = http.StatusCreated

		s.metrics.registrations.Inc()
		log.Printf("[REGISTER] Tourist %s registered at (%f, %f)", t.Name, t.Lat, t.Lng)
	}

	ctx.JSON(status, api.RegisterResponse{Message: "Tourist registered successfully", Tourist: t})
}

func (s *Server) listTourists(ctx *gin.Context) {
	tourists, err := s.repo.List(ctx.Request.Context())
	if err != nil {
		s.fail(ctx, err)

		return
	}

	if q := mapview.Fold(ctx.Query("q")); q != "" {
		keep := make(map[string]bool, len(tourists))
		for _, e := range mapview.Filter(tracking.Entities(tourists), q) {
			keep[e.ID] = true
		}

		filtered := tourists[:0]

		for _, t := range tourists {
			if keep[t.ID] {
				filtered = append(filtered, t)
			}
		}

		tourists = filtered
	}

	ctx.JSON(http.StatusOK, tourists)
}

func (s *Server) updateLocation(ctx *gin.Context) {
	var req api.UpdateLocationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})

		return
	}

	if req.Name == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Name (device id) required"})

		return
	}

	if req.Lat == nil || req.Lon == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon required"})

		return
	}

	u := tracking.LocationUpdate{
		Name:    req.Name,
		Lat:     *req.Lat,
		Lng:     *req.Lon,
		Battery: req.Battery,
	}

	if req.Status != "" {
		st, err := cluster.ParseStatus(req.Status)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		u.Status = &st
	}

	t, err := s.repo.UpdateLocation(ctx.Request.Context(), u)
	if err != nil {
		s.fail(ctx, err)

		return
	}

	s.metrics.updates.Inc()
	log.Printf("[UPDATE] %s moved to lat=%f, lon=%f, battery=%d", t.Name, t.Lat, t.Lng, t.Battery)

	// the position is already stored, broadcast failures are only logged
	if err := s.publisher.Publish(ctx.Request.Context(), tracking.NewUpdate(t)); err != nil {
		log.Printf("Error broadcasting update for %s: %v", t.Name, err)
	}

	ctx.JSON(http.StatusOK, api.UpdateLocationResponse{Message: "Location updated successfully", Tourist: t})
}

func (s *Server) mapClusters(ctx *gin.Context) {
	cfg := s.mapConfig

	if v := ctx.Query("threshold"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold parameter"})

			return
		}

		cfg.Threshold = threshold
	}

	if v := ctx.Query("linkage"); v != "" {
		linkage, err := cluster.ParseLinkage(v)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		cfg.Linkage = linkage
	}

	if err := cfg.Validate(); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	var entities []cluster.Entity

	switch source := ctx.Query("source"); source {
	case "demo":
		entities = mapview.Demo()
	case "", "live":
		tourists, err := s.repo.List(ctx.Request.Context())
		if err != nil {
			s.fail(ctx, err)

			return
		}

		entities = tracking.Entities(tourists)
	default:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "unknown source " + strconv.Quote(source)})

		return
	}

	entities = mapview.Filter(entities, ctx.Query("q"))
	markers := mapview.Layout(entities, cfg)
	s.metrics.markers.Observe(float64(len(markers)))

	ctx.JSON(http.StatusOK, api.MapResponse{
		Bounds:    cfg.Bounds,
		Canvas:    cfg.Canvas,
		Threshold: cfg.Threshold,
		Linkage:   cfg.Linkage.String(),
		Total:     len(entities),
		Markers:   markers,
	})
}

func queryPoint(ctx *gin.Context) (spatial.Point, bool) {
	lat, errLat := strconv.ParseFloat(ctx.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(ctx.Query("lng"), 64)

	if errLat != nil || errLng != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters must be numbers"})

		return spatial.Point{}, false
	}

	return spatial.Point{Lat: lat, Lng: lng}, true
}

func (s *Server) mapProject(ctx *gin.Context) {
	p, ok := queryPoint(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, api.ProjectResponse{
		Point:  p,
		Pixel:  s.mapConfig.Projector().Project(p),
		Inside: s.mapConfig.Bounds.Contains(p),
	})
}

func (s *Server) nearby(ctx *gin.Context) {
	p, ok := queryPoint(ctx)
	if !ok {
		return
	}

	rings := 1

	if v := ctx.Query("rings"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid rings parameter"})

			return
		}

		rings = n
	}

	tourists, err := tracking.Nearby(ctx.Request.Context(), s.repo, p, rings)
	if err != nil {
		s.fail(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, tourists)
}

func (s *Server) healthz(ctx *gin.Context) {
	n, err := s.repo.Count(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ok", "tourists": n, "subscribers": s.hub.Len()})
}
