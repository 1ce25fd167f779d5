// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package api holds the JSON bodies exchanged by the server and its clients.
package api

import (
	"errors"
	"strings"

	"github.com/touristsafety/safemap/cluster"
	"github.com/touristsafety/safemap/mapview"
	"github.com/touristsafety/safemap/spatial"
	"github.com/touristsafety/safemap/tracking"
)

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Name        string   `json:"name"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Group       string   `json:"group,omitempty"`
	Status      string   `json:"status,omitempty"`
	SafetyScore *int     `json:"safety_score,omitempty"`
	Battery     *int     `json:"battery,omitempty"`
}

// Tourist builds the tourist to store, applying defaults for omitted fields.
func (r RegisterRequest) Tourist() (*tracking.Tourist, error) {
	if r.Lat == nil || r.Lon == nil {
		return nil, errors.New("lat and lon required")
	}

	t := tracking.NewTourist(r.Name, spatial.Point{Lat: *r.Lat, Lng: *r.Lon})
	t.Group = r.Group

	if r.Status != "" {
		t.Status = cluster.Status(strings.ToLower(r.Status))
	}

	if r.SafetyScore != nil {
		t.SafetyScore = *r.SafetyScore
	}

	if r.Battery != nil {
		t.Battery = *r.Battery
	}

	return t, nil
}

// RegisterResponse is the reply to POST /register.
type RegisterResponse struct {
	Message string            `json:"message"`
	Tourist *tracking.Tourist `json:"tourist"`
}

// UpdateLocationRequest is the body of POST /update-location.
type UpdateLocationRequest struct {
	Name    string   `json:"name"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Battery *int     `json:"battery,omitempty"`
	Status  string   `json:"status,omitempty"`
}

// UpdateLocationResponse is the reply to POST /update-location.
type UpdateLocationResponse struct {
	Message string            `json:"message"`
	Tourist *tracking.Tourist `json:"tourist"`
}

// MapResponse is the reply to GET /api/map/clusters.
type MapResponse struct {
	Bounds    spatial.BoundingBox `json:"bounds"`
	Canvas    spatial.Canvas      `json:"canvas"`
	Threshold float64             `json:"threshold"`
	Linkage   string              `json:"linkage"`
	Total     int                 `json:"total"`
	Markers   []mapview.Marker    `json:"markers"`
}

// ProjectResponse is the reply to GET /api/map/project.
type ProjectResponse struct {
	Point  spatial.Point `json:"point"`
	Pixel  spatial.Pixel `json:"pixel"`
	Inside bool          `json:"inside"`
}
