// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package mapview turns tracked entities into markers on the illustrative map.
package mapview

import (
	"errors"
	"fmt"
	"math"

	"github.com/touristsafety/safemap/cluster"
	"github.com/touristsafety/safemap/spatial"
	"gonum.org/v1/gonum/stat"
)

// Config describes one map instance.
type Config struct {
	Bounds    spatial.BoundingBox `json:"bounds"`
	Canvas    spatial.Canvas      `json:"canvas"`
	Threshold float64             `json:"threshold"`
	Linkage   cluster.Linkage     `json:"-"`
}

// DefaultConfig returns the central Delhi map used by the dashboards.
func DefaultConfig() Config {
	return Config{
		Bounds: spatial.BoundingBox{
			MinLat: 28.5500,
			MaxLat: 28.6500,
			MinLng: 77.1800,
			MaxLng: 77.2400,
		},
		Canvas:    spatial.Canvas{Width: 800, Height: 600},
		Threshold: cluster.DefaultThreshold,
		Linkage:   cluster.RepresentativeLinkage,
	}
}

// Validate checks the configuration before it is used to serve maps.
func (c Config) Validate() error {
	var errs []error

	if err := c.Bounds.Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := c.Canvas.Validate(); err != nil {
		errs = append(errs, err)
	}

	if !(c.Threshold > 0) || math.IsInf(c.Threshold, 0) {
		errs = append(errs, fmt.Errorf("mapview: threshold must be a positive number, got %g", c.Threshold))
	}

	return errors.Join(errs...)
}

// Projector returns the projector for this map.
func (c Config) Projector() spatial.Projector {
	return spatial.NewProjector(c.Bounds, c.Canvas)
}

// ClusterOptions returns the clusterer options for this map.
func (c Config) ClusterOptions() cluster.Options {
	return cluster.Options{
		Threshold: c.Threshold,
		Linkage:   c.Linkage,
		Distance:  spatial.PlanarDistance,
	}
}

// Marker is one drawable map symbol, either a single entity or an aggregate.
type Marker struct {
	Key            string           `json:"key"`
	X              float64          `json:"x"`
	Y              float64          `json:"y"`
	Count          int              `json:"count"`
	IsCluster      bool             `json:"is_cluster"`
	Representative cluster.Entity   `json:"representative"`
	Members        []cluster.Entity `json:"members"`
	Centroid       spatial.Point    `json:"centroid"`
	Severity       cluster.Status   `json:"severity"`
}

// Layout clusters entities and places every cluster on the canvas.
func Layout(entities []cluster.Entity, cfg Config) []Marker {
	return Place(cluster.Group(entities, cfg.ClusterOptions()), cfg.Projector())
}

// Place positions each cluster at its representative's pixel.
func Place(res *cluster.Result, pr spatial.Projector) []Marker {
	markers := make([]Marker, 0, res.Len())

	for _, c := range res.Clusters() {
		rep := c.Representative()
		px := pr.Project(rep.Point)

		markers = append(markers, Marker{
			Key:            c.Key,
			X:              px.X,
			Y:              px.Y,
			Count:          c.Len(),
			IsCluster:      c.Len() > 1,
			Representative: rep,
			Members:        c.Members,
			Centroid:       centroid(c.Members),
			Severity:       severity(c.Members),
		})
	}

	return markers
}

func centroid(members []cluster.Entity) spatial.Point {
	lats := make([]float64, len(members))
	lngs := make([]float64, len(members))

	for i, m := range members {
		lats[i] = m.Lat
		lngs[i] = m.Lng
	}

	return spatial.Point{
		Lat: stat.Mean(lats, nil),
		Lng: stat.Mean(lngs, nil),
	}
}

// severity returns the most severe status among members.
func severity(members []cluster.Entity) cluster.Status {
	worst := members[0].Status
	for _, m := range members[1:] {
		if m.Status.Severity() > worst.Severity() {
			worst = m.Status
		}
	}

	return worst
}
