// Copyright 2025 The SafeMap Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"errors"
	"fmt"
	"math"
)

const earthRadius = 6371e3 // meters

// Point represents a geographical point with latitude and longitude in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lng, p.Lat)
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p *Point) HaversineDistance(other *Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// PlanarDistance is the Euclidean distance between a and b measured directly on
// degrees. Longitude is not scaled by latitude.
func PlanarDistance(a, b Point) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng

	return math.Sqrt(dLat*dLat + dLng*dLng)
}

// BoundingBox is a rectangular geographic region.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// Contains reports whether p lies inside the box, edges included.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Center returns the middle of the box.
func (b BoundingBox) Center() Point {
	return Point{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lng: (b.MinLng + b.MaxLng) / 2,
	}
}

// Validate rejects boxes with an empty or inverted extent on either axis.
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.MinLat, b.MaxLat, b.MinLng, b.MaxLng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("spatial: bounding box has non-finite bounds")
		}
	}

	if b.MaxLat <= b.MinLat {
		return fmt.Errorf("spatial: max latitude %f must be greater than min latitude %f", b.MaxLat, b.MinLat)
	}

	if b.MaxLng <= b.MinLng {
		return fmt.Errorf("spatial: max longitude %f must be greater than min longitude %f", b.MaxLng, b.MinLng)
	}

	return nil
}

// Canvas is the pixel surface a map is drawn on.
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate rejects canvases without a positive area.
func (c Canvas) Validate() error {
	if !(c.Width > 0) || !(c.Height > 0) {
		return fmt.Errorf("spatial: canvas must have positive dimensions, got %gx%g", c.Width, c.Height)
	}

	return nil
}

// Pixel is a position on a Canvas. Y grows downward.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
