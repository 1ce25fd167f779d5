// Copyright 2025 The SafeMap Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import "math"

// Projector maps geographic points inside Bounds linearly onto Canvas.
//
// Points outside Bounds are pinned to the nearest canvas edge. NaN coordinates
// are not guarded and come out as NaN pixels.
type Projector struct {
	Bounds BoundingBox
	Canvas Canvas
}

// NewProjector returns a Projector for the given region and canvas.
func NewProjector(bounds BoundingBox, canvas Canvas) Projector {
	return Projector{Bounds: bounds, Canvas: canvas}
}

// Project returns the pixel for p.
func (pr Projector) Project(p Point) Pixel {
	b := pr.Bounds

	x := ((p.Lng - b.MinLng) / (b.MaxLng - b.MinLng)) * pr.Canvas.Width
	// latitude grows northward, pixel y grows downward
	y := ((b.MaxLat - p.Lat) / (b.MaxLat - b.MinLat)) * pr.Canvas.Height

	return Pixel{
		X: clamp(x, pr.Canvas.Width),
		Y: clamp(y, pr.Canvas.Height),
	}
}

// clamp pins v into [0, limit]. NaN passes through.
func clamp(v, limit float64) float64 {
	return math.Max(0, math.Min(limit, v))
}
