// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/touristsafety/safemap/spatial"
	"github.com/uber/h3-go/v4"
)

// MaxRings bounds the h3 disk searched by Nearby.
const MaxRings = 10

// Nearby returns the tourists whose resolution 8 cell lies within rings
// steps of the cell containing p. Results are ordered by distance to p.
func Nearby(ctx context.Context, repo Repository, p spatial.Point, rings int) ([]*Tourist, error) {
	if err := validatePoint(p.Lat, p.Lng); err != nil {
		return nil, err
	}

	if rings < 0 || rings > MaxRings {
		return nil, invalidf("rings must be between 0 and %d, got %d", MaxRings, rings)
	}

	origin, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), h3Resolution)
	if err != nil {
		return nil, fmt.Errorf("error converting to h3 cell at res %d: %w", h3Resolution, err)
	}

	disk, err := h3.GridDisk(origin, rings)
	if err != nil {
		return nil, fmt.Errorf("computing grid disk of %d rings: %w", rings, err)
	}

	cells := make([]int64, len(disk))
	for i, c := range disk {
		cells[i] = int64(c)
	}

	tourists, err := repo.ListByCells(ctx, cells)
	if err != nil {
		return nil, err
	}

	sortByDistance(tourists, p)

	return tourists, nil
}

func sortByDistance(tourists []*Tourist, p spatial.Point) {
	dist := make(map[*Tourist]float64, len(tourists))
	for _, t := range tourists {
		tp := t.Point()
		dist[t] = p.HaversineDistance(&tp)
	}

	slices.SortStableFunc(tourists, func(a, b *Tourist) int {
		return cmp.Compare(dist[a], dist[b])
	})
}
