// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/touristsafety/safemap/cluster"
	"github.com/touristsafety/safemap/spatial"
	"github.com/uber/h3-go/v4"
)

const (
	// DefaultSafetyScore is assigned to tourists registered without a score.
	DefaultSafetyScore = 70
	// DefaultBattery is assigned to devices registered without a battery level.
	DefaultBattery = 100

	h3Resolution = 8
)

// Tourist is a registered device and its last known position.
type Tourist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Group       string         `json:"group,omitempty"`
	Lat         float64        `json:"lat"`
	Lng         float64        `json:"lon"`
	Status      cluster.Status `json:"status"`
	SafetyScore int            `json:"safety_score"`
	Battery     int            `json:"battery"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	H3Res8      int64          `json:"-"`
}

// NewTourist returns a tourist with default status, score and battery.
func NewTourist(name string, p spatial.Point) *Tourist {
	return &Tourist{
		Name:        name,
		Lat:         p.Lat,
		Lng:         p.Lng,
		Status:      cluster.StatusSafe,
		SafetyScore: DefaultSafetyScore,
		Battery:     DefaultBattery,
	}
}

// Point returns the tourist's position.
func (t *Tourist) Point() spatial.Point {
	return spatial.Point{Lat: t.Lat, Lng: t.Lng}
}

// Entity converts the tourist into a map entity.
func (t *Tourist) Entity() cluster.Entity {
	return cluster.Entity{
		ID:     t.ID,
		Name:   t.Name,
		Point:  t.Point(),
		Status: t.Status,
		Group:  t.Group,
	}
}

// Entities converts a list of tourists into map entities, keeping order.
func Entities(tourists []*Tourist) []cluster.Entity {
	out := make([]cluster.Entity, len(tourists))
	for i, t := range tourists {
		out[i] = t.Entity()
	}

	return out
}

// Validate checks the fields a client can set.
func (t *Tourist) Validate() error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return invalidf("name (device id) required")
	}

	if err := validatePoint(t.Lat, t.Lng); err != nil {
		return err
	}

	if t.Status == "" {
		t.Status = cluster.StatusSafe
	}

	if !t.Status.Valid() {
		return invalidf("unknown status %q", t.Status)
	}

	if err := validatePercent("safety_score", t.SafetyScore); err != nil {
		return err
	}

	return validatePercent("battery", t.Battery)
}

func (t *Tourist) computeH3() error {
	cell, err := h3.LatLngToCell(h3.NewLatLng(t.Lat, t.Lng), h3Resolution)
	if err != nil {
		return fmt.Errorf("error converting to h3 cell at res %d: %w", h3Resolution, err)
	}

	t.H3Res8 = int64(cell)

	return nil
}

func validatePoint(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return invalidf("latitude %v out of range", lat)
	}

	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return invalidf("longitude %v out of range", lng)
	}

	return nil
}

func validatePercent(field string, v int) error {
	if v < 0 || v > 100 {
		return invalidf("%s must be between 0 and 100, got %d", field, v)
	}

	return nil
}

// LocationUpdate is a position report from a device. Nil fields keep their
// stored value.
type LocationUpdate struct {
	Name    string
	Lat     float64
	Lng     float64
	Battery *int
	Status  *cluster.Status
}

// Validate checks the report before it is applied.
func (u *LocationUpdate) Validate() error {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return invalidf("name (device id) required")
	}

	if err := validatePoint(u.Lat, u.Lng); err != nil {
		return err
	}

	if u.Battery != nil {
		if err := validatePercent("battery", *u.Battery); err != nil {
			return err
		}
	}

	if u.Status != nil && !u.Status.Valid() {
		return invalidf("unknown status %q", *u.Status)
	}

	return nil
}

func (u *LocationUpdate) apply(t *Tourist) {
	t.Lat = u.Lat
	t.Lng = u.Lng

	if u.Battery != nil {
		t.Battery = *u.Battery
	}

	if u.Status != nil {
		t.Status = *u.Status
	}
}
