// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"fmt"
	"strings"

	"github.com/touristsafety/safemap/spatial"
)

// Status is the safety state reported for a tracked entity.
type Status string

const (
	StatusSafe      Status = "safe"
	StatusWarning   Status = "warning"
	StatusDanger    Status = "danger"
	StatusEmergency Status = "emergency"
)

// Severity ranks statuses from 1 (safe) to 4 (emergency). Unknown values rank 0.
func (s Status) Severity() int {
	switch s {
	case StatusSafe:
		return 1
	case StatusWarning:
		return 2
	case StatusDanger:
		return 3
	case StatusEmergency:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s.Severity() > 0
}

// ParseStatus converts a case-insensitive name into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}

	return st, nil
}

// Entity is a trackable item drawn on the map, typically a tourist.
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	spatial.Point
	Status Status `json:"status"`
	Group  string `json:"group,omitempty"`
}
