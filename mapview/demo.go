// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package mapview

import (
	"github.com/touristsafety/safemap/cluster"
	"github.com/touristsafety/safemap/spatial"
)

// Demo returns the fixture of eight tourists around central Delhi that the
// map is drawn with when no live data is available.
func Demo() []cluster.Entity {
	at := func(id, name, group string, lat, lng float64, status cluster.Status) cluster.Entity {
		return cluster.Entity{
			ID:     id,
			Name:   name,
			Group:  group,
			Point:  spatial.Point{Lat: lat, Lng: lng},
			Status: status,
		}
	}

	return []cluster.Entity{
		at("1", "John Doe", "Family Tour", 28.6129, 77.2295, cluster.StatusSafe),
		at("2", "Sarah Smith", "Solo Traveler", 28.6169, 77.2090, cluster.StatusSafe),
		at("3", "Mike Johnson", "Business Trip", 28.6200, 77.2100, cluster.StatusWarning),
		at("4", "Lisa Brown", "Adventure Group", 28.6180, 77.2150, cluster.StatusDanger),
		at("5", "David Wilson", "Emergency", 28.6220, 77.2080, cluster.StatusEmergency),
		at("6", "Emma Davis", "Family Tour", 28.6150, 77.2120, cluster.StatusSafe),
		at("7", "James Taylor", "Solo Traveler", 28.6190, 77.2070, cluster.StatusWarning),
		at("8", "Sophie Anderson", "Student Exchange", 28.6160, 77.2180, cluster.StatusSafe),
	}
}
