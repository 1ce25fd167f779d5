// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package mapview

import (
	"strings"
	"unicode"

	"github.com/touristsafety/safemap/cluster"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold normalizes a string by removing accents, lowercasing, and trimming spaces.
func Fold(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.TrimSpace(strings.ToLower(s)),
	)

	return s
}

// Filter keeps the entities whose name or group contains query. Matching
// ignores case and accents. An empty query keeps everything.
func Filter(entities []cluster.Entity, query string) []cluster.Entity {
	q := Fold(query)
	if q == "" {
		return entities
	}

	out := make([]cluster.Entity, 0, len(entities))
	for _, e := range entities {
		if strings.Contains(Fold(e.Name), q) || strings.Contains(Fold(e.Group), q) {
			out = append(out, e)
		}
	}

	return out
}
