// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"fmt"
	"strings"

	"github.com/touristsafety/safemap/spatial"
)

// DefaultThreshold is the grouping distance in raw degrees, roughly 500m.
const DefaultThreshold = 0.005

// DistanceFunc measures the distance between two points. The unit must match
// Options.Threshold.
type DistanceFunc func(a, b spatial.Point) float64

// HaversineMeters is a DistanceFunc returning great-circle meters.
func HaversineMeters(a, b spatial.Point) float64 {
	return a.HaversineDistance(&b)
}

// Linkage selects how candidates are tested for membership.
type Linkage int

const (
	// RepresentativeLinkage compares candidates against the first member only.
	// Two members can therefore be further apart than the threshold.
	RepresentativeLinkage Linkage = iota
	// SingleLinkage admits a candidate close to any member and repeats until
	// no more candidates join.
	SingleLinkage
)

func (l Linkage) String() string {
	switch l {
	case RepresentativeLinkage:
		return "representative"
	case SingleLinkage:
		return "single"
	default:
		return fmt.Sprintf("Linkage(%d)", int(l))
	}
}

// ParseLinkage accepts "representative" or "single". An empty string selects
// RepresentativeLinkage.
func ParseLinkage(s string) (Linkage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "representative":
		return RepresentativeLinkage, nil
	case "single":
		return SingleLinkage, nil
	default:
		return 0, fmt.Errorf("unknown linkage %q (want representative or single)", s)
	}
}

// Options configures Group. A nil Distance means planar degree distance.
// Threshold is used as given: with zero nothing is close enough to join, so
// start from DefaultOptions to get DefaultThreshold.
type Options struct {
	Threshold float64
	Linkage   Linkage
	Distance  DistanceFunc
}

// DefaultOptions returns the options used by the map view.
func DefaultOptions() Options {
	return Options{
		Threshold: DefaultThreshold,
		Linkage:   RepresentativeLinkage,
		Distance:  spatial.PlanarDistance,
	}
}

// Cluster is a non-empty group of entities. Members[0] is the representative.
type Cluster struct {
	Key     string   `json:"key"`
	Members []Entity `json:"members"`
}

// Representative returns the entity that anchors the cluster.
func (c *Cluster) Representative() Entity {
	return c.Members[0]
}

// Len returns the number of members.
func (c *Cluster) Len() int {
	return len(c.Members)
}

// Result holds clusters in the order they were created.
type Result struct {
	clusters []*Cluster
	byKey    map[string]*Cluster
}

// Len returns the number of clusters.
func (r *Result) Len() int {
	return len(r.clusters)
}

// Clusters returns the clusters in creation order.
func (r *Result) Clusters() []*Cluster {
	return r.clusters
}

// Keys returns cluster keys in creation order.
func (r *Result) Keys() []string {
	keys := make([]string, len(r.clusters))
	for i, c := range r.clusters {
		keys[i] = c.Key
	}

	return keys
}

// Get looks up a cluster by key.
func (r *Result) Get(key string) (*Cluster, bool) {
	c, ok := r.byKey[key]

	return c, ok
}

// Map returns a copy of the result as key -> members.
func (r *Result) Map() map[string][]Entity {
	m := make(map[string][]Entity, len(r.clusters))
	for _, c := range r.clusters {
		m[c.Key] = append([]Entity(nil), c.Members...)
	}

	return m
}

func (r *Result) add(members []Entity) {
	rep := members[0]
	base := Key(rep.Point)

	key := base
	for n := 2; ; n++ {
		if _, taken := r.byKey[key]; !taken {
			break
		}

		key = fmt.Sprintf("%s#%d", base, n)
	}

	c := &Cluster{Key: key, Members: members}
	r.clusters = append(r.clusters, c)
	r.byKey[key] = c
}

// Key formats a point as "lat_lng" rounded to four decimals.
func Key(p spatial.Point) string {
	return fmt.Sprintf("%.4f_%.4f", p.Lat, p.Lng)
}

// Group partitions entities into clusters in a single greedy pass.
//
// Entities are visited in input order. Each unvisited entity opens a cluster
// and claims every later unvisited entity closer than opts.Threshold. The
// result depends on input order. Every entity ends up in exactly one cluster.
// A NaN distance never compares below the threshold, so an entity with NaN
// coordinates becomes a singleton.
func Group(entities []Entity, opts Options) *Result {
	if opts.Distance == nil {
		opts.Distance = spatial.PlanarDistance
	}

	res := &Result{
		clusters: make([]*Cluster, 0, len(entities)),
		byKey:    make(map[string]*Cluster, len(entities)),
	}

	visited := make([]bool, len(entities))

	for i, e := range entities {
		if visited[i] {
			continue
		}

		members := []Entity{e}
		visited[i] = true

		// earlier entities are all visited already, so the scan starts after i
		for anchor := 0; anchor < len(members); anchor++ {
			ref := members[anchor].Point

			for j := i + 1; j < len(entities); j++ {
				if visited[j] {
					continue
				}

				if opts.Distance(ref, entities[j].Point) < opts.Threshold {
					members = append(members, entities[j])
					visited[j] = true
				}
			}

			if opts.Linkage != SingleLinkage {
				break
			}
		}

		res.add(members)
	}

	return res
}
