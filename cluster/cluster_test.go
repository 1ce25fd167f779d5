// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touristsafety/safemap/spatial"
)

func entity(id string, lat, lng float64) Entity {
	return Entity{ID: id, Name: "tourist " + id, Point: spatial.Point{Lat: lat, Lng: lng}, Status: StatusSafe}
}

// delhiTourists mirrors the positions shown on the demo map.
func delhiTourists() []Entity {
	return []Entity{
		entity("1", 28.6129, 77.2295),
		entity("2", 28.6169, 77.2090),
		entity("3", 28.6200, 77.2100),
		entity("4", 28.6180, 77.2150),
		entity("5", 28.6220, 77.2080),
		entity("6", 28.6150, 77.2120),
		entity("7", 28.6190, 77.2070),
		entity("8", 28.6160, 77.2180),
	}
}

func memberIDs(c *Cluster) []string {
	ids := make([]string, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.ID
	}

	return ids
}

func resultIDs(r *Result) map[string][]string {
	out := make(map[string][]string, r.Len())
	for _, c := range r.Clusters() {
		out[c.Key] = memberIDs(c)
	}

	return out
}

func TestGroupDelhiTourists(t *testing.T) {
	res := Group(delhiTourists(), DefaultOptions())

	want := map[string][]string{
		"28.6129_77.2295": {"1"},
		"28.6169_77.2090": {"2", "3", "6", "7"},
		"28.6180_77.2150": {"4", "8"},
		"28.6220_77.2080": {"5"},
	}
	if diff := cmp.Diff(want, resultIDs(res)); diff != "" {
		t.Errorf("Group() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{"28.6129_77.2295", "28.6169_77.2090", "28.6180_77.2150", "28.6220_77.2080"}, res.Keys())
}

func TestGroupSingleLinkageMergesChains(t *testing.T) {
	opts := DefaultOptions()
	opts.Linkage = SingleLinkage

	res := Group(delhiTourists(), opts)

	want := map[string][]string{
		"28.6129_77.2295": {"1"},
		"28.6169_77.2090": {"2", "3", "6", "7", "5", "4", "8"},
	}
	if diff := cmp.Diff(want, resultIDs(res)); diff != "" {
		t.Errorf("Group() mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupComparesAgainstRepresentativeOnly(t *testing.T) {
	in := []Entity{
		entity("p", 0, 0),
		entity("east", 0, 0.004),
		entity("west", 0, -0.004),
	}

	res := Group(in, DefaultOptions())
	require.Equal(t, 1, res.Len())
	assert.Equal(t, []string{"p", "east", "west"}, memberIDs(res.Clusters()[0]))

	// the same points in another order no longer share a cluster
	res = Group([]Entity{in[1], in[0], in[2]}, DefaultOptions())
	assert.Equal(t, map[string][]string{
		"0.0000_0.0040":  {"east", "p"},
		"0.0000_-0.0040": {"west"},
	}, resultIDs(res))
}

func TestGroupThresholdScenarios(t *testing.T) {
	near := Group([]Entity{entity("a", 28.6139, 77.2090), entity("b", 28.6149, 77.2090)}, DefaultOptions())
	require.Equal(t, 1, near.Len())
	assert.Equal(t, []string{"a", "b"}, memberIDs(near.Clusters()[0]))

	far := Group([]Entity{entity("a", 28.6139, 77.2090), entity("b", 28.6239, 77.2090)}, DefaultOptions())
	assert.Equal(t, 2, far.Len())
}

func TestGroupEdgeCases(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		res := Group(nil, DefaultOptions())
		assert.Zero(t, res.Len())
		assert.Empty(t, res.Map())
	})

	t.Run("single", func(t *testing.T) {
		res := Group([]Entity{entity("only", 28.6, 77.2)}, DefaultOptions())
		require.Equal(t, 1, res.Len())

		c, ok := res.Get("28.6000_77.2000")
		require.True(t, ok)
		assert.Equal(t, "only", c.Representative().ID)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("identical locations", func(t *testing.T) {
		in := []Entity{entity("a", 1, 1), entity("b", 1, 1), entity("c", 1, 1)}
		res := Group(in, DefaultOptions())
		require.Equal(t, 1, res.Len())
		assert.Equal(t, []string{"a", "b", "c"}, memberIDs(res.Clusters()[0]))
	})

	t.Run("NaN coordinates become singletons", func(t *testing.T) {
		in := []Entity{
			entity("nan", math.NaN(), 77.2),
			entity("a", 28.6, 77.2),
			entity("b", 28.6, 77.2001),
		}
		res := Group(in, DefaultOptions())
		require.Equal(t, 2, res.Len())
		assert.Equal(t, []string{"nan"}, memberIDs(res.Clusters()[0]))
		assert.Equal(t, []string{"a", "b"}, memberIDs(res.Clusters()[1]))
	})

	t.Run("duplicate ids are kept", func(t *testing.T) {
		in := []Entity{entity("dup", 0, 0), entity("dup", 0, 0)}
		res := Group(in, DefaultOptions())
		require.Equal(t, 1, res.Len())
		assert.Equal(t, 2, res.Clusters()[0].Len())
	})
}

func TestGroupKeyCollisionKeepsBothClusters(t *testing.T) {
	in := []Entity{entity("a", 10.00001, 20), entity("b", 10.00004, 20)}

	res := Group(in, Options{Threshold: 0.00001})

	assert.Equal(t, []string{"10.0000_20.0000", "10.0000_20.0000#2"}, res.Keys())
	assert.Len(t, res.Map(), 2)
}

func TestGroupHaversineMeters(t *testing.T) {
	in := []Entity{entity("a", 28.6139, 77.2090), entity("b", 28.6149, 77.2090)}

	assert.Equal(t, 1, Group(in, Options{Threshold: 150, Distance: HaversineMeters}).Len())
	assert.Equal(t, 2, Group(in, Options{Threshold: 100, Distance: HaversineMeters}).Len())
}

func TestGroupZeroThresholdKeepsEntitiesApart(t *testing.T) {
	in := []Entity{
		entity("a", 28.6139, 77.2090),
		entity("b", 28.6139, 77.2090),
		entity("c", 28.6140, 77.2090),
	}

	res := Group(in, Options{})
	assert.Equal(t, 3, res.Len())

	for _, c := range res.Clusters() {
		assert.Len(t, c.Members, 1)
	}
}

func TestGroupPartitionsInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, linkage := range []Linkage{RepresentativeLinkage, SingleLinkage} {
		in := make([]Entity, 300)
		for i := range in {
			in[i] = entity(fmt.Sprint(i), 28.55+rng.Float64()*0.1, 77.18+rng.Float64()*0.06)
		}

		res := Group(in, Options{Threshold: DefaultThreshold, Linkage: linkage})

		seen := make(map[string]int, len(in))
		for _, c := range res.Clusters() {
			require.NotEmpty(t, c.Members)

			for _, m := range c.Members {
				seen[m.ID]++
			}
		}

		require.Len(t, seen, len(in), linkage.String())

		for id, n := range seen {
			assert.Equal(t, 1, n, "entity %s seen %d times with %s linkage", id, n, linkage)
		}
	}
}

func TestGroupRepresentativeIsFirstOpener(t *testing.T) {
	res := Group(delhiTourists(), DefaultOptions())

	for _, c := range res.Clusters() {
		rep := c.Representative()
		assert.Equal(t, Key(rep.Point), c.Key)

		for _, m := range c.Members[1:] {
			assert.Less(t, spatial.PlanarDistance(rep.Point, m.Point), DefaultThreshold)
		}
	}
}

func TestParseLinkage(t *testing.T) {
	l, err := ParseLinkage("")
	require.NoError(t, err)
	assert.Equal(t, RepresentativeLinkage, l)

	l, err = ParseLinkage(" Single ")
	require.NoError(t, err)
	assert.Equal(t, SingleLinkage, l)

	_, err = ParseLinkage("complete")
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("Emergency")
	require.NoError(t, err)
	assert.Equal(t, StatusEmergency, s)
	assert.Greater(t, StatusEmergency.Severity(), StatusDanger.Severity())

	_, err = ParseStatus("lost")
	assert.Error(t, err)
	assert.False(t, Status("").Valid())
}
