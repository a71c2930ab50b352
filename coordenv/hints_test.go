package coordenv

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandHints_DoubleCap(t *testing.T) {
	catalog := testCatalog(t)
	finder := NewLocalGeometryFinder(catalog, testOptions(1))
	g, err := catalog.Geometry("PB:7")
	require.NoError(t, err)

	res, err := finder.ComputeAlignment("PB:7", g.Points, r3.Vector{})
	require.NoError(t, err)
	require.InDelta(t, 0, res.CSM, 1e-10)

	subsets, err := finder.ExpandHints(res)
	require.NoError(t, err)
	assert.ElementsMatch(t, [][]int{
		{1, 2, 3, 4, 5, 6},
		{0, 1, 2, 3, 4, 5},
		{1, 2, 3, 4, 5},
	}, subsets)
}

func TestExpandHints_TripleCap(t *testing.T) {
	catalog := testCatalog(t)
	g, err := catalog.Geometry("TT:9")
	require.NoError(t, err)
	res := AlignmentResult{Symbol: "TT:9", CSM: 1, Permutation: rangeFrom(0, 9)}

	subsets, err := NewLocalGeometryFinder(catalog, testOptions(1)).ExpandHints(res)
	require.NoError(t, err)
	require.Len(t, subsets, 7)
	sizes := map[int]int{}
	for _, s := range subsets {
		sizes[len(s)]++
	}
	assert.Equal(t, map[int]int{8: 3, 7: 3, 6: 1}, sizes)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, subsets[6])
	assert.Len(t, g.Hints, 1)
}

func TestExpandHints_Gates(t *testing.T) {
	finder := NewLocalGeometryFinder(testCatalog(t), testOptions(1))

	subsets, err := finder.ExpandHints(AlignmentResult{Symbol: "PB:7", CSM: 50, Permutation: rangeFrom(0, 7)})
	require.NoError(t, err)
	assert.Empty(t, subsets)

	subsets, err = finder.ExpandHints(AlignmentResult{Symbol: "O:6", CSM: 0, Permutation: []int{5, 1, 2, 3, 4, 0}})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1, 2, 3, 4}}, subsets)

	subsets, err = finder.ExpandHints(AlignmentResult{Symbol: "T:4", Permutation: rangeFrom(0, 4)})
	require.NoError(t, err)
	assert.Empty(t, subsets)

	_, err = finder.ExpandHints(AlignmentResult{Symbol: "nope"})
	assert.ErrorIs(t, err, ErrUnknownGeometry)
}

func TestComputeEnvironments_FollowsHints(t *testing.T) {
	catalog := testCatalog(t)
	g, err := catalog.Geometry("PB:7")
	require.NoError(t, err)
	finder := NewLocalGeometryFinder(catalog, testOptions(1))

	envs, err := finder.ComputeEnvironments(g.Points, r3.Vector{}, nil)
	require.NoError(t, err)
	require.Len(t, envs, 4)

	assert.Equal(t, "input", envs[0].Source)
	best, ok := envs[0].Best()
	require.True(t, ok)
	assert.Equal(t, "PB:7", best.Symbol)

	bySize := map[int]string{}
	for _, env := range envs[1:] {
		assert.Equal(t, "PB:7", env.Source)
		assert.Equal(t, 1, env.Depth)
		best, ok := env.Best()
		require.True(t, ok)
		assert.InDelta(t, 0, best.CSM, 1e-8, "subset %v", env.Indices)
		bySize[len(env.Indices)] = best.Symbol
	}
	assert.Equal(t, map[int]string{6: "PP:6", 5: "PP:5"}, bySize)
}

func TestComputeEnvironments_NoExpansion(t *testing.T) {
	catalog := testCatalog(t)
	g, err := catalog.Geometry("PB:7")
	require.NoError(t, err)
	opts := testOptions(1)
	opts.HintExpansion = false

	envs, err := NewLocalGeometryFinder(catalog, opts).ComputeEnvironments(g.Points, r3.Vector{}, nil)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, rangeFrom(0, 7), envs[0].Indices)
}

func TestComputeEnvironments_SkipsSubsetsBelowCentering(t *testing.T) {
	catalog := testCatalog(t)
	g, err := catalog.Geometry("S:5")
	require.NoError(t, err)
	opts := testOptions(1)
	opts.Centering = CenteringStandard
	opts.IncludeCentralSiteInCentroid = true
	finder := NewLocalGeometryFinder(catalog, opts)

	// Removing the apex leaves four neighbors, which this centering rejects.
	_, err = finder.ComputeBestMatch(g.Points[1:], g.Central, nil)
	require.ErrorIs(t, err, ErrInvalidCentering)

	envs, err := finder.ComputeEnvironments(g.Points, g.Central, nil)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "input", envs[0].Source)
	best, ok := envs[0].Best()
	require.True(t, ok)
	assert.Equal(t, "S:5", best.Symbol)
}
