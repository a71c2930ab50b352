package service

import (
	"testing"

	"github.com/kwv/coordenv/coordenv"
	"github.com/stretchr/testify/require"
)

var octahedronQuery = SiteQuery{
	ID:      "oct",
	Central: [3]float64{1, 1, 1},
	Neighbors: [][3]float64{
		{1, 1, 2}, {2, 1, 1}, {1, 2, 1}, {0, 1, 1}, {1, 0, 1}, {1, 1, 0},
	},
}

var tetrahedronQuery = SiteQuery{
	ID: "tet",
	Neighbors: [][3]float64{
		{1, 1, 1}, {1, -1, -1}, {-1, 1, -1}, {-1, -1, 1},
	},
}

func testFinder(t *testing.T) *coordenv.LocalGeometryFinder {
	t.Helper()
	catalog, err := coordenv.DefaultCatalog()
	require.NoError(t, err)
	opts := coordenv.DefaultOptions()
	opts.RandomSeed = 7
	return coordenv.NewLocalGeometryFinder(catalog, opts)
}
