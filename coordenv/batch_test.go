package coordenv

import (
	"context"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSites() []Site {
	return []Site{
		{ID: "oct-a", Neighbors: octahedron, Group: "oct"},
		{ID: "tet", Neighbors: tetrahedron, Central: r3.Vector{}},
		{ID: "oct-b", Neighbors: octahedron, Group: "oct"},
		{ID: "empty"},
	}
}

func TestComputeSites(t *testing.T) {
	finder := NewLocalGeometryFinder(testCatalog(t), testOptions(1))

	reports, err := finder.ComputeSites(context.Background(), testSites(), BatchOptions{Workers: 2})
	require.NoError(t, err)
	require.Len(t, reports, 4)

	best, ok := reports[0].Environments[0].Best()
	require.True(t, ok)
	assert.Equal(t, "O:6", best.Symbol)
	assert.False(t, reports[0].Skipped)

	best, ok = reports[1].Environments[0].Best()
	require.True(t, ok)
	assert.Equal(t, "T:4", best.Symbol)

	assert.Equal(t, "oct-a", reports[2].Representative)
	assert.Equal(t, reports[0].Environments, reports[2].Environments)

	assert.ErrorIs(t, reports[3].Err, ErrNoNeighbors)
	assert.Empty(t, reports[3].Environments)
}

func TestComputeSites_CatalogErrorAborts(t *testing.T) {
	finder := NewLocalGeometryFinder(testCatalog(t), testOptions(1))
	sites := []Site{{ID: "bad", Neighbors: octahedron, Symbols: []string{"ZZ:6"}}}

	_, err := finder.ComputeSites(context.Background(), sites, BatchOptions{Workers: 1})
	assert.ErrorIs(t, err, ErrUnknownGeometry)
}

func TestComputeSites_CancelledSkipsEverything(t *testing.T) {
	finder := NewLocalGeometryFinder(testCatalog(t), testOptions(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports, err := finder.ComputeSites(ctx, testSites(), BatchOptions{Workers: 2})
	require.NoError(t, err)
	for _, r := range reports {
		assert.True(t, r.Skipped, r.ID)
		assert.Empty(t, r.Environments, r.ID)
	}
}

func TestBudgetTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := start
	tracker := &budgetTracker{now: func() time.Time { return clock }, start: start, budget: 10 * time.Second}

	assert.True(t, tracker.allow())

	clock = start.Add(8 * time.Second)
	tracker.record(500 * time.Millisecond)
	assert.True(t, tracker.allow(), "2s left covers twice the slowest site")

	tracker.record(1500 * time.Millisecond)
	assert.False(t, tracker.allow(), "2s left is less than twice 1.5s")

	clock = start.Add(11 * time.Second)
	tracker.record(0)
	assert.False(t, tracker.allow())

	unlimited := &budgetTracker{now: time.Now, start: start}
	assert.True(t, unlimited.allow())
}
