package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/kwv/coordenv/coordenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeQueries_SingleObject(t *testing.T) {
	queries, err := DecodeQueries([]byte(`{"id":"a","central":[0,0,1],"neighbors":[[1,0,0],[0,1,0]],"symbols":["L:2"]}`))
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, "a", queries[0].ID)
	assert.Equal(t, [3]float64{0, 0, 1}, queries[0].Central)
	assert.Equal(t, []string{"L:2"}, queries[0].Symbols)
}

func TestDecodeQueries_ArrayAssignsIDs(t *testing.T) {
	queries, err := DecodeQueries([]byte(` [{"neighbors":[[1,0,0]]},{"id":"b","neighbors":[[0,1,0]]}]`))
	require.NoError(t, err)
	require.Len(t, queries, 2)

	_, err = uuid.Parse(queries[0].ID)
	assert.NoError(t, err, "missing id should be replaced by a uuid")
	assert.Equal(t, "b", queries[1].ID)
}

func TestDecodeQueries_Errors(t *testing.T) {
	for _, payload := range []string{"", "   ", "[]"} {
		_, err := DecodeQueries([]byte(payload))
		assert.ErrorIs(t, err, ErrEmptyQuery, "payload %q", payload)
	}

	_, err := DecodeQueries([]byte(`{"neighbors": "nope"}`))
	assert.Error(t, err)
	_, err = DecodeQueries([]byte(`[{"neighbors": 3}]`))
	assert.Error(t, err)
}

func TestSiteQuery_Site(t *testing.T) {
	site := octahedronQuery.Site()
	assert.Equal(t, "oct", site.ID)
	assert.Equal(t, r3.Vector{X: 1, Y: 1, Z: 1}, site.Central)
	require.Len(t, site.Neighbors, 6)
	assert.Equal(t, r3.Vector{X: 2, Y: 1, Z: 1}, site.Neighbors[1])
}

func TestNewSiteResult(t *testing.T) {
	report := coordenv.SiteReport{
		ID:       "s1",
		Duration: 1500 * time.Microsecond,
		Environments: []coordenv.NeighborSetResult{{
			Indices: []int{0, 1, 2, 3},
			Source:  "input",
			Ranking: []coordenv.AlignmentResult{{
				Symbol:        "T:4",
				CSM:           0.25,
				Permutation:   []int{2, 0, 1, 3},
				Algorithm:     coordenv.AlgorithmExplicit,
				Rotation:      coordenv.Identity3(),
				Scale:         2,
				Translation:   r3.Vector{X: 1, Y: 2, Z: 3},
				OtherMeasures: map[coordenv.View]coordenv.Measure{coordenv.ViewWOCSCSC: {CSM: 0.5}},
			}},
		}},
	}

	res := NewSiteResult(report)
	assert.Equal(t, "s1", res.ID)
	assert.InDelta(t, 1.5, res.DurationMs, 1e-9)
	assert.Empty(t, res.Error)
	require.Len(t, res.Environments, 1)
	require.Len(t, res.Environments[0].Ranking, 1)

	m := res.Environments[0].Ranking[0]
	assert.Equal(t, "EXPLICIT_PERMUTATIONS", m.Algorithm)
	assert.Equal(t, [3]float64{1, 2, 3}, m.Translation)
	assert.Equal(t, [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, m.Rotation)
	assert.Equal(t, map[string]float64{"wocs_csc": 0.5}, m.OtherMeasures)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"symbol":"T:4"`)
	assert.NotContains(t, string(data), `"skipped"`)
}

func TestNewSiteResult_Error(t *testing.T) {
	res := NewSiteResult(coordenv.SiteReport{ID: "x", Err: coordenv.ErrNoNeighbors, Representative: "y"})
	assert.Equal(t, coordenv.ErrNoNeighbors.Error(), res.Error)
	assert.Equal(t, "y", res.Representative)
	assert.Empty(t, res.Environments)
}
