package coordenv

import (
	"errors"
	"log"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat/combin"
)

// ExpandHints proposes reduced neighbor subsets from the hints of the matched
// geometry. Subsets are sorted observed indices; removing one, two or three caps
// yields 1, 3 or 7 subsets per hint. Hints whose CSM limit is exceeded are ignored.
func (f *LocalGeometryFinder) ExpandHints(result AlignmentResult) ([][]int, error) {
	geom, err := f.catalog.Geometry(result.Symbol)
	if err != nil {
		return nil, err
	}
	if result.Algorithm == AlgorithmSingleNeighbor || len(result.Permutation) != geom.Coordination {
		return nil, nil
	}

	seen := make(map[string]bool)
	var out [][]int
	for _, h := range geom.Hints {
		if result.CSM > h.CSMMax {
			continue
		}
		caps := make([]int, len(h.CapIndices))
		for i, ref := range h.CapIndices {
			caps[i] = result.Permutation[ref]
		}
		for k := 1; k <= len(caps); k++ {
			for _, combo := range combin.Combinations(len(caps), k) {
				removed := make(map[int]bool, k)
				for _, c := range combo {
					removed[caps[c]] = true
				}
				subset := make([]int, 0, geom.Coordination-k)
				for i := 0; i < geom.Coordination; i++ {
					if !removed[i] {
						subset = append(subset, i)
					}
				}
				if key := subsetKey(subset); !seen[key] {
					seen[key] = true
					out = append(out, subset)
				}
			}
		}
	}
	return out, nil
}

// NeighborSetResult is the ranking of one neighbor subset of a site.
type NeighborSetResult struct {
	Indices []int  // observed neighbor indices in the subset
	Source  string // "input" or the hinted geometry symbol
	Depth   int
	Ranking []AlignmentResult
}

// Best returns the lowest-CSM alignment, if any.
func (r NeighborSetResult) Best() (AlignmentResult, bool) {
	if len(r.Ranking) == 0 {
		return AlignmentResult{}, false
	}
	return r.Ranking[0], true
}

// ComputeEnvironments ranks the full neighbor set and, with hint expansion enabled,
// every subset proposed by the best match of a ranked set, down to MaxHintDepth.
// The symbols filter applies to the full set only.
func (f *LocalGeometryFinder) ComputeEnvironments(neighbors []r3.Vector, central r3.Vector, symbols []string) ([]NeighborSetResult, error) {
	return f.computeEnvironments(neighbors, central, symbols, f.opts.RandomSeed)
}

func (f *LocalGeometryFinder) computeEnvironments(neighbors []r3.Vector, central r3.Vector, symbols []string, seed int64) ([]NeighborSetResult, error) {
	type item struct {
		indices []int
		source  string
		depth   int
	}
	work := []item{{indices: rangeFrom(0, len(neighbors)), source: "input"}}
	visited := map[string]bool{subsetKey(work[0].indices): true}

	var out []NeighborSetResult
	for len(work) > 0 {
		it := work[0]
		work = work[1:]

		var filter []string
		if it.depth == 0 {
			filter = symbols
		}
		pts := make([]r3.Vector, len(it.indices))
		for i, idx := range it.indices {
			pts[i] = neighbors[idx]
		}
		ranking, err := f.computeBestMatch(pts, central, filter, seed)
		if err != nil {
			// a hinted subset can fall below what the centering policy accepts
			if it.depth > 0 && errors.Is(err, ErrInvalidCentering) {
				log.Printf("Skipping %s hint subset %v: %v", it.source, it.indices, err)
				continue
			}
			return nil, err
		}
		out = append(out, NeighborSetResult{Indices: it.indices, Source: it.source, Depth: it.depth, Ranking: ranking})

		if !f.opts.HintExpansion || it.depth >= f.opts.MaxHintDepth || len(ranking) == 0 {
			continue
		}
		subsets, err := f.ExpandHints(ranking[0])
		if err != nil {
			return nil, err
		}
		for _, sub := range subsets {
			mapped := make([]int, len(sub))
			for i, local := range sub {
				mapped[i] = it.indices[local]
			}
			key := subsetKey(mapped)
			if visited[key] {
				continue
			}
			visited[key] = true
			work = append(work, item{indices: mapped, source: ranking[0].Symbol, depth: it.depth + 1})
		}
	}
	return out, nil
}
