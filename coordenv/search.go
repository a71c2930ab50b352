package coordenv

import (
	"log"
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat/combin"
)

// distanceTolerances are tried from tightest to loosest, in units of the mean
// neighbor distance from the centre.
var distanceTolerances = []float64{0.01, 0.025, 0.05, 0.1, 0.15}

// groupDeltaFactor separates distance groups in the cached plane search.
const groupDeltaFactor = 0.1

// candidate is one scored permutation.
type candidate struct {
	perm      []int // reference index -> observed index
	measure   Measure
	algorithm AlgorithmType
}

// query is the evaluation context of one neighbor set.
type query struct {
	catalog *Catalog
	opts    Options
	local   *AbstractGeometry
	cache   *NeighborSetCache // nil below optimization level 1
	rng     *rand.Rand
}

// evaluate scores the geometry with each of its algorithms.
func (q *query) evaluate(geom *ReferenceGeometry) ([]candidate, error) {
	perfect, err := geom.PerfectGeometry(q.opts.Centering, q.opts.IncludeCentralSiteInCentroid)
	if err != nil {
		return nil, err
	}
	target := perfect.Points(ViewWCSCTWCC)

	var out []candidate
	for _, algo := range geom.Algorithms {
		switch a := algo.(type) {
		case *ExplicitPermutations:
			out = append(out, q.explicit(a, target)...)
		case *SeparationPlane:
			var found []candidate
			if q.cache != nil {
				found = q.separationPlaneCached(geom.Coordination, a, target)
			} else {
				found = q.separationPlaneStandard(a, target)
			}
			if len(found) == 0 {
				log.Printf("No separation plane found for %s, scoring %d random permutations", geom.Symbol, q.opts.FallbackPermutations)
				found = q.fallback(geom.Coordination, target)
			}
			out = append(out, found...)
		}
	}
	return out, nil
}

func (q *query) score(perm []int, target []r3.Vector, algo AlgorithmType) candidate {
	distorted := q.local.PermutedPoints(ViewWCSCTWCC, perm)
	return candidate{perm: perm, measure: SymmetryMeasure(distorted, target), algorithm: algo}
}

func (q *query) explicit(a *ExplicitPermutations, target []r3.Vector) []candidate {
	out := make([]candidate, 0, len(a.Permutations))
	for _, perm := range a.Permutations {
		out = append(out, q.score(perm, target, AlgorithmExplicit))
	}
	return out
}

// separationPlaneStandard fits planes through growing subsets and stops at the
// first subset size that produced a matching separation.
func (q *query) separationPlaneStandard(sp *SeparationPlane, target []r3.Vector) []candidate {
	coords := q.local.LocalCoordinates()
	radius := q.local.meanRadius()
	sig := sp.Signature()
	seen := make(map[string]bool)

	var out []candidate
	for npoints := max(sp.MinimumNumberOfPoints, 1); npoints <= min(sp.MaximumNumberOfPoints, 4, len(coords)); npoints++ {
		nplanes := 0
		for _, subset := range combin.Combinations(len(coords), npoints) {
			plane, err := q.fitPlane(subset)
			if err != nil {
				continue
			}
			for _, tol := range distanceTolerances {
				sep := plane.IndicesSeparate(coords, tol*radius).Sorted()
				key := sep.Key()
				if seen[key] {
					continue
				}
				seen[key] = true
				if sep.Signature() != sig {
					continue
				}
				found := q.evaluateSeparation(sp, plane, sep, target)
				if len(found) > 0 {
					nplanes++
					out = append(out, found...)
				}
			}
		}
		if nplanes > 0 {
			break
		}
	}
	return out
}

// separationPlaneCached reuses separations found for earlier geometries of the
// same neighbor set, then fits the subsets not tried yet.
func (q *query) separationPlaneCached(cn int, sp *SeparationPlane, target []r3.Vector) []candidate {
	coords := q.local.LocalCoordinates()
	sig := sp.Signature()

	var out []candidate
	for _, ps := range q.cache.Separations(sig) {
		out = append(out, q.evaluateSeparation(sp, ps.Plane, ps.Separation, target)...)
	}

	minPoints, maxPoints, maxInPlane := q.catalog.PlanePointBounds(cn)
	var fresh []PlaneSeparation
	for npoints := max(minPoints, 2); npoints <= min(maxPoints, 3, len(coords)); npoints++ {
		for _, subset := range combin.Combinations(len(coords), npoints) {
			if _, ok := q.cache.Plane(subset); ok {
				continue
			}
			plane, err := q.fitPlane(subset)
			q.cache.StorePlane(subset, plane, err)
			if err != nil {
				continue
			}
			groups := plane.DistancesIndicesGroups(coords, groupDeltaFactor)
			var inPlane []int
			for ng, group := range groups.Groups {
				inPlane = append(inPlane, group...)
				if len(inPlane) > maxInPlane {
					break
				}
				var sep Separation
				sep[1] = append([]int(nil), inPlane...)
				for _, rest := range groups.Groups[ng+1:] {
					for _, idx := range rest {
						if groups.Distances[idx] < 0 {
							sep[0] = append(sep[0], idx)
						} else {
							sep[2] = append(sep[2], idx)
						}
					}
				}
				sep = sep.Sorted()
				if !q.catalog.HasSeparation(cn, sep.Signature()) {
					continue
				}
				if q.cache.AddSeparation(plane, sep) && sep.Signature() == sig {
					fresh = append(fresh, PlaneSeparation{Plane: plane, Separation: sep})
				}
			}
		}
	}
	for _, ps := range fresh {
		out = append(out, q.evaluateSeparation(sp, ps.Plane, ps.Separation, target)...)
	}
	return out
}

// fitPlane fits a plane through the subset; two points are completed with the central site.
func (q *query) fitPlane(subset []int) (Plane, error) {
	coords := q.local.LocalCoordinates()
	pts := make([]r3.Vector, 0, len(subset)+1)
	for _, idx := range subset {
		pts = append(pts, coords[idx])
	}
	if len(pts) == 2 {
		pts = append(pts, q.local.LocalCentralSite())
	}
	return PlaneFromPoints(pts)
}

// evaluateSeparation scores every plane permutation of an observed separation whose
// signature matches sp. Equal sides are tried in both orientations.
func (q *query) evaluateSeparation(sp *SeparationPlane, plane Plane, sep Separation, target []r3.Vector) []candidate {
	if sep.Signature() != sp.Signature() {
		return nil
	}
	orientations := []Separation{sep}
	if len(sep[0]) == len(sep[2]) && len(sep[0]) > 0 {
		orientations = append(orientations, sep.Mirrored())
	}
	perms := sp.Permutations()
	if q.opts.PlaneSafePermutations {
		perms = sp.SafePermutations(sp.OrderedPlane, sp.OrderedPointGroups, false)
	}

	coords := q.local.LocalCoordinates()
	var out []candidate
	for _, o := range orientations {
		ordered := Separation{o[0], o[1], o[2]}
		if sp.OrderedPlane {
			ordered[1] = plane.ProjectedOrder(coords, o[1])
		}
		if sp.OrderedPointGroups[0] {
			ordered[0] = plane.ProjectedOrder(coords, o[0])
		}
		if sp.OrderedPointGroups[1] {
			ordered[2] = plane.ProjectedOrder(coords, o[2])
		}
		observed := ordered.Flatten()
		for _, sepPerm := range perms {
			out = append(out, q.score(sp.referencePermutation(observed, sepPerm), target, AlgorithmSeparationPlane))
		}
	}
	return out
}

// fallback scores random permutations when no separation plane matched.
func (q *query) fallback(n int, target []r3.Vector) []candidate {
	out := make([]candidate, 0, q.opts.FallbackPermutations)
	for i := 0; i < q.opts.FallbackPermutations; i++ {
		out = append(out, q.score(q.rng.Perm(n), target, AlgorithmFallback))
	}
	return out
}
