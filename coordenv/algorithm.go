package coordenv

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat/combin"
)

// AlgorithmType tags how an alignment was found.
type AlgorithmType string

const (
	AlgorithmExplicit        AlgorithmType = "EXPLICIT_PERMUTATIONS"
	AlgorithmSeparationPlane AlgorithmType = "SEPARATION_PLANE"
	AlgorithmFallback        AlgorithmType = "APPROXIMATE_FALLBACK"
	AlgorithmSingleNeighbor  AlgorithmType = "SINGLE_NEIGHBOR"
)

var ErrInvalidAlgorithm = errors.New("invalid matching algorithm")

// MatchingAlgorithm is implemented only by *ExplicitPermutations and *SeparationPlane.
// Search code switches over the two concrete types.
type MatchingAlgorithm interface {
	Type() AlgorithmType
	sealed()
}

// ExplicitPermutations scores every listed permutation.
type ExplicitPermutations struct {
	Permutations [][]int
}

func (*ExplicitPermutations) Type() AlgorithmType { return AlgorithmExplicit }
func (*ExplicitPermutations) sealed()             {}

// NewExplicitPermutations validates perms against n points. With no perms all n! orderings are used.
func NewExplicitPermutations(n int, perms [][]int) (*ExplicitPermutations, error) {
	if len(perms) == 0 {
		if n < 1 || n > 8 {
			return nil, fmt.Errorf("%w: refusing to enumerate %d! permutations", ErrInvalidAlgorithm, n)
		}
		return &ExplicitPermutations{Permutations: combin.Permutations(n, n)}, nil
	}
	for _, p := range perms {
		if err := checkPermutation(p, n); err != nil {
			return nil, err
		}
	}
	return &ExplicitPermutations{Permutations: perms}, nil
}

// SeparationPlane describes the reference partition (A, plane, B) of the points.
type SeparationPlane struct {
	PlanePoints           []int
	PointGroups           [2][]int
	OrderedPlane          bool
	OrderedPointGroups    [2]bool
	MinimumNumberOfPoints int
	MaximumNumberOfPoints int

	refSeparationPerm []int // A + plane + B
	argsortedRef      []int
	permutations      [][]int
}

func (*SeparationPlane) Type() AlgorithmType { return AlgorithmSeparationPlane }
func (*SeparationPlane) sealed()             {}

// SeparationPlaneParams holds the fields used to build a SeparationPlane.
type SeparationPlaneParams struct {
	PlanePoints           []int
	PointGroups           [2][]int
	OrderedPlane          bool
	OrderedPointGroups    [2]bool
	MinimumNumberOfPoints int
	Permutations          [][]int // optional reduced list over separation positions
}

// NewSeparationPlane validates params for a geometry of n points.
func NewSeparationPlane(n int, params SeparationPlaneParams) (*SeparationPlane, error) {
	a, b := params.PointGroups[0], params.PointGroups[1]
	if len(a) > len(b) {
		return nil, fmt.Errorf("%w: first point group (%d) larger than second (%d)", ErrInvalidAlgorithm, len(a), len(b))
	}
	ref := Separation{a, params.PlanePoints, b}.Flatten()
	if err := checkPermutation(ref, n); err != nil {
		return nil, fmt.Errorf("separation plane: %w", err)
	}
	minPoints := params.MinimumNumberOfPoints
	if minPoints == 0 {
		minPoints = 2
	}
	sp := &SeparationPlane{
		PlanePoints:           params.PlanePoints,
		PointGroups:           params.PointGroups,
		OrderedPlane:          params.OrderedPlane,
		OrderedPointGroups:    params.OrderedPointGroups,
		MinimumNumberOfPoints: minPoints,
		MaximumNumberOfPoints: len(params.PlanePoints),
		refSeparationPerm:     ref,
		argsortedRef:          argsort(ref),
	}
	if len(params.Permutations) > 0 {
		for _, p := range params.Permutations {
			if err := checkPermutation(p, n); err != nil {
				return nil, err
			}
		}
		sp.permutations = params.Permutations
	} else {
		sp.permutations = sp.SafePermutations(sp.OrderedPlane, sp.OrderedPointGroups, false)
	}
	return sp, nil
}

// Signature is (|A|, |P|, |B|).
func (sp *SeparationPlane) Signature() Signature {
	return Signature{len(sp.PointGroups[0]), len(sp.PlanePoints), len(sp.PointGroups[1])}
}

// Permutations are the separation-position permutations tried for each matching plane.
func (sp *SeparationPlane) Permutations() [][]int { return sp.permutations }

// SafePermutations generates permutations of separation positions that keep each
// point in its part. Ordered parts contribute their rotations and reflections,
// unordered parts all their orderings. With addOpposite and equal sides, the
// sides are also exchanged.
func (sp *SeparationPlane) SafePermutations(orderedPlane bool, orderedGroups [2]bool, addOpposite bool) [][]int {
	na, np, nb := len(sp.PointGroups[0]), len(sp.PlanePoints), len(sp.PointGroups[1])
	partOptions := func(start, size int, ordered bool) [][]int {
		items := rangeFrom(start, size)
		if ordered {
			return cyclicOrders(items)
		}
		return orderings(items)
	}
	perms := concatProduct(
		partOptions(0, na, orderedGroups[0]),
		partOptions(na, np, orderedPlane),
		partOptions(na+np, nb, orderedGroups[1]),
	)
	if addOpposite && na == nb {
		n := len(perms)
		for _, p := range perms[:n] {
			opp := make([]int, 0, len(p))
			opp = append(opp, p[na+np:]...)
			opp = append(opp, p[na:na+np]...)
			perms = append(perms, append(opp, p[:na]...))
		}
	}
	return perms
}

// referencePermutation maps a permutation of separation positions applied to an
// observed separation ordering onto a reference→observed index permutation.
func (sp *SeparationPlane) referencePermutation(observed []int, sepPerm []int) []int {
	perm := make([]int, len(sepPerm))
	for ref, pos := range sp.argsortedRef {
		perm[ref] = observed[sepPerm[pos]]
	}
	return perm
}

func checkPermutation(p []int, n int) error {
	if len(p) != n {
		return fmt.Errorf("%w: permutation %v has %d entries, want %d", ErrInvalidAlgorithm, p, len(p), n)
	}
	seen := make([]bool, n)
	for _, v := range p {
		if v < 0 || v >= n || seen[v] {
			return fmt.Errorf("%w: %v is not a permutation of 0..%d", ErrInvalidAlgorithm, p, n-1)
		}
		seen[v] = true
	}
	return nil
}
