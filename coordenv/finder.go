package coordenv

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/golang/geo/r3"
)

var ErrCoordinationMismatch = errors.New("coordination number mismatch")

// Options configures a LocalGeometryFinder.
type Options struct {
	Centering                    Centering `yaml:"centering" json:"centering"`
	IncludeCentralSiteInCentroid bool      `yaml:"includeCentralSiteInCentroid" json:"includeCentralSiteInCentroid"`

	// Optimization 0 runs the plain plane search; 1 or more shares fitted planes
	// between the geometries tested on one neighbor set.
	Optimization          int   `yaml:"optimization" json:"optimization"`
	AllCSMs               bool  `yaml:"allCsms" json:"allCsms"`
	PlaneSafePermutations bool  `yaml:"planeSafePermutations" json:"planeSafePermutations"`
	HintExpansion         bool  `yaml:"hintExpansion" json:"hintExpansion"`
	MaxHintDepth          int   `yaml:"maxHintDepth" json:"maxHintDepth"`
	FallbackPermutations  int   `yaml:"fallbackPermutations" json:"fallbackPermutations"`
	RandomSeed            int64 `yaml:"randomSeed" json:"randomSeed"` // 0 seeds from the clock
}

// DefaultOptions returns the settings used by the service.
func DefaultOptions() Options {
	return Options{
		Centering:            CenteringStandard,
		Optimization:         1,
		HintExpansion:        true,
		MaxHintDepth:         2,
		FallbackPermutations: 10,
	}
}

// AlignmentResult is the best match of a neighbor set against one reference geometry.
// Rotation, Scale and Translation map reference points into the observed frame.
type AlignmentResult struct {
	Symbol       string
	Coordination int
	CSM          float64

	// Permutation[i] is the observed neighbor matched to reference point i.
	Permutation   []int
	Algorithm     AlgorithmType
	Rotation      Matrix3
	Scale         float64
	Translation   r3.Vector
	OtherMeasures map[View]Measure
}

// ObservedToReference returns the inverse of Permutation.
func (r AlignmentResult) ObservedToReference() []int {
	return invertPermutation(r.Permutation)
}

// LocalGeometryFinder matches neighbor sets against a catalog. It holds no
// per-query state and may be shared between goroutines.
type LocalGeometryFinder struct {
	catalog *Catalog
	opts    Options
}

// NewLocalGeometryFinder creates a finder over catalog. Zero Centering and
// FallbackPermutations take their defaults.
func NewLocalGeometryFinder(catalog *Catalog, opts Options) *LocalGeometryFinder {
	if opts.Centering == "" {
		opts.Centering = CenteringStandard
	}
	if opts.FallbackPermutations <= 0 {
		opts.FallbackPermutations = 10
	}
	return &LocalGeometryFinder{catalog: catalog, opts: opts}
}

// Catalog returns the catalog the finder matches against.
func (f *LocalGeometryFinder) Catalog() *Catalog { return f.catalog }

// Options returns the finder settings.
func (f *LocalGeometryFinder) Options() Options { return f.opts }

func (f *LocalGeometryFinder) newQuery(central r3.Vector, neighbors []r3.Vector, seed int64) (*query, error) {
	local, err := NewAbstractGeometry(central, neighbors, f.opts.Centering, f.opts.IncludeCentralSiteInCentroid)
	if err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	q := &query{
		catalog: f.catalog,
		opts:    f.opts,
		local:   local,
		rng:     rand.New(rand.NewSource(seed)),
	}
	if f.opts.Optimization >= 1 {
		q.cache = NewNeighborSetCache()
	}
	return q, nil
}

// ComputeAlignment matches the neighbors against one reference geometry.
// A single neighbor always matches with CSM 0.
func (f *LocalGeometryFinder) ComputeAlignment(symbol string, neighbors []r3.Vector, central r3.Vector) (AlignmentResult, error) {
	geom, err := f.catalog.Geometry(symbol)
	if err != nil {
		return AlignmentResult{}, err
	}
	if len(neighbors) != 1 && geom.Coordination != len(neighbors) {
		return AlignmentResult{}, fmt.Errorf("%w: %s has %d points, got %d neighbors", ErrCoordinationMismatch, symbol, geom.Coordination, len(neighbors))
	}
	q, err := f.newQuery(central, neighbors, f.opts.RandomSeed)
	if err != nil {
		return AlignmentResult{}, err
	}
	return q.best(geom)
}

// AllAlignments returns every scored permutation for one geometry, lowest CSM first.
// A single neighbor yields one CSM 0 result, as in ComputeAlignment.
func (f *LocalGeometryFinder) AllAlignments(symbol string, neighbors []r3.Vector, central r3.Vector) ([]AlignmentResult, error) {
	geom, err := f.catalog.Geometry(symbol)
	if err != nil {
		return nil, err
	}
	if len(neighbors) != 1 && geom.Coordination != len(neighbors) {
		return nil, fmt.Errorf("%w: %s has %d points, got %d neighbors", ErrCoordinationMismatch, symbol, geom.Coordination, len(neighbors))
	}
	q, err := f.newQuery(central, neighbors, f.opts.RandomSeed)
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 1 {
		return []AlignmentResult{singleNeighborResult(geom, q.local)}, nil
	}
	cands, err := q.evaluate(geom)
	if err != nil {
		return nil, err
	}
	out := make([]AlignmentResult, len(cands))
	for i, c := range cands {
		out[i] = q.result(geom, c)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].CSM < out[b].CSM })
	return out, nil
}

// ComputeBestMatch ranks the geometries with the same coordination number as the
// neighbor set, lowest CSM first. A non-empty symbols list restricts the candidates;
// symbols of another coordination number are left out.
func (f *LocalGeometryFinder) ComputeBestMatch(neighbors []r3.Vector, central r3.Vector, symbols []string) ([]AlignmentResult, error) {
	return f.computeBestMatch(neighbors, central, symbols, f.opts.RandomSeed)
}

func (f *LocalGeometryFinder) computeBestMatch(neighbors []r3.Vector, central r3.Vector, symbols []string, seed int64) ([]AlignmentResult, error) {
	geoms, err := f.candidates(len(neighbors), symbols)
	if err != nil {
		return nil, err
	}
	q, err := f.newQuery(central, neighbors, seed)
	if err != nil {
		return nil, err
	}
	ranking := make([]AlignmentResult, 0, len(geoms))
	for _, g := range geoms {
		res, err := q.best(g)
		if err != nil {
			return nil, fmt.Errorf("matching %s: %w", g.Symbol, err)
		}
		ranking = append(ranking, res)
	}
	sort.SliceStable(ranking, func(a, b int) bool {
		if ranking[a].CSM != ranking[b].CSM {
			return ranking[a].CSM < ranking[b].CSM
		}
		return ranking[a].Symbol < ranking[b].Symbol
	})
	return ranking, nil
}

func (f *LocalGeometryFinder) candidates(cn int, symbols []string) ([]*ReferenceGeometry, error) {
	if len(symbols) == 0 {
		return f.catalog.ByCoordination(cn), nil
	}
	var out []*ReferenceGeometry
	for _, s := range symbols {
		g, err := f.catalog.Geometry(s)
		if err != nil {
			return nil, err
		}
		if g.Coordination == cn {
			out = append(out, g)
		}
	}
	return out, nil
}

// best returns the minimum-CSM alignment of the query against geom.
func (q *query) best(geom *ReferenceGeometry) (AlignmentResult, error) {
	if q.local.CoordinationNumber() == 1 {
		return singleNeighborResult(geom, q.local), nil
	}
	cands, err := q.evaluate(geom)
	if err != nil {
		return AlignmentResult{}, err
	}
	bestIdx := 0
	for i, c := range cands {
		if c.measure.CSM < cands[bestIdx].measure.CSM {
			bestIdx = i
		}
	}
	res := q.result(geom, cands[bestIdx])
	if q.opts.AllCSMs {
		others, err := q.otherMeasures(geom, res.Permutation)
		if err != nil {
			return AlignmentResult{}, err
		}
		res.OtherMeasures = others
	}
	return res, nil
}

func (q *query) result(geom *ReferenceGeometry, c candidate) AlignmentResult {
	scale := 0.0
	if c.measure.Scale != 0 {
		scale = 1 / c.measure.Scale
	}
	return AlignmentResult{
		Symbol:       geom.Symbol,
		Coordination: geom.Coordination,
		CSM:          c.measure.CSM,
		Permutation:  c.perm,
		Algorithm:    c.algorithm,
		Rotation:     c.measure.Rotation.Transpose(),
		Scale:        scale,
		Translation:  q.local.CentroidWithCentre(),
	}
}

// otherMeasures scores a permutation on all six views.
func (q *query) otherMeasures(geom *ReferenceGeometry, perm []int) (map[View]Measure, error) {
	perfect, err := geom.PerfectGeometry(q.opts.Centering, q.opts.IncludeCentralSiteInCentroid)
	if err != nil {
		return nil, err
	}
	out := make(map[View]Measure, len(AllViews))
	for _, v := range AllViews {
		out[v] = SymmetryMeasure(q.local.PermutedPoints(v, perm), perfect.Points(v))
	}
	return out, nil
}

func singleNeighborResult(geom *ReferenceGeometry, local *AbstractGeometry) AlignmentResult {
	return AlignmentResult{
		Symbol:       geom.Symbol,
		Coordination: geom.Coordination,
		CSM:          0,
		Permutation:  []int{0},
		Algorithm:    AlgorithmSingleNeighbor,
		Rotation:     Identity3(),
		Scale:        1,
		Translation:  local.CentroidWithCentre(),
	}
}
