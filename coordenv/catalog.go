package coordenv

import (
	_ "embed"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/golang/geo/r3"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

var ErrUnknownGeometry = errors.New("unknown coordination geometry")

// HintType names a cap-removal rule.
type HintType string

const (
	HintSingleCap HintType = "single_cap"
	HintDoubleCap HintType = "double_cap"
	HintTripleCap HintType = "triple_cap"
)

// NeighborSetHint proposes smaller neighbor sets by removing cap points.
// Cap indices refer to reference points.
type NeighborSetHint struct {
	Type       HintType
	CapIndices []int
	CSMMax     float64
}

// ReferenceGeometry is an idealized coordination polyhedron centered at the origin.
// It is immutable once the catalog is built.
type ReferenceGeometry struct {
	Symbol       string
	Name         string
	IUPAC        string
	Coordination int
	Points       []r3.Vector
	Central      r3.Vector
	Algorithms   []MatchingAlgorithm
	Hints        []NeighborSetHint
}

// PerfectGeometry normalizes the reference points with the given centering.
func (g *ReferenceGeometry) PerfectGeometry(centering Centering, includeCentral bool) (*AbstractGeometry, error) {
	return NewAbstractGeometry(g.Central, g.Points, centering, includeCentral)
}

// Catalog is the read-only library of reference geometries.
type Catalog struct {
	geometries []*ReferenceGeometry
	bySymbol   map[string]*ReferenceGeometry
	byCN       map[int][]*ReferenceGeometry

	separations      map[int]map[Signature][]string
	minPoints        map[int]int
	maxPoints        map[int]int
	maxPointsInPlane map[int]int
}

// GeometryRecord is the stored form of one reference geometry.
type GeometryRecord struct {
	Symbol       string            `yaml:"symbol"`
	Name         string            `yaml:"name"`
	IUPAC        string            `yaml:"iupac,omitempty"`
	Coordination int               `yaml:"coordination"`
	Points       [][3]float64      `yaml:"points"`
	Central      *[3]float64       `yaml:"central,omitempty"`
	Algorithms   []AlgorithmRecord `yaml:"algorithms"`
	Hints        []HintRecord      `yaml:"hints,omitempty"`
}

// AlgorithmRecord is the stored form of a MatchingAlgorithm.
type AlgorithmRecord struct {
	Type                  string  `yaml:"type"` // explicit_permutations | separation_plane
	PlanePoints           []int   `yaml:"planePoints,omitempty"`
	PointGroups           [][]int `yaml:"pointGroups,omitempty"`
	OrderedPlane          bool    `yaml:"orderedPlane,omitempty"`
	OrderedPointGroups    []bool  `yaml:"orderedPointGroups,omitempty"`
	MinimumNumberOfPoints int     `yaml:"minimumNumberOfPoints,omitempty"`
	Permutations          [][]int `yaml:"permutations,omitempty"`
}

// HintRecord is the stored form of a NeighborSetHint.
type HintRecord struct {
	Type   string  `yaml:"type"`
	Caps   []int   `yaml:"caps"`
	CSMMax float64 `yaml:"csmMax"`
}

type catalogFile struct {
	Geometries []GeometryRecord `yaml:"geometries"`
}

var (
	defaultCatalog     *Catalog
	defaultCatalogErr  error
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the embedded catalog, built once and shared.
func DefaultCatalog() (*Catalog, error) {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = LoadCatalog(defaultCatalogYAML)
		if defaultCatalogErr == nil {
			log.Printf("Loaded %d reference geometries", len(defaultCatalog.geometries))
		}
	})
	return defaultCatalog, defaultCatalogErr
}

// LoadCatalog parses YAML geometry records.
func LoadCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return NewCatalog(f.Geometries)
}

// NewCatalog validates records and builds the lookup indexes.
func NewCatalog(records []GeometryRecord) (*Catalog, error) {
	c := &Catalog{
		bySymbol:         make(map[string]*ReferenceGeometry),
		byCN:             make(map[int][]*ReferenceGeometry),
		separations:      make(map[int]map[Signature][]string),
		minPoints:        make(map[int]int),
		maxPoints:        make(map[int]int),
		maxPointsInPlane: make(map[int]int),
	}
	for _, rec := range records {
		g, err := buildGeometry(rec)
		if err != nil {
			return nil, fmt.Errorf("geometry %s: %w", rec.Symbol, err)
		}
		if _, dup := c.bySymbol[g.Symbol]; dup {
			return nil, fmt.Errorf("geometry %s: duplicate symbol", g.Symbol)
		}
		c.geometries = append(c.geometries, g)
		c.bySymbol[g.Symbol] = g
		c.byCN[g.Coordination] = append(c.byCN[g.Coordination], g)
		c.index(g)
	}
	return c, nil
}

func (c *Catalog) index(g *ReferenceGeometry) {
	cn := g.Coordination
	for _, algo := range g.Algorithms {
		sp, ok := algo.(*SeparationPlane)
		if !ok {
			continue
		}
		if c.separations[cn] == nil {
			c.separations[cn] = make(map[Signature][]string)
		}
		sig := sp.Signature()
		c.separations[cn][sig] = append(c.separations[cn][sig], g.Symbol)
		if cur, ok := c.minPoints[cn]; !ok || sp.MinimumNumberOfPoints < cur {
			c.minPoints[cn] = sp.MinimumNumberOfPoints
		}
		if sp.MaximumNumberOfPoints > c.maxPoints[cn] {
			c.maxPoints[cn] = sp.MaximumNumberOfPoints
		}
		if sig[1] > c.maxPointsInPlane[cn] {
			c.maxPointsInPlane[cn] = sig[1]
		}
	}
}

func buildGeometry(rec GeometryRecord) (*ReferenceGeometry, error) {
	if rec.Symbol == "" {
		return nil, errors.New("missing symbol")
	}
	if rec.Coordination != len(rec.Points) {
		return nil, fmt.Errorf("coordination %d but %d points", rec.Coordination, len(rec.Points))
	}
	g := &ReferenceGeometry{
		Symbol:       rec.Symbol,
		Name:         rec.Name,
		IUPAC:        rec.IUPAC,
		Coordination: rec.Coordination,
		Points:       make([]r3.Vector, len(rec.Points)),
	}
	for i, p := range rec.Points {
		g.Points[i] = r3.Vector{X: p[0], Y: p[1], Z: p[2]}
	}
	if rec.Central != nil {
		g.Central = r3.Vector{X: rec.Central[0], Y: rec.Central[1], Z: rec.Central[2]}
	}
	if len(rec.Algorithms) == 0 {
		return nil, fmt.Errorf("%w: no algorithms", ErrInvalidAlgorithm)
	}
	for _, ar := range rec.Algorithms {
		algo, err := buildAlgorithm(rec.Coordination, ar)
		if err != nil {
			return nil, err
		}
		g.Algorithms = append(g.Algorithms, algo)
	}
	for _, hr := range rec.Hints {
		h := NeighborSetHint{Type: HintType(hr.Type), CapIndices: hr.Caps, CSMMax: hr.CSMMax}
		want := map[HintType]int{HintSingleCap: 1, HintDoubleCap: 2, HintTripleCap: 3}[h.Type]
		if want == 0 || len(h.CapIndices) != want {
			return nil, fmt.Errorf("invalid hint %s with caps %v", hr.Type, hr.Caps)
		}
		for _, idx := range h.CapIndices {
			if idx < 0 || idx >= rec.Coordination {
				return nil, fmt.Errorf("hint cap %d out of range", idx)
			}
		}
		g.Hints = append(g.Hints, h)
	}
	return g, nil
}

func buildAlgorithm(n int, ar AlgorithmRecord) (MatchingAlgorithm, error) {
	switch ar.Type {
	case "explicit_permutations":
		return NewExplicitPermutations(n, ar.Permutations)
	case "separation_plane":
		if len(ar.PointGroups) != 2 {
			return nil, fmt.Errorf("%w: separation plane needs two point groups", ErrInvalidAlgorithm)
		}
		params := SeparationPlaneParams{
			PlanePoints:           ar.PlanePoints,
			PointGroups:           [2][]int{ar.PointGroups[0], ar.PointGroups[1]},
			OrderedPlane:          ar.OrderedPlane,
			MinimumNumberOfPoints: ar.MinimumNumberOfPoints,
			Permutations:          ar.Permutations,
		}
		if len(ar.OrderedPointGroups) == 2 {
			params.OrderedPointGroups = [2]bool{ar.OrderedPointGroups[0], ar.OrderedPointGroups[1]}
		}
		return NewSeparationPlane(n, params)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidAlgorithm, ar.Type)
	}
}

// Geometry returns the geometry with the given symbol.
func (c *Catalog) Geometry(symbol string) (*ReferenceGeometry, error) {
	g, ok := c.bySymbol[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGeometry, symbol)
	}
	return g, nil
}

// ByCoordination lists geometries with coordination number cn in catalog order.
func (c *Catalog) ByCoordination(cn int) []*ReferenceGeometry {
	return c.byCN[cn]
}

// Geometries lists all geometries in catalog order.
func (c *Catalog) Geometries() []*ReferenceGeometry {
	return c.geometries
}

// Symbols lists all symbols in catalog order.
func (c *Catalog) Symbols() []string {
	out := make([]string, len(c.geometries))
	for i, g := range c.geometries {
		out[i] = g.Symbol
	}
	return out
}

// CoordinationNumbers lists the coordination numbers present, ascending.
func (c *Catalog) CoordinationNumbers() []int {
	out := make([]int, 0, len(c.byCN))
	for cn := range c.byCN {
		out = append(out, cn)
	}
	sort.Ints(out)
	return out
}

// SeparationSymbols returns the geometries registered under a separation signature.
func (c *Catalog) SeparationSymbols(cn int, sig Signature) []string {
	return c.separations[cn][sig]
}

// HasSeparation reports whether any geometry of coordination cn uses signature sig.
func (c *Catalog) HasSeparation(cn int, sig Signature) bool {
	_, ok := c.separations[cn][sig]
	return ok
}

// PlanePointBounds returns the smallest minimum point count, the largest plane size
// and the largest in-plane count over separation-plane algorithms of coordination cn.
func (c *Catalog) PlanePointBounds(cn int) (minPoints, maxPoints, maxInPlane int) {
	return c.minPoints[cn], c.maxPoints[cn], c.maxPointsInPlane[cn]
}
