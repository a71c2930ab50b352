package coordenv

// NeighborSetCache keeps fitted planes and catalog-registered separations for one
// neighbor set. It belongs to a single query and is not safe for concurrent use.
type NeighborSetCache struct {
	planes      map[string]PlaneFit
	separations map[Signature][]PlaneSeparation
	seen        map[Signature]map[string]bool
}

// PlaneFit is a stored plane fit. Err is set when the subset was degenerate.
type PlaneFit struct {
	Plane Plane
	Err   error
}

// PlaneSeparation is a separation induced by a fitted plane.
type PlaneSeparation struct {
	Plane      Plane
	Separation Separation
}

// NewNeighborSetCache returns an empty cache.
func NewNeighborSetCache() *NeighborSetCache {
	return &NeighborSetCache{
		planes:      make(map[string]PlaneFit),
		separations: make(map[Signature][]PlaneSeparation),
		seen:        make(map[Signature]map[string]bool),
	}
}

// Plane returns the fit stored for a sorted index subset, if any.
func (c *NeighborSetCache) Plane(subset []int) (PlaneFit, bool) {
	fit, ok := c.planes[subsetKey(subset)]
	return fit, ok
}

// StorePlane records the fit of a sorted index subset, including a failed one.
func (c *NeighborSetCache) StorePlane(subset []int, plane Plane, err error) {
	c.planes[subsetKey(subset)] = PlaneFit{Plane: plane, Err: err}
}

// Separations lists the stored separations with the given signature.
func (c *NeighborSetCache) Separations(sig Signature) []PlaneSeparation {
	return c.separations[sig]
}

// AddSeparation stores sep under its signature and reports whether it was new.
func (c *NeighborSetCache) AddSeparation(plane Plane, sep Separation) bool {
	sig := sep.Signature()
	keys := c.seen[sig]
	if keys == nil {
		keys = make(map[string]bool)
		c.seen[sig] = keys
	}
	k := sep.Key()
	if keys[k] {
		return false
	}
	keys[k] = true
	c.separations[sig] = append(c.separations[sig], PlaneSeparation{Plane: plane, Separation: sep})
	return true
}

// PlaneCount is the number of subsets fitted so far.
func (c *NeighborSetCache) PlaneCount() int { return len(c.planes) }
