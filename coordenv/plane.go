package coordenv

import (
	"errors"
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/mat"
)

// ErrDegeneratePlane is returned when a point subset does not span a plane.
// The plane search skips such subsets silently.
var ErrDegeneratePlane = errors.New("degenerate plane")

// collinearTolerance is the fraction of the reference triangle area below which
// three points count as collinear.
const collinearTolerance = 0.25

// Plane is the set of points x with Normal·x + D = 0. Normal has unit length.
type Plane struct {
	Normal r3.Vector
	D      float64
}

// PlaneFromThreePoints builds the plane through p1, p2 and p3.
func PlaneFromThreePoints(p1, p2, p3 r3.Vector) (Plane, error) {
	if collinear(p1, p2, p3, collinearTolerance) {
		return Plane{}, ErrDegeneratePlane
	}
	n := p2.Sub(p1).Cross(p3.Sub(p1)).Normalize()
	return Plane{Normal: n, D: -n.Dot(p1)}, nil
}

// PlaneFromPoints fits the least-squares plane through points. The normal is
// the right singular vector of the centered points with the smallest singular value.
func PlaneFromPoints(points []r3.Vector) (Plane, error) {
	if len(points) < 3 {
		return Plane{}, ErrDegeneratePlane
	}
	if len(points) == 3 {
		return PlaneFromThreePoints(points[0], points[1], points[2])
	}
	c := Centroid(points)
	data := make([]float64, 0, 3*len(points))
	for _, p := range points {
		d := p.Sub(c)
		data = append(data, d.X, d.Y, d.Z)
	}
	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(len(points), 3, data), mat.SVDThin); !ok {
		return Plane{}, ErrDegeneratePlane
	}
	values := svd.Values(nil)
	if values[0] == 0 || values[1] < 1e-8*values[0] {
		return Plane{}, ErrDegeneratePlane
	}
	var v mat.Dense
	svd.VTo(&v)
	n := r3.Vector{X: v.At(0, 2), Y: v.At(1, 2), Z: v.At(2, 2)}.Normalize()
	return Plane{Normal: n, D: -n.Dot(c)}, nil
}

// SignedDistance is positive on the side the normal points to.
func (pl Plane) SignedDistance(p r3.Vector) float64 {
	return pl.Normal.Dot(p) + pl.D
}

// IndicesSeparate splits point indices into negative side, in-plane (|d| ≤ tolerance)
// and positive side.
func (pl Plane) IndicesSeparate(points []r3.Vector, tolerance float64) Separation {
	var sep Separation
	for i, p := range points {
		d := pl.SignedDistance(p)
		switch {
		case math.Abs(d) <= tolerance:
			sep[1] = append(sep[1], i)
		case d < 0:
			sep[0] = append(sep[0], i)
		default:
			sep[2] = append(sep[2], i)
		}
	}
	return sep
}

// DistanceGroups holds point indices grouped by increasing distance from a plane.
type DistanceGroups struct {
	Distances []float64 // signed, indexed by point
	Groups    [][]int
}

// DistancesIndicesGroups sorts points by absolute distance and starts a new group
// wherever consecutive distances differ by more than deltaFactor times the largest distance.
func (pl Plane) DistancesIndicesGroups(points []r3.Vector, deltaFactor float64) DistanceGroups {
	dist := make([]float64, len(points))
	order := make([]int, len(points))
	for i, p := range points {
		dist[i] = pl.SignedDistance(p)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(dist[order[a]]) < math.Abs(dist[order[b]])
	})
	if len(order) == 0 {
		return DistanceGroups{Distances: dist}
	}
	delta := deltaFactor * math.Abs(dist[order[len(order)-1]])

	groups := [][]int{{order[0]}}
	for k := 1; k < len(order); k++ {
		gap := math.Abs(dist[order[k]]) - math.Abs(dist[order[k-1]])
		if gap > delta {
			groups = append(groups, nil)
		}
		last := len(groups) - 1
		groups[last] = append(groups[last], order[k])
	}
	return DistanceGroups{Distances: dist, Groups: groups}
}

// ProjectedOrder returns indices ordered by polar angle of the points projected onto
// the plane, measured around the centroid of the projections.
func (pl Plane) ProjectedOrder(points []r3.Vector, indices []int) []int {
	e1 := pl.Normal.Ortho()
	e2 := pl.Normal.Cross(e1)

	projected := make(orb.MultiPoint, len(indices))
	for k, idx := range indices {
		p := points[idx]
		projected[k] = orb.Point{p.Dot(e1), p.Dot(e2)}
	}
	centre, _ := planar.CentroidArea(projected)

	angles := make([]float64, len(indices))
	for k, p := range projected {
		if planar.Distance(p, centre) == 0 {
			continue
		}
		angles[k] = math.Atan2(p.Y()-centre.Y(), p.X()-centre.X())
	}
	order := make([]int, len(indices))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return angles[order[a]] < angles[order[b]] })

	out := make([]int, len(indices))
	for k, o := range order {
		out[k] = indices[o]
	}
	return out
}

// collinear reports whether the triangle p1 p2 p3 is flatter than tolerance times
// the right triangle built on its two shortest sides.
func collinear(p1, p2, p3 r3.Vector, tolerance float64) bool {
	area := 0.5 * p1.Sub(p3).Cross(p2.Sub(p3)).Norm()
	d := []float64{p2.Sub(p1).Norm(), p3.Sub(p1).Norm(), p3.Sub(p2).Norm()}
	sort.Float64s(d)
	return area == 0 || area < tolerance*0.5*d[0]*d[1]
}
