package coordenv

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
)

// Centering selects the origin of the local coordinates used by the plane search.
type Centering string

const (
	// CenteringStandard centres on the central site below coordination 5 and on the centroid otherwise.
	CenteringStandard    Centering = "standard"
	CenteringCentralSite Centering = "central_site"
	CenteringCentroid    Centering = "centroid"
)

// View names one of the six canonical coordinate views of a point set.
//
// wcs/wocs: with or without the central site (index 0 when present).
// csc: relative to the central site. ctwcc/ctwocc: relative to the centroid
// computed with or without the central site.
type View string

const (
	ViewWCSCSC     View = "wcs_csc"
	ViewWOCSCSC    View = "wocs_csc"
	ViewWCSCTWCC   View = "wcs_ctwcc"
	ViewWOCSCTWCC  View = "wocs_ctwcc"
	ViewWCSCTWOCC  View = "wcs_ctwocc"
	ViewWOCSCTWOCC View = "wocs_ctwocc"
)

// AllViews lists the views in reporting order.
var AllViews = []View{ViewWCSCSC, ViewWOCSCSC, ViewWCSCTWCC, ViewWOCSCTWCC, ViewWCSCTWOCC, ViewWOCSCTWOCC}

var (
	ErrInvalidCentering = errors.New("invalid centering")
	ErrNoNeighbors      = errors.New("no neighbors")
)

// AbstractGeometry is a neighbor set normalized around a central site.
// It only translates points; no scaling is applied.
type AbstractGeometry struct {
	Centering                    Centering
	IncludeCentralSiteInCentroid bool

	bareCentre            r3.Vector
	barePoints            []r3.Vector // without the central site
	centroidWithCentre    r3.Vector
	centroidWithoutCentre r3.Vector
	centre                r3.Vector

	views map[View][]r3.Vector
	local []r3.Vector
}

// NewAbstractGeometry normalizes neighbors around central using the given centering.
func NewAbstractGeometry(central r3.Vector, neighbors []r3.Vector, centering Centering, includeCentral bool) (*AbstractGeometry, error) {
	if len(neighbors) == 0 {
		return nil, ErrNoNeighbors
	}
	if centering == "" {
		centering = CenteringStandard
	}

	withCentre := make([]r3.Vector, 0, len(neighbors)+1)
	withCentre = append(withCentre, central)
	withCentre = append(withCentre, neighbors...)

	g := &AbstractGeometry{
		Centering:                    centering,
		IncludeCentralSiteInCentroid: includeCentral,
		bareCentre:                   central,
		barePoints:                   append([]r3.Vector(nil), neighbors...),
		centroidWithCentre:           Centroid(withCentre),
		centroidWithoutCentre:        Centroid(neighbors),
	}

	switch centering {
	case CenteringStandard:
		switch {
		case len(neighbors) < 5 && includeCentral:
			return nil, fmt.Errorf("%w: standard centering below coordination 5 cannot include the central site in the centroid", ErrInvalidCentering)
		case len(neighbors) < 5:
			g.centre = central
		case includeCentral:
			g.centre = g.centroidWithCentre
		default:
			g.centre = g.centroidWithoutCentre
		}
	case CenteringCentralSite:
		if includeCentral {
			return nil, fmt.Errorf("%w: central_site centering cannot include the central site in the centroid", ErrInvalidCentering)
		}
		g.centre = central
	case CenteringCentroid:
		if includeCentral {
			g.centre = g.centroidWithCentre
		} else {
			g.centre = g.centroidWithoutCentre
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidCentering, centering)
	}

	g.views = map[View][]r3.Vector{
		ViewWCSCSC:     translatePoints(withCentre, central),
		ViewWOCSCSC:    translatePoints(neighbors, central),
		ViewWCSCTWCC:   translatePoints(withCentre, g.centroidWithCentre),
		ViewWOCSCTWCC:  translatePoints(neighbors, g.centroidWithCentre),
		ViewWCSCTWOCC:  translatePoints(withCentre, g.centroidWithoutCentre),
		ViewWOCSCTWOCC: translatePoints(neighbors, g.centroidWithoutCentre),
	}
	g.local = translatePoints(neighbors, g.centre)
	return g, nil
}

// CoordinationNumber is the number of neighbors.
func (g *AbstractGeometry) CoordinationNumber() int { return len(g.barePoints) }

// Centre is the origin chosen by the centering policy, in input coordinates.
func (g *AbstractGeometry) Centre() r3.Vector { return g.centre }

// CentroidWithCentre is the mean of the neighbors and the central site.
func (g *AbstractGeometry) CentroidWithCentre() r3.Vector { return g.centroidWithCentre }

// CentroidWithoutCentre is the mean of the neighbors only.
func (g *AbstractGeometry) CentroidWithoutCentre() r3.Vector { return g.centroidWithoutCentre }

// LocalCoordinates are the neighbors relative to Centre.
func (g *AbstractGeometry) LocalCoordinates() []r3.Vector { return g.local }

// LocalCentralSite is the central site relative to Centre.
func (g *AbstractGeometry) LocalCentralSite() r3.Vector { return g.bareCentre.Sub(g.centre) }

// Points returns a view of the point set. The returned slice must not be modified.
func (g *AbstractGeometry) Points(v View) []r3.Vector { return g.views[v] }

// PermutedPoints returns a view with the neighbors reordered by perm.
// For views with the central site, index 0 stays in place.
func (g *AbstractGeometry) PermutedPoints(v View, perm []int) []r3.Vector {
	pts := g.views[v]
	if !v.withCentralSite() {
		return permutePoints(pts, perm)
	}
	out := make([]r3.Vector, len(perm)+1)
	out[0] = pts[0]
	for i, idx := range perm {
		out[i+1] = pts[idx+1]
	}
	return out
}

func (v View) withCentralSite() bool {
	switch v {
	case ViewWCSCSC, ViewWCSCTWCC, ViewWCSCTWOCC:
		return true
	}
	return false
}

// meanRadius is the mean distance of the neighbors from Centre.
func (g *AbstractGeometry) meanRadius() float64 {
	var sum float64
	for _, p := range g.local {
		sum += p.Norm()
	}
	return sum / float64(len(g.local))
}
