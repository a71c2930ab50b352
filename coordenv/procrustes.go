package coordenv

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Measure is the outcome of aligning a distorted point set onto a perfect one.
// Rotation and Scale map the distorted points onto the perfect points.
type Measure struct {
	CSM      float64
	Rotation Matrix3
	Scale    float64
}

// SymmetryMeasure computes the continuous symmetry measure between two
// equally sized, pre-centered point sets given in corresponding order.
//
// The rotation is the orthogonal Procrustes solution and may be improper:
// mirror images match with CSM 0.
func SymmetryMeasure(distorted, perfect []r3.Vector) Measure {
	if len(distorted) == 1 {
		return Measure{CSM: 0, Rotation: Identity3(), Scale: 1}
	}
	rot := FindRotation(distorted, perfect)
	scale := FindScalingFactor(distorted, perfect, rot)
	var num, denom float64
	for i, p := range perfect {
		d := p.Sub(rot.Apply(distorted[i]).Mul(scale))
		num += d.Norm2()
		denom += p.Norm2()
	}
	csm := 100.0
	if denom > 0 {
		csm = 100 * num / denom
	}
	return Measure{CSM: csm, Rotation: rot, Scale: scale}
}

// FindRotation returns the rotation R minimizing Σ‖R·d_i − p_i‖².
// With H = Dᵀ·P = U·S·Vᵀ the solution is R = V·Uᵀ.
// A failed factorization yields the identity.
func FindRotation(distorted, perfect []r3.Vector) Matrix3 {
	var h [9]float64
	for i, d := range distorted {
		p := perfect[i]
		dv := [3]float64{d.X, d.Y, d.Z}
		pv := [3]float64{p.X, p.Y, p.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h[r*3+c] += dv[r] * pv[c]
			}
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(3, 3, h[:]), mat.SVDFull); !ok {
		return Identity3()
	}
	var u, v, r mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	r.Mul(&v, u.T())

	var out Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = r.At(i, j)
		}
	}
	return out
}

// FindScalingFactor returns the uniform scale s minimizing Σ‖s·R·d_i − p_i‖².
// An all-zero distorted set has no defined scale; 0 is returned.
func FindScalingFactor(distorted, perfect []r3.Vector, rot Matrix3) float64 {
	var num, denom float64
	for i, d := range distorted {
		rd := rot.Apply(d)
		num += rd.Dot(perfect[i])
		denom += rd.Dot(rd)
	}
	if denom == 0 {
		return 0
	}
	return num / denom
}
