// Package sims generates synthetic orientation distribution functions
// for testing and demonstration. A multi-tensor ODF mixes the
// single-tensor diffusion ODFs of a set of simulated fiber
// populations, which gives ground-truth fields whose peak directions
// are known exactly.
package sims

import (
	"math"

	"odfpeaks/pkg/sphere"
)

// Fiber describes one simulated fiber population.
type Fiber struct {
	// Evals are the diffusion tensor eigenvalues in mm^2/s, the first
	// one along the fiber axis
	Evals [3]float64

	// Theta and Phi give the fiber axis in degrees: inclination from
	// the +z axis and azimuth in the x-y plane
	Theta, Phi float64

	// Fraction is the volume fraction of this population in percent
	Fraction float64
}

// Stick returns the unit vector along the fiber axis.
func (f Fiber) Stick() [3]float64 {
	return sphere.SphericalToCartesian(deg2rad(f.Theta), deg2rad(f.Phi))
}

// Sticks returns the axis of every fiber in order.
func Sticks(fibers []Fiber) [][3]float64 {
	sticks := make([][3]float64, len(fibers))
	for i, f := range fibers {
		sticks[i] = f.Stick()
	}
	return sticks
}

// MultiTensorODF evaluates the mixture ODF of the given fiber
// populations at every direction in vertices. Each population
// contributes the analytic single-tensor ODF
//
//	odf(v) = (v' D^-1 v)^(-3/2) / (4*pi*sqrt(det D))
//
// weighted by its volume fraction.
func MultiTensorODF(vertices [][3]float64, fibers []Fiber) []float64 {
	odf := make([]float64, len(vertices))
	for _, f := range fibers {
		e1, e2, e3 := fiberFrame(f.Stick())
		l1, l2, l3 := f.Evals[0], f.Evals[1], f.Evals[2]
		norm := 1 / (4 * math.Pi * math.Sqrt(l1*l2*l3))
		weight := f.Fraction / 100

		for i, v := range vertices {
			q := sq(sphere.Dot(v, e1))/l1 +
				sq(sphere.Dot(v, e2))/l2 +
				sq(sphere.Dot(v, e3))/l3
			odf[i] += weight * norm * math.Pow(q, -1.5)
		}
	}
	return odf
}

// fiberFrame completes the fiber axis to a right-handed orthonormal
// basis.
func fiberFrame(axis [3]float64) (e1, e2, e3 [3]float64) {
	e1 = axis
	// Any direction not parallel to the axis seeds the complement.
	seed := [3]float64{1, 0, 0}
	if math.Abs(e1[0]) > 0.9 {
		seed = [3]float64{0, 1, 0}
	}
	e2 = sphere.Normalize(cross(e1, seed))
	e3 = cross(e1, e2)
	return e1, e2, e3
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func sq(x float64) float64 { return x * x }

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
