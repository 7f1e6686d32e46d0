package sims

import (
	"math"
	"testing"

	"odfpeaks/pkg/sphere"
)

// defaultEvals creates prolate tensor eigenvalues typical of white matter
func defaultEvals() [3]float64 {
	return [3]float64{0.0015, 0.0003, 0.0003}
}

// TestStickOrientation verifies the angle-to-axis mapping
func TestStickOrientation(t *testing.T) {
	cases := []struct {
		theta, phi float64
		want       [3]float64
	}{
		{0, 0, [3]float64{0, 0, 1}},
		{90, 0, [3]float64{1, 0, 0}},
		{90, 90, [3]float64{0, 1, 0}},
		{180, 0, [3]float64{0, 0, -1}},
	}

	for _, c := range cases {
		f := Fiber{Evals: defaultEvals(), Theta: c.theta, Phi: c.phi, Fraction: 100}
		got := f.Stick()
		for k := 0; k < 3; k++ {
			if math.Abs(got[k]-c.want[k]) > 1e-12 {
				t.Errorf("theta=%f phi=%f: got %v, want %v", c.theta, c.phi, got, c.want)
				break
			}
		}
	}
}

// TestSticks verifies axis extraction over a fiber set
func TestSticks(t *testing.T) {
	fibers := []Fiber{
		{Evals: defaultEvals(), Theta: 0, Phi: 0, Fraction: 50},
		{Evals: defaultEvals(), Theta: 90, Phi: 0, Fraction: 50},
	}
	sticks := Sticks(fibers)
	if len(sticks) != 2 {
		t.Fatalf("Expected 2 sticks, got %d", len(sticks))
	}
	if d := sphere.Dot(sticks[0], [3]float64{0, 0, 1}); math.Abs(d-1) > 1e-12 {
		t.Errorf("First stick %v, expected z axis", sticks[0])
	}
	if d := sphere.Dot(sticks[1], [3]float64{1, 0, 0}); math.Abs(d-1) > 1e-12 {
		t.Errorf("Second stick %v, expected x axis", sticks[1])
	}
}

// TestMultiTensorODFSingleFiber verifies that a one-fiber ODF peaks
// along the fiber axis
func TestMultiTensorODFSingleFiber(t *testing.T) {
	m := sphere.Icosahedron().Subdivide(3)
	fibers := []Fiber{{Evals: defaultEvals(), Theta: 0, Phi: 0, Fraction: 100}}

	odf := MultiTensorODF(m.Vertices, fibers)
	if len(odf) != len(m.Vertices) {
		t.Fatalf("Expected %d samples, got %d", len(m.Vertices), len(odf))
	}

	best := 0
	for i, v := range odf {
		if v < 0 {
			t.Fatalf("Negative ODF value %f at vertex %d", v, i)
		}
		if v > odf[best] {
			best = i
		}
	}

	axis := [3]float64{0, 0, 1}
	if d := math.Abs(sphere.Dot(m.Vertices[best], axis)); d < 0.999 {
		t.Errorf("ODF maximum at %v, expected near z axis (|dot|=%f)", m.Vertices[best], d)
	}
}

// TestMultiTensorODFSymmetric verifies antipodal symmetry of the field
func TestMultiTensorODFSymmetric(t *testing.T) {
	m := sphere.Icosahedron().Subdivide(2)
	fibers := []Fiber{
		{Evals: defaultEvals(), Theta: 30, Phi: 0, Fraction: 50},
		{Evals: defaultEvals(), Theta: 90, Phi: 45, Fraction: 50},
	}

	odf := MultiTensorODF(m.Vertices, fibers)
	for i, v := range m.Vertices {
		neg := [3]float64{-v[0], -v[1], -v[2]}
		flipped := MultiTensorODF([][3]float64{neg}, fibers)
		if math.Abs(odf[i]-flipped[0]) > 1e-12*odf[i] {
			t.Errorf("Vertex %d: odf(v)=%g, odf(-v)=%g", i, odf[i], flipped[0])
		}
	}
}

// TestMultiTensorODFMixture verifies that volume fractions scale lobes
func TestMultiTensorODFMixture(t *testing.T) {
	m := sphere.Icosahedron().Subdivide(3)
	fibers := []Fiber{
		{Evals: defaultEvals(), Theta: 0, Phi: 0, Fraction: 75},
		{Evals: defaultEvals(), Theta: 90, Phi: 0, Fraction: 25},
	}

	odf := MultiTensorODF(m.Vertices, fibers)

	// The 75% lobe along z should dominate the 25% lobe along x
	zIdx := m.NearestVertex([3]float64{0, 0, 1})
	xIdx := m.NearestVertex([3]float64{1, 0, 0})
	if odf[zIdx] <= odf[xIdx] {
		t.Errorf("Dominant lobe %g not above secondary lobe %g", odf[zIdx], odf[xIdx])
	}
}

// TestAngularSimilarity verifies the direction-set overlap measure
func TestAngularSimilarity(t *testing.T) {
	a := [][3]float64{{0, 0, 1}, {1, 0, 0}}

	if s := AngularSimilarity(a, a); math.Abs(s-2) > 1e-12 {
		t.Errorf("Identical sets: similarity %f, expected 2", s)
	}

	// Antipodal directions count as perfect matches
	b := [][3]float64{{0, 0, -1}, {-1, 0, 0}}
	if s := AngularSimilarity(a, b); math.Abs(s-2) > 1e-12 {
		t.Errorf("Antipodal sets: similarity %f, expected 2", s)
	}

	// An orthogonal singleton contributes nothing
	c := [][3]float64{{0, 1, 0}}
	if s := AngularSimilarity(a, c); math.Abs(s) > 1e-12 {
		t.Errorf("Orthogonal sets: similarity %f, expected 0", s)
	}

	if s := AngularSimilarity(nil, a); s != 0 {
		t.Errorf("Empty set: similarity %f, expected 0", s)
	}
}
