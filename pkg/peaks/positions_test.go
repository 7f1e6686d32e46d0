package peaks

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"odfpeaks/internal/models"
	"odfpeaks/pkg/sims"
	"odfpeaks/pkg/sphere"
)

// crossingVolume synthesizes a grid of two-fiber ODF samples whose
// second fiber angle varies per voxel, and aggregates it with the
// fields retained
func crossingVolume(t *testing.T, m *sphere.Mesh, nx, ny, nz int) *PeaksAndMetrics {
	t.Helper()
	evals := [3]float64{0.0015, 0.0003, 0.0003}
	data := &models.DWIVolume{
		Data:     make([]float64, nx*ny*nz*len(m.Vertices)),
		NX:       nx,
		NY:       ny,
		NZ:       nz,
		NSamples: len(m.Vertices),
	}
	for i := 0; i < data.NumVoxels(); i++ {
		fibers := []sims.Fiber{
			{Evals: evals, Theta: 0, Phi: 0, Fraction: 50},
			{Evals: evals, Theta: 50 + float64(i%5), Phi: float64(10 * i), Fraction: 50},
		}
		copy(data.VoxelData(i), sims.MultiTensorODF(m.Vertices, fibers))
	}

	pam, err := PeaksFromModel(&DiscreteModel{SampleMesh: m}, data, m, 0.5, 25, &AggregateOptions{
		ReturnODF: true,
	})
	if err != nil {
		t.Fatalf("PeaksFromModel failed: %v", err)
	}
	return pam
}

func TestPeaksFromPositions(t *testing.T) {
	m := sphere.NewHemisphere(sphere.Icosahedron().Subdivide(3))
	pam := crossingVolume(t, m, 3, 2, 2)
	odfs := pam.ODFVolume()

	// Integer voxel centers reproduce the aggregated bundle
	var positions [][3]float64
	var voxels []int
	for x := 0; x < 3; x++ {
		for y := 0; y < 2; y++ {
			for z := 0; z < 2; z++ {
				positions = append(positions, [3]float64{float64(x), float64(y), float64(z)})
				voxels = append(voxels, odfs.VoxelIndex(x, y, z))
			}
		}
	}

	got, err := PeaksFromPositions(positions, odfs, m, IdentityAffine(), nil, 0.5, 25, pam.NPeaks)
	if err != nil {
		t.Fatalf("PeaksFromPositions failed: %v", err)
	}
	if len(got) != len(positions) {
		t.Fatalf("Got %d results for %d positions", len(got), len(positions))
	}
	for pi, vi := range voxels {
		checkSamePeaks(t, pi, got[pi], pam.PeakDirsAt(vi))
	}

	// Fractional positions round to the nearest voxel
	offset := make([][3]float64, len(positions))
	for i, p := range positions {
		offset[i] = [3]float64{p[0] + 0.3, p[1] - 0.2, p[2] + 0.4}
	}
	got, err = PeaksFromPositions(offset, odfs, m, IdentityAffine(), nil, 0.5, 25, pam.NPeaks)
	if err != nil {
		t.Fatalf("PeaksFromPositions with offsets failed: %v", err)
	}
	for pi, vi := range voxels {
		checkSamePeaks(t, pi, got[pi], pam.PeakDirsAt(vi))
	}
}

func TestPeaksFromPositionsAffine(t *testing.T) {
	m := sphere.NewHemisphere(sphere.Icosahedron().Subdivide(3))
	pam := crossingVolume(t, m, 3, 2, 2)
	odfs := pam.ODFVolume()

	// World positions at 2x + 10 map back onto the voxel grid
	affine := IdentityAffine()
	for i := 0; i < 3; i++ {
		affine[i][i] = 2
		affine[i][3] = 10
	}

	positions := [][3]float64{
		{10, 10, 10}, // voxel (0,0,0)
		{14, 12, 12}, // voxel (2,1,1)
	}
	got, err := PeaksFromPositions(positions, odfs, m, affine, nil, 0.5, 25, pam.NPeaks)
	if err != nil {
		t.Fatalf("PeaksFromPositions failed: %v", err)
	}
	checkSamePeaks(t, 0, got[0], pam.PeakDirsAt(odfs.VoxelIndex(0, 0, 0)))
	checkSamePeaks(t, 1, got[1], pam.PeakDirsAt(odfs.VoxelIndex(2, 1, 1)))
}

func TestPeaksFromPositionsOutOfRange(t *testing.T) {
	m := sphere.NewHemisphere(sphere.Icosahedron().Subdivide(2))
	pam := crossingVolume(t, m, 2, 2, 2)
	odfs := pam.ODFVolume()

	cases := [][3]float64{
		{-1, 0, 0},
		{0, 0, 2},
		{5, 5, 5},
	}
	for _, pos := range cases {
		_, err := PeaksFromPositions([][3]float64{pos}, odfs, m, IdentityAffine(), nil, 0.5, 25, 5)
		if err == nil {
			t.Errorf("Position %v: expected a range error", pos)
		}
	}

	// A singular affine cannot be inverted
	var singular Affine
	_, err := PeaksFromPositions([][3]float64{{0, 0, 0}}, odfs, m, singular, nil, 0.5, 25, 5)
	if err == nil {
		t.Errorf("Expected an error for a singular affine")
	}

	// Neither a volume nor an evaluator is an error
	_, err = PeaksFromPositions([][3]float64{{0, 0, 0}}, nil, m, IdentityAffine(), nil, 0.5, 25, 5)
	if err == nil {
		t.Errorf("Expected an error with no field source")
	}
}

// TestPeaksFromPositionsEvaluatorOutOfRange verifies that evaluator-mode
// queries reject positions outside the grid instead of answering from
// the border voxels
func TestPeaksFromPositionsEvaluatorOutOfRange(t *testing.T) {
	m := sphere.NewHemisphere(sphere.Icosahedron().Subdivide(2))
	pam := crossingVolume(t, m, 2, 2, 2)
	ev := &SimpleFieldEvaluator{ODFs: pam.ODFVolume(), SampleMesh: m}

	cases := [][3]float64{
		{-1, 0, 0},
		{0, 0, 2},
		{5, 5, 5},
	}
	for _, pos := range cases {
		_, err := PeaksFromPositions([][3]float64{pos}, nil, nil, IdentityAffine(), ev, 0.5, 25, 5)
		if err == nil {
			t.Errorf("Position %v: expected a range error", pos)
		}
	}

	// In-range queries still succeed
	if _, err := PeaksFromPositions([][3]float64{{1, 1, 1}}, nil, nil, IdentityAffine(), ev, 0.5, 25, 5); err != nil {
		t.Errorf("In-range evaluator query failed: %v", err)
	}
}

func TestPeaksFromPositionsEvaluator(t *testing.T) {
	m := sphere.NewHemisphere(sphere.Icosahedron().Subdivide(3))
	pam := crossingVolume(t, m, 3, 2, 2)
	odfs := pam.ODFVolume()
	ev := &SimpleFieldEvaluator{ODFs: odfs, SampleMesh: m}

	positions := [][3]float64{{0, 0, 0}, {1, 1, 1}, {2, 0, 1}}

	fromVolume, err := PeaksFromPositions(positions, odfs, m, IdentityAffine(), nil, 0.5, 25, 5)
	if err != nil {
		t.Fatalf("Volume query failed: %v", err)
	}
	fromEval, err := PeaksFromPositions(positions, nil, nil, IdentityAffine(), ev, 0.5, 25, 5)
	if err != nil {
		t.Fatalf("Evaluator query failed: %v", err)
	}
	for pi := range positions {
		checkSamePeaks(t, pi, fromEval[pi], fromVolume[pi])
	}

	// Supplying both sources warns and uses the evaluator
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	both, err := PeaksFromPositions(positions, odfs, m, IdentityAffine(), ev, 0.5, 25, 5)
	if err != nil {
		t.Fatalf("Query with both sources failed: %v", err)
	}
	if !strings.Contains(buf.String(), "using the evaluator") {
		t.Errorf("Expected a warning about conflicting field sources, got %q", buf.String())
	}
	for pi := range positions {
		checkSamePeaks(t, pi, both[pi], fromEval[pi])
	}
}

func TestPeaksFromPositionsCoeffEvaluator(t *testing.T) {
	m := sphere.NewHemisphere(sphere.Icosahedron().Subdivide(2))
	model := &linearModel{w: [3]float64{1, 2, 3}}
	data := testVolume(2, 2, 1)

	pam, err := PeaksFromModel(model, data, m, 0.5, 25, &AggregateOptions{ReturnCoeffs: true})
	if err != nil {
		t.Fatalf("PeaksFromModel failed: %v", err)
	}

	ev := &CoeffFieldEvaluator{
		Coeffs:     pam.Coeffs,
		NX:         pam.NX,
		NY:         pam.NY,
		NZ:         pam.NZ,
		NCoeffs:    pam.NCoeffs,
		Basis:      mat.NewDense(pam.NCoeffs, pam.NVertices, pam.Basis),
		SampleMesh: m,
	}

	positions := [][3]float64{{0, 0, 0}, {1, 1, 0}}
	got, err := PeaksFromPositions(positions, nil, nil, IdentityAffine(), ev, 0.5, 25, pam.NPeaks)
	if err != nil {
		t.Fatalf("Coefficient evaluator query failed: %v", err)
	}
	checkSamePeaks(t, 0, got[0], pam.PeakDirsAt(0))
	checkSamePeaks(t, 1, got[1], pam.PeakDirsAt(pam.NumVoxels()-1))
}

// checkSamePeaks compares per-position direction slots exactly
func checkSamePeaks(t *testing.T, pi int, got, want [][3]float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Position %d: %d slots, expected %d", pi, len(got), len(want))
	}
	for k := range got {
		if got[k] != want[k] {
			t.Errorf("Position %d slot %d: %v, expected %v", pi, k, got[k], want[k])
		}
	}
}
