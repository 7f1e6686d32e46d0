package peaks

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"odfpeaks/internal/models"
	"odfpeaks/pkg/sphere"
)

// Affine is a 4x4 homogeneous transform from voxel space to world
// space, row-major.
type Affine [4][4]float64

// IdentityAffine returns the identity transform, under which world
// coordinates are voxel coordinates.
func IdentityAffine() Affine {
	var a Affine
	for i := 0; i < 4; i++ {
		a[i][i] = 1
	}
	return a
}

// inverse inverts the affine with gonum. Singular transforms are an
// error: a volume with a collapsed axis cannot be queried by position.
func (a Affine) inverse() (*mat.Dense, error) {
	flat := make([]float64, 16)
	for i := 0; i < 4; i++ {
		copy(flat[4*i:4*i+4], a[i][:])
	}
	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(4, 4, flat)); err != nil {
		return nil, fmt.Errorf("affine is not invertible: %v", err)
	}
	return &inv, nil
}

// applyHomogeneous maps a 3-point through a 4x4 matrix.
func applyHomogeneous(m *mat.Dense, p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = m.At(i, 0)*p[0] + m.At(i, 1)*p[1] + m.At(i, 2)*p[2] + m.At(i, 3)
	}
	return out
}

// PeaksFromPositions extracts peaks at arbitrary world-space
// positions. Each position is mapped through the inverse affine to
// voxel space and rounded to the nearest voxel; a position mapping
// outside the volume is a range error, never clamped.
//
// The field at the voxel comes from the precomputed ODF volume, or,
// when ev is non-nil, from the evaluator instead; supplying both logs
// a warning and the precomputed volume is ignored. Results use the
// same slot layout as PeaksFromModel: npeaks direction slots per
// position, zero-filled past the real peak count, so a query at a
// voxel center matches the aggregated bundle at that voxel.
func PeaksFromPositions(positions [][3]float64, odfs *models.ODFVolume, m *sphere.Mesh, affine Affine, ev FieldEvaluator, relativePeakThreshold, minSeparationAngle float64, npeaks int) ([][][3]float64, error) {
	if npeaks <= 0 {
		npeaks = defaultNPeaks
	}
	if ev != nil {
		if odfs != nil {
			log.Printf("warning: both an ODF volume and a field evaluator were supplied; using the evaluator and ignoring the volume")
		}
		m = ev.Mesh()
		odfs = nil
	} else if odfs == nil {
		return nil, fmt.Errorf("either an ODF volume or a field evaluator is required")
	}
	if m == nil {
		return nil, fmt.Errorf("a sphere mesh is required to find peaks")
	}

	inv, err := affine.inverse()
	if err != nil {
		return nil, err
	}

	var bounds [3]int
	if odfs != nil {
		bounds = [3]int{odfs.NX, odfs.NY, odfs.NZ}
	} else {
		bounds[0], bounds[1], bounds[2] = ev.Bounds()
	}

	out := make([][][3]float64, len(positions))
	for pi, pos := range positions {
		vp := applyHomogeneous(inv, pos)
		x := int(math.Round(vp[0]))
		y := int(math.Round(vp[1]))
		z := int(math.Round(vp[2]))

		if x < 0 || x >= bounds[0] || y < 0 || y >= bounds[1] || z < 0 || z >= bounds[2] {
			return nil, fmt.Errorf("position %v maps to voxel (%d,%d,%d), outside the %dx%dx%d volume",
				pos, x, y, z, bounds[0], bounds[1], bounds[2])
		}

		var odf []float64
		if odfs != nil {
			odf = odfs.Sample(odfs.VoxelIndex(x, y, z))
		} else {
			odf = ev.FieldAt([3]float64{float64(x), float64(y), float64(z)})
		}

		dirs, _, _ := PeakDirections(odf, m, relativePeakThreshold, minSeparationAngle, true)
		slots := make([][3]float64, npeaks)
		for k := 0; k < len(dirs) && k < npeaks; k++ {
			slots[k] = dirs[k]
		}
		out[pi] = slots
	}
	return out, nil
}
