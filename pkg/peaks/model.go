// Package peaks extracts fiber orientation peaks from orientation
// distribution functions sampled on a sphere mesh. It provides the
// discrete peak finder, a non-linear refiner for continuous
// evaluators, per-voxel aggregation over volumetric data with optional
// parallelism, and position-indexed peak queries through an affine
// transform.
package peaks

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"odfpeaks/internal/models"
	"odfpeaks/pkg/sphere"
)

// Model fits per-voxel measurement data to a representation that can
// be sampled as an ODF over an arbitrary sphere mesh.
type Model interface {
	Fit(data []float64) (Fit, error)
}

// Fit is a fitted model for a single voxel.
type Fit interface {
	// ODF samples the fitted orientation distribution over the
	// vertices of the given mesh, one value per vertex.
	ODF(m *sphere.Mesh) []float64
}

// BasisModel is implemented by models whose fitted ODF lives in the
// span of a fixed linear basis. The basis matrix B has one row per
// coefficient and one column per mesh vertex, so that for a
// coefficient vector c the product c*B reproduces the ODF sample.
type BasisModel interface {
	Model
	Basis(m *sphere.Mesh) *mat.Dense
}

// Evaluator is a continuous scalar field over the sphere. It maps any
// query mesh, including a single-vertex one, to one value per vertex.
// Unlike a fixed ODF sample it is not tied to one discretization,
// which is what the non-linear refiner needs.
type Evaluator interface {
	Evaluate(m *sphere.Mesh) []float64
}

// FieldEvaluator produces an ODF sample, over a fixed mesh, for any
// continuous position in voxel space. It is the on-demand counterpart
// of a precomputed ODF volume in position-indexed queries. Bounds
// reports the voxel grid the field is defined on, so callers can
// reject positions outside it instead of clamping.
type FieldEvaluator interface {
	FieldAt(p [3]float64) []float64
	Mesh() *sphere.Mesh
	Bounds() (nx, ny, nz int)
}

// DiscreteModel treats each voxel's measurement vector as a
// ready-made ODF sample over its mesh. Fitting is the identity; ODF
// queries on a different mesh resample by nearest vertex.
type DiscreteModel struct {
	// SampleMesh is the mesh the incoming samples are defined on
	SampleMesh *sphere.Mesh
}

// Fit wraps the sample, validating its length against the mesh.
func (m *DiscreteModel) Fit(data []float64) (Fit, error) {
	if len(data) != len(m.SampleMesh.Vertices) {
		return nil, fmt.Errorf("sample length %d does not match mesh with %d vertices",
			len(data), len(m.SampleMesh.Vertices))
	}
	return &DiscreteFit{model: m, sample: data}, nil
}

// DiscreteFit is the fitted form of DiscreteModel: the sample itself.
type DiscreteFit struct {
	model  *DiscreteModel
	sample []float64
}

// ODF returns the stored sample when queried on the sample mesh, and a
// nearest-vertex resampling for any other mesh.
func (f *DiscreteFit) ODF(m *sphere.Mesh) []float64 {
	if m == nil || m == f.model.SampleMesh {
		return f.sample
	}
	out := make([]float64, len(m.Vertices))
	for i, v := range m.Vertices {
		out[i] = f.sample[f.model.SampleMesh.NearestVertex(v)]
	}
	return out
}

// SimpleFieldEvaluator serves ODF samples from a precomputed volume by
// trilinear interpolation in voxel space. At exact voxel centers it
// reproduces the stored sample.
type SimpleFieldEvaluator struct {
	ODFs       *models.ODFVolume
	SampleMesh *sphere.Mesh
}

// Mesh returns the mesh the served samples are defined on.
func (e *SimpleFieldEvaluator) Mesh() *sphere.Mesh { return e.SampleMesh }

// Bounds returns the grid shape of the backing volume.
func (e *SimpleFieldEvaluator) Bounds() (nx, ny, nz int) {
	return e.ODFs.NX, e.ODFs.NY, e.ODFs.NZ
}

// FieldAt interpolates the per-voxel samples at the continuous
// voxel-space position p. Positions outside the grid clamp to the
// border voxels.
func (e *SimpleFieldEvaluator) FieldAt(p [3]float64) []float64 {
	v := e.ODFs
	out := make([]float64, v.NVertices)
	x0, fx := interpCoord(p[0], v.NX)
	y0, fy := interpCoord(p[1], v.NY)
	z0, fz := interpCoord(p[2], v.NZ)

	for dz := 0; dz < 2; dz++ {
		wz := lerpWeight(fz, dz)
		if wz == 0 {
			continue
		}
		for dy := 0; dy < 2; dy++ {
			wy := lerpWeight(fy, dy)
			if wy == 0 {
				continue
			}
			for dx := 0; dx < 2; dx++ {
				w := wz * wy * lerpWeight(fx, dx)
				if w == 0 {
					continue
				}
				sample := v.Sample(v.VoxelIndex(clampIdx(x0+dx, v.NX), clampIdx(y0+dy, v.NY), clampIdx(z0+dz, v.NZ)))
				for i, s := range sample {
					out[i] += w * s
				}
			}
		}
	}
	return out
}

// CoeffFieldEvaluator serves ODF samples reconstructed from fitted
// basis coefficients: the coefficient vectors are interpolated in
// voxel space and multiplied through the basis matrix.
type CoeffFieldEvaluator struct {
	// Coeffs holds one coefficient vector per voxel, NCoeffs values each
	Coeffs     []float64
	NX, NY, NZ int
	NCoeffs    int

	// Basis is the NCoeffs x NVertices evaluation matrix
	Basis      *mat.Dense
	SampleMesh *sphere.Mesh
}

// Mesh returns the mesh the reconstructed samples are defined on.
func (e *CoeffFieldEvaluator) Mesh() *sphere.Mesh { return e.SampleMesh }

// Bounds returns the grid shape of the coefficient volume.
func (e *CoeffFieldEvaluator) Bounds() (nx, ny, nz int) {
	return e.NX, e.NY, e.NZ
}

// FieldAt reconstructs the ODF sample at the continuous voxel-space
// position p.
func (e *CoeffFieldEvaluator) FieldAt(p [3]float64) []float64 {
	coeffs := make([]float64, e.NCoeffs)
	x0, fx := interpCoord(p[0], e.NX)
	y0, fy := interpCoord(p[1], e.NY)
	z0, fz := interpCoord(p[2], e.NZ)

	for dz := 0; dz < 2; dz++ {
		wz := lerpWeight(fz, dz)
		if wz == 0 {
			continue
		}
		for dy := 0; dy < 2; dy++ {
			wy := lerpWeight(fy, dy)
			if wy == 0 {
				continue
			}
			for dx := 0; dx < 2; dx++ {
				w := wz * wy * lerpWeight(fx, dx)
				if w == 0 {
					continue
				}
				vi := (clampIdx(x0+dx, e.NX)*e.NY+clampIdx(y0+dy, e.NY))*e.NZ + clampIdx(z0+dz, e.NZ)
				c := e.Coeffs[vi*e.NCoeffs : (vi+1)*e.NCoeffs]
				for i, cv := range c {
					coeffs[i] += w * cv
				}
			}
		}
	}

	_, nv := e.Basis.Dims()
	out := make([]float64, nv)
	cv := mat.NewVecDense(e.NCoeffs, coeffs)
	res := mat.NewVecDense(nv, out)
	res.MulVec(e.Basis.T(), cv)
	return out
}

// interpCoord splits a continuous coordinate into the lower cell index
// and the fractional offset, clamped to the grid.
func interpCoord(c float64, n int) (int, float64) {
	if c <= 0 {
		return 0, 0
	}
	if c >= float64(n-1) {
		return n - 1, 0
	}
	i := int(c)
	return i, c - float64(i)
}

func lerpWeight(frac float64, side int) float64 {
	if side == 0 {
		return 1 - frac
	}
	return frac
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
