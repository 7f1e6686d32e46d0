package peaks

import (
	"fmt"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"odfpeaks/internal/models"
	"odfpeaks/pkg/sphere"
)

// AggregateOptions configures PeaksFromModel beyond the two filter
// parameters.
type AggregateOptions struct {
	// Mask selects which voxels to process, indexed linearly; nil
	// processes every voxel. Unselected voxels keep zero-filled
	// results with -1 peak indices.
	Mask []bool

	// NPeaks is the number of peak slots per voxel; 0 means 5.
	NPeaks int

	// NormalizePeaks rescales each voxel's peak values so the dominant
	// peak equals 1, preserving the ratios between that voxel's peaks.
	NormalizePeaks bool

	// ReturnODF keeps each voxel's full field sample in the bundle.
	ReturnODF bool

	// ReturnCoeffs additionally fits basis coefficients per voxel and
	// stores them with the basis evaluation matrix. The model must
	// implement BasisModel.
	ReturnCoeffs bool

	// Parallel processes voxels with a worker pool. Results are
	// identical to sequential execution for any worker count.
	Parallel bool

	// NumWorkers is the worker count when Parallel is set: 0 uses all
	// cores, a positive value that many, and a negative value -n
	// leaves n-1 cores free.
	NumWorkers int
}

// defaultNPeaks is the peak slot count used when none is requested.
const defaultNPeaks = 5

// PeaksFromModel fits the model to every selected voxel of a
// volumetric dataset, extracts up to NPeaks peaks per voxel with
// PeakDirections, and assembles the results with per-voxel anisotropy
// metrics into a PeaksAndMetrics bundle.
//
// Voxels are independent units of work, so parallel runs write
// disjoint output slices and need no locking; peak ordering and
// numeric values do not depend on scheduling. The call blocks until
// every voxel is done.
func PeaksFromModel(model Model, data *models.DWIVolume, m *sphere.Mesh, relativePeakThreshold, minSeparationAngle float64, opts *AggregateOptions) (*PeaksAndMetrics, error) {
	if opts == nil {
		opts = &AggregateOptions{}
	}
	npeaks := opts.NPeaks
	if npeaks <= 0 {
		npeaks = defaultNPeaks
	}
	n := data.NumVoxels()
	if opts.Mask != nil && len(opts.Mask) != n {
		return nil, fmt.Errorf("mask has %d entries for %d voxels", len(opts.Mask), n)
	}

	nv := len(m.Vertices)
	pam := &PeaksAndMetrics{
		NX: data.NX, NY: data.NY, NZ: data.NZ,
		NPeaks:      npeaks,
		PeakDirs:    make([]float64, n*npeaks*3),
		PeakValues:  make([]float64, n*npeaks),
		PeakIndices: make([]int32, n*npeaks),
		GFA:         make([]float64, n),
		QA:          make([]float64, n*npeaks),
		NVertices:   nv,
	}
	for i := range pam.PeakIndices {
		pam.PeakIndices[i] = -1
	}
	pam.SphereVertices = make([][3]float64, nv)
	copy(pam.SphereVertices, m.Vertices)
	if opts.ReturnODF {
		pam.ODF = make([]float64, n*nv)
	}

	// The basis pseudoinverse is shared read-only by all workers.
	var basisPinv *mat.Dense
	if opts.ReturnCoeffs {
		bm, ok := model.(BasisModel)
		if !ok {
			return nil, fmt.Errorf("model %T cannot provide basis coefficients", model)
		}
		basis := bm.Basis(m)
		nc, bnv := basis.Dims()
		if bnv != nv {
			return nil, fmt.Errorf("basis covers %d vertices, mesh has %d", bnv, nv)
		}
		pinv, err := leastSquaresPinv(basis)
		if err != nil {
			return nil, fmt.Errorf("failed to factorize basis: %v", err)
		}
		basisPinv = pinv
		pam.NCoeffs = nc
		pam.Coeffs = make([]float64, n*nc)
		pam.Basis = make([]float64, nc*nv)
		for r := 0; r < nc; r++ {
			for c := 0; c < nv; c++ {
				pam.Basis[r*nv+c] = basis.At(r, c)
			}
		}
	}

	workers := effectiveWorkers(opts.Parallel, opts.NumWorkers)
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	// Contiguous voxel ranges per worker: every worker owns a disjoint
	// slice of every output array.
	chunk := (n + workers - 1) / workers
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if err := aggregateVoxel(pam, model, data, m, i, relativePeakThreshold, minSeparationAngle, opts, basisPinv); err != nil {
					errs[w] = fmt.Errorf("voxel %d: %v", i, err)
					return
				}
			}
		}(w, start, end)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return pam, nil
}

// aggregateVoxel fills one voxel's slice of the bundle.
func aggregateVoxel(pam *PeaksAndMetrics, model Model, data *models.DWIVolume, m *sphere.Mesh, i int, relativePeakThreshold, minSeparationAngle float64, opts *AggregateOptions, basisPinv *mat.Dense) error {
	if opts.Mask != nil && !opts.Mask[i] {
		return nil
	}

	fit, err := model.Fit(data.VoxelData(i))
	if err != nil {
		return fmt.Errorf("model fit failed: %v", err)
	}
	odf := fit.ODF(m)

	if pam.ODF != nil {
		copy(pam.ODF[i*pam.NVertices:(i+1)*pam.NVertices], odf)
	}
	pam.GFA[i] = GFA(odf)

	odfMin := floats.Min(odf)
	odfMax := floats.Max(odf)

	dirs, values, indices := PeakDirections(odf, m, relativePeakThreshold, minSeparationAngle, true)
	k := len(values)
	if k > pam.NPeaks {
		k = pam.NPeaks
	}

	base := i * pam.NPeaks
	for j := 0; j < k; j++ {
		pam.PeakDirs[3*(base+j)] = dirs[j][0]
		pam.PeakDirs[3*(base+j)+1] = dirs[j][1]
		pam.PeakDirs[3*(base+j)+2] = dirs[j][2]
		pam.PeakIndices[base+j] = int32(indices[j])
		if odfMax > 0 {
			pam.QA[base+j] = (values[j] - odfMin) / odfMax
		}
		pam.PeakValues[base+j] = values[j]
	}
	if opts.NormalizePeaks && k > 0 && values[0] != 0 {
		for j := 0; j < k; j++ {
			pam.PeakValues[base+j] /= values[0]
		}
	}

	if basisPinv != nil {
		coeffs := mat.NewVecDense(pam.NCoeffs, pam.Coeffs[i*pam.NCoeffs:(i+1)*pam.NCoeffs])
		coeffs.MulVec(basisPinv, mat.NewVecDense(len(odf), odf))
	}
	return nil
}

// leastSquaresPinv returns the pseudoinverse of the transposed basis,
// so that pinv * odf is the least-squares coefficient fit.
func leastSquaresPinv(basis *mat.Dense) (*mat.Dense, error) {
	nc, nv := basis.Dims()
	var qr mat.QR
	bt := mat.DenseCopyOf(basis.T())
	qr.Factorize(bt)

	eye := mat.NewDense(nv, nv, nil)
	for i := 0; i < nv; i++ {
		eye.Set(i, i, 1)
	}
	pinv := mat.NewDense(nc, nv, nil)
	if err := qr.SolveTo(pinv, false, eye); err != nil {
		return nil, err
	}
	return pinv, nil
}

// effectiveWorkers resolves the worker-count convention: zero means
// all cores, a negative value -n leaves n-1 cores free, and
// non-parallel runs are sequential.
func effectiveWorkers(parallel bool, requested int) int {
	if !parallel {
		return 1
	}
	ncpu := runtime.NumCPU()
	switch {
	case requested == 0:
		return ncpu
	case requested > 0:
		return requested
	default:
		w := ncpu - (-requested - 1)
		if w < 1 {
			w = 1
		}
		return w
	}
}
