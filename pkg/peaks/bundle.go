package peaks

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"odfpeaks/internal/models"
)

// PeaksAndMetrics is the per-voxel result of aggregating peak
// extraction over a volume. All arrays are flat, row-major over the
// (NX, NY, NZ) grid with NPeaks slots per voxel; slots past a voxel's
// real peak count hold zeros, and -1 in PeakIndices.
type PeaksAndMetrics struct {
	// NX, NY, NZ are the voxel grid dimensions
	NX, NY, NZ int

	// NPeaks is the number of peak slots per voxel
	NPeaks int

	// PeakDirs holds NPeaks unit 3-vectors per voxel: NX*NY*NZ*NPeaks*3
	PeakDirs []float64

	// PeakValues holds the ODF value of each peak slot: NX*NY*NZ*NPeaks
	PeakValues []float64

	// PeakIndices holds the mesh vertex index of each peak slot, -1
	// when the slot is empty: NX*NY*NZ*NPeaks
	PeakIndices []int32

	// GFA is the generalized anisotropy of each voxel's ODF sample
	GFA []float64

	// QA is the quantitative anisotropy of each peak slot
	QA []float64

	// ODF optionally holds each voxel's full field sample,
	// NVertices values per voxel; nil unless requested
	ODF []float64

	// NVertices is the mesh vertex count the samples cover
	NVertices int

	// Coeffs optionally holds each voxel's fitted basis coefficients,
	// NCoeffs values per voxel; nil unless requested
	Coeffs []float64

	// NCoeffs is the coefficient count per voxel
	NCoeffs int

	// Basis is the flattened NCoeffs x NVertices basis evaluation
	// matrix, row-major; nil unless coefficients were requested
	Basis []float64

	// SphereVertices are the mesh vertices the extraction ran on,
	// stored so a deserialized bundle is self-describing
	SphereVertices [][3]float64
}

// NumVoxels returns the total voxel count of the grid.
func (p *PeaksAndMetrics) NumVoxels() int {
	return p.NX * p.NY * p.NZ
}

// PeakDirsAt returns the peak direction slots of the voxel at linear
// index i, dominant peak first.
func (p *PeaksAndMetrics) PeakDirsAt(i int) [][3]float64 {
	out := make([][3]float64, p.NPeaks)
	base := i * p.NPeaks * 3
	for k := 0; k < p.NPeaks; k++ {
		out[k] = [3]float64{
			p.PeakDirs[base+3*k],
			p.PeakDirs[base+3*k+1],
			p.PeakDirs[base+3*k+2],
		}
	}
	return out
}

// PeakValuesAt returns the peak value slots of the voxel at linear
// index i.
func (p *PeaksAndMetrics) PeakValuesAt(i int) []float64 {
	return p.PeakValues[i*p.NPeaks : (i+1)*p.NPeaks]
}

// PeakIndicesAt returns the vertex index slots of the voxel at linear
// index i.
func (p *PeaksAndMetrics) PeakIndicesAt(i int) []int32 {
	return p.PeakIndices[i*p.NPeaks : (i+1)*p.NPeaks]
}

// GFAVolume wraps the GFA array as a scalar volume for slice export.
func (p *PeaksAndMetrics) GFAVolume() *models.ScalarVolume {
	return &models.ScalarVolume{Data: p.GFA, NX: p.NX, NY: p.NY, NZ: p.NZ}
}

// ODFVolume wraps the stored field samples as an ODF volume, or nil if
// they were not retained.
func (p *PeaksAndMetrics) ODFVolume() *models.ODFVolume {
	if p.ODF == nil {
		return nil
	}
	return &models.ODFVolume{
		Data: p.ODF,
		NX:   p.NX, NY: p.NY, NZ: p.NZ,
		NVertices: p.NVertices,
	}
}

// GFA computes the generalized anisotropy of a field sample: the
// normalized dispersion sqrt(n*Var(odf) / sum(odf^2)). A zero sample
// has zero anisotropy.
func GFA(odf []float64) float64 {
	n := len(odf)
	if n < 2 {
		return 0
	}
	sumSq := floats.Dot(odf, odf)
	if sumSq == 0 {
		return 0
	}
	return math.Sqrt(float64(n) * stat.Variance(odf, nil) / sumSq)
}
