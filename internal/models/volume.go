package models

// DWIVolume represents a 4D diffusion-weighted dataset: a 3D grid of
// voxels where each voxel holds a 1D measurement vector (the diffusion
// signal, or any per-voxel sample a model knows how to fit).
type DWIVolume struct {
	// Data is the full dataset as a 1D array in row-major order, voxel
	// samples contiguous: Data[((x*NY+y)*NZ+z)*NSamples : ...+NSamples]
	Data []float64

	// NX, NY, NZ are the grid dimensions in voxels
	NX, NY, NZ int

	// NSamples is the length of each voxel's measurement vector
	NSamples int
}

// NumVoxels returns the total number of voxels in the grid.
func (v *DWIVolume) NumVoxels() int {
	return v.NX * v.NY * v.NZ
}

// VoxelData returns the measurement vector of the voxel with linear
// index i. The returned slice aliases the volume data.
func (v *DWIVolume) VoxelData(i int) []float64 {
	return v.Data[i*v.NSamples : (i+1)*v.NSamples]
}

// VoxelIndex converts grid coordinates to a linear voxel index.
func (v *DWIVolume) VoxelIndex(x, y, z int) int {
	return (x*v.NY+y)*v.NZ + z
}

// ODFVolume holds one orientation distribution sample per voxel, each
// sample having one value per vertex of a shared sphere mesh.
type ODFVolume struct {
	// Data is laid out like DWIVolume.Data with NVertices values per voxel
	Data []float64

	// NX, NY, NZ are the grid dimensions in voxels
	NX, NY, NZ int

	// NVertices is the number of mesh vertices each sample covers
	NVertices int
}

// NumVoxels returns the total number of voxels in the grid.
func (v *ODFVolume) NumVoxels() int {
	return v.NX * v.NY * v.NZ
}

// Sample returns the ODF sample of the voxel with linear index i.
// The returned slice aliases the volume data.
func (v *ODFVolume) Sample(i int) []float64 {
	return v.Data[i*v.NVertices : (i+1)*v.NVertices]
}

// VoxelIndex converts grid coordinates to a linear voxel index.
func (v *ODFVolume) VoxelIndex(x, y, z int) int {
	return (x*v.NY+y)*v.NZ + z
}

// InBounds reports whether the given grid coordinates address a voxel.
func (v *ODFVolume) InBounds(x, y, z int) bool {
	return x >= 0 && x < v.NX && y >= 0 && y < v.NY && z >= 0 && z < v.NZ
}

// ScalarVolume is a 3D grid with a single scalar per voxel, such as a
// generalized anisotropy map.
type ScalarVolume struct {
	Data       []float64
	NX, NY, NZ int
}

// At returns the scalar at the given grid coordinates.
func (v *ScalarVolume) At(x, y, z int) float64 {
	return v.Data[(x*v.NY+y)*v.NZ+z]
}
