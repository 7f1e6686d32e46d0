package peaks

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Binary bundle format: a fixed header followed by the arrays in a
// fixed order, all little-endian. Optional arrays are flagged in the
// header. Floats are written raw as 64-bit IEEE, so a round trip is
// bit-exact.
var bundleMagic = [6]byte{'O', 'D', 'F', 'P', 'A', 'M'}

const bundleVersion uint16 = 1

const (
	flagHasODF uint16 = 1 << iota
	flagHasCoeffs
)

// Serialize writes the bundle in the binary format.
func (p *PeaksAndMetrics) Serialize(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(bundleMagic[:]); err != nil {
		return fmt.Errorf("failed to write header: %v", err)
	}
	var flags uint16
	if p.ODF != nil {
		flags |= flagHasODF
	}
	if p.Coeffs != nil {
		flags |= flagHasCoeffs
	}
	header := []any{
		bundleVersion,
		flags,
		int32(p.NX), int32(p.NY), int32(p.NZ),
		int32(p.NPeaks),
		int32(p.NVertices),
		int32(p.NCoeffs),
		int32(len(p.SphereVertices)),
	}
	for _, field := range header {
		if err := binary.Write(bw, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("failed to write header: %v", err)
		}
	}

	arrays := []any{p.PeakDirs, p.PeakValues, p.PeakIndices, p.GFA, p.QA}
	if p.ODF != nil {
		arrays = append(arrays, p.ODF)
	}
	if p.Coeffs != nil {
		arrays = append(arrays, p.Coeffs, p.Basis)
	}
	for _, arr := range arrays {
		if err := binary.Write(bw, binary.LittleEndian, arr); err != nil {
			return fmt.Errorf("failed to write bundle array: %v", err)
		}
	}
	for _, v := range p.SphereVertices {
		if err := binary.Write(bw, binary.LittleEndian, v[:]); err != nil {
			return fmt.Errorf("failed to write sphere vertices: %v", err)
		}
	}
	return bw.Flush()
}

// ReadBundle deserializes a bundle written by Serialize.
func ReadBundle(r io.Reader) (*PeaksAndMetrics, error) {
	br := bufio.NewReader(r)

	var magic [6]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read header: %v", err)
	}
	if magic != bundleMagic {
		return nil, fmt.Errorf("not a peaks bundle (bad magic %q)", magic)
	}
	var version, flags uint16
	var nx, ny, nz, npeaks, nvertices, ncoeffs, nsphere int32
	for _, field := range []any{&version, &flags, &nx, &ny, &nz, &npeaks, &nvertices, &ncoeffs, &nsphere} {
		if err := binary.Read(br, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("failed to read header: %v", err)
		}
	}
	if version != bundleVersion {
		return nil, fmt.Errorf("unsupported bundle version %d", version)
	}

	n := int(nx) * int(ny) * int(nz)
	p := &PeaksAndMetrics{
		NX: int(nx), NY: int(ny), NZ: int(nz),
		NPeaks:      int(npeaks),
		NVertices:   int(nvertices),
		NCoeffs:     int(ncoeffs),
		PeakDirs:    make([]float64, n*int(npeaks)*3),
		PeakValues:  make([]float64, n*int(npeaks)),
		PeakIndices: make([]int32, n*int(npeaks)),
		GFA:         make([]float64, n),
		QA:          make([]float64, n*int(npeaks)),
	}
	if flags&flagHasODF != 0 {
		p.ODF = make([]float64, n*int(nvertices))
	}
	if flags&flagHasCoeffs != 0 {
		p.Coeffs = make([]float64, n*int(ncoeffs))
		p.Basis = make([]float64, int(ncoeffs)*int(nvertices))
	}

	arrays := []any{p.PeakDirs, p.PeakValues, p.PeakIndices, p.GFA, p.QA}
	if p.ODF != nil {
		arrays = append(arrays, p.ODF)
	}
	if p.Coeffs != nil {
		arrays = append(arrays, p.Coeffs, p.Basis)
	}
	for _, arr := range arrays {
		if err := binary.Read(br, binary.LittleEndian, arr); err != nil {
			return nil, fmt.Errorf("failed to read bundle array: %v", err)
		}
	}

	p.SphereVertices = make([][3]float64, int(nsphere))
	for i := range p.SphereVertices {
		if err := binary.Read(br, binary.LittleEndian, p.SphereVertices[i][:]); err != nil {
			return nil, fmt.Errorf("failed to read sphere vertices: %v", err)
		}
	}
	return p, nil
}

// SaveBundle writes the bundle to a file.
func SaveBundle(path string, p *PeaksAndMetrics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create bundle file: %v", err)
	}
	defer f.Close()
	if err := p.Serialize(f); err != nil {
		return err
	}
	return f.Sync()
}

// LoadBundle reads a bundle from a file.
func LoadBundle(path string) (*PeaksAndMetrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle file: %v", err)
	}
	defer f.Close()
	return ReadBundle(f)
}
