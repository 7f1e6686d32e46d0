package visualization

import (
	"fmt"
	"log"

	"odfpeaks/pkg/peaks"
)

// DType identifies the element type of a volume handed to a display
// surface. Renderers only accept a subset of types, so wider types are
// narrowed before upload.
type DType int

const (
	Int8 DType = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	Complex64
)

func (d DType) String() string {
	switch d {
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Int64:
		return "int64"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Complex64:
		return "complex64"
	default:
		return fmt.Sprintf("DType(%d)", int(d))
	}
}

// Image describes a volume as a display surface sees it: its array
// shape (3 dims, or 4 with a series axis) and element type.
type Image struct {
	Shape []int
	DType DType
}

// CheckImageShapes reports whether a set of images can share one
// display grid. The first result is true when every image has the
// same 3D grid shape. The second is true when, additionally, at least
// one image carries a 4th (series) axis and all images that do agree
// on its length, so a shared series slider can drive them.
func CheckImageShapes(images []Image) (sameGrid, syncedSeries bool) {
	if len(images) == 0 {
		return true, false
	}
	base := images[0].Shape
	if len(base) < 3 {
		return false, false
	}
	for _, img := range images[1:] {
		s := img.Shape
		if len(s) < 3 || s[0] != base[0] || s[1] != base[1] || s[2] != base[2] {
			return false, false
		}
	}

	series := -1
	any4D := false
	for _, img := range images {
		if len(img.Shape) == 4 {
			any4D = true
			if series == -1 {
				series = img.Shape[3]
			} else if img.Shape[3] != series {
				return true, false
			}
		}
	}
	return true, any4D
}

// DisplaySafeDType narrows an element type to one a display surface
// accepts. 64-bit integers narrow to 32-bit and float64 to float32;
// the second result is false for types with no displayable narrowing.
func DisplaySafeDType(d DType) (DType, bool) {
	switch d {
	case Int8, Uint8, Int16, Uint16, Int32, Uint32, Float32:
		return d, true
	case Int64:
		return Int32, true
	case Uint64:
		return Uint32, true
	case Float64:
		return Float32, true
	default:
		return d, false
	}
}

// CheckImageDtypes filters a set of images to those that can be
// displayed, narrowing element types where needed. Images with
// unsupported types are dropped with a logged warning.
func CheckImageDtypes(images []Image) []Image {
	out := make([]Image, 0, len(images))
	for _, img := range images {
		d, ok := DisplaySafeDType(img.DType)
		if !ok {
			log.Printf("warning: skipping image with unsupported dtype %s", img.DType)
			continue
		}
		img.DType = d
		out = append(out, img)
	}
	return out
}

// CheckPeakShape reports whether a peak-directions array of the given
// shape can be overlaid on a volume with the given grid shape: it must
// be rank 5, match the grid on the first three axes, and hold
// 3-vectors on the last.
func CheckPeakShape(peakShape []int, gridShape [3]int) bool {
	if len(peakShape) != 5 {
		return false
	}
	return peakShape[0] == gridShape[0] &&
		peakShape[1] == gridShape[1] &&
		peakShape[2] == gridShape[2] &&
		peakShape[4] == 3
}

// ShowEllipsis fits text into availableSize display units by replacing
// its head with an ellipsis when textSize overflows. Sizes are in
// whatever units the display measures rendered text in.
func ShowEllipsis(text string, textSize, availableSize float64) string {
	if textSize <= availableSize || textSize <= 0 {
		return text
	}
	keep := int(availableSize/textSize*float64(len(text))) - 3
	if keep <= 0 {
		return "..."
	}
	if keep >= len(text) {
		return text
	}
	return "..." + text[len(text)-keep:]
}

// UnpackSurface splits a flat vertex buffer and triangle index buffer
// into structured form, validating that the buffers describe a
// well-formed surface.
func UnpackSurface(vertices []float64, faces []int32) ([][3]float64, [][3]int, error) {
	if len(vertices)%3 != 0 {
		return nil, nil, fmt.Errorf("vertex buffer length %d is not a multiple of 3", len(vertices))
	}
	if len(faces)%3 != 0 {
		return nil, nil, fmt.Errorf("face buffer length %d is not a multiple of 3", len(faces))
	}
	nv := len(vertices) / 3
	verts := make([][3]float64, nv)
	for i := range verts {
		verts[i] = [3]float64{vertices[3*i], vertices[3*i+1], vertices[3*i+2]}
	}
	tris := make([][3]int, len(faces)/3)
	for i := range tris {
		for j := 0; j < 3; j++ {
			idx := int(faces[3*i+j])
			if idx < 0 || idx >= nv {
				return nil, nil, fmt.Errorf("face %d references vertex %d, surface has %d", i, idx, nv)
			}
			tris[i][j] = idx
		}
	}
	return verts, tris, nil
}

// ReshapePeaksForVisualization flattens a bundle's peak directions to
// one float32 row of NPeaks*3 values per voxel, the layout peak
// renderers consume.
func ReshapePeaksForVisualization(pam *peaks.PeaksAndMetrics) []float32 {
	out := make([]float32, len(pam.PeakDirs))
	for i, v := range pam.PeakDirs {
		out[i] = float32(v)
	}
	return out
}
