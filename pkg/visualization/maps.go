// Package visualization provides display support for peak-extraction
// results: exporting scalar maps (such as generalized anisotropy) as
// 2D image slices, and the shape/dtype reconciliation helpers a viewer
// needs before it can show several volumes side by side.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"odfpeaks/internal/models"
)

// MapViewer extracts 2D slices from a scalar volume, rescaling the
// data range to the full grayscale range for display.
type MapViewer struct {
	vol *models.ScalarVolume

	// lo and hi are the display window, computed from the data
	lo, hi float64
}

// NewMapViewer creates a viewer over a scalar volume. The display
// window spans the volume's value range.
func NewMapViewer(vol *models.ScalarVolume) *MapViewer {
	v := &MapViewer{vol: vol}
	if len(vol.Data) > 0 {
		v.lo, v.hi = vol.Data[0], vol.Data[0]
		for _, x := range vol.Data {
			if x < v.lo {
				v.lo = x
			}
			if x > v.hi {
				v.hi = x
			}
		}
	}
	return v
}

// gray maps a value through the display window to 16-bit grayscale.
func (v *MapViewer) gray(x float64) color.Gray16 {
	if v.hi <= v.lo {
		return color.Gray16{}
	}
	f := (x - v.lo) / (v.hi - v.lo)
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return color.Gray16{Y: uint16(f * 65535)}
}

// ExtractSlice renders the plane at the given position along the
// specified axis as a grayscale image.
func (v *MapViewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	vol := v.vol

	switch axis {
	case "x", "X":
		if position >= vol.NX {
			return nil, fmt.Errorf("position %d exceeds x extent %d", position, vol.NX)
		}
		img := image.NewGray16(image.Rect(0, 0, vol.NY, vol.NZ))
		for y := 0; y < vol.NY; y++ {
			for z := 0; z < vol.NZ; z++ {
				img.SetGray16(y, z, v.gray(vol.At(position, y, z)))
			}
		}
		return img, nil

	case "y", "Y":
		if position >= vol.NY {
			return nil, fmt.Errorf("position %d exceeds y extent %d", position, vol.NY)
		}
		img := image.NewGray16(image.Rect(0, 0, vol.NX, vol.NZ))
		for x := 0; x < vol.NX; x++ {
			for z := 0; z < vol.NZ; z++ {
				img.SetGray16(x, z, v.gray(vol.At(x, position, z)))
			}
		}
		return img, nil

	case "z", "Z":
		if position >= vol.NZ {
			return nil, fmt.Errorf("position %d exceeds z extent %d", position, vol.NZ)
		}
		img := image.NewGray16(image.Rect(0, 0, vol.NX, vol.NY))
		for x := 0; x < vol.NX; x++ {
			for y := 0; y < vol.NY; y++ {
				img.SetGray16(x, y, v.gray(vol.At(x, y, position)))
			}
		}
		return img, nil

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *MapViewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified
// axis into outputDir.
func (v *MapViewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.vol.NX
	case "y", "Y":
		maxPos = v.vol.NY
	case "z", "Z":
		maxPos = v.vol.NZ
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
