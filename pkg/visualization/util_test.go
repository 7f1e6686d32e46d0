package visualization

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"

	"odfpeaks/pkg/peaks"
)

func TestCheckImageShapes(t *testing.T) {
	grid := func(shape ...int) Image {
		return Image{Shape: shape, DType: Float64}
	}

	cases := []struct {
		name       string
		images     []Image
		sameGrid   bool
		syncSeries bool
	}{
		{"none", nil, true, false},
		{"matching 3D", []Image{grid(197, 233, 189), grid(197, 233, 189)}, true, false},
		{"mismatched 3D", []Image{grid(197, 233, 189), grid(200, 233, 189)}, false, false},
		{"mixed 3D and 4D", []Image{grid(197, 233, 189, 10), grid(197, 233, 189)}, true, true},
		{"matching 4D", []Image{grid(197, 233, 189, 15), grid(197, 233, 189, 15)}, true, true},
		{"series mismatch", []Image{grid(198, 233, 189, 14), grid(198, 233, 189, 15)}, true, false},
		{"grid and series mismatch", []Image{grid(197, 233, 189, 15), grid(198, 233, 189, 14)}, false, false},
		{"grid mismatch same series", []Image{grid(197, 233, 189, 15), grid(198, 233, 189, 15)}, false, false},
	}

	for _, c := range cases {
		sameGrid, syncSeries := CheckImageShapes(c.images)
		if sameGrid != c.sameGrid || syncSeries != c.syncSeries {
			t.Errorf("%s: got (%v, %v), expected (%v, %v)",
				c.name, sameGrid, syncSeries, c.sameGrid, c.syncSeries)
		}
	}
}

func TestDisplaySafeDType(t *testing.T) {
	cases := []struct {
		in   DType
		want DType
		ok   bool
	}{
		{Uint8, Uint8, true},
		{Int16, Int16, true},
		{Int32, Int32, true},
		{Float32, Float32, true},
		{Int64, Int32, true},
		{Uint64, Uint32, true},
		{Float64, Float32, true},
		{Complex64, Complex64, false},
	}
	for _, c := range cases {
		got, ok := DisplaySafeDType(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("%s: got (%s, %v), expected (%s, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestCheckImageDtypes(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	images := []Image{
		{Shape: []int{5, 5, 5}, DType: Float64},
		{Shape: []int{5, 5, 5}, DType: Complex64},
		{Shape: []int{5, 5, 5}, DType: Int64},
	}
	out := CheckImageDtypes(images)

	if len(out) != 2 {
		t.Fatalf("Expected 2 displayable images, got %d", len(out))
	}
	if out[0].DType != Float32 {
		t.Errorf("float64 image narrowed to %s, expected float32", out[0].DType)
	}
	if out[1].DType != Int32 {
		t.Errorf("int64 image narrowed to %s, expected int32", out[1].DType)
	}
	if !strings.Contains(buf.String(), "complex64") {
		t.Errorf("Expected a warning naming the dropped dtype, got %q", buf.String())
	}
}

func TestCheckPeakShape(t *testing.T) {
	grid := [3]int{100, 100, 100}

	if !CheckPeakShape([]int{100, 100, 100, 10, 3}, grid) {
		t.Errorf("Matching peak shape rejected")
	}
	if CheckPeakShape([]int{100, 100, 50, 10, 3}, grid) {
		t.Errorf("Grid mismatch accepted")
	}
	if CheckPeakShape([]int{100, 100, 100, 10}, grid) {
		t.Errorf("Rank-4 shape accepted")
	}
	if CheckPeakShape([]int{100, 100, 100, 10, 6}, grid) {
		t.Errorf("Non-3-vector last axis accepted")
	}
}

func TestShowEllipsis(t *testing.T) {
	text := "IAmALongFileName"

	if got := ShowEllipsis(text, 10, 5); got != "...eName" {
		t.Errorf("Overflowing text: got %q, expected %q", got, "...eName")
	}
	if got := ShowEllipsis(text, 10, 12); got != text {
		t.Errorf("Fitting text: got %q, expected it unchanged", got)
	}
	if got := ShowEllipsis(text, 0, 5); got != text {
		t.Errorf("Zero text size: got %q, expected it unchanged", got)
	}
	if got := ShowEllipsis(text, 100, 1); got != "..." {
		t.Errorf("Tiny available size: got %q, expected bare ellipsis", got)
	}
}

func TestUnpackSurface(t *testing.T) {
	vertices := []float64{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
	}
	faces := []int32{0, 1, 2}

	verts, tris, err := UnpackSurface(vertices, faces)
	if err != nil {
		t.Fatalf("UnpackSurface failed: %v", err)
	}
	if len(verts) != 3 || len(tris) != 1 {
		t.Fatalf("Got %d vertices and %d faces, expected 3 and 1", len(verts), len(tris))
	}
	if verts[1] != [3]float64{1, 0, 0} {
		t.Errorf("Vertex 1 is %v, expected (1,0,0)", verts[1])
	}
	if tris[0] != [3]int{0, 1, 2} {
		t.Errorf("Face 0 is %v, expected (0,1,2)", tris[0])
	}

	if _, _, err := UnpackSurface(vertices[:4], faces); err == nil {
		t.Errorf("Expected an error for a ragged vertex buffer")
	}
	if _, _, err := UnpackSurface(vertices, faces[:2]); err == nil {
		t.Errorf("Expected an error for a ragged face buffer")
	}
	if _, _, err := UnpackSurface(vertices, []int32{0, 1, 3}); err == nil {
		t.Errorf("Expected an error for an out-of-range face index")
	}
}

func TestReshapePeaksForVisualization(t *testing.T) {
	pam := &peaks.PeaksAndMetrics{
		NX: 1, NY: 1, NZ: 2,
		NPeaks:   2,
		PeakDirs: []float64{1, 0, 0, 0, 1, 0, 0, 0, 1, 0.5, -0.5, 0.25},
	}
	out := ReshapePeaksForVisualization(pam)
	if len(out) != len(pam.PeakDirs) {
		t.Fatalf("Got %d values, expected %d", len(out), len(pam.PeakDirs))
	}
	for i, v := range pam.PeakDirs {
		if out[i] != float32(v) {
			t.Errorf("Value %d: got %v, expected %v", i, out[i], float32(v))
		}
	}
}
