package peaks

import (
	"math"
	"sort"

	"odfpeaks/pkg/sphere"
)

// PeakDirections finds the dominant directions of an ODF sampled over
// the vertices of a mesh.
//
// The field is first shifted by its minimum, so a constant field has
// no local maxima at all, and a field whose strongest local maximum is
// negative on the original scale produces no peaks either. Local
// maxima are vertices strictly greater than every mesh neighbor; a
// vertex tying with a neighbor is not a maximum. Candidates below
// relativePeakThreshold
// times the largest shifted candidate are discarded, and the
// survivors are deduplicated greedily in descending value order,
// keeping a candidate only if it is more than minSeparationAngle
// degrees away from every peak already kept. With symmetric set,
// antipodal directions count as the same direction during
// deduplication; two axes are then at most 90 degrees apart, so a
// minSeparationAngle of 90 or more keeps only the strongest peak.
//
// The returned peaks are ordered by descending value. Values are
// reported on the original, unshifted field, so values[i] ==
// odf[indices[i]]. Degenerate fields return empty slices, never an
// error.
func PeakDirections(odf []float64, m *sphere.Mesh, relativePeakThreshold, minSeparationAngle float64, symmetric bool) ([][3]float64, []float64, []int) {
	if len(odf) == 0 {
		return nil, nil, nil
	}
	odfMin := odf[0]
	for _, v := range odf[1:] {
		if v < odfMin {
			odfMin = v
		}
	}

	candidates := localMaxima(odf, odfMin, m)
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	// Descending shifted value, ascending vertex index on exact ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		vi := odf[candidates[i]] - odfMin
		vj := odf[candidates[j]] - odfMin
		if vi != vj {
			return vi > vj
		}
		return candidates[i] < candidates[j]
	})

	// Values are reported on the original scale, so a field that is
	// negative everywhere has nothing to report even when the shifted
	// field has maxima.
	if odf[candidates[0]] < 0 {
		return nil, nil, nil
	}

	n := searchDescending(odf, odfMin, candidates, relativePeakThreshold)
	candidates = candidates[:n]

	kept := removeSimilarDirections(m, candidates, minSeparationAngle, symmetric)

	dirs := make([][3]float64, len(kept))
	values := make([]float64, len(kept))
	indices := make([]int, len(kept))
	for i, idx := range kept {
		dirs[i] = m.Vertices[idx]
		values[i] = odf[idx]
		indices[i] = idx
	}
	return dirs, values, indices
}

// localMaxima returns the vertices whose value strictly exceeds every
// neighbor's and sits strictly above the field minimum. Ties along an
// edge disqualify both endpoints so a flat plateau is never counted
// twice.
func localMaxima(odf []float64, floor float64, m *sphere.Mesh) []int {
	isMax := make([]bool, len(odf))
	for i, v := range odf {
		isMax[i] = v > floor
	}
	for _, e := range m.Edges {
		a, b := e[0], e[1]
		switch {
		case odf[a] < odf[b]:
			isMax[a] = false
		case odf[b] < odf[a]:
			isMax[b] = false
		default:
			isMax[a] = false
			isMax[b] = false
		}
	}
	var out []int
	for i, ok := range isMax {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// searchDescending returns how many leading candidates, already sorted
// by descending shifted value, stay within the relative threshold of
// the largest one.
func searchDescending(odf []float64, floor float64, sorted []int, ratio float64) int {
	if len(sorted) == 0 {
		return 0
	}
	cutoff := ratio * (odf[sorted[0]] - floor)
	for i, idx := range sorted {
		if odf[idx]-floor < cutoff {
			return i
		}
	}
	return len(sorted)
}

// removeSimilarDirections greedily accepts candidates in the given
// order, skipping any whose angle to an already-accepted direction is
// below sepDegrees. In symmetric mode the angle is measured between
// axes, folding antipodes together.
func removeSimilarDirections(m *sphere.Mesh, candidates []int, sepDegrees float64, symmetric bool) []int {
	cosSep := math.Cos(sepDegrees * math.Pi / 180)
	// Folded axes span at most 90 degrees, and cos(90°) in floating
	// point is a small positive number that an exactly perpendicular
	// pair can undercut. Force total folding at the boundary.
	if symmetric && sepDegrees >= 90 {
		cosSep = -1
	}
	kept := make([]int, 0, len(candidates))
	for _, c := range candidates {
		similar := false
		for _, k := range kept {
			d := sphere.Dot(m.Vertices[c], m.Vertices[k])
			if symmetric && d < 0 {
				d = -d
			}
			if d > cosSep {
				similar = true
				break
			}
		}
		if !similar {
			kept = append(kept, c)
		}
	}
	return kept
}
