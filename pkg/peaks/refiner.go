package peaks

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize"

	"odfpeaks/pkg/sphere"
)

// PeakDirectionsNL finds the peak directions of a continuous spherical
// field without committing to a fine mesh. The evaluator is sampled
// once over startMesh (the default mesh when nil) to seed the search,
// then each seed is refined by a local Nelder-Mead maximization over
// the two spherical angles. The refined set goes through the same
// relative-threshold and angular-separation filters as the discrete
// finder, since refinement can drive nearby seeds into the same true
// peak.
//
// Peaks are returned by descending value. No vertex indices are
// reported because refined directions need not coincide with any mesh
// vertex.
func PeakDirectionsNL(ev Evaluator, startMesh *sphere.Mesh, relativePeakThreshold, minSeparationAngle float64) ([][3]float64, []float64) {
	if startMesh == nil {
		startMesh = sphere.Default()
	}

	sample := ev.Evaluate(startMesh)
	seeds, _, _ := PeakDirections(sample, startMesh, relativePeakThreshold, minSeparationAngle, true)
	if len(seeds) == 0 {
		return nil, nil
	}

	dirs := make([][3]float64, len(seeds))
	values := make([]float64, len(seeds))
	for i, seed := range seeds {
		dirs[i], values[i] = refinePeak(ev, seed)
	}

	order := make([]int, len(dirs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return values[order[i]] > values[order[j]]
	})

	// Re-run the dedup policy on the refined, re-sorted set. The
	// cutoff is taken on raw refined values with no baseline shift: a
	// continuous field has no finite sample minimum to shift by.
	cosSep := math.Cos(minSeparationAngle * math.Pi / 180)
	if minSeparationAngle >= 90 {
		cosSep = -1
	}
	cutoff := relativePeakThreshold * values[order[0]]
	var outDirs [][3]float64
	var outValues []float64
	for _, i := range order {
		if values[i] < cutoff {
			break
		}
		similar := false
		for _, d := range outDirs {
			if math.Abs(sphere.Dot(dirs[i], d)) > cosSep {
				similar = true
				break
			}
		}
		if !similar {
			outDirs = append(outDirs, dirs[i])
			outValues = append(outValues, values[i])
		}
	}
	return outDirs, outValues
}

// refinePeak maximizes the evaluator in a neighborhood of the seed
// direction by minimizing its negation over (theta, phi).
func refinePeak(ev Evaluator, seed [3]float64) ([3]float64, float64) {
	eval := func(x []float64) float64 {
		dir := sphere.SphericalToCartesian(x[0], x[1])
		probe := sphere.FromVertices([][3]float64{dir})
		return -ev.Evaluate(probe)[0]
	}
	theta, phi := sphere.CartesianToSpherical(seed)

	problem := optimize.Problem{Func: eval}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-9,
			Iterations: 50,
		},
	}
	result, err := optimize.Minimize(problem, []float64{theta, phi}, settings, &optimize.NelderMead{})
	if err != nil || result == nil {
		// A failed local refinement falls back to the seed itself.
		return seed, -eval([]float64{theta, phi})
	}
	return sphere.SphericalToCartesian(result.X[0], result.X[1]), -result.F
}
