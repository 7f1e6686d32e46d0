package sims

import "odfpeaks/pkg/sphere"

// AngularSimilarity measures how well two direction sets agree. Every
// direction of the smaller set contributes the largest absolute cosine
// it reaches against the other set, so n perfectly recovered
// directions score n regardless of antipodal sign.
func AngularSimilarity(a, b [][3]float64) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	total := 0.0
	for _, u := range a {
		best := 0.0
		for _, v := range b {
			c := sphere.Dot(u, v)
			if c < 0 {
				c = -c
			}
			if c > best {
				best = c
			}
		}
		total += best
	}
	return total
}
