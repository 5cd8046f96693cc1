package quantize

import "math"

// Quality scoring for grid-strategy patterns.
//
// The score (0-100) penalizes patterns that are easy to guess: all taps
// in one quadrant, taps bunched tightly together, or taps lying on a
// near-straight line. The registration gate in the match package rejects
// scores below its minimum.

const (
	// quadrantPenalty applies when every tap falls in one quadrant.
	quadrantPenalty = 30

	// clusterPenaltyMax applies proportionally as the mean pairwise
	// distance shrinks below clusterSpread.
	clusterPenaltyMax = 40
	clusterSpread     = 0.25

	// linearPenaltyMax applies proportionally as the pattern approaches
	// a straight line.
	linearPenaltyMax = 25
	linearRatio      = 0.05
)

// QualityScore computes the pattern quality of an ordered cell sequence.
func QualityScore(cells []uint16) uint8 {
	if len(cells) < 2 {
		return 0
	}

	pts := make([][2]float64, len(cells))
	for i, c := range cells {
		x, y := CellCenter(c)
		pts[i] = [2]float64{x, y}
	}

	score := 100.0

	if sameQuadrant(pts) {
		score -= quadrantPenalty
	}

	spread := meanPairwiseDistance(pts)
	if spread < clusterSpread {
		score -= (clusterSpread - spread) / clusterSpread * clusterPenaltyMax
	}

	if ratio := minorAxisRatio(pts); ratio < linearRatio {
		score -= (linearRatio - ratio) / linearRatio * linearPenaltyMax
	}

	if score < 0 {
		score = 0
	}
	return uint8(math.Round(score))
}

// MinPairwiseDistance returns the smallest distance between any two taps,
// in normalized field units.
func MinPairwiseDistance(cells []uint16) float64 {
	min := math.MaxFloat64
	for i := 0; i < len(cells); i++ {
		xi, yi := CellCenter(cells[i])
		for j := i + 1; j < len(cells); j++ {
			xj, yj := CellCenter(cells[j])
			d := math.Hypot(xi-xj, yi-yj)
			if d < min {
				min = d
			}
		}
	}
	if min == math.MaxFloat64 {
		return 0
	}
	return min
}

func sameQuadrant(pts [][2]float64) bool {
	qx := pts[0][0] >= 0.5
	qy := pts[0][1] >= 0.5
	for _, p := range pts[1:] {
		if (p[0] >= 0.5) != qx || (p[1] >= 0.5) != qy {
			return false
		}
	}
	return true
}

func meanPairwiseDistance(pts [][2]float64) float64 {
	var sum float64
	var n int
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			sum += math.Hypot(pts[i][0]-pts[j][0], pts[i][1]-pts[j][1])
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// minorAxisRatio returns the ratio of the minor to major principal axis
// of the point spread. Values near zero indicate a near-linear pattern.
func minorAxisRatio(pts [][2]float64) float64 {
	var mx, my float64
	for _, p := range pts {
		mx += p[0]
		my += p[1]
	}
	n := float64(len(pts))
	mx /= n
	my /= n

	var sxx, syy, sxy float64
	for _, p := range pts {
		dx := p[0] - mx
		dy := p[1] - my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	sxx /= n
	syy /= n
	sxy /= n

	// Eigenvalues of the 2x2 covariance matrix.
	trace := sxx + syy
	det := sxx*syy - sxy*sxy
	disc := math.Sqrt(math.Max(0, trace*trace/4-det))
	major := trace/2 + disc
	minor := trace/2 - disc

	if major <= 0 {
		return 0
	}
	if minor < 0 {
		minor = 0
	}
	return minor / major
}
