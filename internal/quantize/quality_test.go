package quantize

import "testing"

func cellsAt(points [][2]float32) []uint16 {
	cells := make([]uint16, len(points))
	for i, p := range points {
		cells[i] = Cell(p[0], p[1])
	}
	return cells
}

func TestQualityScoreSpreadPattern(t *testing.T) {
	// A wide triangle across quadrants: no penalties apply.
	cells := cellsAt([][2]float32{{0.1, 0.1}, {0.9, 0.1}, {0.5, 0.9}})
	if got := QualityScore(cells); got != 100 {
		t.Errorf("spread triangle scored %d, want 100", got)
	}
}

func TestQualityScorePenalizesSingleQuadrant(t *testing.T) {
	spread := cellsAt([][2]float32{{0.1, 0.1}, {0.9, 0.1}, {0.5, 0.9}})
	cramped := cellsAt([][2]float32{{0.05, 0.05}, {0.45, 0.05}, {0.25, 0.45}})

	if QualityScore(cramped) >= QualityScore(spread) {
		t.Error("single-quadrant pattern should score below a spread one")
	}
}

func TestQualityScorePenalizesClustering(t *testing.T) {
	clustered := cellsAt([][2]float32{{0.50, 0.50}, {0.55, 0.52}, {0.52, 0.56}})
	score := QualityScore(clustered)
	if score > 50 {
		t.Errorf("tight cluster scored %d, want <= 50", score)
	}
}

func TestQualityScorePenalizesStraightLines(t *testing.T) {
	line := cellsAt([][2]float32{{0.1, 0.5}, {0.5, 0.5}, {0.9, 0.5}})
	bent := cellsAt([][2]float32{{0.1, 0.5}, {0.5, 0.9}, {0.9, 0.5}})

	if QualityScore(line) >= QualityScore(bent) {
		t.Error("collinear pattern should score below a bent one")
	}
}

func TestQualityScoreDegenerateInput(t *testing.T) {
	if QualityScore(nil) != 0 {
		t.Error("empty input should score 0")
	}
	if QualityScore([]uint16{5}) != 0 {
		t.Error("single tap should score 0")
	}
}

func TestMinPairwiseDistance(t *testing.T) {
	cells := cellsAt([][2]float32{{0.1, 0.1}, {0.9, 0.9}})
	d := MinPairwiseDistance(cells)
	if d < 1.0 || d > 1.2 {
		t.Errorf("diagonal distance = %v, want ~1.13", d)
	}

	same := []uint16{100, 100}
	if MinPairwiseDistance(same) != 0 {
		t.Error("identical cells should have zero distance")
	}
	if MinPairwiseDistance([]uint16{7}) != 0 {
		t.Error("single cell should report zero")
	}
}
