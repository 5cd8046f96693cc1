package main

import (
	"fmt"
	"io"

	"tapgate/internal/landmark"
)

// Terminal render dimensions. Width is doubled relative to height to
// compensate for character aspect ratio.
const (
	fieldCols = 64
	fieldRows = 24
)

var kindGlyphs = map[landmark.NodeKind]rune{
	landmark.KindDot:     '.',
	landmark.KindRing:    'o',
	landmark.KindDiamond: '^',
	landmark.KindCross:   '+',
}

// renderField draws the landmark field as ASCII art. The render is a
// memory aid only: which landmarks form the unlock pattern never
// appears anywhere.
func renderField(w io.Writer, f *landmark.Field) {
	grid := make([][]rune, fieldRows)
	for r := range grid {
		grid[r] = make([]rune, fieldCols)
		for c := range grid[r] {
			grid[r][c] = ' '
		}
	}

	for _, n := range f.Nodes {
		col := clampIndex(int(n.X*fieldCols), fieldCols)
		row := clampIndex(int(n.Y*fieldRows), fieldRows)
		grid[row][col] = kindGlyphs[n.Kind]
	}

	fmt.Fprintf(w, "Landmark field (v%d, %d nodes)\n", f.Version, len(f.Nodes))
	fmt.Fprint(w, "+", repeatRune('-', fieldCols), "+\n")
	for _, row := range grid {
		fmt.Fprintf(w, "|%s|\n", string(row))
	}
	fmt.Fprint(w, "+", repeatRune('-', fieldCols), "+\n")
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func repeatRune(r rune, n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = r
	}
	return string(out)
}
