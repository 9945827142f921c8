package board

import "fmt"

// line directions: horizontal, vertical, ↘ (row-col constant), ↙ (row+col constant)
var directions = [4]Pos{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// FindRun reports whether the last move on g completed runLength identical marks.
// Only lines through the last move are scanned since any new run must contain it.
// It returns the cells of the run in line order, or nil when there is no win.
func FindRun(g *Grid, runLength int) ([]Pos, error) {
	last, ok := g.LastMove()
	if !ok {
		return nil, ErrNoLastMove
	}
	mark := g.At(last.Row, last.Col)
	if mark == Empty {
		return nil, fmt.Errorf("%w: cell %d,%d is empty", ErrNoLastMove, last.Row, last.Col)
	}
	if runLength < 1 {
		return nil, fmt.Errorf("run length %d: %w", runLength, ErrOutOfRange)
	}
	for _, d := range directions {
		seg := segment(g, last, d, runLength)
		count := 0
		for i, p := range seg {
			if g.At(p.Row, p.Col) != mark {
				count = 0
				continue
			}
			count++
			if count == runLength {
				run := make([]Pos, runLength)
				copy(run, seg[i-runLength+1:i+1])
				return run, nil
			}
		}
	}
	return nil, nil
}

// segment returns the cells on the line through center in direction d, clipped to the
// grid and to at most runLength-1 steps on each side.
func segment(g *Grid, center, d Pos, runLength int) []Pos {
	back := 0
	for back < runLength-1 && g.InBounds(center.Row-d.Row*(back+1), center.Col-d.Col*(back+1)) {
		back++
	}
	fwd := 0
	for fwd < runLength-1 && g.InBounds(center.Row+d.Row*(fwd+1), center.Col+d.Col*(fwd+1)) {
		fwd++
	}
	seg := make([]Pos, 0, back+fwd+1)
	for i := -back; i <= fwd; i++ {
		seg = append(seg, Pos{Row: center.Row + d.Row*i, Col: center.Col + d.Col*i})
	}
	return seg
}
