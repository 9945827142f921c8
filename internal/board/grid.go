package board

import (
	"errors"
	"strings"
)

var (
	ErrOutOfRange   = errors.New("cell out of range")
	ErrCellOccupied = errors.New("cell occupied")
	ErrColumnFull   = errors.New("column full")
	ErrInvalidValue = errors.New("invalid cell value")
	ErrNoLastMove   = errors.New("no last move")
)

// Cell is the state of one square on a mark board.
type Cell uint8

const (
	Empty Cell = iota
	MarkA
	MarkB
)

// Pos addresses a cell, row 0 is the top row.
type Pos struct {
	Row int
	Col int
}

// Grid is a rectangular mark board. It is not safe for concurrent use;
// the duel coordinator is its only writer.
type Grid struct {
	rows    int
	cols    int
	cells   []Cell
	filled  int
	last    Pos
	hasLast bool
}

func NewGrid(rows, cols int) *Grid {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return &Grid{rows: rows, cols: cols, cells: make([]Cell, rows*cols)}
}

// NewGridFor builds an empty grid sized for k.
func NewGridFor(k Kind) *Grid {
	sh := k.Shape()
	return NewGrid(sh.Rows, sh.Cols)
}

func (g *Grid) Rows() int { return g.rows }
func (g *Grid) Cols() int { return g.cols }

func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

// At returns the cell value, Empty when out of range.
func (g *Grid) At(row, col int) Cell {
	if !g.InBounds(row, col) {
		return Empty
	}
	return g.cells[row*g.cols+col]
}

// PlaceAt writes v into an empty cell and records it as the last move.
func (g *Grid) PlaceAt(row, col int, v Cell) error {
	if v != MarkA && v != MarkB {
		return ErrInvalidValue
	}
	if !g.InBounds(row, col) {
		return ErrOutOfRange
	}
	i := row*g.cols + col
	if g.cells[i] != Empty {
		return ErrCellOccupied
	}
	g.cells[i] = v
	g.filled++
	g.last, g.hasLast = Pos{Row: row, Col: col}, true
	return nil
}

// DropInColumn places v in the lowest empty row of col.
func (g *Grid) DropInColumn(col int, v Cell) (Pos, error) {
	if v != MarkA && v != MarkB {
		return Pos{}, ErrInvalidValue
	}
	if col < 0 || col >= g.cols {
		return Pos{}, ErrOutOfRange
	}
	for r := g.rows - 1; r >= 0; r-- {
		if g.cells[r*g.cols+col] == Empty {
			if err := g.PlaceAt(r, col, v); err != nil {
				return Pos{}, err
			}
			return Pos{Row: r, Col: col}, nil
		}
	}
	return Pos{}, ErrColumnFull
}

func (g *Grid) IsFull() bool { return g.filled >= len(g.cells) }

func (g *Grid) Filled() int { return g.filled }

func (g *Grid) LastMove() (Pos, bool) { return g.last, g.hasLast }

// Snapshot copies the grid into row slices.
func (g *Grid) Snapshot() [][]Cell {
	out := make([][]Cell, g.rows)
	for r := 0; r < g.rows; r++ {
		out[r] = append([]Cell(nil), g.cells[r*g.cols:(r+1)*g.cols]...)
	}
	return out
}

// String flattens the grid to '0','1','2' per cell with rows separated by '/'.
func (g *Grid) String() string {
	var b strings.Builder
	b.Grow(len(g.cells) + g.rows)
	for r := 0; r < g.rows; r++ {
		if r > 0 {
			b.WriteByte('/')
		}
		for c := 0; c < g.cols; c++ {
			b.WriteByte(byte('0' + g.cells[r*g.cols+c]))
		}
	}
	return b.String()
}
