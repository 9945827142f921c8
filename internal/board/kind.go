package board

import "strings"

// Kind identifies one of the supported duel boards.
type Kind uint8

const (
	KindUnknown Kind = iota
	// ThreeInRow is the 3x3 mutual-exclusion board.
	ThreeInRow
	// GravityDrop is the 6x7 four-in-a-row board where moves fall to the lowest free row.
	GravityDrop
	// PairMatching is the 4x5 face-down card board.
	PairMatching
)

// Placement describes how a move descriptor resolves to a cell.
type Placement uint8

const (
	PlaceDirect Placement = iota
	PlaceGravity
)

// Shape is the data carried by each Kind.
type Shape struct {
	Rows      int
	Cols      int
	RunLength int // 0 when the board is not won by runs
	Placement Placement
}

var shapes = map[Kind]Shape{
	ThreeInRow:   {Rows: 3, Cols: 3, RunLength: 3, Placement: PlaceDirect},
	GravityDrop:  {Rows: 6, Cols: 7, RunLength: 4, Placement: PlaceGravity},
	PairMatching: {Rows: 4, Cols: 5, RunLength: 0, Placement: PlaceDirect},
}

func (k Kind) Valid() bool {
	_, ok := shapes[k]
	return ok
}

func (k Kind) Shape() Shape { return shapes[k] }

func (k Kind) String() string {
	switch k {
	case ThreeInRow:
		return "tictactoe"
	case GravityDrop:
		return "connect4"
	case PairMatching:
		return "pairs"
	default:
		return "unknown"
	}
}

// ParseKind accepts the English names and the Korean command aliases.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tictactoe", "ttt", "틱택토", "삼목":
		return ThreeInRow, true
	case "connect4", "c4", "사목", "커넥트포":
		return GravityDrop, true
	case "pairs", "memory", "짝맞추기", "메모리":
		return PairMatching, true
	default:
		return KindUnknown, false
	}
}
