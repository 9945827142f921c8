package board

import (
	"fmt"
	"strings"
)

// CardState is the visibility of a card on the pair board.
type CardState uint8

const (
	FaceDown CardState = iota
	FaceUp
	Matched
)

// Card is one cell of the pair board. Face identifies its pair.
type Card struct {
	Face  int
	State CardState
}

// Shuffler matches math/rand's Shuffle signature.
type Shuffler func(n int, swap func(i, j int))

// CardBoard holds face-down pairs. Revealed cards that did not match are turned back
// with Hide; matched cards stay up for the rest of the game.
type CardBoard struct {
	rows    int
	cols    int
	cards   []Card
	matched int
	last    Pos
	hasLast bool
}

// NewCardBoard lays out rows*cols/2 pairs and shuffles them. A nil shuffler keeps the
// pairs adjacent (0,0,1,1,...), which tests rely on.
func NewCardBoard(rows, cols int, shuffle Shuffler) (*CardBoard, error) {
	n := rows * cols
	if rows < 1 || cols < 1 || n%2 != 0 {
		return nil, fmt.Errorf("card board %dx%d: %w", rows, cols, ErrOutOfRange)
	}
	cards := make([]Card, n)
	for i := range cards {
		cards[i] = Card{Face: i / 2}
	}
	if shuffle != nil {
		shuffle(n, func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	}
	return &CardBoard{rows: rows, cols: cols, cards: cards}, nil
}

func (b *CardBoard) Rows() int { return b.rows }
func (b *CardBoard) Cols() int { return b.cols }

func (b *CardBoard) InBounds(row, col int) bool {
	return row >= 0 && row < b.rows && col >= 0 && col < b.cols
}

func (b *CardBoard) At(row, col int) Card {
	if !b.InBounds(row, col) {
		return Card{}
	}
	return b.cards[row*b.cols+col]
}

// PlaceAt reveals a face-down card.
func (b *CardBoard) PlaceAt(row, col int) (Card, error) {
	if !b.InBounds(row, col) {
		return Card{}, ErrOutOfRange
	}
	c := &b.cards[row*b.cols+col]
	if c.State != FaceDown {
		return Card{}, ErrCellOccupied
	}
	c.State = FaceUp
	b.last, b.hasLast = Pos{Row: row, Col: col}, true
	return *c, nil
}

// Match locks two revealed cards when their faces agree.
func (b *CardBoard) Match(p, q Pos) bool {
	if p == q || !b.InBounds(p.Row, p.Col) || !b.InBounds(q.Row, q.Col) {
		return false
	}
	x, y := &b.cards[p.Row*b.cols+p.Col], &b.cards[q.Row*b.cols+q.Col]
	if x.State != FaceUp || y.State != FaceUp || x.Face != y.Face {
		return false
	}
	x.State, y.State = Matched, Matched
	b.matched += 2
	return true
}

// Hide turns unmatched revealed cards face down again.
func (b *CardBoard) Hide(ps ...Pos) {
	for _, p := range ps {
		if !b.InBounds(p.Row, p.Col) {
			continue
		}
		if c := &b.cards[p.Row*b.cols+p.Col]; c.State == FaceUp {
			c.State = FaceDown
		}
	}
}

func (b *CardBoard) AllMatched() bool { return b.matched >= len(b.cards) }

// IsFull is AllMatched: a card board has no unplayed cell once every pair is found.
func (b *CardBoard) IsFull() bool { return b.AllMatched() }

func (b *CardBoard) Pairs() int { return len(b.cards) / 2 }

func (b *CardBoard) LastMove() (Pos, bool) { return b.last, b.hasLast }

func (b *CardBoard) Snapshot() [][]Card {
	out := make([][]Card, b.rows)
	for r := 0; r < b.rows; r++ {
		out[r] = append([]Card(nil), b.cards[r*b.cols:(r+1)*b.cols]...)
	}
	return out
}

// String prints '.' for face-down cards and the face letter otherwise; matched cards are upper case.
func (b *CardBoard) String() string {
	var sb strings.Builder
	for r := 0; r < b.rows; r++ {
		if r > 0 {
			sb.WriteByte('/')
		}
		for c := 0; c < b.cols; c++ {
			card := b.cards[r*b.cols+c]
			switch card.State {
			case FaceDown:
				sb.WriteByte('.')
			case FaceUp:
				sb.WriteByte(byte('a' + card.Face%26))
			default:
				sb.WriteByte(byte('A' + card.Face%26))
			}
		}
	}
	return sb.String()
}
