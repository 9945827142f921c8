package board

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func TestCardBoard_RevealMatchHide(t *testing.T) {
	b, err := NewCardBoard(4, 5, nil)
	if err != nil {
		t.Fatalf("NewCardBoard: %v", err)
	}
	if b.Pairs() != 10 {
		t.Fatalf("pairs = %d", b.Pairs())
	}
	first, err := b.PlaceAt(0, 1)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	second, err := b.PlaceAt(0, 2)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if first.Face == second.Face {
		t.Fatalf("unshuffled layout should not pair (0,1) and (0,2)")
	}
	if b.Match(Pos{0, 1}, Pos{0, 2}) {
		t.Fatalf("mismatched faces must not match")
	}
	if _, err := b.PlaceAt(0, 1); !errors.Is(err, ErrCellOccupied) {
		t.Fatalf("revealed card should be occupied, got %v", err)
	}
	b.Hide(Pos{0, 1}, Pos{0, 2})
	if b.At(0, 1).State != FaceDown || b.At(0, 2).State != FaceDown {
		t.Fatalf("hide did not turn cards down: %s", b.String())
	}

	if _, err := b.PlaceAt(0, 0); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if _, err := b.PlaceAt(0, 1); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if !b.Match(Pos{0, 0}, Pos{0, 1}) {
		t.Fatalf("adjacent pair should match")
	}
	b.Hide(Pos{0, 0})
	if b.At(0, 0).State != Matched {
		t.Fatalf("matched card must never revert")
	}
	if got := b.String(); got[:3] != "AA." {
		t.Fatalf("String() = %q", got)
	}
}

func TestCardBoard_AllMatched(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	b, err := NewCardBoard(4, 5, r.Shuffle)
	if err != nil {
		t.Fatalf("NewCardBoard: %v", err)
	}
	byFace := map[int][]Pos{}
	for row := 0; row < b.Rows(); row++ {
		for col := 0; col < b.Cols(); col++ {
			f := b.At(row, col).Face
			byFace[f] = append(byFace[f], Pos{row, col})
		}
	}
	if len(byFace) != 10 {
		t.Fatalf("faces = %d", len(byFace))
	}
	for _, ps := range byFace {
		if len(ps) != 2 {
			t.Fatalf("face count = %d", len(ps))
		}
		if b.AllMatched() {
			t.Fatalf("matched too early")
		}
		for _, p := range ps {
			if _, err := b.PlaceAt(p.Row, p.Col); err != nil {
				t.Fatalf("reveal: %v", err)
			}
		}
		if !b.Match(ps[0], ps[1]) {
			t.Fatalf("pair did not match")
		}
	}
	if !b.AllMatched() || !b.IsFull() {
		t.Fatalf("expected all matched")
	}
}

func TestNewCardBoard_OddCellsRejected(t *testing.T) {
	if _, err := NewCardBoard(3, 3, nil); err == nil {
		t.Fatalf("expected error for odd card count")
	}
}
