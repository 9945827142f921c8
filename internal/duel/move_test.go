package duel

import (
	"errors"
	"testing"

	"github.com/park285/critter-kakao-bot/internal/board"
)

func TestParseMove(t *testing.T) {
	cases := []struct {
		kind board.Kind
		args []string
		want Move
	}{
		{board.ThreeInRow, []string{"1"}, Move{0, 0}},
		{board.ThreeInRow, []string{"5"}, Move{1, 1}},
		{board.ThreeInRow, []string{"9"}, Move{2, 2}},
		{board.ThreeInRow, []string{"2", "3"}, Move{1, 2}},
		{board.ThreeInRow, []string{"3,1"}, Move{2, 0}},
		{board.GravityDrop, []string{"4"}, Move{0, 3}},
		{board.GravityDrop, []string{"7"}, Move{0, 6}},
		{board.PairMatching, []string{"6"}, Move{1, 0}},
		{board.PairMatching, []string{"20"}, Move{3, 4}},
		{board.PairMatching, []string{"4", "5"}, Move{3, 4}},
	}
	for _, c := range cases {
		got, err := ParseMove(c.kind, c.args)
		if err != nil {
			t.Fatalf("%v %v: %v", c.kind, c.args, err)
		}
		if got != c.want {
			t.Fatalf("%v %v: got %+v want %+v", c.kind, c.args, got, c.want)
		}
	}
}

func TestParseMove_Rejects(t *testing.T) {
	cases := []struct {
		kind board.Kind
		args []string
		want error
	}{
		{board.ThreeInRow, nil, ErrBadMove},
		{board.ThreeInRow, []string{"x"}, ErrBadMove},
		{board.ThreeInRow, []string{"10"}, board.ErrOutOfRange},
		{board.ThreeInRow, []string{"0"}, board.ErrOutOfRange},
		{board.ThreeInRow, []string{"1", "2", "3"}, ErrBadMove},
		{board.GravityDrop, []string{"8"}, board.ErrOutOfRange},
		{board.GravityDrop, []string{"1", "2"}, ErrBadMove},
		{board.PairMatching, []string{"5", "1"}, board.ErrOutOfRange},
		{board.KindUnknown, []string{"1"}, ErrInvalidKind},
	}
	for _, c := range cases {
		if _, err := ParseMove(c.kind, c.args); !errors.Is(err, c.want) {
			t.Fatalf("%v %v: got %v want %v", c.kind, c.args, err, c.want)
		}
	}
}
