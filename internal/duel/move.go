package duel

import (
	"errors"
	"strconv"
	"strings"

	"github.com/park285/critter-kakao-bot/internal/board"
)

var ErrBadMove = errors.New("cannot parse move")

// ParseMove reads a 1-based move typed by a player and returns the 0-based descriptor.
//
//	tictactoe: "5" (keypad order, 1 is top-left) or "2 3" / "2,3" (row col)
//	connect4:  "4" (column)
//	pairs:     "7" (cell index, row-major) or "2 3" (row col)
func ParseMove(k board.Kind, args []string) (Move, error) {
	nums, err := moveNumbers(args)
	if err != nil {
		return Move{}, err
	}
	shape := k.Shape()
	if !k.Valid() {
		return Move{}, ErrInvalidKind
	}
	var mv Move
	switch {
	case shape.Placement == board.PlaceGravity:
		if len(nums) != 1 {
			return Move{}, ErrBadMove
		}
		mv = Move{Row: 0, Col: nums[0] - 1}
	case len(nums) == 1:
		n := nums[0] - 1
		if n < 0 || n >= shape.Rows*shape.Cols {
			return Move{}, board.ErrOutOfRange
		}
		mv = Move{Row: n / shape.Cols, Col: n % shape.Cols}
	case len(nums) == 2:
		mv = Move{Row: nums[0] - 1, Col: nums[1] - 1}
	default:
		return Move{}, ErrBadMove
	}
	if mv.Row < 0 || mv.Row >= shape.Rows || mv.Col < 0 || mv.Col >= shape.Cols {
		return Move{}, board.ErrOutOfRange
	}
	return mv, nil
}

func moveNumbers(args []string) ([]int, error) {
	var out []int
	for _, a := range args {
		for _, f := range strings.FieldsFunc(a, func(r rune) bool { return r == ',' || r == ' ' }) {
			n, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return nil, ErrBadMove
			}
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, ErrBadMove
	}
	return out, nil
}
