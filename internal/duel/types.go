package duel

import (
	"context"
	"errors"
	"time"

	"github.com/park285/critter-kakao-bot/internal/board"
)

var (
	ErrSessionEnded   = errors.New("duel session ended")
	ErrUnknownSession = errors.New("no active duel for party")
	ErrPartyBusy      = errors.New("party already in a duel")
	ErrSameParty      = errors.New("cannot duel yourself")
	ErrNotParticipant = errors.New("party is not in this duel")
	ErrInvalidKind    = errors.New("unsupported duel kind")
	ErrTooManyGames   = errors.New("too many concurrent duels")
	// ErrInvariant marks programming errors: the state machine was bypassed.
	ErrInvariant = errors.New("duel invariant violated")
)

// Party is an opaque participant identity.
type Party string

// Side is the seat a party occupies. A moves first.
type Side uint8

const (
	SideA Side = iota
	SideB
)

func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s Side) Mark() board.Cell {
	if s == SideA {
		return board.MarkA
	}
	return board.MarkB
}

func (s Side) String() string {
	if s == SideA {
		return "A"
	}
	return "B"
}

// Status is the session lifecycle; it leaves InProgress exactly once.
type Status uint8

const (
	StatusInProgress Status = iota
	StatusWonByA
	StatusWonByB
	StatusDraw
	StatusForfeitByTimeout
)

func (s Status) Terminal() bool { return s != StatusInProgress }

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusWonByA:
		return "WON_BY_A"
	case StatusWonByB:
		return "WON_BY_B"
	case StatusDraw:
		return "DRAW"
	case StatusForfeitByTimeout:
		return "FORFEIT"
	default:
		return "UNKNOWN"
	}
}

func wonBy(s Side) Status {
	if s == SideA {
		return StatusWonByA
	}
	return StatusWonByB
}

// Outcome is the per-party classification handed to the reward collaborator.
type Outcome string

const (
	OutcomeWon                 Outcome = "won"
	OutcomeLost                Outcome = "lost"
	OutcomeDraw                Outcome = "draw"
	OutcomeForfeitedBySelf     Outcome = "forfeited_by_self"
	OutcomeForfeitedByOpponent Outcome = "forfeited_by_opponent"
	OutcomeDeclined            Outcome = "declined"
)

// EndReason explains which terminal condition fired.
type EndReason string

const (
	ReasonWin        EndReason = "win"
	ReasonBoardFull  EndReason = "board_full"
	ReasonAllMatched EndReason = "all_matched"
	ReasonRoundCap   EndReason = "round_cap"
	ReasonTimeout    EndReason = "timeout"
	ReasonResign     EndReason = "resign"
	ReasonAbort      EndReason = "abort"
)

// Move is a move descriptor. Gravity boards read only Col.
type Move struct {
	Row int
	Col int
}

// Input is one player interaction routed to a session.
type Input struct {
	Party Party
	Move  Move
}

// ViewEvent says why a view is being presented.
type ViewEvent string

const (
	EventTurn   ViewEvent = "turn"
	EventReveal ViewEvent = "reveal"
	EventEnd    ViewEvent = "end"
	// EventRejected carries a Notice for an input that changed nothing.
	EventRejected ViewEvent = "rejected"
)

// Notice explains a rejected input.
type Notice string

const (
	NoticeNotYourTurn Notice = "not_your_turn"
	NoticeOutOfRange  Notice = "out_of_range"
	NoticeOccupied    Notice = "occupied"
	NoticeColumnFull  Notice = "column_full"
	NoticeInvalid     Notice = "invalid"
)

func noticeFor(err error) Notice {
	switch {
	case errors.Is(err, board.ErrOutOfRange):
		return NoticeOutOfRange
	case errors.Is(err, board.ErrCellOccupied):
		return NoticeOccupied
	case errors.Is(err, board.ErrColumnFull):
		return NoticeColumnFull
	default:
		return NoticeInvalid
	}
}

// View is a read-only snapshot for the presentation layer.
type View struct {
	SessionID  string
	Kind       board.Kind
	Channel    string
	PartyA     Party
	PartyB     Party
	Active     Party
	Status     Status
	Event      ViewEvent
	Notice     Notice
	Actor      Party
	Reason     EndReason
	Turn       int
	Moves      int
	Marks      [][]board.Cell
	Cards      [][]board.Card
	LastMove   *board.Pos
	Picked     *board.Pos
	WinningRun []board.Pos
	Pairs      [2]int
	Deadline   time.Time
	Result     *Result
}

// Result is the data-level outcome of a finished session.
type Result struct {
	SessionID  string
	Kind       board.Kind
	Channel    string
	PartyA     Party
	PartyB     Party
	Status     Status
	Reason     EndReason
	OutcomeA   Outcome
	OutcomeB   Outcome
	Winner     Party
	Forfeiter  Party
	Declined   bool
	Turns      int
	Moves      int
	Pairs      [2]int
	WinningRun []board.Pos
	Board      string
	StartedAt  time.Time
	EndedAt    time.Time
}

// OutcomeFor returns the classification for p, or "" when p did not play.
func (r Result) OutcomeFor(p Party) Outcome {
	switch p {
	case r.PartyA:
		return r.OutcomeA
	case r.PartyB:
		return r.OutcomeB
	default:
		return ""
	}
}

// Reward is one call to the reward collaborator.
type Reward struct {
	Party   Party
	Side    Side
	Outcome Outcome
	Result  Result
}

// Presenter renders views. Errors are logged and never change game state.
type Presenter interface {
	Present(ctx context.Context, v View) error
}

// Rewarder applies stat changes for one party of a finished duel.
type Rewarder interface {
	Reward(ctx context.Context, r Reward) error
}

// Recorder receives each finished result once (history, events).
type Recorder interface {
	Record(ctx context.Context, res Result) error
}

// StartRecorder is implemented by recorders that also want session starts.
type StartRecorder interface {
	RecordStart(ctx context.Context, v View) error
}

type PresenterFunc func(ctx context.Context, v View) error

func (f PresenterFunc) Present(ctx context.Context, v View) error { return f(ctx, v) }

type RewarderFunc func(ctx context.Context, r Reward) error

func (f RewarderFunc) Reward(ctx context.Context, r Reward) error { return f(ctx, r) }

type RecorderFunc func(ctx context.Context, res Result) error

func (f RecorderFunc) Record(ctx context.Context, res Result) error { return f(ctx, res) }
