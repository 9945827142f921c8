package duel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/park285/critter-kakao-bot/internal/board"
)

func TestSession_ThreeInRowWin(t *testing.T) {
	h := newHarness(t, Params{Kind: board.ThreeInRow})
	h.play(t, a(0, 0), b(1, 1), a(0, 1), b(1, 0), a(0, 2))
	h.start()
	res := h.wait(t)

	if res.Status != StatusWonByA || res.Reason != ReasonWin {
		t.Fatalf("status=%v reason=%v", res.Status, res.Reason)
	}
	if res.Winner != "alice" {
		t.Fatalf("winner=%q", res.Winner)
	}
	want := []board.Pos{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}}
	if len(res.WinningRun) != len(want) {
		t.Fatalf("run=%v", res.WinningRun)
	}
	for i := range want {
		if res.WinningRun[i] != want[i] {
			t.Fatalf("run=%v want %v", res.WinningRun, want)
		}
	}
	if res.Turns != 5 || res.Moves != 5 {
		t.Fatalf("turns=%d moves=%d", res.Turns, res.Moves)
	}
	if res.OutcomeA != OutcomeWon || res.OutcomeB != OutcomeLost {
		t.Fatalf("outcomes %v/%v", res.OutcomeA, res.OutcomeB)
	}
}

func TestSession_GravityVerticalWin(t *testing.T) {
	h := newHarness(t, Params{Kind: board.GravityDrop})
	h.play(t,
		Input{Party: "alice", Move: Move{Col: 3}}, Input{Party: "bob", Move: Move{Col: 0}},
		Input{Party: "alice", Move: Move{Col: 3}}, Input{Party: "bob", Move: Move{Col: 1}},
		Input{Party: "alice", Move: Move{Col: 3}}, Input{Party: "bob", Move: Move{Col: 5}},
		Input{Party: "alice", Move: Move{Col: 3}},
	)
	h.start()
	res := h.wait(t)
	if res.Status != StatusWonByA {
		t.Fatalf("status=%v", res.Status)
	}
	if len(res.WinningRun) != 4 {
		t.Fatalf("run=%v", res.WinningRun)
	}
	for i, p := range res.WinningRun {
		if p.Col != 3 || p.Row != 2+i {
			t.Fatalf("run=%v", res.WinningRun)
		}
	}
}

func TestSession_DrawRewardsEachPartyOnce(t *testing.T) {
	h := newHarness(t, Params{Kind: board.ThreeInRow})
	// A B A / A B B / B A A
	h.play(t, a(0, 0), b(0, 1), a(0, 2), b(1, 1), a(1, 0), b(1, 2), a(2, 1), b(2, 0), a(2, 2))
	h.start()
	res := h.wait(t)
	if res.Status != StatusDraw || res.Reason != ReasonBoardFull {
		t.Fatalf("status=%v reason=%v", res.Status, res.Reason)
	}

	rw := h.rew.all()
	if len(rw) != 2 {
		t.Fatalf("rewards=%d want 2", len(rw))
	}
	seen := map[Party]Outcome{}
	for _, r := range rw {
		seen[r.Party] = r.Outcome
	}
	if seen["alice"] != OutcomeDraw || seen["bob"] != OutcomeDraw {
		t.Fatalf("rewards=%v", seen)
	}
}

func TestSession_TimeoutWithoutMovesIsDeclined(t *testing.T) {
	cfg := testConfig()
	cfg.TurnTimeout = 30 * time.Millisecond
	h := newHarness(t, Params{Kind: board.ThreeInRow, Config: cfg})
	h.start()
	res := h.wait(t)

	if res.Reason != ReasonTimeout || !res.Declined {
		t.Fatalf("reason=%v declined=%v", res.Reason, res.Declined)
	}
	if res.OutcomeA != OutcomeDeclined || res.OutcomeB != OutcomeDeclined {
		t.Fatalf("outcomes %v/%v", res.OutcomeA, res.OutcomeB)
	}
	if res.Winner != "" || res.Forfeiter != "" {
		t.Fatalf("winner=%q forfeiter=%q", res.Winner, res.Forfeiter)
	}
	if n := len(h.rew.all()); n != 2 {
		t.Fatalf("rewards=%d", n)
	}
}

func TestSession_TimeoutAfterMoveForfeitsActiveParty(t *testing.T) {
	cfg := testConfig()
	cfg.TurnTimeout = 50 * time.Millisecond
	h := newHarness(t, Params{Kind: board.ThreeInRow, Config: cfg})
	h.play(t, a(1, 1))
	h.start()
	res := h.wait(t)

	if res.Status != StatusForfeitByTimeout || res.Reason != ReasonTimeout {
		t.Fatalf("status=%v reason=%v", res.Status, res.Reason)
	}
	if res.Forfeiter != "bob" || res.Winner != "alice" {
		t.Fatalf("forfeiter=%q winner=%q", res.Forfeiter, res.Winner)
	}
	if res.OutcomeA != OutcomeForfeitedByOpponent || res.OutcomeB != OutcomeForfeitedBySelf {
		t.Fatalf("outcomes %v/%v", res.OutcomeA, res.OutcomeB)
	}
}

func TestSession_PairMismatchRevertsAndPassesTurn(t *testing.T) {
	h := newHarness(t, Params{Kind: board.PairMatching})
	h.start()
	// 셔플 없음: (0,0)/(0,1) 이 한 쌍, (0,2) 는 다른 짝
	h.play(t, a(0, 0), a(0, 2))

	reveal := waitView(t, h.pres, func(v View) bool { return v.Event == EventReveal })
	if reveal.Cards[0][0].State != board.FaceUp || reveal.Cards[0][2].State != board.FaceUp {
		t.Fatalf("reveal did not show both cards")
	}

	next := waitView(t, h.pres, func(v View) bool { return v.Event == EventTurn && v.Turn == 1 })
	if next.Active != "bob" {
		t.Fatalf("active=%q want bob", next.Active)
	}
	if next.Pairs != [2]int{} {
		t.Fatalf("pairs=%v", next.Pairs)
	}
	if next.Cards[0][0].State != board.FaceDown || next.Cards[0][2].State != board.FaceDown {
		t.Fatalf("cards not reverted")
	}
	if next.Picked != nil {
		t.Fatalf("pick not cleared")
	}

	if err := h.s.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	res := h.wait(t)
	if res.Reason != ReasonAbort || res.Forfeiter != "bob" {
		t.Fatalf("reason=%v forfeiter=%q", res.Reason, res.Forfeiter)
	}
}

func TestSession_PairMatchKeepsTurnAndCounts(t *testing.T) {
	h := newHarness(t, Params{Kind: board.PairMatching})
	var moves []Input
	for i := 0; i < 20; i++ {
		moves = append(moves, a(i/5, i%5))
	}
	h.start()
	h.play(t, moves...)
	res := h.wait(t)

	if res.Status != StatusWonByA || res.Reason != ReasonAllMatched {
		t.Fatalf("status=%v reason=%v", res.Status, res.Reason)
	}
	if res.Pairs != [2]int{10, 0} {
		t.Fatalf("pairs=%v", res.Pairs)
	}
	if res.Turns != 10 || res.Moves != 20 {
		t.Fatalf("turns=%d moves=%d", res.Turns, res.Moves)
	}
	if strings.ContainsAny(res.Board, ".abcdefghij") {
		t.Fatalf("board=%q", res.Board)
	}
}

func TestSession_PairRoundCapIsDraw(t *testing.T) {
	cfg := testConfig()
	cfg.PairRoundCap = 2
	h := newHarness(t, Params{Kind: board.PairMatching, Config: cfg})
	h.start()
	h.play(t, a(0, 0), a(0, 2), b(0, 0), b(0, 2))
	res := h.wait(t)
	if res.Status != StatusDraw || res.Reason != ReasonRoundCap {
		t.Fatalf("status=%v reason=%v", res.Status, res.Reason)
	}
	if res.Turns != 2 {
		t.Fatalf("turns=%d", res.Turns)
	}
}

func TestSession_PairSameCardTwiceRejected(t *testing.T) {
	h := newHarness(t, Params{Kind: board.PairMatching})
	h.start()
	h.play(t, a(0, 0), a(0, 0))
	rej := waitView(t, h.pres, func(v View) bool { return v.Event == EventRejected })
	if rej.Notice != NoticeOccupied || rej.Actor != "alice" {
		t.Fatalf("notice=%v actor=%q", rej.Notice, rej.Actor)
	}
	if err := h.s.Forfeit("alice"); err != nil {
		t.Fatalf("Forfeit: %v", err)
	}
	res := h.wait(t)
	if res.Moves != 1 {
		t.Fatalf("moves=%d", res.Moves)
	}
}

func TestSession_RejectsOutOfTurnAndInvalid(t *testing.T) {
	h := newHarness(t, Params{Kind: board.ThreeInRow})
	h.play(t, b(0, 0), a(5, 5), a(1, 1), b(1, 1))
	h.start()

	waitView(t, h.pres, func(v View) bool { return v.Event == EventRejected && v.Notice == NoticeOccupied })
	var notices []Notice
	for _, v := range h.pres.all() {
		if v.Event == EventRejected {
			notices = append(notices, v.Notice)
		}
	}
	want := []Notice{NoticeNotYourTurn, NoticeOutOfRange, NoticeOccupied}
	if len(notices) != len(want) {
		t.Fatalf("notices=%v", notices)
	}
	for i := range want {
		if notices[i] != want[i] {
			t.Fatalf("notices=%v want %v", notices, want)
		}
	}
	if v := h.s.View(); v.Active != "bob" || v.Moves != 1 {
		t.Fatalf("active=%q moves=%d", v.Active, v.Moves)
	}

	if err := h.s.Forfeit("bob"); err != nil {
		t.Fatalf("Forfeit: %v", err)
	}
	res := h.wait(t)
	if res.Reason != ReasonResign || res.Forfeiter != "bob" || res.OutcomeA != OutcomeForfeitedByOpponent {
		t.Fatalf("res=%+v", res)
	}
}

func TestSession_ForfeitBeatsQueuedInputs(t *testing.T) {
	h := newHarness(t, Params{Kind: board.ThreeInRow})
	h.play(t, a(0, 0), b(1, 1))
	if err := h.s.Forfeit("alice"); err != nil {
		t.Fatalf("Forfeit: %v", err)
	}
	if err := h.s.Abort(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	h.start()
	res := h.wait(t)

	if res.Reason != ReasonResign {
		t.Fatalf("reason=%v", res.Reason)
	}
	if res.Moves != 0 || !res.Declined {
		t.Fatalf("moves=%d declined=%v", res.Moves, res.Declined)
	}
	if err := h.s.Submit(context.Background(), "alice", Move{}); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("submit after end: %v", err)
	}
	if err := h.s.Forfeit("bob"); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("forfeit after end: %v", err)
	}
}

func TestSession_CancelAbortsAndStillRewards(t *testing.T) {
	h := newHarness(t, Params{Kind: board.GravityDrop})
	h.play(t, Input{Party: "alice", Move: Move{Col: 0}})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		res, err := h.s.Run(ctx)
		h.resCh <- res
		h.errCh <- err
	}()
	waitView(t, h.pres, func(v View) bool { return v.Event == EventTurn && v.Moves == 1 })
	cancel()
	res := h.wait(t)
	if res.Reason != ReasonAbort || res.Forfeiter != "bob" {
		t.Fatalf("reason=%v forfeiter=%q", res.Reason, res.Forfeiter)
	}
	if n := len(h.rew.all()); n != 2 {
		t.Fatalf("rewards=%d", n)
	}
	end := waitView(t, h.pres, func(v View) bool { return v.Event == EventEnd })
	if end.Result == nil || end.Result.SessionID != h.s.ID() {
		t.Fatalf("end view without result")
	}
}

func TestSession_ResolveIsIdempotent(t *testing.T) {
	h := newHarness(t, Params{Kind: board.ThreeInRow})
	h.play(t, a(0, 0), b(1, 1), a(0, 1), b(1, 0), a(0, 2))
	h.start()
	res := h.wait(t)
	h.s.resolve(context.Background(), res)
	h.s.resolve(context.Background(), res)
	if n := len(h.rew.all()); n != 2 {
		t.Fatalf("rewards=%d want 2", n)
	}
}

func TestSession_RunTwice(t *testing.T) {
	h := newHarness(t, Params{Kind: board.ThreeInRow})
	h.play(t, a(0, 0), b(1, 1), a(0, 1), b(1, 0), a(0, 2))
	h.start()
	h.wait(t)
	if _, err := h.s.Run(context.Background()); err == nil {
		t.Fatalf("expected error on second Run")
	}
}

func TestSession_ConcurrentSubmitters(t *testing.T) {
	h := newHarness(t, Params{Kind: board.GravityDrop})
	h.start()

	var wg sync.WaitGroup
	for _, p := range []Party{"alice", "bob"} {
		wg.Add(1)
		go func(p Party) {
			defer wg.Done()
			for i := 0; i < 60; i++ {
				err := h.s.Submit(context.Background(), p, Move{Col: i % 7})
				if errors.Is(err, ErrSessionEnded) {
					return
				}
			}
		}(p)
	}
	wg.Wait()
	if !h.s.Ended() {
		_ = h.s.Abort()
	}
	res := h.wait(t)

	marks := 0
	for _, r := range res.Board {
		if r == '1' || r == '2' {
			marks++
		}
	}
	if marks != res.Moves {
		t.Fatalf("board has %d marks, result says %d moves", marks, res.Moves)
	}
	if res.Turns != res.Moves {
		t.Fatalf("turns=%d moves=%d", res.Turns, res.Moves)
	}
}

func TestNewSession_Validation(t *testing.T) {
	if _, err := NewSession(Params{Kind: board.KindUnknown, PartyA: "a", PartyB: "b"}); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("kind: %v", err)
	}
	if _, err := NewSession(Params{Kind: board.ThreeInRow, PartyA: "a", PartyB: " a "}); !errors.Is(err, ErrSameParty) {
		t.Fatalf("same: %v", err)
	}
	if _, err := NewSession(Params{Kind: board.ThreeInRow, PartyA: "", PartyB: "b"}); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("empty: %v", err)
	}
	s, err := NewSession(Params{Kind: board.ThreeInRow, PartyA: "a", PartyB: "b"})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if s.ID() == "" {
		t.Fatalf("expected generated id")
	}
	if err := s.Submit(context.Background(), "c", Move{}); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("stranger: %v", err)
	}
}

func TestSession_PresenterErrorsDoNotChangeOutcome(t *testing.T) {
	rew := &recRewarder{}
	var presented atomic.Int32
	s, err := NewSession(Params{
		Kind:   board.ThreeInRow,
		PartyA: "alice",
		PartyB: "bob",
		Config: testConfig(),
		Presenter: PresenterFunc(func(context.Context, View) error {
			presented.Add(1)
			return errors.New("room unreachable")
		}),
		Resolver: NewResolver(rew, nil),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	for _, in := range []Input{a(0, 0), b(1, 1), a(0, 1), b(1, 0), a(0, 2)} {
		if err := s.Submit(context.Background(), in.Party, in.Move); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusWonByA || res.Reason != ReasonWin {
		t.Fatalf("status=%v reason=%v", res.Status, res.Reason)
	}
	if n := len(rew.all()); n != 2 {
		t.Fatalf("rewards=%d want 2", n)
	}
	if presented.Load() == 0 {
		t.Fatalf("presenter never called")
	}
}

func TestSession_InputAfterDeadlineIsTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.TurnTimeout = 30 * time.Millisecond
	rew := &recRewarder{}
	var first atomic.Bool
	s, err := NewSession(Params{
		Kind:   board.ThreeInRow,
		PartyA: "alice",
		PartyB: "bob",
		Config: cfg,
		Presenter: PresenterFunc(func(_ context.Context, v View) error {
			// 첫 턴 화면이 마감보다 늦게 끝나면 대기 중인 입력도 마감 이후 입력
			if v.Event == EventTurn && first.CompareAndSwap(false, true) {
				time.Sleep(3 * cfg.TurnTimeout)
			}
			return nil
		}),
		Resolver: NewResolver(rew, nil),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Submit(context.Background(), "alice", Move{Row: 1, Col: 1}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Reason != ReasonTimeout || res.Status != StatusForfeitByTimeout {
		t.Fatalf("status=%v reason=%v", res.Status, res.Reason)
	}
	if res.Moves != 0 || !res.Declined {
		t.Fatalf("moves=%d declined=%v", res.Moves, res.Declined)
	}
	if res.Board != "000/000/000" {
		t.Fatalf("board=%q", res.Board)
	}
	if n := len(rew.all()); n != 2 {
		t.Fatalf("rewards=%d want 2", n)
	}
}

func TestSession_SubmitRacingEndLeavesNothingQueued(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 2
	h := newHarness(t, Params{Kind: board.ThreeInRow, Config: cfg})
	h.start()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				// bob 의 차례가 아니므로 모두 거절되거나 종료 후 거부됨
				err := h.s.Submit(context.Background(), "bob", Move{Row: 0, Col: 0})
				if errors.Is(err, ErrSessionEnded) {
					return
				}
			}
		}()
	}
	if err := h.s.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	res := h.wait(t)
	wg.Wait()

	if res.Reason != ReasonAbort {
		t.Fatalf("reason=%v", res.Reason)
	}
	if n := len(h.s.inputs); n != 0 {
		t.Fatalf("inputs queued after end: %d", n)
	}
	if err := h.s.Submit(context.Background(), "alice", Move{Row: 1, Col: 1}); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("submit after end: %v", err)
	}
}

func TestSession_ResolveLogsInvariant(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s, err := NewSession(Params{Kind: board.ThreeInRow, PartyA: "alice", PartyB: "bob", Config: testConfig(), Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.resolve(context.Background(), Result{SessionID: s.ID(), Status: StatusInProgress})
	if n := logs.FilterMessage("duel_invariant").Len(); n != 1 {
		t.Fatalf("duel_invariant logs=%d", n)
	}
}
