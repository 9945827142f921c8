package duel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/critter-kakao-bot/internal/board"
)

// Params describes a new session.
type Params struct {
	ID        string
	Kind      board.Kind
	Channel   string
	PartyA    Party
	PartyB    Party
	Config    Config
	Presenter Presenter
	Resolver  *Resolver
	Logger    *zap.Logger
}

type stopRequest struct {
	reason EndReason
	party  Party
}

// Session is one duel. All board mutation happens on the goroutine that calls Run;
// Submit, Forfeit and Abort only enqueue.
type Session struct {
	id        string
	kind      board.Kind
	shape     board.Shape
	channel   string
	parties   [2]Party
	cfg       Config
	presenter Presenter
	resolver  *Resolver
	log       *zap.Logger

	inputs   chan Input
	stops    chan stopRequest
	done     chan struct{}
	running  atomic.Bool
	ended    atomic.Bool
	resolved atomic.Bool
	// intake 은 Submit(read) 과 closeIntake(write) 사이의 경계
	intake sync.RWMutex

	// coordinator state
	grid      *board.Grid
	cards     *board.CardBoard
	active    Side
	turn      int
	moves     int
	pairs     [2]int
	picked    *board.Pos
	status    Status
	reason    EndReason
	run       []board.Pos
	forfeiter *Side
	startedAt time.Time
	deadline  time.Time

	mu     sync.RWMutex
	view   View
	result *Result
}

func NewSession(p Params) (*Session, error) {
	if !p.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	a := Party(strings.TrimSpace(string(p.PartyA)))
	b := Party(strings.TrimSpace(string(p.PartyB)))
	if a == "" || b == "" {
		return nil, ErrNotParticipant
	}
	if a == b {
		return nil, ErrSameParty
	}
	cfg := p.Config.normalized()
	s := &Session{
		id:        p.ID,
		kind:      p.Kind,
		shape:     p.Kind.Shape(),
		channel:   p.Channel,
		parties:   [2]Party{a, b},
		cfg:       cfg,
		presenter: p.Presenter,
		resolver:  p.Resolver,
		log:       p.Logger,
		inputs:    make(chan Input, cfg.QueueSize),
		stops:     make(chan stopRequest, 1),
		done:      make(chan struct{}),
		active:    SideA,
		status:    StatusInProgress,
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.resolver == nil {
		s.resolver = NewResolver(nil, s.log)
	}
	if p.Kind == board.PairMatching {
		cb, err := board.NewCardBoard(s.shape.Rows, s.shape.Cols, cfg.Shuffle)
		if err != nil {
			return nil, err
		}
		s.cards = cb
	} else {
		s.grid = board.NewGridFor(p.Kind)
	}
	s.view = s.snapshot(EventTurn)
	return s, nil
}

func (s *Session) ID() string { return s.id }
func (s *Session) Kind() board.Kind { return s.kind }
func (s *Session) Channel() string { return s.channel }
func (s *Session) Parties() [2]Party { return s.parties }
func (s *Session) Done() <-chan struct{} { return s.done }

// Ended reports whether the session reached a terminal status.
func (s *Session) Ended() bool { return s.ended.Load() }

func (s *Session) sideOf(p Party) (Side, bool) {
	switch p {
	case s.parties[0]:
		return SideA, true
	case s.parties[1]:
		return SideB, true
	default:
		return SideA, false
	}
}

func (s *Session) party(side Side) Party { return s.parties[side] }

// Submit enqueues a move. Inputs are applied strictly in arrival order; a full
// queue blocks until ctx is done. A nil return means the input was queued before
// the session ended.
func (s *Session) Submit(ctx context.Context, p Party, mv Move) error {
	if _, ok := s.sideOf(p); !ok {
		return ErrNotParticipant
	}
	s.intake.RLock()
	defer s.intake.RUnlock()
	if s.ended.Load() {
		return ErrSessionEnded
	}
	select {
	case s.inputs <- Input{Party: p, Move: mv}:
		return nil
	case <-s.done:
		return ErrSessionEnded
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Forfeit ends the session with p as the forfeiting party. The first stop request wins.
func (s *Session) Forfeit(p Party) error {
	if _, ok := s.sideOf(p); !ok {
		return ErrNotParticipant
	}
	return s.requestStop(stopRequest{reason: ReasonResign, party: p})
}

// Abort ends the session on behalf of the host; queued inputs are dropped.
func (s *Session) Abort() error {
	return s.requestStop(stopRequest{reason: ReasonAbort})
}

func (s *Session) requestStop(req stopRequest) error {
	if s.ended.Load() {
		return ErrSessionEnded
	}
	select {
	case s.stops <- req:
	default:
		// 이미 종료 요청이 있음
	}
	return nil
}

// View returns the latest presented snapshot.
func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Result returns the final result once the session has ended.
func (s *Session) Result() (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// Run drives the session until it ends. Collaborators are invoked on a context that
// survives cancellation of ctx, so a shutdown still settles rewards.
func (s *Session) Run(ctx context.Context) (Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Result{}, errors.New("duel session already running")
	}
	defer close(s.done)

	s.startedAt = time.Now()
	s.recordStart(ctx)
	s.log.Info("duel_start",
		zap.String("session_id", s.id),
		zap.String("kind", s.kind.String()),
		zap.String("channel", s.channel),
		zap.String("party_a", string(s.parties[0])),
		zap.String("party_b", string(s.parties[1])),
	)

	for !s.status.Terminal() {
		if err := s.step(ctx); err != nil {
			s.closeIntake()
			s.log.Error("duel_invariant", zap.String("session_id", s.id), zap.Error(err))
			return Result{}, err
		}
	}

	res := s.finish(context.WithoutCancel(ctx))
	return res, nil
}

// step presents the current turn and waits for one decision: an applied move,
// a stop request or the deadline.
func (s *Session) step(ctx context.Context) error {
	s.deadline = time.Now().Add(s.cfg.TurnTimeout)
	s.present(ctx, s.snapshot(EventTurn))

	timer := time.NewTimer(time.Until(s.deadline))
	defer timer.Stop()

	for {
		// 종료 요청이 대기 중인 입력보다 먼저
		select {
		case req := <-s.stops:
			s.stop(req)
			return nil
		default:
		}
		select {
		case <-ctx.Done():
			s.stop(stopRequest{reason: ReasonAbort})
			return nil
		case req := <-s.stops:
			s.stop(req)
			return nil
		case <-timer.C:
			s.timeout()
			return nil
		case in := <-s.inputs:
			// select 는 준비된 case 를 임의로 고르므로 마감 이후 입력은 타임아웃으로 본다
			if !time.Now().Before(s.deadline) {
				s.timeout()
				return nil
			}
			advanced, err := s.apply(ctx, in)
			if err != nil {
				return err
			}
			if advanced {
				return nil
			}
		}
	}
}

func (s *Session) timeout() {
	side := s.active
	s.log.Info("duel_timeout",
		zap.String("session_id", s.id),
		zap.String("party", string(s.party(side))),
		zap.Int("moves", s.moves),
	)
	s.conclude(StatusForfeitByTimeout, ReasonTimeout, &side)
}

func (s *Session) stop(req stopRequest) {
	side := s.active
	if req.party != "" {
		if sd, ok := s.sideOf(req.party); ok {
			side = sd
		}
	}
	s.conclude(StatusForfeitByTimeout, req.reason, &side)
}

// apply validates and applies one input. It reports whether the turn advanced
// (a fresh deadline is due) or the session ended.
func (s *Session) apply(ctx context.Context, in Input) (bool, error) {
	side, ok := s.sideOf(in.Party)
	if !ok {
		return false, fmt.Errorf("input from %q: %w", in.Party, ErrInvariant)
	}
	if side != s.active {
		s.reject(ctx, in, NoticeNotYourTurn)
		return false, nil
	}
	if s.kind == board.PairMatching {
		return s.applyPick(ctx, in)
	}
	return s.applyMark(ctx, in)
}

func (s *Session) applyMark(ctx context.Context, in Input) (bool, error) {
	mark := s.active.Mark()
	var err error
	if s.shape.Placement == board.PlaceGravity {
		_, err = s.grid.DropInColumn(in.Move.Col, mark)
	} else {
		err = s.grid.PlaceAt(in.Move.Row, in.Move.Col, mark)
	}
	if err != nil {
		s.reject(ctx, in, noticeFor(err))
		return false, nil
	}
	s.moves++
	s.turn++
	last, _ := s.grid.LastMove()
	s.log.Debug("duel_move",
		zap.String("session_id", s.id),
		zap.String("party", string(in.Party)),
		zap.Int("row", last.Row),
		zap.Int("col", last.Col),
		zap.Int("turn", s.turn),
	)

	run, err := board.FindRun(s.grid, s.shape.RunLength)
	if err != nil {
		return false, fmt.Errorf("find run: %w: %w", ErrInvariant, err)
	}
	switch {
	case len(run) > 0:
		s.run = run
		s.conclude(wonBy(s.active), ReasonWin, nil)
	case s.grid.IsFull():
		s.conclude(StatusDraw, ReasonBoardFull, nil)
	default:
		s.active = s.active.Other()
	}
	return true, nil
}

func (s *Session) applyPick(ctx context.Context, in Input) (bool, error) {
	pos := board.Pos{Row: in.Move.Row, Col: in.Move.Col}
	if s.picked != nil && *s.picked == pos {
		s.reject(ctx, in, NoticeOccupied)
		return false, nil
	}
	if _, err := s.cards.PlaceAt(pos.Row, pos.Col); err != nil {
		s.reject(ctx, in, noticeFor(err))
		return false, nil
	}
	s.moves++
	if s.picked == nil {
		first := pos
		s.picked = &first
		return true, nil
	}

	first := *s.picked
	s.turn++
	if s.cards.Match(first, pos) {
		s.picked = nil
		s.pairs[s.active]++
		s.log.Debug("duel_move",
			zap.String("session_id", s.id),
			zap.String("party", string(in.Party)),
			zap.Int("pairs", s.pairs[s.active]),
			zap.Int("turn", s.turn),
		)
	} else {
		s.log.Debug("duel_pair_mismatch",
			zap.String("session_id", s.id),
			zap.String("party", string(in.Party)),
			zap.Int("turn", s.turn),
		)
		s.present(ctx, s.snapshotPick(EventReveal, pos))
		if !s.grace(ctx) {
			return true, nil
		}
		s.cards.Hide(first, pos)
		s.picked = nil
		s.active = s.active.Other()
	}

	switch {
	case s.cards.AllMatched():
		switch {
		case s.pairs[SideA] > s.pairs[SideB]:
			s.conclude(StatusWonByA, ReasonAllMatched, nil)
		case s.pairs[SideB] > s.pairs[SideA]:
			s.conclude(StatusWonByB, ReasonAllMatched, nil)
		default:
			s.conclude(StatusDraw, ReasonAllMatched, nil)
		}
	case s.turn >= s.cfg.PairRoundCap:
		s.conclude(StatusDraw, ReasonRoundCap, nil)
	}
	return true, nil
}

// grace keeps a mismatched pair face up. It reports false when a stop request or
// cancellation ended the session during the wait.
func (s *Session) grace(ctx context.Context) bool {
	if s.cfg.RevealGrace <= 0 {
		return true
	}
	t := time.NewTimer(s.cfg.RevealGrace)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case req := <-s.stops:
		s.stop(req)
	case <-ctx.Done():
		s.stop(stopRequest{reason: ReasonAbort})
	}
	return false
}

func (s *Session) reject(ctx context.Context, in Input, notice Notice) {
	v := s.snapshot(EventRejected)
	v.Notice = notice
	v.Actor = in.Party
	s.present(ctx, v)
}

// conclude moves the session to a terminal status. It is the only writer of status
// once the session has started and it refuses to run twice.
func (s *Session) conclude(st Status, reason EndReason, forfeiter *Side) {
	if s.status.Terminal() || !st.Terminal() {
		return
	}
	s.status = st
	s.reason = reason
	s.forfeiter = forfeiter
	s.closeIntake()
}

// closeIntake marks the session ended under the intake write lock, so no Submit
// can queue an input after the final drain. Submitters blocked on a full queue
// hold the read lock; draining lets them finish before the lock is taken.
func (s *Session) closeIntake() {
	locked := make(chan struct{})
	go func() {
		s.intake.Lock()
		close(locked)
	}()
	for {
		s.drain()
		select {
		case <-locked:
			s.ended.Store(true)
			s.drain()
			s.intake.Unlock()
			return
		default:
			runtime.Gosched()
		}
	}
}

// drain discards queued inputs; they belong to a session that no longer accepts moves.
func (s *Session) drain() {
	for {
		select {
		case <-s.inputs:
		default:
			return
		}
	}
}

func (s *Session) finish(ctx context.Context) Result {
	res := s.buildResult()
	s.mu.Lock()
	s.result = &res
	s.mu.Unlock()

	s.log.Info("duel_end",
		zap.String("session_id", s.id),
		zap.String("kind", s.kind.String()),
		zap.String("status", res.Status.String()),
		zap.String("reason", string(res.Reason)),
		zap.String("winner", string(res.Winner)),
		zap.String("outcome_a", string(res.OutcomeA)),
		zap.String("outcome_b", string(res.OutcomeB)),
		zap.Int("turns", res.Turns),
		zap.Int("moves", res.Moves),
		zap.Duration("elapsed", res.EndedAt.Sub(res.StartedAt)),
	)

	v := s.snapshot(EventEnd)
	v.Result = &res
	s.present(ctx, v)
	s.resolve(ctx, res)
	return res
}

func (s *Session) resolve(ctx context.Context, res Result) {
	if !s.resolved.CompareAndSwap(false, true) {
		return
	}
	if err := s.resolver.Resolve(ctx, res); errors.Is(err, ErrInvariant) {
		s.log.Error("duel_invariant", zap.String("session_id", s.id), zap.Error(err))
	}
}

func (s *Session) buildResult() Result {
	res := Result{
		SessionID:  s.id,
		Kind:       s.kind,
		Channel:    s.channel,
		PartyA:     s.parties[0],
		PartyB:     s.parties[1],
		Status:     s.status,
		Reason:     s.reason,
		Turns:      s.turn,
		Moves:      s.moves,
		Pairs:      s.pairs,
		WinningRun: append([]board.Pos(nil), s.run...),
		StartedAt:  s.startedAt,
		EndedAt:    time.Now(),
	}
	if s.grid != nil {
		res.Board = s.grid.String()
	} else {
		res.Board = s.cards.String()
	}
	var forfeiter Party
	if s.forfeiter != nil {
		forfeiter = s.party(*s.forfeiter)
	}
	classify(&res, forfeiter)
	return res
}

func (s *Session) present(ctx context.Context, v View) {
	s.mu.Lock()
	if v.Event != EventRejected {
		s.view = v
	}
	s.mu.Unlock()
	if s.presenter == nil {
		return
	}
	if err := s.presenter.Present(ctx, v); err != nil {
		s.log.Warn("duel_present_error",
			zap.String("session_id", s.id),
			zap.String("event", string(v.Event)),
			zap.Error(err),
		)
	}
}

func (s *Session) recordStart(ctx context.Context) {
	v := s.snapshot(EventTurn)
	for _, r := range s.resolver.recorders {
		sr, ok := r.(StartRecorder)
		if !ok {
			continue
		}
		if err := sr.RecordStart(ctx, v); err != nil {
			s.log.Warn("duel_record_error", zap.String("session_id", s.id), zap.Error(err))
		}
	}
}

func (s *Session) snapshot(ev ViewEvent) View {
	v := View{
		SessionID: s.id,
		Kind:      s.kind,
		Channel:   s.channel,
		PartyA:    s.parties[0],
		PartyB:    s.parties[1],
		Active:    s.party(s.active),
		Status:    s.status,
		Event:     ev,
		Reason:    s.reason,
		Turn:      s.turn,
		Moves:     s.moves,
		Pairs:     s.pairs,
		Deadline:  s.deadline,
	}
	if len(s.run) > 0 {
		v.WinningRun = append([]board.Pos(nil), s.run...)
	}
	if s.grid != nil {
		v.Marks = s.grid.Snapshot()
		if last, ok := s.grid.LastMove(); ok {
			v.LastMove = &last
		}
	} else {
		v.Cards = s.cards.Snapshot()
		if last, ok := s.cards.LastMove(); ok {
			v.LastMove = &last
		}
		if s.picked != nil {
			p := *s.picked
			v.Picked = &p
		}
	}
	return v
}

func (s *Session) snapshotPick(ev ViewEvent, second board.Pos) View {
	v := s.snapshot(ev)
	v.LastMove = &second
	return v
}
