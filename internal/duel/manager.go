package duel

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/critter-kakao-bot/internal/board"
)

// StartRequest asks the manager to seat two parties in a new session.
type StartRequest struct {
	ID      string // optional; generated when empty
	Kind    board.Kind
	Channel string
	PartyA  Party
	PartyB  Party
}

// Manager owns the live sessions of a process.
type Manager struct {
	cfg       Config
	reg       Registry
	presenter Presenter
	resolver  *Resolver
	log       *zap.Logger
	maxActive int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex // serializes the capacity check with Claim
}

type Option func(*Manager)

func WithConfig(c Config) Option { return func(m *Manager) { m.cfg = c } }
func WithRegistry(r Registry) Option { return func(m *Manager) { m.reg = r } }
func WithPresenter(p Presenter) Option { return func(m *Manager) { m.presenter = p } }
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.log = l } }
func WithMaxActive(n int) Option { return func(m *Manager) { m.maxActive = n } }
func WithResolver(r *Resolver) Option { return func(m *Manager) { m.resolver = r } }

func NewManager(opts ...Option) *Manager {
	m := &Manager{cfg: DefaultConfig()}
	for _, o := range opts {
		o(m)
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.reg == nil {
		m.reg = NewMemoryRegistry()
	}
	if m.resolver == nil {
		m.resolver = NewResolver(nil, m.log)
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// Start creates a session and runs it in the background.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if strings.TrimSpace(string(req.PartyA)) == strings.TrimSpace(string(req.PartyB)) {
		return nil, ErrSameParty
	}
	if m.ctx.Err() != nil {
		return nil, ErrSessionEnded
	}
	s, err := NewSession(Params{
		ID:        req.ID,
		Kind:      req.Kind,
		Channel:   req.Channel,
		PartyA:    req.PartyA,
		PartyB:    req.PartyB,
		Config:    m.cfg,
		Presenter: m.presenter,
		Resolver:  m.resolver,
		Logger:    m.log,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.maxActive > 0 && m.reg.Count() >= m.maxActive {
		m.mu.Unlock()
		return nil, ErrTooManyGames
	}
	err = m.reg.Claim(ctx, s)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.wg.Add(1)
	go m.run(s)
	return s, nil
}

func (m *Manager) run(s *Session) {
	defer m.wg.Done()
	defer func() {
		if err := m.reg.Release(context.WithoutCancel(m.ctx), s); err != nil {
			m.log.Warn("duel_release_error", zap.String("session_id", s.ID()), zap.Error(err))
		}
	}()
	if _, err := s.Run(m.ctx); err != nil && !errors.Is(err, ErrInvariant) {
		m.log.Error("duel_run_error", zap.String("session_id", s.ID()), zap.Error(err))
	}
}

// Submit routes a move to the party's live session.
func (m *Manager) Submit(ctx context.Context, p Party, mv Move) (*Session, error) {
	s, ok := m.reg.Lookup(p)
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, s.Submit(ctx, p, mv)
}

// Forfeit resigns the party's live session.
func (m *Manager) Forfeit(p Party) (*Session, error) {
	s, ok := m.reg.Lookup(p)
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, s.Forfeit(p)
}

// Abort stops a session by id without blaming a specific party.
func (m *Manager) Abort(id string) error {
	s, ok := m.reg.Get(id)
	if !ok {
		return ErrUnknownSession
	}
	return s.Abort()
}

// View returns the latest snapshot of the party's live session.
func (m *Manager) View(p Party) (View, error) {
	s, ok := m.reg.Lookup(p)
	if !ok {
		return View{}, ErrUnknownSession
	}
	return s.View(), nil
}

func (m *Manager) Lookup(p Party) (*Session, bool) { return m.reg.Lookup(p) }

func (m *Manager) Active() int { return m.reg.Count() }

// Shutdown aborts every live session and waits for them to settle.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
