package duel

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recPresenter struct {
	mu    sync.Mutex
	views []View
}

func (p *recPresenter) Present(_ context.Context, v View) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.views = append(p.views, v)
	return nil
}

func (p *recPresenter) all() []View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]View(nil), p.views...)
}

type recRewarder struct {
	mu      sync.Mutex
	rewards []Reward
}

func (r *recRewarder) Reward(_ context.Context, rw Reward) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rewards = append(r.rewards, rw)
	return nil
}

func (r *recRewarder) all() []Reward {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reward(nil), r.rewards...)
}

func testConfig() Config {
	return Config{TurnTimeout: 2 * time.Second, RevealGrace: 0, PairRoundCap: 30, QueueSize: 32}
}

type harness struct {
	s     *Session
	pres  *recPresenter
	rew   *recRewarder
	errCh chan error
	resCh chan Result
}

func newHarness(t *testing.T, p Params) *harness {
	t.Helper()
	h := &harness{pres: &recPresenter{}, rew: &recRewarder{}, errCh: make(chan error, 1), resCh: make(chan Result, 1)}
	if p.PartyA == "" {
		p.PartyA = "alice"
	}
	if p.PartyB == "" {
		p.PartyB = "bob"
	}
	if p.Config.TurnTimeout == 0 {
		p.Config = testConfig()
	}
	p.Presenter = h.pres
	p.Resolver = NewResolver(h.rew, nil)
	s, err := NewSession(p)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	h.s = s
	return h
}

func (h *harness) start() {
	go func() {
		res, err := h.s.Run(context.Background())
		h.resCh <- res
		h.errCh <- err
	}()
}

func (h *harness) wait(t *testing.T) Result {
	t.Helper()
	select {
	case res := <-h.resCh:
		if err := <-h.errCh; err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not end")
	}
	return Result{}
}

func (h *harness) play(t *testing.T, moves ...Input) {
	t.Helper()
	for _, in := range moves {
		if err := h.s.Submit(context.Background(), in.Party, in.Move); err != nil {
			t.Fatalf("Submit %+v: %v", in, err)
		}
	}
}

func a(row, col int) Input { return Input{Party: "alice", Move: Move{Row: row, Col: col}} }
func b(row, col int) Input { return Input{Party: "bob", Move: Move{Row: row, Col: col}} }

func waitView(t *testing.T, p *recPresenter, match func(View) bool) View {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, v := range p.all() {
			if match(v) {
				return v
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("view not presented")
	return View{}
}
