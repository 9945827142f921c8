package duel

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// classify fills the per-party outcomes of a terminal result.
// A session abandoned before any accepted move is declined, not forfeited.
func classify(res *Result, forfeiter Party) {
	switch res.Status {
	case StatusWonByA:
		res.Winner = res.PartyA
		res.OutcomeA, res.OutcomeB = OutcomeWon, OutcomeLost
	case StatusWonByB:
		res.Winner = res.PartyB
		res.OutcomeA, res.OutcomeB = OutcomeLost, OutcomeWon
	case StatusDraw:
		res.OutcomeA, res.OutcomeB = OutcomeDraw, OutcomeDraw
	case StatusForfeitByTimeout:
		if res.Moves == 0 {
			res.Declined = true
			res.OutcomeA, res.OutcomeB = OutcomeDeclined, OutcomeDeclined
			return
		}
		res.Forfeiter = forfeiter
		if forfeiter == res.PartyA {
			res.Winner = res.PartyB
			res.OutcomeA, res.OutcomeB = OutcomeForfeitedBySelf, OutcomeForfeitedByOpponent
		} else {
			res.Winner = res.PartyA
			res.OutcomeA, res.OutcomeB = OutcomeForfeitedByOpponent, OutcomeForfeitedBySelf
		}
	}
}

// Resolver hands a finished result to the reward collaborator (once per party)
// and to every recorder. Sessions call it exactly once.
type Resolver struct {
	rewarder  Rewarder
	recorders []Recorder
	log       *zap.Logger
}

func NewResolver(rewarder Rewarder, log *zap.Logger, recorders ...Recorder) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{rewarder: rewarder, recorders: recorders, log: log}
}

// Resolve applies rewards and records res. Collaborator errors are logged and
// joined; they never alter the result.
func (r *Resolver) Resolve(ctx context.Context, res Result) error {
	if !res.Status.Terminal() {
		return fmt.Errorf("resolve %s in progress: %w", res.SessionID, ErrInvariant)
	}
	var errs []error
	if r.rewarder != nil {
		for _, rw := range []Reward{
			{Party: res.PartyA, Side: SideA, Outcome: res.OutcomeA, Result: res},
			{Party: res.PartyB, Side: SideB, Outcome: res.OutcomeB, Result: res},
		} {
			if err := r.rewarder.Reward(ctx, rw); err != nil {
				r.log.Error("duel_reward_error",
					zap.String("session_id", res.SessionID),
					zap.String("party", string(rw.Party)),
					zap.String("outcome", string(rw.Outcome)),
					zap.Error(err),
				)
				errs = append(errs, err)
			}
		}
	}
	for _, rec := range r.recorders {
		if err := rec.Record(ctx, res); err != nil {
			r.log.Warn("duel_record_error",
				zap.String("session_id", res.SessionID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
