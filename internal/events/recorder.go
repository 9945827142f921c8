package events

import (
	"context"
	"time"

	"github.com/park285/critter-kakao-bot/internal/duel"
)

// Recorder turns session lifecycle callbacks into published events.
type Recorder struct {
	pub Publisher
}

var (
	_ duel.Recorder      = (*Recorder)(nil)
	_ duel.StartRecorder = (*Recorder)(nil)
)

func NewRecorder(pub Publisher) *Recorder {
	if pub == nil {
		pub = &NoopPublisher{}
	}
	return &Recorder{pub: pub}
}

func (r *Recorder) RecordStart(ctx context.Context, v duel.View) error {
	return r.pub.Publish(ctx, TopicSessionStarted, SessionStarted{
		SessionID: v.SessionID,
		Kind:      v.Kind.String(),
		Channel:   v.Channel,
		PartyA:    string(v.PartyA),
		PartyB:    string(v.PartyB),
		At:        time.Now().UTC(),
	})
}

func (r *Recorder) Record(ctx context.Context, res duel.Result) error {
	return r.pub.Publish(ctx, TopicSessionFinished, SessionFinished{
		SessionID: res.SessionID,
		Kind:      res.Kind.String(),
		Channel:   res.Channel,
		PartyA:    string(res.PartyA),
		PartyB:    string(res.PartyB),
		Status:    res.Status.String(),
		Reason:    string(res.Reason),
		Winner:    string(res.Winner),
		Forfeiter: string(res.Forfeiter),
		OutcomeA:  string(res.OutcomeA),
		OutcomeB:  string(res.OutcomeB),
		Turns:     res.Turns,
		Moves:     res.Moves,
		Board:     res.Board,
		EndedAt:   res.EndedAt.UTC(),
	})
}
