package events

import (
	"context"
	"time"
)

// Event topics
const (
	TopicSessionStarted  = "duel.session.started"
	TopicSessionFinished = "duel.session.finished"
	TopicAll             = "duel.>"
)

type SessionStarted struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Channel   string    `json:"channel"`
	PartyA    string    `json:"party_a"`
	PartyB    string    `json:"party_b"`
	At        time.Time `json:"at"`
}

type SessionFinished struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Channel   string    `json:"channel"`
	PartyA    string    `json:"party_a"`
	PartyB    string    `json:"party_b"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason"`
	Winner    string    `json:"winner,omitempty"`
	Forfeiter string    `json:"forfeiter,omitempty"`
	OutcomeA  string    `json:"outcome_a"`
	OutcomeB  string    `json:"outcome_b"`
	Turns     int       `json:"turns"`
	Moves     int       `json:"moves"`
	Board     string    `json:"board"`
	EndedAt   time.Time `json:"ended_at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
