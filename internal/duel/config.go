package duel

import (
	"time"

	"github.com/park285/critter-kakao-bot/internal/board"
)

const (
	defaultTurnTimeout  = 60 * time.Second
	defaultRevealGrace  = 2 * time.Second
	defaultPairRoundCap = 30
	defaultQueueSize    = 16
)

// Config holds the tunables of a session.
type Config struct {
	// TurnTimeout is measured from the moment a turn is presented.
	TurnTimeout time.Duration
	// RevealGrace is how long a mismatched pair stays face up.
	RevealGrace time.Duration
	// PairRoundCap ends a pair game in a draw after this many rounds.
	PairRoundCap int
	// QueueSize bounds inputs waiting behind the one being applied.
	QueueSize int
	// Shuffle lays out the pair board; nil keeps pairs adjacent.
	Shuffle board.Shuffler
}

func DefaultConfig() Config {
	return Config{
		TurnTimeout:  defaultTurnTimeout,
		RevealGrace:  defaultRevealGrace,
		PairRoundCap: defaultPairRoundCap,
		QueueSize:    defaultQueueSize,
	}
}

func (c Config) normalized() Config {
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = defaultTurnTimeout
	}
	if c.RevealGrace < 0 {
		c.RevealGrace = 0
	}
	if c.PairRoundCap <= 0 {
		c.PairRoundCap = defaultPairRoundCap
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	return c
}
