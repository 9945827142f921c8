package invite

import (
	"time"

	"github.com/park285/critter-kakao-bot/internal/board"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusDeclined  Status = "DECLINED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// Challenge is an invitation to a duel. The challenger plays first once accepted.
type Challenge struct {
	Code           string
	Kind           board.Kind
	OriginRoom     string
	ResolveRoom    string
	ChallengerID   string
	ChallengerName string
	TargetID       string
	TargetName     string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	Status         Status
}
