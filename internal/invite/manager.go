package invite

import (
    "errors"
    "strings"
    "sync"
    "time"

    gonanoid "github.com/matoous/go-nanoid/v2"

    "github.com/park285/critter-kakao-bot/internal/board"
)

var (
    ErrInvalidArgs      = errors.New("invalid arguments")
    ErrSelfChallenge    = errors.New("cannot challenge yourself")
    ErrAlreadyPending   = errors.New("target already has a pending challenge")
    ErrNoPendingForUser = errors.New("no pending challenge for target user")
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Manager holds pending challenges in memory. Expiry is applied lazily on access;
// expired challenges are kept until Sweep hands them out.
type Manager struct {
    mu       sync.Mutex
    byTarget map[string]*Challenge
    expired  []Challenge
    timeout  time.Duration
    now      func() time.Time
}

func NewManager(timeout time.Duration) *Manager {
    if timeout <= 0 { timeout = time.Minute }
    return &Manager{byTarget: make(map[string]*Challenge), timeout: timeout, now: time.Now}
}

// Params for a new challenge.
type Params struct {
    Room           string
    ChallengerID   string
    ChallengerName string
    TargetID       string
    TargetName     string
    Kind           board.Kind
}

func (m *Manager) Challenge(p Params) (*Challenge, error) {
    p.ChallengerID, p.TargetID = strings.TrimSpace(p.ChallengerID), strings.TrimSpace(p.TargetID)
    if p.Room == "" || p.ChallengerID == "" || p.TargetID == "" || !p.Kind.Valid() {
        return nil, ErrInvalidArgs
    }
    if p.ChallengerID == p.TargetID {
        return nil, ErrSelfChallenge
    }
    code, err := gonanoid.Generate(codeAlphabet, 6)
    if err != nil { return nil, err }

    m.mu.Lock()
    defer m.mu.Unlock()
    now := m.now()
    if cur := m.pendingLocked(p.TargetID, now); cur != nil {
        return nil, ErrAlreadyPending
    }
    ch := &Challenge{
        Code:           code,
        Kind:           p.Kind,
        OriginRoom:     p.Room,
        ChallengerID:   p.ChallengerID,
        ChallengerName: p.ChallengerName,
        TargetID:       p.TargetID,
        TargetName:     p.TargetName,
        CreatedAt:      now,
        ExpiresAt:      now.Add(m.timeout),
        Status:         StatusPending,
    }
    m.byTarget[p.TargetID] = ch
    return ch, nil
}

// Accept resolves the target's pending challenge. The returned copy is detached.
func (m *Manager) Accept(targetID, room string) (*Challenge, error) {
    return m.resolve(targetID, room, StatusAccepted)
}

func (m *Manager) Decline(targetID, room string) (*Challenge, error) {
    return m.resolve(targetID, room, StatusDeclined)
}

// Cancel withdraws a pending challenge issued by challengerID.
func (m *Manager) Cancel(challengerID string) (*Challenge, error) {
    challengerID = strings.TrimSpace(challengerID)
    if challengerID == "" { return nil, ErrInvalidArgs }
    m.mu.Lock()
    defer m.mu.Unlock()
    now := m.now()
    for target := range m.byTarget {
        ch := m.pendingLocked(target, now)
        if ch != nil && ch.ChallengerID == challengerID {
            ch.Status = StatusCancelled
            delete(m.byTarget, target)
            out := *ch
            return &out, nil
        }
    }
    return nil, ErrNoPendingForUser
}

// Pending returns the target's live challenge, if any.
func (m *Manager) Pending(targetID string) (*Challenge, bool) {
    m.mu.Lock()
    defer m.mu.Unlock()
    ch := m.pendingLocked(strings.TrimSpace(targetID), m.now())
    if ch == nil { return nil, false }
    out := *ch
    return &out, true
}

// Sweep drops expired challenges and returns them so callers can announce the expiry.
func (m *Manager) Sweep() []Challenge {
    m.mu.Lock()
    defer m.mu.Unlock()
    now := m.now()
    out := m.expired
    m.expired = nil
    for target, ch := range m.byTarget {
        if ch.Status == StatusPending && !now.Before(ch.ExpiresAt) {
            ch.Status = StatusExpired
            out = append(out, *ch)
            delete(m.byTarget, target)
        }
    }
    return out
}

func (m *Manager) resolve(targetID, room string, st Status) (*Challenge, error) {
    targetID = strings.TrimSpace(targetID)
    if targetID == "" { return nil, ErrInvalidArgs }
    m.mu.Lock()
    defer m.mu.Unlock()
    ch := m.pendingLocked(targetID, m.now())
    if ch == nil { return nil, ErrNoPendingForUser }
    ch.Status = st
    ch.ResolveRoom = room
    delete(m.byTarget, targetID)
    out := *ch
    return &out, nil
}

func (m *Manager) pendingLocked(targetID string, now time.Time) *Challenge {
    ch, ok := m.byTarget[targetID]
    if !ok { return nil }
    if ch.Status != StatusPending || !now.Before(ch.ExpiresAt) {
        // 만료 공지는 Sweep 이 담당
        if ch.Status == StatusPending {
            ch.Status = StatusExpired
            m.expired = append(m.expired, *ch)
        }
        delete(m.byTarget, targetID)
        return nil
    }
    return ch
}
