package duelreg

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/park285/critter-kakao-bot/internal/duel"
)

const (
    defaultTTL = 2 * time.Hour
    keyLive    = "duel:live"
)

// SessionMeta is the cross-process record of a live duel.
type SessionMeta struct {
    ID        string    `json:"id"`
    Kind      string    `json:"kind"`
    Channel   string    `json:"channel"`
    PartyA    string    `json:"party_a"`
    PartyB    string    `json:"party_b"`
    Owner     string    `json:"owner"`
    StartedAt time.Time `json:"started_at"`
}

// Store is a duel.Registry that also reserves parties in Redis, so two bot
// processes sharing a Redis never seat the same party twice.
type Store struct {
    *duel.MemoryRegistry
    rdb   *redis.Client
    ttl   time.Duration
    owner string
}

func New(rdb *redis.Client, ttl time.Duration, owner string) *Store {
    if ttl <= 0 { ttl = defaultTTL }
    return &Store{MemoryRegistry: duel.NewMemoryRegistry(), rdb: rdb, ttl: ttl, owner: owner}
}

// NewFromURL dials REDIS_URL and pings it.
func NewFromURL(redisURL string, ttl time.Duration, owner string) (*Store, error) {
    if strings.TrimSpace(redisURL) == "" {
        return nil, fmt.Errorf("REDIS_URL required for duel registry")
    }
    opts, err := ParseRedisURL(redisURL)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opts)
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := rdb.Ping(ctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    return New(rdb, ttl, owner), nil
}

func (s *Store) Close() error {
    if s == nil || s.rdb == nil { return nil }
    return s.rdb.Close()
}

func keyBusy(p duel.Party) string   { return "duel:busy:" + strings.TrimSpace(string(p)) }
func keySession(id string) string   { return "duel:session:" + strings.TrimSpace(id) }

// Claim reserves both parties in Redis first, then in memory. Any failure rolls
// back what was reserved.
func (s *Store) Claim(ctx context.Context, sess *duel.Session) error {
    parties := sess.Parties()
    var reserved []duel.Party
    for _, p := range parties {
        ok, err := s.rdb.SetNX(ctx, keyBusy(p), sess.ID(), s.ttl).Result()
        if err != nil {
            s.unreserve(ctx, sess.ID(), reserved...)
            return fmt.Errorf("reserve %s: %w", p, err)
        }
        if !ok {
            s.unreserve(ctx, sess.ID(), reserved...)
            return duel.ErrPartyBusy
        }
        reserved = append(reserved, p)
    }

    meta := SessionMeta{
        ID:        sess.ID(),
        Kind:      sess.Kind().String(),
        Channel:   sess.Channel(),
        PartyA:    string(parties[0]),
        PartyB:    string(parties[1]),
        Owner:     s.owner,
        StartedAt: time.Now().UTC(),
    }
    raw, err := json.Marshal(meta)
    if err != nil {
        s.unreserve(ctx, sess.ID(), reserved...)
        return err
    }
    _, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
        p.Set(ctx, keySession(sess.ID()), raw, s.ttl)
        p.SAdd(ctx, keyLive, sess.ID())
        return nil
    })
    if err != nil {
        s.unreserve(ctx, sess.ID(), reserved...)
        return fmt.Errorf("save session meta: %w", err)
    }

    if err := s.MemoryRegistry.Claim(ctx, sess); err != nil {
        _ = s.release(ctx, sess.ID(), parties[:]...)
        return err
    }
    return nil
}

func (s *Store) Release(ctx context.Context, sess *duel.Session) error {
    _ = s.MemoryRegistry.Release(ctx, sess)
    p := sess.Parties()
    return s.release(ctx, sess.ID(), p[:]...)
}

// release drops the party reservations still owned by id, plus the session record.
func (s *Store) release(ctx context.Context, id string, parties ...duel.Party) error {
    keys := make([]string, 0, len(parties))
    for _, p := range parties { keys = append(keys, keyBusy(p)) }
    err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
        var owned []string
        for _, k := range keys {
            v, err := tx.Get(ctx, k).Result()
            if err == redis.Nil { continue }
            if err != nil { return err }
            if v == id { owned = append(owned, k) }
        }
        _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
            if len(owned) > 0 { p.Del(ctx, owned...) }
            p.Del(ctx, keySession(id))
            p.SRem(ctx, keyLive, id)
            return nil
        })
        return err
    }, keys...)
    if errors.Is(err, redis.TxFailedErr) {
        return fmt.Errorf("release %s: concurrent update", id)
    }
    return err
}

func (s *Store) unreserve(ctx context.Context, id string, parties ...duel.Party) {
    if len(parties) == 0 { return }
    _ = s.release(ctx, id, parties...)
}

// BusyIn returns the session id holding p, across every process sharing the Redis.
func (s *Store) BusyIn(ctx context.Context, p duel.Party) (string, bool, error) {
    id, err := s.rdb.Get(ctx, keyBusy(p)).Result()
    if err == redis.Nil { return "", false, nil }
    if err != nil { return "", false, err }
    return id, true, nil
}

func (s *Store) LoadMeta(ctx context.Context, id string) (*SessionMeta, error) {
    raw, err := s.rdb.Get(ctx, keySession(id)).Bytes()
    if err == redis.Nil { return nil, nil }
    if err != nil { return nil, err }
    var m SessionMeta
    if err := json.Unmarshal(raw, &m); err != nil { return nil, err }
    return &m, nil
}

// Live lists session records that have not expired. Stale set members are pruned.
func (s *Store) Live(ctx context.Context) ([]*SessionMeta, error) {
    ids, err := s.rdb.SMembers(ctx, keyLive).Result()
    if err != nil { return nil, err }
    var out []*SessionMeta
    for _, id := range ids {
        m, err := s.LoadMeta(ctx, id)
        if err != nil { return nil, err }
        if m == nil {
            _ = s.rdb.SRem(ctx, keyLive, id).Err()
            continue
        }
        out = append(out, m)
    }
    return out, nil
}

// Touch extends the reservations of a session that is still being played.
func (s *Store) Touch(ctx context.Context, v duel.View) error {
    _, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
        p.Expire(ctx, keyBusy(v.PartyA), s.ttl)
        p.Expire(ctx, keyBusy(v.PartyB), s.ttl)
        p.Expire(ctx, keySession(v.SessionID), s.ttl)
        return nil
    })
    return err
}

// Presenter refreshes reservations on every turn before handing the view on.
func (s *Store) Presenter(next duel.Presenter) duel.Presenter {
    return duel.PresenterFunc(func(ctx context.Context, v duel.View) error {
        if v.Event == duel.EventTurn {
            _ = s.Touch(ctx, v)
        }
        if next == nil { return nil }
        return next.Present(ctx, v)
    })
}

// ParseRedisURL accepts redis:// and rediss:// URLs with an optional /db path.
func ParseRedisURL(raw string) (*redis.Options, error) {
    u, err := url.Parse(raw)
    if err != nil { return nil, err }
    if u.Scheme != "redis" && u.Scheme != "rediss" { return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme) }
    db := 0
    if p := strings.TrimPrefix(u.Path, "/"); p != "" { if n, err := strconv.Atoi(p); err == nil { db = n } }
    pass, _ := u.User.Password()
    return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
