package duelstore

import (
    "context"
    "database/sql"
    "embed"
    "encoding/json"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/golang-migrate/migrate/v4"
    migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
    "github.com/golang-migrate/migrate/v4/source/iofs"
    _ "github.com/lib/pq"

    "github.com/park285/critter-kakao-bot/internal/board"
    "github.com/park285/critter-kakao-bot/internal/duel"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Repository persists finished duels and per-party stats. It is both the
// duel.Rewarder and a duel.Recorder.
type Repository struct {
    db  *sql.DB
    now func() time.Time
}

var (
    _ duel.Rewarder = (*Repository)(nil)
    _ duel.Recorder = (*Repository)(nil)
)

func NewRepository(databaseURL string) (*Repository, error) {
    if strings.TrimSpace(databaseURL) == "" {
        return nil, fmt.Errorf("DATABASE_URL is required")
    }
    db, err := sql.Open("postgres", databaseURL)
    if err != nil {
        return nil, err
    }
    db.SetMaxOpenConns(16)
    db.SetMaxIdleConns(8)
    db.SetConnMaxLifetime(30 * time.Minute)
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        db.Close()
        return nil, fmt.Errorf("ping database: %w", err)
    }
    if err := runMigrations(db); err != nil {
        db.Close()
        return nil, fmt.Errorf("run migrations: %w", err)
    }
    return newRepository(db), nil
}

func newRepository(db *sql.DB) *Repository { return &Repository{db: db, now: time.Now} }

func runMigrations(db *sql.DB) error {
    src, err := iofs.New(migrationsFS, "migrations")
    if err != nil {
        return fmt.Errorf("create migration source: %w", err)
    }
    drv, err := migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: "duel_schema_migrations"})
    if err != nil {
        return fmt.Errorf("create migration db driver: %w", err)
    }
    m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
    if err != nil {
        return fmt.Errorf("create migrator: %w", err)
    }
    if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
        return fmt.Errorf("apply migrations: %w", err)
    }
    return nil
}

func (r *Repository) Close() error {
    if r == nil || r.db == nil { return nil }
    return r.db.Close()
}

// Record implements duel.Recorder.
func (r *Repository) Record(ctx context.Context, res duel.Result) error { return r.SaveResult(ctx, res) }

// Reward implements duel.Rewarder.
func (r *Repository) Reward(ctx context.Context, rw duel.Reward) error {
    return r.ApplyOutcome(ctx, rw.Party, rw.Result.Kind, rw.Outcome)
}

const qSaveResult = `INSERT INTO duel_results (
    session_id, kind, channel, party_a, party_b,
    status, reason, winner, forfeiter, outcome_a, outcome_b,
    turns, moves, pairs_a, pairs_b, winning_run, board,
    started_at, ended_at, duration_ms
  ) VALUES (
    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
  ) ON CONFLICT (session_id) DO UPDATE SET
    status=EXCLUDED.status,
    reason=EXCLUDED.reason,
    winner=EXCLUDED.winner,
    forfeiter=EXCLUDED.forfeiter,
    outcome_a=EXCLUDED.outcome_a,
    outcome_b=EXCLUDED.outcome_b,
    turns=EXCLUDED.turns,
    moves=EXCLUDED.moves,
    pairs_a=EXCLUDED.pairs_a,
    pairs_b=EXCLUDED.pairs_b,
    winning_run=EXCLUDED.winning_run,
    board=EXCLUDED.board,
    ended_at=EXCLUDED.ended_at,
    duration_ms=EXCLUDED.duration_ms`

// SaveResult upserts a finished duel.
func (r *Repository) SaveResult(ctx context.Context, res duel.Result) error {
    if r == nil || r.db == nil { return nil }
    var run any
    if len(res.WinningRun) > 0 {
        raw, err := json.Marshal(res.WinningRun)
        if err != nil { return err }
        run = string(raw)
    }
    duration := res.EndedAt.Sub(res.StartedAt).Milliseconds()
    if duration < 0 { duration = 0 }
    _, err := r.db.ExecContext(ctx, qSaveResult,
        res.SessionID, res.Kind.String(), res.Channel, string(res.PartyA), string(res.PartyB),
        res.Status.String(), string(res.Reason), string(res.Winner), string(res.Forfeiter),
        string(res.OutcomeA), string(res.OutcomeB),
        res.Turns, res.Moves, res.Pairs[0], res.Pairs[1], run, res.Board,
        res.StartedAt, res.EndedAt, duration,
    )
    if err != nil { return fmt.Errorf("save duel result %s: %w", res.SessionID, err) }
    return nil
}

const qApplyOutcome = `INSERT INTO duel_stats (party, kind, played, wins, losses, draws, forfeits, declines, updated_at)
  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  ON CONFLICT (party, kind) DO UPDATE SET
    played=duel_stats.played+EXCLUDED.played,
    wins=duel_stats.wins+EXCLUDED.wins,
    losses=duel_stats.losses+EXCLUDED.losses,
    draws=duel_stats.draws+EXCLUDED.draws,
    forfeits=duel_stats.forfeits+EXCLUDED.forfeits,
    declines=duel_stats.declines+EXCLUDED.declines,
    updated_at=EXCLUDED.updated_at`

// ApplyOutcome adds one outcome to the party's running stats for kind.
func (r *Repository) ApplyOutcome(ctx context.Context, p duel.Party, kind board.Kind, o duel.Outcome) error {
    if r == nil || r.db == nil { return nil }
    d, ok := deltaFor(o)
    if !ok { return fmt.Errorf("unknown outcome %q", o) }
    _, err := r.db.ExecContext(ctx, qApplyOutcome,
        string(p), kind.String(), d.Played, d.Wins, d.Losses, d.Draws, d.Forfeits, d.Declines, r.now().UTC(),
    )
    if err != nil { return fmt.Errorf("apply outcome %s/%s: %w", p, o, err) }
    return nil
}

// Stats is a party's record for one kind.
type Stats struct {
    Kind     board.Kind
    Played   int
    Wins     int
    Losses   int
    Draws    int
    Forfeits int
    Declines int
}

func deltaFor(o duel.Outcome) (Stats, bool) {
    switch o {
    case duel.OutcomeWon, duel.OutcomeForfeitedByOpponent:
        return Stats{Played: 1, Wins: 1}, true
    case duel.OutcomeLost:
        return Stats{Played: 1, Losses: 1}, true
    case duel.OutcomeForfeitedBySelf:
        return Stats{Played: 1, Losses: 1, Forfeits: 1}, true
    case duel.OutcomeDraw:
        return Stats{Played: 1, Draws: 1}, true
    case duel.OutcomeDeclined:
        return Stats{Declines: 1}, true
    default:
        return Stats{}, false
    }
}

const qStats = `SELECT kind, played, wins, losses, draws, forfeits, declines
  FROM duel_stats WHERE party = $1 ORDER BY kind`

func (r *Repository) Stats(ctx context.Context, p duel.Party) ([]Stats, error) {
    rows, err := r.db.QueryContext(ctx, qStats, string(p))
    if err != nil { return nil, err }
    defer rows.Close()
    var out []Stats
    for rows.Next() {
        var (
            kind string
            s    Stats
        )
        if err := rows.Scan(&kind, &s.Played, &s.Wins, &s.Losses, &s.Draws, &s.Forfeits, &s.Declines); err != nil {
            return nil, err
        }
        s.Kind, _ = board.ParseKind(kind)
        out = append(out, s)
    }
    return out, rows.Err()
}

// HistoryEntry is one finished duel as seen by a party.
type HistoryEntry struct {
    SessionID string
    Kind      board.Kind
    Opponent  duel.Party
    Outcome   duel.Outcome
    Reason    duel.EndReason
    EndedAt   time.Time
}

const qRecent = `SELECT session_id, kind, party_a, party_b, outcome_a, outcome_b, reason, ended_at
  FROM duel_results WHERE party_a = $1 OR party_b = $1
  ORDER BY ended_at DESC LIMIT $2`

// Recent returns the party's latest finished duels, newest first.
func (r *Repository) Recent(ctx context.Context, p duel.Party, limit int) ([]HistoryEntry, error) {
    if limit <= 0 || limit > 50 { limit = 10 }
    rows, err := r.db.QueryContext(ctx, qRecent, string(p), limit)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []HistoryEntry
    for rows.Next() {
        var (
            h                  HistoryEntry
            kind, pa, pb       string
            oa, ob, reason     string
        )
        if err := rows.Scan(&h.SessionID, &kind, &pa, &pb, &oa, &ob, &reason, &h.EndedAt); err != nil {
            return nil, err
        }
        h.Kind, _ = board.ParseKind(kind)
        h.Reason = duel.EndReason(reason)
        if duel.Party(pa) == p {
            h.Opponent, h.Outcome = duel.Party(pb), duel.Outcome(oa)
        } else {
            h.Opponent, h.Outcome = duel.Party(pa), duel.Outcome(ob)
        }
        out = append(out, h)
    }
    return out, rows.Err()
}
