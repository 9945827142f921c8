package duelstore

import (
    "context"
    "database/sql/driver"
    "errors"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"

    "github.com/park285/critter-kakao-bot/internal/board"
    "github.com/park285/critter-kakao-bot/internal/duel"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
    t.Helper()
    db, mock, err := sqlmock.New()
    if err != nil { t.Fatalf("failed to create sqlmock: %v", err) }
    t.Cleanup(func() {
        if err := mock.ExpectationsWereMet(); err != nil { t.Errorf("unfulfilled expectations: %v", err) }
        db.Close()
    })
    r := newRepository(db)
    r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
    return r, mock
}

func sampleResult() duel.Result {
    start := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
    return duel.Result{
        SessionID:  "s-1",
        Kind:       board.ThreeInRow,
        Channel:    "room1",
        PartyA:     "alice",
        PartyB:     "bob",
        Status:     duel.StatusWonByA,
        Reason:     duel.ReasonWin,
        Winner:     "alice",
        OutcomeA:   duel.OutcomeWon,
        OutcomeB:   duel.OutcomeLost,
        Turns:      5,
        Moves:      5,
        WinningRun: []board.Pos{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}},
        Board:      "111/220/000",
        StartedAt:  start,
        EndedAt:    start.Add(90 * time.Second),
    }
}

func TestSaveResult(t *testing.T) {
    r, mock := newMockRepo(t)
    res := sampleResult()
    mock.ExpectExec("INSERT INTO duel_results").
        WithArgs("s-1", "tictactoe", "room1", "alice", "bob",
            "WON_BY_A", "win", "alice", "", "won", "lost",
            5, 5, 0, 0, `[{"Row":0,"Col":0},{"Row":0,"Col":1},{"Row":0,"Col":2}]`, "111/220/000",
            res.StartedAt, res.EndedAt, int64(90000)).
        WillReturnResult(sqlmock.NewResult(0, 1))
    if err := r.Record(context.Background(), res); err != nil { t.Fatalf("Record: %v", err) }
}

func TestSaveResult_NoRunStoresNull(t *testing.T) {
    r, mock := newMockRepo(t)
    res := sampleResult()
    res.Status, res.Reason, res.Winner = duel.StatusDraw, duel.ReasonBoardFull, ""
    res.OutcomeA, res.OutcomeB = duel.OutcomeDraw, duel.OutcomeDraw
    res.WinningRun = nil
    mock.ExpectExec("INSERT INTO duel_results").
        WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
            "DRAW", "board_full", "", "", "draw", "draw",
            sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), nil, sqlmock.AnyArg(),
            sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
        WillReturnResult(sqlmock.NewResult(0, 1))
    if err := r.SaveResult(context.Background(), res); err != nil { t.Fatalf("SaveResult: %v", err) }
}

func TestReward_AppliesDelta(t *testing.T) {
    cases := []struct {
        outcome duel.Outcome
        args    []any // played, wins, losses, draws, forfeits, declines
    }{
        {duel.OutcomeWon, []any{1, 1, 0, 0, 0, 0}},
        {duel.OutcomeLost, []any{1, 0, 1, 0, 0, 0}},
        {duel.OutcomeDraw, []any{1, 0, 0, 1, 0, 0}},
        {duel.OutcomeForfeitedBySelf, []any{1, 0, 1, 0, 1, 0}},
        {duel.OutcomeForfeitedByOpponent, []any{1, 1, 0, 0, 0, 0}},
        {duel.OutcomeDeclined, []any{0, 0, 0, 0, 0, 1}},
    }
    for _, c := range cases {
        t.Run(string(c.outcome), func(t *testing.T) {
            r, mock := newMockRepo(t)
            args := append([]any{"alice", "connect4"}, c.args...)
            args = append(args, r.now())
            mock.ExpectExec("INSERT INTO duel_stats").WithArgs(toDriver(args)...).WillReturnResult(sqlmock.NewResult(0, 1))
            rw := duel.Reward{Party: "alice", Outcome: c.outcome, Result: duel.Result{Kind: board.GravityDrop}}
            if err := r.Reward(context.Background(), rw); err != nil { t.Fatalf("Reward: %v", err) }
        })
    }
}

func TestApplyOutcome_Errors(t *testing.T) {
    r, mock := newMockRepo(t)
    if err := r.ApplyOutcome(context.Background(), "alice", board.ThreeInRow, "bogus"); err == nil { t.Fatalf("expected unknown outcome error") }

    boom := errors.New("boom")
    mock.ExpectExec("INSERT INTO duel_stats").WillReturnError(boom)
    if err := r.ApplyOutcome(context.Background(), "alice", board.ThreeInRow, duel.OutcomeWon); !errors.Is(err, boom) { t.Fatalf("want boom, got %v", err) }
}

func TestStats(t *testing.T) {
    r, mock := newMockRepo(t)
    rows := sqlmock.NewRows([]string{"kind", "played", "wins", "losses", "draws", "forfeits", "declines"}).
        AddRow("connect4", 4, 2, 1, 1, 0, 0).
        AddRow("tictactoe", 3, 0, 2, 1, 1, 2)
    mock.ExpectQuery("FROM duel_stats WHERE party = \\$1").WithArgs("alice").WillReturnRows(rows)

    got, err := r.Stats(context.Background(), "alice")
    if err != nil { t.Fatalf("Stats: %v", err) }
    if len(got) != 2 { t.Fatalf("len=%d", len(got)) }
    if got[0].Kind != board.GravityDrop || got[0].Wins != 2 { t.Fatalf("got[0]=%+v", got[0]) }
    if got[1].Kind != board.ThreeInRow || got[1].Forfeits != 1 || got[1].Declines != 2 { t.Fatalf("got[1]=%+v", got[1]) }
}

func TestRecent(t *testing.T) {
    r, mock := newMockRepo(t)
    ended := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
    rows := sqlmock.NewRows([]string{"session_id", "kind", "party_a", "party_b", "outcome_a", "outcome_b", "reason", "ended_at"}).
        AddRow("s-2", "pairs", "bob", "alice", "lost", "won", "all_matched", ended).
        AddRow("s-1", "tictactoe", "alice", "bob", "won", "lost", "win", ended.Add(-time.Hour))
    mock.ExpectQuery("FROM duel_results WHERE party_a = \\$1 OR party_b = \\$1").WithArgs("alice", 10).WillReturnRows(rows)

    got, err := r.Recent(context.Background(), "alice", 0)
    if err != nil { t.Fatalf("Recent: %v", err) }
    if len(got) != 2 { t.Fatalf("len=%d", len(got)) }
    if got[0].Opponent != "bob" || got[0].Outcome != duel.OutcomeWon || got[0].Kind != board.PairMatching { t.Fatalf("got[0]=%+v", got[0]) }
    if got[1].Opponent != "bob" || got[1].Outcome != duel.OutcomeWon { t.Fatalf("got[1]=%+v", got[1]) }
}

func TestNewRepository_RequiresURL(t *testing.T) {
    if _, err := NewRepository("  "); err == nil { t.Fatalf("expected error for empty url") }
}

func toDriver(in []any) []driver.Value {
    out := make([]driver.Value, len(in))
    for i, v := range in { out[i] = v }
    return out
}
