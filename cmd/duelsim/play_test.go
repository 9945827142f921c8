package main

import (
    "bytes"
    "context"
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/park285/critter-kakao-bot/internal/board"
    "github.com/park285/critter-kakao-bot/internal/duel"
)

func TestPlayTicTacToeFromLines(t *testing.T) {
    var out bytes.Buffer
    in := strings.NewReader("a 1\nb 4\n\na 2\nb 5\na 3\n")
    f := playFlags{kind: "틱택토", timeout: 2 * time.Second, roundCap: 30}
    if err := runPlay(context.Background(), f, in, &out); err != nil { t.Fatalf("runPlay: %v", err) }
    got := out.String()
    if !strings.Contains(got, "result: WON_BY_A (win) turns=5 board=111/220/000") { t.Fatalf("output:\n%s", got) }
    if !strings.Contains(got, "reward a: won") || !strings.Contains(got, "reward b: lost") { t.Fatalf("rewards missing:\n%s", got) }
}

func TestPlayResignWritesPNGs(t *testing.T) {
    dir := filepath.Join(t.TempDir(), "png")
    var out bytes.Buffer
    in := strings.NewReader("a 4\nb resign\n")
    f := playFlags{kind: "connect4", timeout: 2 * time.Second, roundCap: 30, pngDir: dir}
    if err := runPlay(context.Background(), f, in, &out); err != nil { t.Fatalf("runPlay: %v", err) }
    if !strings.Contains(out.String(), "result: FORFEIT (resign)") { t.Fatalf("output:\n%s", out.String()) }
    entries, err := os.ReadDir(dir)
    if err != nil || len(entries) < 2 { t.Fatalf("png files=%d err=%v", len(entries), err) }
}

func TestPlayUnknownKind(t *testing.T) {
    if err := runPlay(context.Background(), playFlags{kind: "chess"}, strings.NewReader(""), &bytes.Buffer{}); err == nil { t.Fatalf("expected error") }
}

func TestParseLine(t *testing.T) {
    p, args, err := parseLine(" B 2 3 ")
    if err != nil || p != "b" || len(args) != 2 { t.Fatalf("got %q %v %v", p, args, err) }
    if _, _, err := parseLine("c 1"); err == nil { t.Fatalf("expected party error") }
    if _, _, err := parseLine("a"); err == nil { t.Fatalf("expected move error") }
    if _, _, err := parseLine("   "); err != errBlank { t.Fatalf("expected blank, got %v", err) }
}

func TestTerminalBoardGlyphs(t *testing.T) {
    p := &terminalPresenter{}
    cards := [][]board.Card{{{Face: 0}, {Face: 0, State: board.FaceUp}, {Face: 1, State: board.Matched}}}
    got := p.board(duel.View{Cards: cards, Pairs: [2]int{1, 0}})
    if got != "??  1 --\npairs a=1 b=0\n" { t.Fatalf("cards=%q", got) }
    marks := [][]board.Cell{{board.MarkA, board.Empty, board.MarkB}}
    if got := p.board(duel.View{Marks: marks}); got != "X . O\n" { t.Fatalf("marks=%q", got) }
}
