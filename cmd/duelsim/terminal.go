package main

import (
    "context"
    "fmt"
    "io"
    "os"
    "strings"
    "time"

    "golang.org/x/term"

    "github.com/park285/critter-kakao-bot/internal/board"
    "github.com/park285/critter-kakao-bot/internal/duel"
)

const (
    ansiRed    = "\x1b[31m"
    ansiYellow = "\x1b[33m"
    ansiReset  = "\x1b[0m"
)

// useColor is true only when out is a terminal and NO_COLOR is unset.
func useColor(out io.Writer) bool {
    if os.Getenv("NO_COLOR") != "" {
        return false
    }
    f, ok := out.(*os.File)
    return ok && term.IsTerminal(int(f.Fd()))
}

type terminalPresenter struct {
    out   io.Writer
    color bool
}

func (p *terminalPresenter) Present(_ context.Context, v duel.View) error {
    switch v.Event {
    case duel.EventRejected:
        _, err := fmt.Fprintf(p.out, "! %s: %s\n", v.Actor, v.Notice)
        return err
    case duel.EventEnd:
        fmt.Fprint(p.out, p.board(v))
        _, err := fmt.Fprintf(p.out, "== %s (%s)\n", v.Status, v.Reason)
        return err
    case duel.EventReveal:
        fmt.Fprint(p.out, p.board(v))
        _, err := fmt.Fprintln(p.out, "-- no match")
        return err
    default:
        fmt.Fprint(p.out, p.board(v))
        left := time.Until(v.Deadline).Round(time.Second)
        _, err := fmt.Fprintf(p.out, "-> %s to move (turn %d, %s)\n", v.Active, v.Turn+1, left)
        return err
    }
}

func (p *terminalPresenter) board(v duel.View) string {
    var b strings.Builder
    if v.Cards != nil {
        for _, row := range v.Cards {
            for c, card := range row {
                if c > 0 {
                    b.WriteByte(' ')
                }
                b.WriteString(cardGlyph(card))
            }
            b.WriteByte('\n')
        }
        fmt.Fprintf(&b, "pairs a=%d b=%d\n", v.Pairs[0], v.Pairs[1])
        return b.String()
    }
    for _, row := range v.Marks {
        for c, cell := range row {
            if c > 0 {
                b.WriteByte(' ')
            }
            b.WriteString(p.markGlyph(cell))
        }
        b.WriteByte('\n')
    }
    return b.String()
}

func (p *terminalPresenter) markGlyph(c board.Cell) string {
    switch c {
    case board.MarkA:
        return p.paint("X", ansiRed)
    case board.MarkB:
        return p.paint("O", ansiYellow)
    default:
        return "."
    }
}

func (p *terminalPresenter) paint(s, color string) string {
    if !p.color {
        return s
    }
    return color + s + ansiReset
}

func cardGlyph(c board.Card) string {
    switch c.State {
    case board.FaceDown:
        return "??"
    case board.FaceUp:
        return fmt.Sprintf("%2d", c.Face+1)
    default:
        return "--"
    }
}
