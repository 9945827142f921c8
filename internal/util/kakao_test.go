package util

import (
    "strings"
    "testing"
)

func TestSeeMorePadsAfterHeader(t *testing.T) {
    got := SeeMore("📊 전적", "📊 전적\n사목: 3전 2승")
    head, body, ok := strings.Cut(got, "\n")
    if !ok || body != "사목: 3전 2승" { t.Fatalf("body=%q", body) }
    if !strings.HasPrefix(head, "📊 전적") || strings.Count(head, KakaoZeroWidthSpace) != KakaoSeeMorePadding { t.Fatalf("head padding wrong") }
}

func TestSeeMoreEmptyBody(t *testing.T) {
    if got := SeeMore("title", "  "); got != "title" { t.Fatalf("got %q", got) }
}

func TestStripLeadingHeader(t *testing.T) {
    if got := StripLeadingHeader("h\r\nbody", "h"); got != "body" { t.Fatalf("got %q", got) }
    if got := StripLeadingHeader("other\nbody", "h"); got != "other\nbody" { t.Fatalf("got %q", got) }
    if got := StripLeadingHeader("h", "h"); got != "" { t.Fatalf("got %q", got) }
}
