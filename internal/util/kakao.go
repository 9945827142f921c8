package util

import "strings"

const (
    KakaoSeeMorePadding = 500
    KakaoZeroWidthSpace = "\u200b"
)

// SeeMore는 카카오톡 '전체보기' 접힘을 위해 첫 줄 뒤에 제로폭 문자를 채운다.
// 첫 줄(header)만 미리보기에 보이고 body 는 펼쳐야 보인다.
func SeeMore(header, body string) string {
    header = strings.TrimSpace(header)
    body = strings.TrimLeft(StripLeadingHeader(body, header), "\r\n")
    if strings.TrimSpace(body) == "" {
        return header
    }
    var b strings.Builder
    b.Grow(len(header) + len(body) + KakaoSeeMorePadding*len(KakaoZeroWidthSpace) + 1)
    b.WriteString(header)
    b.WriteString(strings.Repeat(KakaoZeroWidthSpace, KakaoSeeMorePadding))
    b.WriteByte('\n')
    b.WriteString(body)
    return b.String()
}

// 첫 줄에 중복된 헤더가 있으면 제거한다.
func StripLeadingHeader(text, header string) string {
    if strings.TrimSpace(text) == "" || strings.TrimSpace(header) == "" {
        return text
    }
    first, rest, found := strings.Cut(strings.TrimLeft(text, "\r\n"), "\n")
    if strings.TrimSpace(first) != strings.TrimSpace(header) {
        return text
    }
    if !found {
        return ""
    }
    return rest
}
