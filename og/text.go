package og

import (
	"regexp"
	"strings"
)

// emojiRanges is the fixed set of emoji and symbol blocks removed from text
// fields. It is deliberately narrower than the full emoji set.
var emojiRanges = regexp.MustCompile(`[\x{2700}-\x{27BF}\x{E000}-\x{F8FF}\x{1F000}-\x{1F3FF}\x{1F400}-\x{1F7FF}\x{2011}-\x{26FF}\x{1F910}-\x{1F9FF}]`)

// StripEmojis removes emoji and symbol code points, collapses whitespace runs
// to a single space and trims the result.
func StripEmojis(s string) string {
	s = emojiRanges.ReplaceAllString(s, "")
	return collapseSpace(s)
}

// isSpace matches the ECMAScript whitespace and line terminator set.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		'\u00a0', '\u1680', '\u2028', '\u2029', '\u202f', '\u205f', '\u3000', '\ufeff':
		return true
	}
	return r >= '\u2000' && r <= '\u200a'
}

func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		if isSpace(r) {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte(' ')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EncodeURIComponent percent-encodes s, leaving A-Z a-z 0-9 and -_.!~*'()
// untouched.
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
