// Package expression rewrites casual shorthand in free-text fields into the
// wording expected in the official record.
package expression

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Words that must survive the vehicle rules untouched, in protection order.
var protectedWords = []string{"車椅子", "自転車", "電車", "バス"}

var parkPlayground = regexp.MustCompile(`公園[^。！？\n]{0,20}遊具[^。！？\n]*`)

const parkWalk = "公園を散歩した"

type placeholder struct {
	key   string
	value string
}

// Rewrite applies the vehicle and park rules to text. It is total and
// idempotent: Rewrite(Rewrite(s)) == Rewrite(s).
func Rewrite(text string) string {
	if text == "" {
		return ""
	}

	alloc := newRuneAllocator(text)
	var kept []placeholder
	result := text

	for _, word := range protectedWords {
		n := utf8.RuneCountInString(word)
		var b strings.Builder
		rest := result
		for {
			i := strings.Index(rest, word)
			if i < 0 {
				b.WriteString(rest)
				break
			}
			key := strings.Repeat(string(alloc.next()), n)
			kept = append(kept, placeholder{key: key, value: word})
			b.WriteString(rest[:i])
			b.WriteString(key)
			rest = rest[i+len(word):]
		}
		result = b.String()
	}

	result = strings.ReplaceAll(result, "車両", "バス")
	result = strings.ReplaceAll(result, "車", "電車")
	result = parkPlayground.ReplaceAllLiteralString(result, parkWalk)

	for _, p := range kept {
		result = strings.Replace(result, p.key, p.value, 1)
	}
	return result
}

// runeAllocator hands out private-use runes that do not occur in the input.
// A placeholder repeats its rune to match the protected word's length, so
// the park rule measures the same distances whether a word is protected or not.
type runeAllocator struct {
	used map[rune]struct{}
	cur  rune
}

func newRuneAllocator(text string) *runeAllocator {
	used := make(map[rune]struct{})
	for _, r := range text {
		if isPrivateUse(r) {
			used[r] = struct{}{}
		}
	}
	return &runeAllocator{used: used, cur: 0xE000 - 1}
}

func (a *runeAllocator) next() rune {
	for {
		a.cur++
		switch a.cur {
		case 0xF900:
			a.cur = 0xF0000
		case 0xFFFFE:
			a.cur = 0x100000
		}
		if _, taken := a.used[a.cur]; !taken {
			return a.cur
		}
	}
}

func isPrivateUse(r rune) bool {
	return (r >= 0xE000 && r <= 0xF8FF) || (r >= 0xF0000 && r <= 0xFFFFD) || (r >= 0x100000 && r <= 0x10FFFD)
}
