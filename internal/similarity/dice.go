// Package similarity scores how alike two clause texts are using the Dice
// coefficient over character bigrams, counted with multiplicity.
package similarity

import (
	"strings"
	"unicode"
)

// Func scores two texts in [0, 1]
type Func func(a, b string) float64

// Profile is the precomputed bigram multiset of a normalized text
type Profile struct {
	text    string
	length  int // normalized length in characters
	bigrams map[string]int
}

// NewProfile normalizes s and counts its bigrams
func NewProfile(s string) Profile {
	text := Normalize(s)
	runes := []rune(text)

	p := Profile{text: text, length: len(runes)}
	if len(runes) < 2 {
		return p
	}

	p.bigrams = make(map[string]int, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		p.bigrams[string(runes[i:i+2])]++
	}
	return p
}

// Text returns the normalized text
func (p Profile) Text() string {
	return p.text
}

// Len returns the normalized length in characters
func (p Profile) Len() int {
	return p.length
}

// Score computes the similarity of two texts
func Score(a, b string) float64 {
	return Compare(NewProfile(a), NewProfile(b))
}

// Compare computes the Dice coefficient of two profiles:
//
//	2 * sum(min(countA, countB)) / ((lenA - 1) + (lenB - 1))
//
// Texts shorter than two characters score 0; identical texts score 1.
func Compare(a, b Profile) float64 {
	if a.length < 2 || b.length < 2 {
		return 0
	}
	if a.text == b.text {
		return 1
	}

	// Iterate the smaller multiset
	small, large := a.bigrams, b.bigrams
	if len(small) > len(large) {
		small, large = large, small
	}

	matched := 0
	for bigram, n := range small {
		if m := large[bigram]; m > 0 {
			matched += min(n, m)
		}
	}

	return 2 * float64(matched) / float64((a.length-1)+(b.length-1))
}

// Normalize collapses every whitespace run to a single space and lowercases
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
