// Package textutil normalizes article text for fingerprinting and similarity.
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds text to a canonical form: NFKC, lower case, letters and
// numbers of any script plus combining marks, single spaces, trimmed.
// Punctuation, symbols and control runes are dropped.
func Normalize(text string) string {
	// cases.Caser is stateful; one per call.
	lowered := cases.Lower(language.Und).String(norm.NFKC.String(text))

	var b strings.Builder
	b.Grow(len(lowered))
	pendingSpace := false
	for _, r := range lowered {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case keep(r):
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// keep admits letters and numbers of every script. Combining marks stay so
// Arabic harakat and Indic vowel signs remain part of their word.
func keep(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r)
}

// Hash returns the hex SHA-256 digest of the normalized text.
func Hash(text string) string {
	return digest(Normalize(text))
}

// Fingerprint is Hash that also reports whether anything survived
// normalization. Text made only of punctuation, symbols or space has no
// fingerprint and ok is false.
func Fingerprint(text string) (hash string, ok bool) {
	normalized := Normalize(text)
	if normalized == "" {
		return "", false
	}
	return digest(normalized), true
}

func digest(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// TokenSet is a set of normalized words.
type TokenSet map[string]struct{}

// Tokens returns the distinct words of the normalized text.
func Tokens(text string) TokenSet {
	set := make(TokenSet)
	for _, w := range strings.Fields(Normalize(text)) {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard is |a∩b| / |a∪b|. Two empty sets are identical and score 1.
func Jaccard(a, b TokenSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for w := range small {
		if _, ok := large[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Similarity is the Jaccard similarity of the two texts' token sets.
func Similarity(a, b string) float64 {
	return Jaccard(Tokens(a), Tokens(b))
}

// WordCount counts whitespace separated words in the raw text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
