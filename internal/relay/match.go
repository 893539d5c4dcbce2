package relay

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// phoneticThreshold is the minimum Jaro-Winkler score for a phonetic
// candidate word to count as a spoken code.
const phoneticThreshold = 0.85

// Matcher decides whether a transcript contains one of the live codes.
//
// The primary policy is fixed and deliberate: plain substring containment,
// scanning codes in the order given, with the last match winning. With the
// default numeric universe and a recognizer that renders spoken numbers as
// digits, that is all that is needed.
//
// For word-shaped codes ("dragon", "mirefall") recognizers misspell more than
// they miss, so an optional phonetic fallback can be enabled: when no code is
// contained verbatim, each transcript word is compared to each non-numeric
// code by Double Metaphone encoding plus Jaro-Winkler similarity. Exact
// containment always takes precedence; the fallback never overrides it.
type Matcher struct {
	phonetic bool
}

// NewMatcher creates a Matcher. phonetic enables the fallback for
// word-shaped codes.
func NewMatcher(phonetic bool) *Matcher {
	return &Matcher{phonetic: phonetic}
}

// Match scans transcript against codes and returns the matching code, if any.
// codes must already be in scan order; the last code contained in the
// transcript wins.
func (m *Matcher) Match(transcript string, codes []string) (string, bool) {
	matched := ""
	for _, code := range codes {
		if strings.Contains(transcript, code) {
			matched = code
		}
	}
	if matched != "" {
		return matched, true
	}
	if !m.phonetic {
		return "", false
	}
	return m.phoneticMatch(transcript, codes)
}

// phoneticMatch compares each transcript word against each word-shaped code.
// The last code with a phonetic hit wins, mirroring the containment policy.
func (m *Matcher) phoneticMatch(transcript string, codes []string) (string, bool) {
	words := strings.FieldsFunc(strings.ToLower(transcript), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return "", false
	}

	matched := ""
	for _, code := range codes {
		lc := strings.ToLower(code)
		if !isWordShaped(lc) {
			continue
		}
		cp, cs := matchr.DoubleMetaphone(lc)
		for _, w := range words {
			wp, ws := matchr.DoubleMetaphone(w)
			if !phoneticOverlap(cp, cs, wp, ws) {
				continue
			}
			if matchr.JaroWinkler(lc, w, false) >= phoneticThreshold {
				matched = code
				break
			}
		}
	}
	if matched == "" {
		return "", false
	}
	return matched, true
}

// isWordShaped reports whether code is made of letters only. Numeric codes
// arrive as digits from the recognizer and never need phonetic help.
func isWordShaped(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// phoneticOverlap reports whether any non-empty metaphone code from one word
// equals any from the other.
func phoneticOverlap(ap, as, bp, bs string) bool {
	for _, a := range []string{ap, as} {
		if a == "" {
			continue
		}
		if a == bp || (bs != "" && a == bs) {
			return true
		}
	}
	return false
}
