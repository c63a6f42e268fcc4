package keywords

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// shortTermRunes is the length at or below which a term must match a whole word.
// Terms like "ko", "ne" or "hip" otherwise fire inside names and longer words.
const shortTermRunes = 3

// Contains reports whether term occurs in text. Both must already be lowercased.
func Contains(text, term string) bool {
	if term == "" {
		return false
	}
	if utf8.RuneCountInString(term) > shortTermRunes {
		return strings.Contains(text, term)
	}
	return IndexWord(text, term) >= 0
}

// IndexWord returns the byte offset of the first whole-word occurrence of term, or -1.
func IndexWord(text, term string) int {
	for from := 0; from <= len(text)-len(term); {
		j := strings.Index(text[from:], term)
		if j < 0 {
			return -1
		}
		start := from + j
		end := start + len(term)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return start
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return -1
}

// Matches returns the terms found in text, in table order.
func Matches(text string, terms []string) []string {
	var out []string
	for _, t := range terms {
		if Contains(text, t) {
			out = append(out, t)
		}
	}
	return out
}

// Any reports whether any term is found in text.
func Any(text string, terms []string) bool {
	for _, t := range terms {
		if Contains(text, t) {
			return true
		}
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
