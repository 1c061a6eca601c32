// Package tokenizer normalises text into index terms the same way the
// documentation builder does: lower-case, split on anything that is not a
// letter, digit or underscore, drop English stop-words, and Porter-stem.
package tokenizer

import (
	"strings"
	"unicode"

	porterstemmer "github.com/reiver/go-porterstemmer"
)

var stopWords = map[string]struct{}{
	"a": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "if": {}, "in": {}, "into": {},
	"is": {}, "it": {}, "near": {}, "no": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "such": {}, "that": {}, "the": {}, "their": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"to": {}, "was": {}, "will": {}, "with": {},
}

// Token represents a single normalised term, the lower-cased word it came
// from, and its position among the kept tokens.
type Token struct {
	Term     string
	Surface  string
	Position int
}

// Tokenize breaks text into stemmed, lower-cased Tokens with stop-words
// removed.
func Tokenize(text string) []Token {
	words := Split(text)
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if IsStopWord(word) {
			continue
		}
		stemmed := Stem(word)
		if stemmed == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     stemmed,
			Surface:  word,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Split lower-cases text and cuts it into words.
func Split(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), isSeparator)
}

// Normalize maps a single lookup term to its index key. Stop-words are kept:
// a caller asking for one term gets that term's key, not nothing.
func Normalize(term string) string {
	words := Split(term)
	if len(words) == 0 {
		return ""
	}
	return Stem(words[0])
}

// IsStopWord reports whether the lower-cased word is never indexed.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// Stem returns the Porter stem of a lower-cased word. Purely numeric words
// are returned unchanged.
func Stem(word string) string {
	if word == "" || isNumeric(word) {
		return word
	}
	return porterstemmer.StemString(word)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

func isNumeric(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
