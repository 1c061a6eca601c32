// Package parser turns a free-text documentation query into a QueryPlan.
// Words are combined with AND unless an OR appears; NOT or a leading '-'
// excludes the next word.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analysis/tokenizer"
)

type QueryType int

const (
	QueryAND QueryType = iota
	QueryOR
)

func (t QueryType) String() string {
	if t == QueryOR {
		return "OR"
	}
	return "AND"
}

// Term is one query word: the lower-cased word as typed and its stem.
type Term struct {
	Surface string `json:"surface"`
	Stem    string `json:"stem"`
}

type QueryPlan struct {
	Terms        []Term
	Type         QueryType
	ExcludeTerms []Term
	RawQuery     string
}

// Keys returns the stems of the included terms.
func (p *QueryPlan) Keys() []string {
	keys := make([]string, len(p.Terms))
	for i, t := range p.Terms {
		keys[i] = t.Stem
	}
	return keys
}

func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]Term, 0),
		ExcludeTerms: make([]Term, 0),
		Type:         QueryAND,
		RawQuery:     query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	words := strings.Fields(query)
	excludeNext := false
	var stopped []Term
	for i := 0; i < len(words); i++ {
		word := words[i]
		switch strings.ToUpper(word) {
		case "AND":
			plan.Type = QueryAND
			continue
		case "OR":
			plan.Type = QueryOR
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		exclude := excludeNext
		excludeNext = false
		if len(word) > 1 && word[0] == '-' {
			exclude = true
			word = word[1:]
		}
		tokens := tokenizer.Tokenize(word)
		if len(tokens) == 0 {
			if !exclude {
				for _, w := range tokenizer.Split(word) {
					stopped = append(stopped, Term{Surface: w, Stem: tokenizer.Stem(w)})
				}
			}
			continue
		}
		for _, tok := range tokens {
			term := Term{Surface: tok.Surface, Stem: tok.Term}
			if exclude {
				plan.ExcludeTerms = appendUnique(plan.ExcludeTerms, term)
			} else {
				plan.Terms = appendUnique(plan.Terms, term)
			}
		}
	}
	// A query made only of stop-words still searches for them.
	if len(plan.Terms) == 0 {
		for _, term := range stopped {
			plan.Terms = appendUnique(plan.Terms, term)
		}
	}
	return plan
}

func appendUnique(terms []Term, term Term) []Term {
	for _, t := range terms {
		if t.Stem == term.Stem {
			return terms
		}
	}
	return append(terms, term)
}
