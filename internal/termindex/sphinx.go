package termindex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// sphinxPrefix wraps the JSON object in the searchindex.js file emitted by
// Sphinx.
var sphinxPrefix = []byte("Search.setIndex(")

type sphinxIndex struct {
	DocNames   []string           `json:"docnames"`
	FileNames  []string           `json:"filenames"`
	Titles     []string           `json:"titles"`
	Terms      map[string]DocRefs `json:"terms"`
	TitleTerms map[string]DocRefs `json:"titleterms"`
	AllTitles  json.RawMessage    `json:"alltitles"`
}

// unwrapSphinx strips the Search.setIndex(...) call around the index object.
// ok is false when raw is not wrapped.
func unwrapSphinx(raw []byte) (body []byte, ok bool) {
	trimmed := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(trimmed, sphinxPrefix) {
		return raw, false
	}
	trimmed = bytes.TrimPrefix(trimmed, sphinxPrefix)
	trimmed = bytes.TrimSuffix(trimmed, []byte(";"))
	trimmed = bytes.TrimSpace(trimmed)
	trimmed = bytes.TrimSuffix(trimmed, []byte(")"))
	return trimmed, true
}

// fromSphinx converts a Sphinx search index object into a canonical Snapshot.
func fromSphinx(body []byte) (*Snapshot, error) {
	var si sphinxIndex
	if err := json.Unmarshal(body, &si); err != nil {
		return nil, apperrors.Malformedf("decoding sphinx index: %v", err)
	}
	snap := &Snapshot{
		DocumentNames:  si.DocNames,
		DocumentFiles:  si.FileNames,
		DocumentTitles: si.Titles,
		Terms:          si.Terms,
		TitleTerms:     si.TitleTerms,
	}
	if len(si.AllTitles) > 0 && !bytes.Equal(bytes.TrimSpace(si.AllTitles), []byte("null")) {
		headings, err := decodeAllTitles(si.AllTitles)
		if err != nil {
			return nil, apperrors.Malformedf("decoding alltitles: %v", err)
		}
		snap.TitleTermsMap = headings
	}
	return snap, nil
}

// decodeAllTitles reads {"Title": [[docIndex, anchor|null], ...], ...} and
// groups headings per document, keeping the order they appear in the file.
func decodeAllTitles(raw json.RawMessage) (map[int][]Heading, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	out := make(map[int][]Heading)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		title, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected title key, got %v", tok)
		}
		var entries [][]json.RawMessage
		if err := dec.Decode(&entries); err != nil {
			return nil, fmt.Errorf("title %q: %w", title, err)
		}
		for _, entry := range entries {
			if len(entry) == 0 {
				return nil, fmt.Errorf("title %q: empty entry", title)
			}
			var docIdx int
			if err := json.Unmarshal(entry[0], &docIdx); err != nil {
				return nil, fmt.Errorf("title %q: document index: %w", title, err)
			}
			var anchor *string
			if len(entry) > 1 {
				if err := json.Unmarshal(entry[1], &anchor); err != nil {
					return nil, fmt.Errorf("title %q: anchor: %w", title, err)
				}
			}
			h := Heading{Heading: title}
			if anchor != nil {
				h.Anchor = *anchor
			}
			out[docIdx] = append(out[docIdx], h)
		}
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}
