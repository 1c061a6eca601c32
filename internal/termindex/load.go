package termindex

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/termindex/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Load parses a raw snapshot and validates it. raw may be a Sphinx
// searchindex.js file, the bare Sphinx index object, canonical snapshot JSON,
// or a .tidx segment. Every structural or referential defect is reported as
// an error wrapping apperrors.ErrMalformedIndex.
func Load(raw []byte) (*Index, error) {
	snap, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return FromSnapshot(snap)
}

// Parse decodes raw into a Snapshot without validating references.
func Parse(raw []byte) (*Snapshot, error) {
	if segment.IsSegment(raw) {
		payload, _, err := segment.Decode(raw)
		if err != nil {
			return nil, err
		}
		raw = payload
	}
	if body, ok := unwrapSphinx(raw); ok {
		return fromSphinx(body)
	}

	var tables map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tables); err != nil {
		return nil, apperrors.Malformedf("decoding snapshot: %v", err)
	}
	if tables == nil {
		return nil, apperrors.Malformedf("snapshot is not a JSON object")
	}
	if _, ok := tables["docnames"]; ok {
		return fromSphinx(raw)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, apperrors.Malformedf("decoding snapshot: %v", err)
	}
	return &snap, nil
}

// FromSnapshot validates snap and builds an Index from it. snap is copied;
// later changes to it do not affect the Index.
func FromSnapshot(snap *Snapshot) (*Index, error) {
	if err := Validate(snap); err != nil {
		return nil, err
	}
	return build(snap), nil
}

// Validate checks that the required tables are present and that every
// document reference is in range.
func Validate(snap *Snapshot) error {
	switch {
	case snap == nil:
		return apperrors.Malformedf("empty snapshot")
	case snap.DocumentNames == nil:
		return apperrors.Malformedf("missing documentNames table")
	case snap.DocumentTitles == nil:
		return apperrors.Malformedf("missing documentTitles table")
	case snap.Terms == nil:
		return apperrors.Malformedf("missing terms table")
	}
	n := len(snap.DocumentNames)
	if len(snap.DocumentTitles) != n {
		return apperrors.Malformedf("documentTitles has %d entries, documentNames has %d", len(snap.DocumentTitles), n)
	}
	if snap.DocumentFiles != nil && len(snap.DocumentFiles) != n {
		return apperrors.Malformedf("documentFiles has %d entries, documentNames has %d", len(snap.DocumentFiles), n)
	}
	if err := validateRefs("term", snap.Terms, n); err != nil {
		return err
	}
	if err := validateRefs("title term", snap.TitleTerms, n); err != nil {
		return err
	}
	docs := make([]int, 0, len(snap.TitleTermsMap))
	for doc := range snap.TitleTermsMap {
		docs = append(docs, doc)
	}
	sort.Ints(docs)
	for _, doc := range docs {
		if doc < 0 || doc >= n {
			return apperrors.Malformedf("headings reference document %d, index has %d documents", doc, n)
		}
	}
	return nil
}

func validateRefs(kind string, refs map[string]DocRefs, n int) error {
	keys := make([]string, 0, len(refs))
	for k := range refs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, doc := range refs[k] {
			if doc < 0 || doc >= n {
				return apperrors.Malformedf("%s %q references document %d, index has %d documents", kind, k, doc, n)
			}
		}
	}
	return nil
}

// IsSphinx reports whether raw looks like a Sphinx searchindex.js file.
func IsSphinx(raw []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(raw), sphinxPrefix)
}
