// Package termindex holds an immutable documentation search snapshot: the
// vocabulary-to-document mapping produced when the docs were built, plus the
// document names, titles and section anchors needed to render results.
//
// An Index is built once by Load and never mutated, so it may be shared by any
// number of goroutines without locking.
package termindex

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Heading is one section heading of a document and its in-page anchor id.
// An empty Anchor points at the top of the page.
type Heading struct {
	Heading string `json:"heading"`
	Anchor  string `json:"anchor"`
}

// Snapshot is the canonical serialized form of an Index.
type Snapshot struct {
	DocumentNames  []string           `json:"documentNames"`
	DocumentFiles  []string           `json:"documentFiles,omitempty"`
	DocumentTitles []string           `json:"documentTitles"`
	Terms          map[string]DocRefs `json:"terms"`
	TitleTerms     map[string]DocRefs `json:"titleTerms,omitempty"`
	TitleTermsMap  map[int][]Heading  `json:"titleTermsMap,omitempty"`
}

// DocRefs is an ordered list of document indices. On the wire a single
// reference may be written as a bare integer.
type DocRefs []int

func (r *DocRefs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = DocRefs{}
		return nil
	}
	if len(data) > 0 && data[0] != '[' {
		var single int
		if err := json.Unmarshal(data, &single); err != nil {
			return fmt.Errorf("document reference: %w", err)
		}
		*r = DocRefs{single}
		return nil
	}
	var list []int
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("document reference list: %w", err)
	}
	if list == nil {
		list = []int{}
	}
	*r = list
	return nil
}

// Marshal serializes idx as canonical snapshot JSON. Loading the result
// yields an index with identical lookups.
func Marshal(idx *Index) ([]byte, error) {
	data, err := json.Marshal(idx.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	return data, nil
}
