package termindex

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analysis/tokenizer"
)

// Document is one documentation page.
type Document struct {
	Index    int       `json:"index"`
	Name     string    `json:"name"`
	File     string    `json:"file,omitempty"`
	Title    string    `json:"title"`
	Headings []Heading `json:"headings"`
}

// DocumentMatch is one lookup result. Heading and Anchor are set when the
// term occurs in one of the document's section headings.
type DocumentMatch struct {
	Index      int    `json:"index"`
	Filename   string `json:"filename"`
	File       string `json:"file,omitempty"`
	Title      string `json:"title"`
	Heading    string `json:"heading,omitempty"`
	Anchor     string `json:"anchor,omitempty"`
	TitleMatch bool   `json:"titleMatch"`
}

// Stats summarises the size of an Index.
type Stats struct {
	Documents  int `json:"documents"`
	Terms      int `json:"terms"`
	TitleTerms int `json:"titleTerms"`
	Headings   int `json:"headings"`
	Postings   int `json:"postings"`
}

// Index is a loaded, validated, read-only snapshot.
type Index struct {
	docs       []Document
	hasFiles   bool
	terms      map[string][]int
	titleTerms map[string][]int
	// headingTerms[doc][i] holds the stems of docs[doc].Headings[i].
	headingTerms [][]map[string]struct{}
	vocab        []string
}

func build(snap *Snapshot) *Index {
	n := len(snap.DocumentNames)
	idx := &Index{
		docs:         make([]Document, n),
		hasFiles:     snap.DocumentFiles != nil,
		terms:        copyRefs(snap.Terms),
		titleTerms:   copyRefs(snap.TitleTerms),
		headingTerms: make([][]map[string]struct{}, n),
	}
	for i := 0; i < n; i++ {
		doc := Document{
			Index:    i,
			Name:     snap.DocumentNames[i],
			Title:    snap.DocumentTitles[i],
			Headings: append([]Heading{}, snap.TitleTermsMap[i]...),
		}
		if idx.hasFiles {
			doc.File = snap.DocumentFiles[i]
		}
		idx.docs[i] = doc
		idx.headingTerms[i] = make([]map[string]struct{}, len(doc.Headings))
		for h, heading := range doc.Headings {
			idx.headingTerms[i][h] = headingStems(heading.Heading)
		}
	}
	idx.vocab = sortedVocabulary(idx.terms, idx.titleTerms)
	return idx
}

// copyRefs drops terms that list no documents; they are not part of the
// vocabulary.
func copyRefs(in map[string]DocRefs) map[string][]int {
	out := make(map[string][]int, len(in))
	for k, v := range in {
		if len(v) == 0 {
			continue
		}
		out[k] = append([]int{}, v...)
	}
	return out
}

// headingStems keeps stop-words: a heading matches any word it contains.
func headingStems(heading string) map[string]struct{} {
	words := tokenizer.Split(heading)
	stems := make(map[string]struct{}, len(words)*2)
	for _, w := range words {
		stems[tokenizer.Stem(w)] = struct{}{}
		stems[w] = struct{}{}
	}
	return stems
}

// Resolve maps a user-supplied term to the vocabulary key it matches: the
// term exactly as given, then lower-cased, then its first word, then that
// word's stem. A term that is itself in the vocabulary always resolves to
// itself. ok is false when no candidate is in the index; key is then the stem.
func (idx *Index) Resolve(term string) (key string, ok bool) {
	trimmed := strings.TrimSpace(term)
	if trimmed == "" {
		return "", false
	}
	stem := tokenizer.Normalize(trimmed)
	candidates := []string{trimmed, strings.ToLower(trimmed)}
	if words := tokenizer.Split(trimmed); len(words) > 0 {
		candidates = append(candidates, words[0], stem)
	}
	for _, c := range candidates {
		if c != "" && idx.has(c) {
			return c, true
		}
	}
	return stem, false
}

func (idx *Index) has(key string) bool {
	if _, ok := idx.terms[key]; ok {
		return true
	}
	_, ok := idx.titleTerms[key]
	return ok
}

// Postings returns the documents for a vocabulary key: body matches in stored
// order, then heading-only matches. Duplicates are dropped.
func (idx *Index) Postings(key string) []int {
	body, titles := idx.terms[key], idx.titleTerms[key]
	out := make([]int, 0, len(body)+len(titles))
	seen := make(map[int]struct{}, len(body)+len(titles))
	for _, list := range [][]int{body, titles} {
		for _, doc := range list {
			if _, dup := seen[doc]; dup {
				continue
			}
			seen[doc] = struct{}{}
			out = append(out, doc)
		}
	}
	return out
}

// Lookup returns the documents containing term, in the order stored in the
// snapshot. Unknown terms yield an empty, non-nil slice.
func (idx *Index) Lookup(term string) []DocumentMatch {
	key, ok := idx.Resolve(term)
	if !ok {
		return []DocumentMatch{}
	}
	docs := idx.Postings(key)
	matches := make([]DocumentMatch, 0, len(docs))
	for _, doc := range docs {
		matches = append(matches, idx.Match(doc, key))
	}
	return matches
}

// Match describes document doc as a result for the given vocabulary keys.
// The first heading containing any key, tried in order, supplies the anchor.
func (idx *Index) Match(doc int, keys ...string) DocumentMatch {
	d := idx.docs[doc]
	m := DocumentMatch{
		Index:    d.Index,
		Filename: d.Name,
		File:     d.File,
		Title:    d.Title,
	}
	for _, key := range keys {
		if containsDoc(idx.titleTerms[key], doc) {
			m.TitleMatch = true
		}
	}
	for _, key := range keys {
		if h, ok := idx.headingFor(doc, key); ok {
			m.Heading = h.Heading
			m.Anchor = h.Anchor
			m.TitleMatch = true
			break
		}
	}
	return m
}

func (idx *Index) headingFor(doc int, key string) (Heading, bool) {
	for i, stems := range idx.headingTerms[doc] {
		if _, ok := stems[key]; ok {
			return idx.docs[doc].Headings[i], true
		}
	}
	return Heading{}, false
}

func containsDoc(list []int, doc int) bool {
	for _, d := range list {
		if d == doc {
			return true
		}
	}
	return false
}

// Len returns the number of documents.
func (idx *Index) Len() int {
	return len(idx.docs)
}

// Document returns the document at index i.
func (idx *Index) Document(i int) (Document, bool) {
	if i < 0 || i >= len(idx.docs) {
		return Document{}, false
	}
	d := idx.docs[i]
	d.Headings = append([]Heading{}, d.Headings...)
	return d, true
}

// Documents returns a copy of the document table.
func (idx *Index) Documents() []Document {
	out := make([]Document, len(idx.docs))
	for i := range idx.docs {
		out[i], _ = idx.Document(i)
	}
	return out
}

// Terms returns the sorted vocabulary, body and heading terms combined.
func (idx *Index) Terms() []string {
	return append([]string{}, idx.vocab...)
}

// Complete returns up to limit vocabulary terms starting with the normalised
// prefix, in sorted order. A limit of zero or less means no limit.
func (idx *Index) Complete(prefix string, limit int) []string {
	words := tokenizer.Split(prefix)
	if len(words) == 0 {
		return []string{}
	}
	p := words[0]
	out := make([]string, 0)
	for i := sort.SearchStrings(idx.vocab, p); i < len(idx.vocab); i++ {
		if !strings.HasPrefix(idx.vocab[i], p) {
			break
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, idx.vocab[i])
	}
	return out
}

func sortedVocabulary(maps ...map[string][]int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range maps {
		for k := range m {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (idx *Index) Stats() Stats {
	s := Stats{
		Documents:  len(idx.docs),
		Terms:      len(idx.terms),
		TitleTerms: len(idx.titleTerms),
	}
	for _, d := range idx.docs {
		s.Headings += len(d.Headings)
	}
	for _, refs := range idx.terms {
		s.Postings += len(refs)
	}
	return s
}

// Snapshot returns the canonical form of the index. The result shares no
// memory with idx.
func (idx *Index) Snapshot() *Snapshot {
	n := len(idx.docs)
	snap := &Snapshot{
		DocumentNames:  make([]string, n),
		DocumentTitles: make([]string, n),
		Terms:          make(map[string]DocRefs, len(idx.terms)),
	}
	if idx.hasFiles {
		snap.DocumentFiles = make([]string, n)
	}
	for i, d := range idx.docs {
		snap.DocumentNames[i] = d.Name
		snap.DocumentTitles[i] = d.Title
		if idx.hasFiles {
			snap.DocumentFiles[i] = d.File
		}
		if len(d.Headings) > 0 {
			if snap.TitleTermsMap == nil {
				snap.TitleTermsMap = make(map[int][]Heading)
			}
			snap.TitleTermsMap[i] = append([]Heading{}, d.Headings...)
		}
	}
	for k, v := range idx.terms {
		snap.Terms[k] = append(DocRefs{}, v...)
	}
	if len(idx.titleTerms) > 0 {
		snap.TitleTerms = make(map[string]DocRefs, len(idx.titleTerms))
		for k, v := range idx.titleTerms {
			snap.TitleTerms[k] = append(DocRefs{}, v...)
		}
	}
	return snap
}
