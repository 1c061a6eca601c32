package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func stems(terms []Term) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.Stem
	}
	return out
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		typ      QueryType
		terms    []string
		excludes []string
	}{
		{"empty", "   ", QueryAND, []string{}, []string{}},
		{"single", "Building", QueryAND, []string{"build"}, []string{}},
		{"implicit and", "install cmake", QueryAND, []string{"instal", "cmake"}, []string{}},
		{"or", "docker OR apptainer", QueryOR, []string{"docker", "apptain"}, []string{}},
		{"not", "build NOT windows", QueryAND, []string{"build"}, []string{"window"}},
		{"dash exclusion", "build -windows", QueryAND, []string{"build"}, []string{"window"}},
		{"stop-words dropped", "how to build the library", QueryAND, []string{"how", "build", "librari"}, []string{}},
		{"only stop-words", "the", QueryAND, []string{"the"}, []string{}},
		{"punctuation splits", "foam-extend", QueryAND, []string{"foam", "extend"}, []string{}},
		{"duplicates collapse", "builds building", QueryAND, []string{"build"}, []string{}},
		{"lone dash", "-", QueryAND, []string{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Parse(tt.query)
			assert.Equal(t, tt.typ, plan.Type)
			assert.Equal(t, tt.terms, stems(plan.Terms))
			assert.Equal(t, tt.excludes, stems(plan.ExcludeTerms))
			assert.Equal(t, tt.query, plan.RawQuery)
		})
	}
}

func TestParseKeepsSurface(t *testing.T) {
	plan := Parse("Repositories")
	assert.Equal(t, []Term{{Surface: "repositories", Stem: "repositori"}}, plan.Terms)
	assert.Equal(t, []string{"repositori"}, plan.Keys())
	assert.Equal(t, "AND", plan.Type.String())
}
