package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInvalidInput, http.StatusTeapot, "x"), http.StatusTeapot},
		{"malformed", Malformedf("term %q", "x"), http.StatusUnprocessableEntity},
		{"wrapped sentinel", fmt.Errorf("loading: %w", ErrSnapshotUnavailable), http.StatusServiceUnavailable},
		{"not found", NotFoundf("no document %d", 4), http.StatusNotFound},
		{"invalid input", fmt.Errorf("limit: %w", ErrInvalidInput), http.StatusBadRequest},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, "malformed_index", Code(fmt.Errorf("reload: %w", Malformedf("bad"))))
	assert.Equal(t, "snapshot_unavailable", Code(ErrSnapshotUnavailable))
	assert.Equal(t, "not_found", Code(NotFoundf("no document %d", 1)))
	assert.Equal(t, "internal", Code(context.Canceled))
}

func TestMalformedfUnwraps(t *testing.T) {
	err := fmt.Errorf("load: %w", Malformedf("document index %d out of range", 7))
	assert.True(t, errors.Is(err, ErrMalformedIndex))
	assert.Contains(t, err.Error(), "document index 7 out of range")
}
