package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	Location    string    `json:"location"`
	PublishedAt time.Time `json:"publishedAt"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[published]([]byte(`{"location":"s3://docs/searchindex.js","publishedAt":"2024-05-01T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "s3://docs/searchindex.js", got.Location)
	assert.Equal(t, 2024, got.PublishedAt.Year())

	_, err = DecodeJSON[published]([]byte(`{"location":`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestEncode(t *testing.T) {
	msgs, err := encode([]Event{
		{Key: "build", Value: map[string]int{"hits": 1}},
		{Key: "cmake", Value: map[string]int{"hits": 2}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "build", string(msgs[0].Key))
	assert.JSONEq(t, `{"hits":2}`, string(msgs[1].Value))
	assert.False(t, msgs[0].Time.IsZero())

	_, err = encode([]Event{{Key: "bad", Value: func() {}}})
	assert.ErrorContains(t, err, `marshaling event "bad"`)
}

func TestHealthCheckReportsFetchFailures(t *testing.T) {
	c := &Consumer{}
	c.fetchFailures.Store(3)
	got := c.HealthCheck(t.Context())
	assert.Equal(t, health.StatusDown, got.Status)
	assert.Equal(t, "3 consecutive fetch failures", got.Message)
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
	assert.True(t, sleep(t.Context(), time.Millisecond))
}
