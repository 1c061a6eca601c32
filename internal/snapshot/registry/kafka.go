package registry

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// PublishedEvent is sent on the snapshotPublished topic by the documentation
// build after it uploads a new snapshot.
type PublishedEvent struct {
	Location    string    `json:"location"`
	Checksum    string    `json:"checksum,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// HandlePublished is a kafka.MessageHandler that reloads the snapshot. Events
// for a location other than this registry's source, and events whose checksum
// matches the current snapshot, are skipped. A malformed snapshot is logged
// and acknowledged since retrying cannot fix it.
func (r *Registry) HandlePublished(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[PublishedEvent](value)
	if err != nil {
		r.logger.Warn("dropping undecodable snapshot event", "error", err)
		return nil
	}
	if event.Location != "" && event.Location != r.src.Location() {
		r.logger.Warn("ignoring snapshot published for another location",
			"location", event.Location,
			"serving_from", r.src.Location(),
		)
		return nil
	}
	if cur := r.current.Load(); cur != nil && event.Checksum != "" && event.Checksum == cur.Checksum {
		r.logger.Debug("snapshot event matches current snapshot", "version", cur.Version)
		return nil
	}
	r.logger.Info("snapshot published",
		"location", event.Location,
		"published_at", event.PublishedAt,
	)
	if _, err := r.Reload(ctx, TriggerKafka); err != nil {
		if errors.Is(err, apperrors.ErrMalformedIndex) {
			return nil
		}
		return err
	}
	return nil
}
