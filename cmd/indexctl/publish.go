package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot/registry"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/termindex"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/spf13/cobra"
)

func newPublishCmd() *cobra.Command {
	var (
		configPath string
		objectKey  string
		notifyOnly bool
	)
	cmd := &cobra.Command{
		Use:   "publish <file>",
		Short: "Upload a snapshot and notify search instances",
		Long: `Validate a snapshot, upload it to the configured object store and announce it
on the snapshot topic so running search instances reload.

The file is uploaded unchanged; compressed files stay compressed. Nothing is
uploaded if the file fails validation. Kafka must be enabled in the config for
the announcement to be sent. An instance reloads only for announcements of the
object it reads, so --key reaches only instances configured with that key.

Examples:
  indexctl publish --config configs/production.yaml build/html/searchindex.js
  indexctl publish --key docs/v2/searchindex.json.zst snapshot.json.zst`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if objectKey != "" && objectKey != cfg.Snapshot.ObjectKey {
				fmt.Fprintf(cmd.ErrOrStderr(),
					"warning: instances configured with snapshot.objectKey %q ignore announcements for %q\n",
					cfg.Snapshot.ObjectKey, objectKey)
				cfg.Snapshot.ObjectKey = objectKey
			}
			return runPublish(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], notifyOnly)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "configs/development.yaml", "path to config file")
	cmd.Flags().StringVar(&objectKey, "key", "", "object key (default snapshot.objectKey)")
	cmd.Flags().BoolVar(&notifyOnly, "notify-only", false, "skip the upload and only send the announcement")
	return cmd
}

func runPublish(ctx context.Context, out io.Writer, cfg *config.Config, path string, notifyOnly bool) error {
	if cfg.Snapshot.Source != config.SourceObject {
		return fmt.Errorf("publish needs snapshot.source %q, config has %q", config.SourceObject, cfg.Snapshot.Source)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	data, err := source.Decompress(raw)
	if err != nil {
		return err
	}
	idx, err := termindex.Load(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	stats := idx.Stats()

	client, err := source.NewObjectClient(cfg.ObjectStore)
	if err != nil {
		return err
	}
	obj := source.NewObject(client, cfg.ObjectStore.Bucket, cfg.Snapshot.ObjectKey)
	if !notifyOnly {
		if _, err := obj.Upload(ctx, raw); err != nil {
			return err
		}
		fmt.Fprintf(out, "uploaded %s (%d documents, %d terms)\n", obj.Location(), stats.Documents, stats.Terms)
	}

	event := registry.PublishedEvent{
		Location:    obj.Location(),
		Checksum:    registry.Checksum(data),
		PublishedAt: time.Now().UTC(),
	}
	if !cfg.Kafka.Enabled {
		fmt.Fprintf(out, "kafka disabled, not announcing %s\n", event.Location)
		return nil
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SnapshotPublished)
	defer producer.Close()
	if err := producer.Publish(ctx, kafka.Event{Key: event.Location, Value: event}); err != nil {
		return err
	}
	fmt.Fprintf(out, "announced %s on %s (checksum %s)\n", event.Location, producer.Topic(), event.Checksum[:12])
	return nil
}
