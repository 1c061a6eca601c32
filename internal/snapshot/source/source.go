// Package source fetches raw snapshot bytes from where the documentation
// build publishes them: a local file or an S3-compatible bucket. Compressed
// payloads (gzip, zstd) are expanded before they are returned.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Payload is one fetched snapshot.
type Payload struct {
	Data     []byte
	Location string
	ModTime  time.Time
}

// Source yields the current snapshot.
type Source interface {
	Fetch(ctx context.Context) (*Payload, error)
	Location() string
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Decompress expands gzip or zstd data, identified by magic bytes. Anything
// else is returned unchanged.
func Decompress(raw []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(raw, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("opening gzip snapshot: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("reading gzip snapshot: %w", err)
		}
		return out, nil
	case bytes.HasPrefix(raw, zstdMagic):
		zr, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		out, err := zr.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("reading zstd snapshot: %w", err)
		}
		return out, nil
	default:
		return raw, nil
	}
}

// New builds the Source selected by cfg.Snapshot.Source.
func New(cfg *config.Config) (Source, error) {
	switch cfg.Snapshot.Source {
	case config.SourceFile:
		return NewFile(cfg.Snapshot.Path), nil
	case config.SourceObject:
		client, err := NewObjectClient(cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		return NewObject(client, cfg.ObjectStore.Bucket, cfg.Snapshot.ObjectKey), nil
	default:
		return nil, fmt.Errorf("unknown snapshot source %q", cfg.Snapshot.Source)
	}
}
