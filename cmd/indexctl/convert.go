package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/termindex"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/termindex/segment"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
)

// Output formats, chosen by the output file name.
const (
	formatJSON    = "json"
	formatGzip    = "json.gz"
	formatZstd    = "json.zst"
	formatSegment = "tidx"
)

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Rewrite a snapshot in another format",
		Long: `Load a snapshot and write it back out in canonical form. The output format
follows the file extension: .json, .json.gz, .json.zst or .tidx.

Examples:
  indexctl convert build/html/searchindex.js snapshots/docs.tidx
  indexctl convert snapshots/docs.tidx docs.json.zst`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := loadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			written, err := convert(idx, args[1])
			if err != nil {
				return err
			}
			stats := idx.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d documents, %d terms)\n", written, stats.Documents, stats.Terms)
			return nil
		},
	}
}

func formatOf(path string) (string, error) {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".json.gz"):
		return formatGzip, nil
	case strings.HasSuffix(name, ".json.zst"):
		return formatZstd, nil
	case strings.HasSuffix(name, ".json"):
		return formatJSON, nil
	case strings.HasSuffix(name, segment.Extension):
		return formatSegment, nil
	default:
		return "", fmt.Errorf("cannot infer output format from %q: use .json, .json.gz, .json.zst or .tidx", path)
	}
}

// convert writes idx to out and returns the path written.
func convert(idx *termindex.Index, out string) (string, error) {
	format, err := formatOf(out)
	if err != nil {
		return "", err
	}
	data, err := termindex.Marshal(idx)
	if err != nil {
		return "", err
	}

	switch format {
	case formatSegment:
		stats := idx.Stats()
		name := strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
		return segment.NewWriter(filepath.Dir(out)).Write(name, data, stats.Documents, stats.Terms)
	case formatGzip:
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return "", err
		}
		if _, err := zw.Write(data); err != nil {
			return "", fmt.Errorf("compressing snapshot: %w", err)
		}
		if err := zw.Close(); err != nil {
			return "", fmt.Errorf("compressing snapshot: %w", err)
		}
		data = buf.Bytes()
	case formatZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return "", fmt.Errorf("creating zstd encoder: %w", err)
		}
		data = enc.EncodeAll(data, nil)
		enc.Close()
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", out, err)
	}
	return out, nil
}
