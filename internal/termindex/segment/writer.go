// Package segment frames a serialized snapshot as a compact .tidx file: a
// fixed header, a zstd-compressed payload and a checksummed footer.
package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// MagicBytes identifies a valid .tidx segment file ("TIDX").
const (
	MagicBytes    uint32 = 0x54494458
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 8
	Extension            = ".tidx"
)

// Header is the 64-byte header written at the start of every segment.
type Header struct {
	Magic         uint32
	Version       uint32
	DocCount      uint32
	TermCount     uint32
	CreatedAt     int64
	PayloadOffset int64
	PayloadSize   int64
}

var encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))

// Encode compresses payload and wraps it in a header and footer.
func Encode(payload []byte, docCount, termCount int) []byte {
	compressed := encoder.EncodeAll(payload, make([]byte, 0, len(payload)/3))

	buf := make([]byte, HeaderSize, HeaderSize+len(compressed)+FooterSize)
	binary.LittleEndian.PutUint32(buf[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(buf[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(docCount))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(termCount))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(time.Now().Unix()))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(HeaderSize))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(len(compressed)))

	buf = append(buf, compressed...)
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(compressed))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(payload)))
	return append(buf, footer...)
}

// Writer stores encoded segments in a directory.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates name.tidx holding payload. It writes to a .tmp
// file first and renames on success.
func (w *Writer) Write(name string, payload []byte, docCount, termCount int) (string, error) {
	finalPath := filepath.Join(w.dataDir, name+Extension)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(Encode(payload, docCount, termCount)); err != nil {
		return "", fmt.Errorf("writing segment: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return finalPath, nil
}
