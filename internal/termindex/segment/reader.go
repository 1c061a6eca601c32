package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/klauspost/compress/zstd"
)

var decoder, _ = zstd.NewReader(nil)

// IsSegment reports whether raw starts with the segment magic bytes.
func IsSegment(raw []byte) bool {
	return len(raw) >= 4 && binary.LittleEndian.Uint32(raw[0:4]) == MagicBytes
}

// Decode verifies the framing of raw and returns the uncompressed payload.
func Decode(raw []byte) ([]byte, Header, error) {
	if len(raw) < HeaderSize+FooterSize {
		return nil, Header{}, apperrors.Malformedf("segment too short: %d bytes", len(raw))
	}
	header := Header{
		Magic:         binary.LittleEndian.Uint32(raw[0:4]),
		Version:       binary.LittleEndian.Uint32(raw[4:8]),
		DocCount:      binary.LittleEndian.Uint32(raw[8:12]),
		TermCount:     binary.LittleEndian.Uint32(raw[12:16]),
		CreatedAt:     int64(binary.LittleEndian.Uint64(raw[16:24])),
		PayloadOffset: int64(binary.LittleEndian.Uint64(raw[24:32])),
		PayloadSize:   int64(binary.LittleEndian.Uint64(raw[32:40])),
	}
	if header.Magic != MagicBytes {
		return nil, header, apperrors.Malformedf("bad segment magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, header, apperrors.Malformedf("unsupported segment version %d", header.Version)
	}
	end := header.PayloadOffset + header.PayloadSize
	if header.PayloadOffset < int64(HeaderSize) || end+int64(FooterSize) != int64(len(raw)) {
		return nil, header, apperrors.Malformedf("segment payload bounds [%d,%d) do not match file size %d",
			header.PayloadOffset, end, len(raw))
	}
	compressed := raw[header.PayloadOffset:end]
	footer := raw[end:]
	if want, got := binary.LittleEndian.Uint32(footer[0:4]), crc32.ChecksumIEEE(compressed); want != got {
		return nil, header, apperrors.Malformedf("segment checksum mismatch: want %08x, got %08x", want, got)
	}
	rawSize := binary.LittleEndian.Uint32(footer[4:8])
	payload, err := decoder.DecodeAll(compressed, make([]byte, 0, rawSize))
	if err != nil {
		return nil, header, apperrors.Malformedf("decompressing segment payload: %v", err)
	}
	if uint32(len(payload)) != rawSize {
		return nil, header, apperrors.Malformedf("segment payload size %d, footer says %d", len(payload), rawSize)
	}
	return payload, header, nil
}

// ReadFile reads and decodes the segment at path.
func ReadFile(path string) ([]byte, Header, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, Header{}, fmt.Errorf("reading segment file: %w", err)
	}
	return Decode(raw)
}
