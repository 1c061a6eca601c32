package source

import (
	"context"
	"fmt"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// File reads the snapshot from the local filesystem.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Location() string {
	return "file://" + f.path
}

func (f *File) Fetch(ctx context.Context) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", apperrors.ErrSnapshotUnavailable, f.path)
		}
		return nil, fmt.Errorf("stat snapshot %s: %w", f.path, err)
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", f.path, err)
	}
	data, err := Decompress(raw)
	if err != nil {
		return nil, err
	}
	return &Payload{
		Data:     data,
		Location: f.Location(),
		ModTime:  info.ModTime(),
	}, nil
}
