// internal/storage/archive/interface.go
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/newthinker/strategylab/internal/config"
)

// ErrNotFound is wrapped by Read when nothing is stored at the path. It
// matches fs.ErrNotExist.
var ErrNotFound = fmt.Errorf("archive: object not found: %w", fs.ErrNotExist)

// Storage holds strategy sources and exported results.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// IsNotFound reports whether err means the path holds nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// New builds the backend named by cfg.Type. An empty type is localfs.
func New(cfg config.ArchiveConfig) (Storage, error) {
	switch cfg.Type {
	case "", "localfs":
		path := cfg.Path
		if path == "" {
			path = "."
		}
		return NewLocalFS(path)
	case "s3":
		return NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
