// Package loader reads strategy sources from an archive backend.
package loader

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/storage/archive"
)

// MaxSourceSize bounds a strategy file.
const MaxSourceSize = 1 << 20

// Loader reads strategy sources.
type Loader struct {
	storage archive.Storage
	logger  *zap.Logger
}

// New creates a loader over storage.
func New(storage archive.Storage, logger ...*zap.Logger) *Loader {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Loader{storage: storage, logger: l}
}

// Read returns the source text stored at path. Every failure is
// SOURCE_UNREADABLE.
func (l *Loader) Read(ctx context.Context, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", core.WrapError(core.ErrSourceUnreadable, fmt.Errorf("empty path"))
	}

	data, err := l.storage.Read(ctx, path)
	if err != nil {
		if archive.IsNotFound(err) {
			return "", core.WrapError(core.ErrSourceUnreadable, fmt.Errorf("%s: file not found", path))
		}
		return "", core.WrapError(core.ErrSourceUnreadable, err)
	}
	if len(data) > MaxSourceSize {
		return "", core.WrapError(core.ErrSourceUnreadable,
			fmt.Errorf("%s: %d bytes exceeds %d", path, len(data), MaxSourceSize))
	}
	if !utf8.Valid(data) {
		return "", core.WrapError(core.ErrSourceUnreadable, fmt.Errorf("%s: not UTF-8 text", path))
	}

	l.logger.Debug("strategy loaded", zap.String("path", path), zap.Int("bytes", len(data)))
	return string(data), nil
}
