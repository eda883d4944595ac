package loader

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/storage/archive"
)

func newLoader(t *testing.T) (*Loader, archive.Storage) {
	t.Helper()
	fs, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	return New(fs), fs
}

func TestLoader_Read(t *testing.T) {
	l, fs := newLoader(t)
	src := "def apply_strategy(df):\n    return df\n"
	require.NoError(t, fs.Write(context.Background(), "strategies/noop.star", []byte(src)))

	got, err := l.Read(context.Background(), "strategies/noop.star")
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestLoader_ReadErrors(t *testing.T) {
	l, fs := newLoader(t)
	ctx := context.Background()
	require.NoError(t, fs.Write(ctx, "binary.star", []byte{0xff, 0xfe, 0x00}))
	require.NoError(t, fs.Write(ctx, "huge.star", []byte(strings.Repeat("#", MaxSourceSize+1))))

	for _, path := range []string{"", "missing.star", "binary.star", "huge.star"} {
		t.Run(path, func(t *testing.T) {
			_, err := l.Read(ctx, path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrSourceUnreadable), "got %v", err)
		})
	}
}

func TestLoader_MissingMessage(t *testing.T) {
	l, _ := newLoader(t)
	_, err := l.Read(context.Background(), "gone.star")
	assert.Contains(t, core.UserMessage(err), "gone.star: file not found")
}
