package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacesaver/coordinator/internal/xerrors"
)

type neverCancel struct{}

func (neverCancel) IsCancelRequested(ctx context.Context) (bool, error) { return false, nil }

type alwaysCancel struct{}

func (alwaysCancel) IsCancelRequested(ctx context.Context) (bool, error) { return true, nil }

func TestCopyWithCancelCopiesContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	content := make([]byte, copyChunkSize*2+17)
	for i := range content {
		content[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(src, content, 0o644))

	var lastFrac float64
	err := CopyWithCancel(context.Background(), src, dst, neverCancel{}, func(frac float64, eta int64) {
		lastFrac = frac
	})
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, content, got)
	require.InDelta(t, 1.0, lastFrac, 0.0001)
}

func TestCopyWithCancelStopsWhenCancelled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	require.NoError(t, os.WriteFile(src, make([]byte, copyChunkSize*3), 0o644))

	err := CopyWithCancel(context.Background(), src, dst, alwaysCancel{}, nil)
	require.Error(t, err)
	require.True(t, xerrors.Is(err, xerrors.KindCancelled))
}

func TestCopyWithCancelMissingSourceIsIOFailure(t *testing.T) {
	dir := t.TempDir()
	err := CopyWithCancel(context.Background(), filepath.Join(dir, "missing.bin"), filepath.Join(dir, "dst.bin"), neverCancel{}, nil)
	require.Error(t, err)
	require.True(t, xerrors.Is(err, xerrors.KindIOFailure))
}
