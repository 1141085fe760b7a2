package worker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectExtension(t *testing.T) {
	require.Equal(t, ".mkv", DetectExtension("/movies/Foo.MKV"))
	require.Equal(t, ".mp4", DetectExtension("bar.mp4"))
	require.Equal(t, "", DetectExtension("noext"))
}

func TestEnsureMKVExtension(t *testing.T) {
	require.Equal(t, "/movies/Foo.mkv", EnsureMKVExtension("/movies/Foo.avi"))
	require.Equal(t, "/movies/Foo.mkv", EnsureMKVExtension("/movies/Foo"))
}

func TestAtomicInstallReplacesDestination(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "out.tmp")
	final := filepath.Join(dir, "final.mkv")
	require.NoError(t, os.WriteFile(tmp, []byte("new contents"), 0o644))
	require.NoError(t, os.WriteFile(final, []byte("old contents"), 0o644))

	require.NoError(t, AtomicInstall(tmp, final))

	got, err := os.ReadFile(final)
	require.NoError(t, err)
	require.Equal(t, "new contents", string(got))
	_, err = os.Stat(tmp)
	require.True(t, os.IsNotExist(err))
}
