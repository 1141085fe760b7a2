package worker

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spacesaver/coordinator/internal/xerrors"
)

// DetectExtension returns the lowercase extension (including the dot) of path, grounded on
// worker.py's detect_extension.
func DetectExtension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// EnsureMKVExtension returns path with its extension changed to .mkv, grounded on worker.py's
// ensure_mkv_extension, used when the encoder's container is fixed regardless of source.
func EnsureMKVExtension(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".mkv"
}

// RemuxWithMetadata invokes ffmpeg to stream-copy path into a sibling temp file tagged with
// encoded_by=MediaSpacesaver and comment=spacesaver=1, then atomically replaces path with the
// tagged copy. Grounded on worker.py's remux_with_metadata. A missing ffmpeg binary is not an
// error: metadata tagging is a best-effort enrichment, not a correctness requirement of a
// completed transcode.
func RemuxWithMetadata(ctx context.Context, ffmpegPath, path string) error {
	if ffmpegPath == "" {
		if found, err := exec.LookPath("ffmpeg"); err == nil {
			ffmpegPath = found
		} else {
			return nil
		}
	}

	tmp := path + ".remux.tmp" + filepath.Ext(path)
	cmd := exec.CommandContext(ctx, ffmpegPath, "-y", "-i", path,
		"-map", "0", "-c", "copy",
		"-metadata", "encoded_by=MediaSpacesaver",
		"-metadata", "comment=spacesaver=1",
		tmp)
	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmp)
		return xerrors.Wrap(xerrors.KindEncoderFailure, "remux metadata tag", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return xerrors.Wrap(xerrors.KindIOFailure, "install remuxed file", err)
	}
	return nil
}

// AtomicInstall replaces finalPath with tmpPath via rename, the same atomic-in-place mechanism
// the coordinator's store package uses for its state document, grounded on worker.py's final
// os.replace call in process_job.
func AtomicInstall(tmpPath, finalPath string) error {
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return xerrors.Wrap(xerrors.KindIOFailure, "atomic install", err)
	}
	return nil
}
