package worker

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spacesaver/coordinator/internal/xerrors"
)

const copyChunkSize = 4 << 20 // 4MiB, matching worker.py's copy_with_cancel chunk size

// CancelChecker is polled at copy chunk boundaries and, during an encode, at most once per second
// as encoder output lines arrive; it must be safe to call frequently and cheaply.
type CancelChecker interface {
	IsCancelRequested(ctx context.Context) (bool, error)
}

// ProgressFunc reports copy progress: fraction done in [0,1] and estimated seconds remaining.
type ProgressFunc func(frac float64, etaSec int64)

// CopyWithCancel copies src to dst in fixed-size chunks, polling cancel at each chunk boundary
// and reporting progress via onProgress, grounded on worker.py's copy_with_cancel. Returns
// xerrors.KindCancelled if cancellation is observed mid-copy; dst is left partially written in
// that case, and the caller is responsible for removing it.
func CopyWithCancel(ctx context.Context, src, dst string, cancel CancelChecker, onProgress ProgressFunc) error {
	in, err := os.Open(src)
	if err != nil {
		return xerrors.Wrap(xerrors.KindIOFailure, "open source for copy", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return xerrors.Wrap(xerrors.KindIOFailure, "stat source for copy", err)
	}
	total := info.Size()

	out, err := os.Create(dst)
	if err != nil {
		return xerrors.Wrap(xerrors.KindIOFailure, "create copy destination", err)
	}
	defer out.Close()

	buf := make([]byte, copyChunkSize)
	var written int64
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return xerrors.Wrap(xerrors.KindCancelled, "copy cancelled", ctx.Err())
		default:
		}

		n, readErr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return xerrors.Wrap(xerrors.KindIOFailure, "write copy chunk", werr)
			}
			written += int64(n)
			if onProgress != nil && total > 0 {
				frac := float64(written) / float64(total)
				elapsed := time.Since(start).Seconds()
				var eta int64
				if frac > 0 {
					eta = int64(elapsed/frac - elapsed)
				}
				onProgress(frac, eta)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return xerrors.Wrap(xerrors.KindIOFailure, "read copy chunk", readErr)
		}

		if cancel != nil {
			cancelled, cerr := cancel.IsCancelRequested(ctx)
			if cerr == nil && cancelled {
				return xerrors.New(xerrors.KindCancelled, "copy cancelled by request")
			}
		}
	}
	return nil
}
