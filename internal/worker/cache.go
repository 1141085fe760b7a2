package worker

import (
	"os"
	"path/filepath"
)

// CleanCacheDir removes every entry directly under dir, grounded on worker.py's clean_cache_dir.
// Errors removing individual entries are ignored (best-effort cleanup; a locked leftover file
// should not block the next job from starting).
func CleanCacheDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0o755)
		}
		return err
	}
	for _, e := range entries {
		_ = os.RemoveAll(filepath.Join(dir, e.Name()))
	}
	return nil
}
