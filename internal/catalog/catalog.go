// Package catalog discovers media files on disk, fingerprints them, probes their metadata, and
// computes the estimated re-encode savings ratio against the coordinator's configured targets.
package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spacesaver/coordinator/internal/model"
)

// VideoExts are the file extensions considered media, matching scan.py's VIDEO_EXTS.
var VideoExts = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".mov": {}, ".m4v": {}, ".avi": {},
	".mpg": {}, ".mpeg": {}, ".ts": {}, ".wmv": {}, ".webm": {},
}

// ListMediaFiles recursively walks root and returns the absolute paths of every file whose
// extension is a known video extension, grounded on scan.py's list_media_files (Path.rglob).
func ListMediaFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := VideoExts[ext]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Fingerprint returns the "{size}:{mtime}" fingerprint used to detect whether a source file has
// changed on disk since it was last scanned.
func Fingerprint(sizeBytes, mtimeSec int64) string {
	return fmt.Sprintf("%d:%d", sizeBytes, mtimeSec)
}

// ComputeRatio estimates the bytes a re-encode would target and the resulting savings, grounded
// on scan.py's compute_ratio: the target bucket is the smallest configured height key that is
// >= the item's height, falling back to the largest configured key.
func ComputeRatio(durationSec float64, height int, sizeBytes int64, targets map[string]float64) model.Ratio {
	if durationSec <= 0 || sizeBytes <= 0 || height <= 0 || len(targets) == 0 {
		return model.Ratio{}
	}

	keys := make([]int, 0, len(targets))
	for k := range targets {
		ik, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		keys = append(keys, ik)
	}
	if len(keys) == 0 {
		return model.Ratio{}
	}
	sort.Ints(keys)

	targetKey := keys[len(keys)-1]
	for _, k := range keys {
		if height <= k {
			targetKey = k
			break
		}
	}

	targetMbPerMin, ok := targets[strconv.Itoa(targetKey)]
	if !ok || targetMbPerMin <= 0 {
		return model.Ratio{}
	}

	durationMin := durationSec / 60.0
	targetBytes := durationMin * targetMbPerMin * 1024 * 1024
	savingsBytes := float64(sizeBytes) - targetBytes
	savingsPct := 0.0
	if sizeBytes > 0 {
		savingsPct = savingsBytes / float64(sizeBytes)
	}

	return model.Ratio{
		TargetBytes:  int64(targetBytes),
		SavingsBytes: int64(savingsBytes),
		SavingsPct:   roundTo4(savingsPct),
	}
}

func roundTo4(v float64) float64 {
	const scale = 10000.0
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}

func roundTo1(v float64) float64 {
	const scale = 10.0
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}

// TargetSampleResult is what add_target_sample reports back to the caller.
type TargetSampleResult struct {
	Height int     `json:"height"`
	Count  int     `json:"count"`
	Avg    float64 `json:"avg"`
}

// IngestTargetSample appends a newly observed (height, mbPerMin) sample to the exact-height
// bucket in cfg.TargetSamplesByHeight and recomputes targetMbPerMinByHeight[height] as the
// average of every sample recorded for that height, rounded to one decimal place. Grounded on
// app.py's add_target_sample.
func IngestTargetSample(cfg *model.Config, height int, mbPerMin float64) TargetSampleResult {
	if cfg.TargetSamplesByHeight == nil {
		cfg.TargetSamplesByHeight = map[string][]float64{}
	}
	if cfg.TargetMbPerMinByHeight == nil {
		cfg.TargetMbPerMinByHeight = map[string]float64{}
	}

	key := strconv.Itoa(height)
	bucket := append(cfg.TargetSamplesByHeight[key], mbPerMin)
	cfg.TargetSamplesByHeight[key] = bucket

	sum := 0.0
	for _, v := range bucket {
		sum += v
	}
	avg := roundTo1(sum / float64(len(bucket)))
	cfg.TargetMbPerMinByHeight[key] = avg

	return TargetSampleResult{Height: height, Count: len(bucket), Avg: avg}
}

// ClearTargetSamples resets the observed-sample history and restores targetMbPerMinByHeight to
// its static defaults, grounded on app.py's clear_target_samples.
func ClearTargetSamples(cfg *model.Config) {
	cfg.TargetSamplesByHeight = map[string][]float64{}
	cfg.TargetMbPerMinByHeight = model.DefaultConfig().TargetMbPerMinByHeight
}
