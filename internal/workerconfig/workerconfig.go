// Package workerconfig loads and mtime-watches the worker's local JSON configuration file.
// Grounded on worker.py's load_config/save_config/reload_config_if_changed.
package workerconfig

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/spacesaver/coordinator/internal/model"
)

// Config is the worker's local tunable configuration.
type Config struct {
	CoordinatorURL string             `json:"coordinatorUrl"`
	WorkerID       string             `json:"workerId"`
	WorkerName     string             `json:"workerName"`
	CacheDir       string             `json:"cacheDir"`
	EncoderPath    string             `json:"encoderPath"`
	PollIntervalMs int                `json:"pollIntervalMs"`
	WorkWindows    []model.WorkWindow `json:"workWindows"`
	StatusUIPort   int                `json:"statusUiPort"`
}

// Default mirrors worker.py's DEFAULT_CONFIG.
func Default() Config {
	return Config{
		CoordinatorURL: "http://localhost:8080",
		PollIntervalMs: 5000,
		StatusUIPort:   0,
	}
}

// Watcher loads a config file and reloads it by comparing mtimes, the same polling strategy the
// worker already uses for the coordinator poll loop rather than a filesystem-event watcher,
// grounded on worker.py's reload_config_if_changed.
type Watcher struct {
	path string

	mu      sync.RWMutex
	cfg     Config
	modTime time.Time
}

// Load reads path, creating it with Default() contents if it does not exist.
func Load(path string) (*Watcher, error) {
	w := &Watcher{path: path}
	if err := w.reload(); err != nil {
		if os.IsNotExist(err) {
			w.cfg = Default()
			if err := w.save(); err != nil {
				return nil, err
			}
			return w, nil
		}
		return nil, err
	}
	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// ReloadIfChanged re-reads the file only if its mtime advanced since the last load, returning
// whether a reload happened.
func (w *Watcher) ReloadIfChanged() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}
	w.mu.RLock()
	unchanged := !info.ModTime().After(w.modTime)
	w.mu.RUnlock()
	if unchanged {
		return false, nil
	}
	if err := w.reload(); err != nil {
		return false, err
	}
	return true, nil
}

func (w *Watcher) reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.cfg = cfg
	w.modTime = info.ModTime()
	w.mu.Unlock()
	return nil
}

func (w *Watcher) save() error {
	data, err := json.MarshalIndent(w.cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(w.path, data, 0o644); err != nil {
		return err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.modTime = info.ModTime()
	w.mu.Unlock()
	return nil
}
