package worker

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/spacesaver/coordinator/internal/api"
	"github.com/spacesaver/coordinator/internal/catalog"
	"github.com/spacesaver/coordinator/internal/httpclient"
	"github.com/spacesaver/coordinator/internal/model"
	"github.com/spacesaver/coordinator/internal/statusfile"
	"github.com/spacesaver/coordinator/internal/store"
	"github.com/spacesaver/coordinator/internal/workerconfig"
)

func newTestCoordinator(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	srv := &api.Server{
		Store:    st,
		Prober:   catalog.FFProbeProber{},
		Registry: prometheus.NewRegistry(),
		Log:      zerolog.Nop(),
	}
	return httptest.NewServer(srv.Routes()), st
}

// newTestWatcher writes cfg to a fresh file and loads a Watcher over it, so tests can control the
// worker's configuration directly without going through Watcher's mtime-reload machinery.
func newTestWatcher(t *testing.T, cfg workerconfig.Config) *workerconfig.Watcher {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.json")
	data, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	w, err := workerconfig.Load(path)
	require.NoError(t, err)
	return w
}

func TestPollOnceReturnsNoWorkWhenQueueEmpty(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	defer coordinator.Close()

	cfg := workerconfig.Default()
	cfg.CoordinatorURL = coordinator.URL
	watcher := newTestWatcher(t, cfg)

	rt := &Runtime{
		Config:   watcher,
		Client:   httpclient.New(coordinator.URL),
		WorkerID: "w-test",
	}

	did, err := rt.pollOnce(context.Background(), watcher.Current())
	require.NoError(t, err)
	require.False(t, did)
}

func TestPollOnceClaimsAndRunsJobToCompletion(t *testing.T) {
	coordinator, st := newTestCoordinator(t)
	defer coordinator.Close()

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "movie.mkv")
	require.NoError(t, os.WriteFile(srcPath, []byte("source bytes"), 0o644))

	require.NoError(t, st.Mutate(func(doc *model.Document) error {
		doc.Entries = append(doc.Entries, &model.Entry{ID: "ent_1", Name: "Movies", Path: srcDir})
		doc.Items = append(doc.Items, &model.Item{
			ID: "item_1", EntryID: "ent_1", Path: srcPath, Status: model.ItemQueued, Ready: true,
			Probe: model.MediaProbe{DurationSec: 60, Height: 1080},
		})
		return nil
	}))

	cacheDir := t.TempDir()
	fakeEncoder := writeFakeEncoder(t)

	cfg := workerconfig.Default()
	cfg.CoordinatorURL = coordinator.URL
	cfg.CacheDir = cacheDir
	cfg.EncoderPath = fakeEncoder
	watcher := newTestWatcher(t, cfg)

	rt := &Runtime{
		Config:   watcher,
		Client:   httpclient.New(coordinator.URL),
		Status:   statusfile.NewWriter(filepath.Join(t.TempDir(), "status.json")),
		WorkerID: "w-test",
	}

	did, err := rt.pollOnce(context.Background(), watcher.Current())
	require.NoError(t, err)
	require.True(t, did)

	var doc model.Document
	st.View(func(d *model.Document) { doc = *d })
	require.Len(t, doc.Jobs, 1)
	require.Equal(t, model.JobDone, doc.Jobs[0].Status)
	require.Equal(t, model.ItemDone, doc.Items[0].Status)
	require.False(t, doc.Items[0].Ready)
}

func TestRuntimeOnceStopsAfterOneJob(t *testing.T) {
	coordinator, st := newTestCoordinator(t)
	defer coordinator.Close()

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "movie.mkv")
	require.NoError(t, os.WriteFile(srcPath, []byte("source bytes"), 0o644))
	require.NoError(t, st.Mutate(func(doc *model.Document) error {
		doc.Entries = append(doc.Entries, &model.Entry{ID: "ent_1", Name: "Movies", Path: srcDir})
		doc.Items = append(doc.Items, &model.Item{
			ID: "item_1", EntryID: "ent_1", Path: srcPath, Status: model.ItemQueued, Ready: true,
		})
		return nil
	}))

	cfg := workerconfig.Default()
	cfg.CoordinatorURL = coordinator.URL
	cfg.CacheDir = t.TempDir()
	cfg.EncoderPath = writeFakeEncoder(t)
	cfg.PollIntervalMs = 10
	watcher := newTestWatcher(t, cfg)

	rt := &Runtime{
		Config:   watcher,
		Client:   httpclient.New(coordinator.URL),
		WorkerID: "w-test",
		Once:     true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := rt.Run(ctx)
	require.NoError(t, err)
}

// writeFakeEncoder writes a minimal shell script standing in for HandBrakeCLI: it copies its -i
// argument to its -o argument and prints one progress line, so the executor's encode/install path
// can run end to end without a real HandBrake binary.
func writeFakeEncoder(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-encoder.sh")
	script := `#!/bin/sh
src=""
dst=""
while [ "$#" -gt 0 ]; do
  case "$1" in
    -i) src="$2"; shift 2 ;;
    -o) dst="$2"; shift 2 ;;
    *) shift ;;
  esac
done
echo "Encoding 50 % (ETA 00h00m01s)"
cp "$src" "$dst"
echo "Encoding 100 % (ETA 00h00m00s)"
exit 0
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}
