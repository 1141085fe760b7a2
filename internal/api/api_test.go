package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/spacesaver/coordinator/internal/catalog"
	"github.com/spacesaver/coordinator/internal/model"
	"github.com/spacesaver/coordinator/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	st, err := store.Open(path)
	require.NoError(t, err)
	return &Server{
		Store:    st,
		Prober:   catalog.FFProbeProber{},
		Registry: prometheus.NewRegistry(),
		Log:      zerolog.Nop(),
	}, st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestClaimStartCompleteFlow(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Routes()

	rec := doJSON(t, h, http.MethodPost, "/entries", createEntryRequest{Name: "Movies", Path: "/movies"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var entry model.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))

	require.NoError(t, st.Mutate(func(doc *model.Document) error {
		doc.Items = append(doc.Items, &model.Item{
			ID: "item_1", EntryID: entry.ID, Path: "/movies/a.mkv",
			Status: model.ItemQueued, Ready: true,
			Probe: model.MediaProbe{DurationSec: 600, Height: 1080},
			SizeBytes: 6_000_000_000,
		})
		return nil
	}))

	rec = doJSON(t, h, http.MethodPost, "/jobs/claim", claimRequestBody{
		WorkerID: "w1", WorkerName: "host1", WithinWorkHours: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var claimResp claimResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claimResp))
	require.True(t, claimResp.HasWork)
	jobID := claimResp.Job.ID

	rec = doJSON(t, h, http.MethodPost, "/jobs/"+jobID+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	pct := 50.0
	rec = doJSON(t, h, http.MethodPost, "/jobs/"+jobID+"/progress", progressRequestBody{Pct: &pct})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/jobs/"+jobID+"/complete", completeRequestBody{
		NewPath: "/movies/a.mkv", NewSizeBytes: 2_000_000_000, NewMtimeSec: 123,
		NewProbe: model.MediaProbe{DurationSec: 600, Height: 1080},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/items/item_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var item model.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	require.Equal(t, model.ItemDone, item.Status)
	require.False(t, item.Ready)
	require.Equal(t, int64(2_000_000_000), item.SizeBytes)
}

func TestCompleteUnknownJobReturnsNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Routes()
	rec := doJSON(t, h, http.MethodPost, "/jobs/nope/complete", completeRequestBody{})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressOnUnknownJobIsSilentlyDropped(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Routes()
	pct := 10.0
	rec := doJSON(t, h, http.MethodPost, "/jobs/nope/progress", progressRequestBody{Pct: &pct})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestClaimWithNoQueuedItemsReturnsNoWork(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Routes()
	rec := doJSON(t, h, http.MethodPost, "/jobs/claim", claimRequestBody{
		WorkerID: "w1", WithinWorkHours: true,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteActiveJobSetsCancelRequestedInsteadOfRemoving(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Routes()
	require.NoError(t, st.Mutate(func(doc *model.Document) error {
		doc.Jobs = append(doc.Jobs, &model.Job{ID: "job_1", ItemID: "item_1", Status: model.JobRunning})
		return nil
	}))

	rec := doJSON(t, h, http.MethodDelete, "/jobs/job_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp deleteJobResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.OK)
	require.True(t, resp.CancelRequested)

	rec = doJSON(t, h, http.MethodGet, "/jobs/job_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.True(t, job.CancelRequested)
}

func TestDeleteTerminalJobRemovesItAndDetachesItem(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Routes()
	require.NoError(t, st.Mutate(func(doc *model.Document) error {
		doc.Items = append(doc.Items, &model.Item{ID: "item_1", LastJobID: "job_1"})
		doc.Jobs = append(doc.Jobs, &model.Job{ID: "job_1", ItemID: "item_1", Status: model.JobDone})
		return nil
	}))

	rec := doJSON(t, h, http.MethodDelete, "/jobs/job_1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/jobs/job_1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/items/item_1", nil)
	var item model.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	require.Empty(t, item.LastJobID)
}

func TestCancelAllJobsMarksEveryActiveJob(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Routes()
	require.NoError(t, st.Mutate(func(doc *model.Document) error {
		doc.Jobs = append(doc.Jobs,
			&model.Job{ID: "job_1", Status: model.JobRunning},
			&model.Job{ID: "job_2", Status: model.JobClaimed},
			&model.Job{ID: "job_3", Status: model.JobDone},
		)
		return nil
	}))

	rec := doJSON(t, h, http.MethodPost, "/jobs/cancel-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp cancelAllResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.OK)
	require.Equal(t, 2, resp.CancelRequested)
}

func TestReadyItemWhileProcessingIsConflict(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Routes()
	require.NoError(t, st.Mutate(func(doc *model.Document) error {
		doc.Items = append(doc.Items, &model.Item{ID: "item_1", Status: model.ItemProcessing})
		return nil
	}))

	rec := doJSON(t, h, http.MethodPost, "/items/item_1/ready", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestResetItemClearsReadyAndLastError(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Routes()
	require.NoError(t, st.Mutate(func(doc *model.Document) error {
		doc.Items = append(doc.Items, &model.Item{
			ID: "item_1", Status: model.ItemFailed, Ready: false, LastError: "boom",
		})
		return nil
	}))

	rec := doJSON(t, h, http.MethodPost, "/items/item_1/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var item model.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	require.Equal(t, model.ItemIdle, item.Status)
	require.False(t, item.Ready)
	require.Empty(t, item.LastError)
}

func TestUpdateItemPathRecomputesFingerprint(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Routes()
	require.NoError(t, st.Mutate(func(doc *model.Document) error {
		doc.Items = append(doc.Items, &model.Item{
			ID: "item_1", Path: "/movies/a.mkv", SizeBytes: 100, MtimeSec: 200,
		})
		return nil
	}))

	rec := doJSON(t, h, http.MethodPost, "/items/item_1/path", updateItemPathRequest{Path: "/movies/a.mp4"})
	require.Equal(t, http.StatusOK, rec.Code)
	var item model.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	require.Equal(t, "/movies/a.mp4", item.Path)
	require.Equal(t, "100:200", item.SourceFingerprint)
}

func TestDeleteProcessingItemIsConflict(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Routes()
	require.NoError(t, st.Mutate(func(doc *model.Document) error {
		doc.Items = append(doc.Items, &model.Item{ID: "item_1", Status: model.ItemProcessing})
		return nil
	}))

	rec := doJSON(t, h, http.MethodDelete, "/items/item_1", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddTargetSampleAveragesByExactHeight(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Routes()

	rec := doJSON(t, h, http.MethodPost, "/targets", targetSampleRequest{Height: 1080, MbPerMin: 15.0})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/targets", targetSampleRequest{Height: 1080, MbPerMin: 17.0})
	require.Equal(t, http.StatusOK, rec.Code)
	var result catalog.TargetSampleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, 2, result.Count)
	require.Equal(t, 16.0, result.Avg)

	rec = doJSON(t, h, http.MethodGet, "/config", nil)
	var cfg model.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	require.Equal(t, 16.0, cfg.TargetMbPerMinByHeight["1080"])
}

func TestClearTargetSamplesRestoresStaticDefaults(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Routes()
	doJSON(t, h, http.MethodPost, "/targets", targetSampleRequest{Height: 1080, MbPerMin: 99.0})

	rec := doJSON(t, h, http.MethodPost, "/targets/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/config", nil)
	var cfg model.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	require.Equal(t, model.DefaultConfig().TargetMbPerMinByHeight["1080"], cfg.TargetMbPerMinByHeight["1080"])
	require.Empty(t, cfg.TargetSamplesByHeight)
}

func TestDiagnosticsReportsFfprobeResolution(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Routes()
	rec := doJSON(t, h, http.MethodGet, "/diagnostics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]ffprobeDiagnostic
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "ffprobe")
}

func TestPatchEntryUpdatesMutableFields(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Routes()
	require.NoError(t, st.Mutate(func(doc *model.Document) error {
		doc.Entries = append(doc.Entries, &model.Entry{ID: "ent_1", Name: "Old", Path: "/movies"})
		return nil
	}))

	newName := "New"
	rec := doJSON(t, h, http.MethodPatch, "/entries/ent_1", patchEntryRequest{Name: &newName})
	require.Equal(t, http.StatusOK, rec.Code)
	var entry model.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	require.Equal(t, "New", entry.Name)
	require.Equal(t, "/movies", entry.Path)
}

func TestDeleteWorkerRemovesRecord(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Routes()
	require.NoError(t, st.Mutate(func(doc *model.Document) error {
		doc.Workers = append(doc.Workers, &model.Worker{ID: "w1"})
		return nil
	}))

	rec := doJSON(t, h, http.MethodDelete, "/workers/w1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/workers", nil)
	var workers []*model.Worker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &workers))
	require.Empty(t, workers)
}

func TestDeleteEntryCascadesToItems(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Routes()
	require.NoError(t, st.Mutate(func(doc *model.Document) error {
		doc.Entries = append(doc.Entries, &model.Entry{ID: "ent_1", Name: "x", Path: "/x"})
		doc.Items = append(doc.Items, &model.Item{ID: "item_1", EntryID: "ent_1"})
		return nil
	}))
	rec := doJSON(t, h, http.MethodDelete, "/entries/ent_1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/items/item_1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

