package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacesaver/coordinator/internal/model"
)

func TestOpenCreatesDefaultDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	require.NoError(t, err)

	var got model.Document
	s.View(func(doc *model.Document) { got = *doc })
	require.Equal(t, 1, got.Version)
	require.Equal(t, model.DefaultConfig().BaselineArgs, got.Config.BaselineArgs)
	require.Empty(t, got.Entries)
}

func TestMutatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	require.NoError(t, err)

	err = s.Mutate(func(doc *model.Document) error {
		doc.Entries = append(doc.Entries, &model.Entry{ID: "ent_1", Name: "Movies", Path: "/movies"})
		return nil
	})
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)
	var got *model.Entry
	reopened.View(func(doc *model.Document) { got = FindEntry(doc, "ent_1") })
	require.NotNil(t, got)
	require.Equal(t, "Movies", got.Name)
}

func TestMutateDoesNotPersistOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	require.NoError(t, err)

	err = s.Mutate(func(doc *model.Document) error {
		doc.Entries = append(doc.Entries, &model.Entry{ID: "ent_err", Name: "ShouldNotPersist"})
		return errFailingMutation
	})
	require.Error(t, err)

	reopened, rerr := Open(path)
	require.NoError(t, rerr)
	var got *model.Entry
	reopened.View(func(doc *model.Document) { got = FindEntry(doc, "ent_err") })
	require.Nil(t, got)
}

func TestExtrasRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	raw := []byte(`{
		"version": 1,
		"config": {"baselineArgs": "x", "unknownConfigField": "kept"},
		"entries": [{"id": "ent_1", "name": "n", "path": "/p", "unknownEntryField": 42}],
		"items": [], "jobs": [], "workers": [],
		"scanStatus": {}
	}`)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	s, err := Open(path)
	require.NoError(t, err)

	var doc model.Document
	s.View(func(d *model.Document) { doc = *d })
	require.NotNil(t, doc.Config.Extras)
	require.Contains(t, string(doc.Config.Extras), "unknownConfigField")
	require.Contains(t, string(doc.Entries[0].Extras), "unknownEntryField")

	out, err := json.Marshal(&doc)
	require.NoError(t, err)
	require.Contains(t, string(out), "unknownConfigField")
	require.Contains(t, string(out), "unknownEntryField")
}

var errFailingMutation = xerrorsSentinel{}

type xerrorsSentinel struct{}

func (xerrorsSentinel) Error() string { return "forced failure" }
