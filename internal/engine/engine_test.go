package engine

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/enrich"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/extract"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/snapshot"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/survey"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func open(t *testing.T, dir string, c enrich.Classifier) *Engine {
	t.Helper()
	e, err := Open(Options{DataDir: dir, Classifier: c})
	require.NoError(t, err)
	return e
}

func posts(contents ...string) []any {
	out := make([]any, len(contents))
	for i, c := range contents {
		out[i] = map[string]any{"content": c}
	}
	return out
}

func TestScenario(t *testing.T) {
	dir := t.TempDir()
	e := open(t, dir, nil)

	_, err := e.Append("postData", posts("hiring", "photos", "canva"))
	require.NoError(t, err)

	initRes, err := e.Init("postData", "")
	require.NoError(t, err)
	assert.Equal(t, api.InitResult{Status: api.StatusSuccess, Created: 3, Skipped: 0, Total: 3}, initRes)

	_, err = e.Update("postIndex", []int{0, 2}, "relevant", true)
	require.NoError(t, err)

	out, err := e.Extract(extract.Request{Source: "postData", Path: "[*].content", Where: "relevant=true"})
	require.NoError(t, err)
	require.Len(t, out.Data, 2)
	assert.Equal(t, 0, out.Data[0].Index)
	assert.Equal(t, 2, out.Data[1].Index)
	require.NoError(t, e.Close())

	// State survives a reopen.
	e = open(t, dir, nil)
	defer func() { _ = e.Close() }()
	out, err = e.Extract(extract.Request{Source: "postData", Path: "[*].content", Where: "relevant=true"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)

	ok, err := jsonfile.Exists(osfs.New(dir), LockFile)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInitGrowth(t *testing.T) {
	e, err := Open(Options{FS: memfs.New()})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	_, err = e.Append("postData", posts("a", "b", "c", "d", "e"))
	require.NoError(t, err)
	_, err = e.Init("postData", "postIndex")
	require.NoError(t, err)

	_, err = e.Append("postData", posts("f", "g", "h"))
	require.NoError(t, err)
	res, err := e.Init("postData", "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 5, res.Skipped)
	assert.Equal(t, 8, res.Total)

	_, err = e.Init("missingData", "")
	require.ErrorIs(t, err, api.ErrNotFound)
}

func TestLinkPersists(t *testing.T) {
	dir := t.TempDir()
	e := open(t, dir, nil)
	_, err := e.Append("postData", posts("a", "b", "c", "d", "e"))
	require.NoError(t, err)
	_, err = e.Init("postData", "")
	require.NoError(t, err)

	_, err = e.Link("postIndex", []int{0, 2, 4}, "profileIndex")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e = open(t, dir, nil)
	defer func() { _ = e.Close() }()
	res, err := e.Link("postIndex", []int{0, 1, 3}, "profileIndex")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, res.Linked)
	assert.Equal(t, []int{0}, res.Skipped)
	require.NotNil(t, res.TargetStart)
	assert.Equal(t, 3, *res.TargetStart)

	_, err = e.Update("postIndex", []int{9}, "relevant", true)
	require.ErrorIs(t, err, api.ErrNoMatch)
}

func TestEnrichThroughEngine(t *testing.T) {
	calls := 0
	c := enrich.ClassifierFunc(func(_ context.Context, b enrich.Batch) ([]api.EnrichmentRecord, error) {
		calls++
		out := make([]api.EnrichmentRecord, 0, len(b.Items))
		for _, it := range b.Items {
			out = append(out, api.EnrichmentRecord{"index": it.Index, "isCanva": it.Value == "canva"})
		}
		return out, nil
	})
	dir := t.TempDir()
	e := open(t, dir, c)

	_, err := e.Append("postData", posts("canva", "other"))
	require.NoError(t, err)
	_, err = e.Init("postData", "")
	require.NoError(t, err)

	req := enrich.Request{
		Select:  extract.Request{Source: "postData", Path: "[*].content"},
		Fields:  []string{"isCanva"},
		Promote: []string{"isCanva"},
	}
	res, err := e.Enrich(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, res.Promoted)

	again, err := e.Enrich(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, again.Processed)
	assert.Equal(t, 1, calls)

	entries := e.Registry()
	require.Len(t, entries, 1)
	assert.Equal(t, "postData_isCanva.json", entries[0].File)
	require.NoError(t, e.Close())

	// The promoted attribute was flushed with the mapping.
	e = open(t, dir, c)
	defer func() { _ = e.Close() }()
	out, err := e.Extract(extract.Request{Source: "postData", Where: "isCanva=true"})
	require.NoError(t, err)
	require.Len(t, out.Data, 1)
	assert.Equal(t, 0, out.Data[0].Index)
}

func TestImportInspectExport(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "results.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE results (id TEXT PRIMARY KEY, record JSON)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO results VALUES ('b', '{"name": "first", "tags": ["x"]}'), ('a', '{"name": "second"}')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	e := open(t, dir, nil)
	defer func() { _ = e.Close() }()

	res, err := e.Import("profileData", dbPath, "")
	require.NoError(t, err)
	assert.Equal(t, api.AppendResult{Status: api.StatusSuccess, Dataset: "profileData", Appended: 2, Total: 2}, res)

	out, err := e.Extract(extract.Request{Source: "profileData", Path: "[0].name"})
	require.NoError(t, err)
	assert.Equal(t, "first", out.Data[0].Value)

	report, err := e.Inspect("profileData", survey.DefaultConfig())
	require.NoError(t, err)
	var paths []string
	for _, p := range report.Paths {
		paths = append(paths, p.Path)
	}
	assert.Equal(t, []string{"[*].name", "[*].tags", "[*].tags[*]"}, paths)

	_, err = e.Init("profileData", "")
	require.NoError(t, err)
	snap := filepath.Join(t.TempDir(), "snap.db")
	exp, err := e.Export(snap, snapshot.Options{Records: true})
	require.NoError(t, err)
	assert.Equal(t, 1, exp.Datasets)
	assert.Equal(t, 2, exp.Records)
	assert.Equal(t, 2, exp.Leads)
}
