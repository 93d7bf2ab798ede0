package snapshot

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/dataset"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/enrich"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/mapping"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/registry"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workspace(t *testing.T) Source {
	t.Helper()
	fs := memfs.New()
	store := dataset.NewStore(fs, nil)
	table, err := mapping.Load(fs, "", nil)
	require.NoError(t, err)
	reg, err := registry.Load(fs, "", nil)
	require.NoError(t, err)

	_, err = store.Append("postData", []any{
		map[string]any{"content": "a"},
		map[string]any{"content": "b"},
	})
	require.NoError(t, err)
	_, err = table.Init("postData", 2, "postIndex")
	require.NoError(t, err)
	_, err = table.Update("postIndex", []int{1}, "relevant", true)
	require.NoError(t, err)
	_, err = table.Link("postIndex", []int{1}, "profileIndex")
	require.NoError(t, err)

	_, err = enrich.AppendResults(store, "postData_label.json", []api.EnrichmentRecord{
		{"index": 0, "label": "x", "why": "because"},
	})
	require.NoError(t, err)
	require.NoError(t, reg.Register([]string{"label", "why"}, "postData_label.json", "postIndex"))

	return Source{Store: store, Table: table, Registry: reg}
}

func count(t *testing.T, db *sql.DB, q string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(q, args...).Scan(&n))
	return n
}

func TestExport(t *testing.T) {
	src := workspace(t)
	path := filepath.Join(t.TempDir(), "snapshot.db")

	res, err := Export(path, src, Options{Records: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, api.ExportResult{
		Status: api.StatusSuccess, Path: path,
		Datasets: 1, Records: 2, Leads: 2, Enrichments: 1,
	}, res)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.Equal(t, 2, count(t, db, `SELECT records FROM datasets WHERE name = ? AND index_field = ?`, "postData", "postIndex"))
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM lead_indices WHERE index_field = 'profileIndex'`))
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM lead_attrs WHERE field = 'relevant' AND value = 'true'`))
	assert.Equal(t, 2, count(t, db, `SELECT COUNT(*) FROM enrichments WHERE file = 'postData_label.json'`))

	var content string
	require.NoError(t, db.QueryRow(`SELECT json_extract(record, '$.content') FROM records WHERE dataset = 'postData' AND idx = 1`).Scan(&content))
	assert.Equal(t, "b", content)

	// The relevant lead is the one linked to a profile.
	assert.Equal(t, 1, count(t, db, `
		SELECT COUNT(*) FROM lead_attrs a
		JOIN lead_indices i ON i.lead = a.lead AND i.index_field = 'profileIndex'
		WHERE a.field = 'relevant'`))
}

func TestExportReplacesPrevious(t *testing.T) {
	src := workspace(t)
	path := filepath.Join(t.TempDir(), "snapshot.db")

	_, err := Export(path, src, Options{}, nil)
	require.NoError(t, err)
	res, err := Export(path, src, Options{}, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Records)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	assert.Equal(t, 2, count(t, db, `SELECT COUNT(*) FROM leads`))
}

func TestExportMissingDataset(t *testing.T) {
	src := workspace(t)
	path := filepath.Join(t.TempDir(), "snapshot.db")

	_, err := Export(path, src, Options{Datasets: []string{"ghostData"}}, nil)
	require.ErrorIs(t, err, api.ErrNotFound)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
