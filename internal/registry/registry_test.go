package registry

import (
	"testing"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("register then resolve", func(t *testing.T) {
		fs := memfs.New()
		r, err := Load(fs, "", nil)
		require.NoError(t, err)

		require.NoError(t, r.Register([]string{"index", "isPaidCanva", "reasoning"}, "postData_isPaidCanva.json", "postIndex"))

		file, indexField, err := r.Resolve("isPaidCanva")
		require.NoError(t, err)
		assert.Equal(t, "postData_isPaidCanva.json", file)
		assert.Equal(t, "postIndex", indexField)

		_, _, err = r.Resolve("index")
		require.ErrorIs(t, err, api.ErrUnknownField)
	})

	t.Run("persisted in the documented shape", func(t *testing.T) {
		fs := memfs.New()
		r, err := Load(fs, "", nil)
		require.NoError(t, err)
		require.NoError(t, r.Register([]string{"isAgency"}, "profileData_isAgency.json", "profileIndex"))

		var doc api.RegistryDoc
		require.NoError(t, jsonfile.Read(fs, DefaultFile, &doc))
		assert.Equal(t, "profileData_isAgency.json", doc.Fields["isAgency"])
		assert.Equal(t, api.RegistryFile{Fields: []string{"isAgency"}, IndexField: "profileIndex"}, doc.Files["profileData_isAgency.json"])

		reloaded, err := Load(fs, "", nil)
		require.NoError(t, err)
		_, indexField, err := reloaded.Resolve("isAgency")
		require.NoError(t, err)
		assert.Equal(t, "profileIndex", indexField)
	})

	t.Run("unknown field", func(t *testing.T) {
		r, err := Load(memfs.New(), "", nil)
		require.NoError(t, err)
		_, _, err = r.Resolve("nope")
		require.ErrorIs(t, err, api.ErrUnknownField)
	})

	t.Run("field claimed by another file conflicts", func(t *testing.T) {
		fs := memfs.New()
		r, err := Load(fs, "", nil)
		require.NoError(t, err)
		require.NoError(t, r.Register([]string{"reasoning", "isStartup"}, "a.json", "profileIndex"))

		err = r.Register([]string{"companyName", "reasoning"}, "b.json", "profileIndex")
		require.ErrorIs(t, err, api.ErrConflict)
		var ce *api.ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "reasoning", ce.Field)
		assert.Equal(t, "a.json", ce.Owner)

		// Nothing from the failed registration leaked in.
		_, _, err = r.Resolve("companyName")
		require.ErrorIs(t, err, api.ErrUnknownField)
	})

	t.Run("same file re-registers and merges", func(t *testing.T) {
		r, err := Load(memfs.New(), "", nil)
		require.NoError(t, err)
		require.NoError(t, r.Register([]string{"x"}, "a.json", "postIndex"))
		require.NoError(t, r.Register([]string{"x", "y"}, "a.json", "postIndex"))
		assert.Equal(t, []Entry{{File: "a.json", IndexField: "postIndex", Fields: []string{"x", "y"}}}, r.Entries())
	})

	t.Run("same file under a different index-field conflicts", func(t *testing.T) {
		r, err := Load(memfs.New(), "", nil)
		require.NoError(t, err)
		require.NoError(t, r.Register([]string{"x"}, "a.json", "postIndex"))
		err = r.Register([]string{"x"}, "a.json", "profileIndex")
		require.ErrorIs(t, err, api.ErrConflict)
	})

	t.Run("check does not mutate", func(t *testing.T) {
		fs := memfs.New()
		r, err := Load(fs, "", nil)
		require.NoError(t, err)
		require.NoError(t, r.Check([]string{"x"}, "a.json", "postIndex"))
		_, _, err = r.Resolve("x")
		require.ErrorIs(t, err, api.ErrUnknownField)
		ok, err := jsonfile.Exists(fs, DefaultFile)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
