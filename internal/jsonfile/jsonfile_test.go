package jsonfile

import (
	"encoding/json"
	"testing"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	t.Run("memfs round trip", func(t *testing.T) {
		fs := memfs.New()
		in := map[string]any{"leads": []any{map[string]any{"postIndex": 3}}}
		require.NoError(t, Write(fs, "state/mapping.json", in))

		var out map[string]any
		require.NoError(t, Read(fs, "state/mapping.json", &out))
		leads := out["leads"].([]any)
		lead := leads[0].(map[string]any)
		assert.Equal(t, json.Number("3"), lead["postIndex"])
	})

	t.Run("osfs leaves no temp files behind", func(t *testing.T) {
		fs := osfs.New(t.TempDir())
		require.NoError(t, Write(fs, "a.json", []int{1, 2}))
		require.NoError(t, Write(fs, "a.json", []int{1, 2, 3}))

		entries, err := fs.ReadDir(".")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "a.json", entries[0].Name())

		var got []int
		require.NoError(t, Read(fs, "a.json", &got))
		assert.Equal(t, []int{1, 2, 3}, got)
	})

	t.Run("missing file is not found", func(t *testing.T) {
		var v any
		err := Read(memfs.New(), "nope.json", &v)
		require.ErrorIs(t, err, api.ErrNotFound)
	})

	t.Run("byte order mark is tolerated", func(t *testing.T) {
		fs := memfs.New()
		require.NoError(t, util.WriteFile(fs, "bom.json", append([]byte{0xEF, 0xBB, 0xBF}, []byte(`["x"]`)...), 0o644))
		var got []string
		require.NoError(t, Read(fs, "bom.json", &got))
		assert.Equal(t, []string{"x"}, got)
	})
}

func TestExists(t *testing.T) {
	fs := memfs.New()
	ok, err := Exists(fs, "x.json")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, Write(fs, "x.json", 1))
	ok, err = Exists(fs, "x.json")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock(t *testing.T) {
	fs := osfs.New(t.TempDir())
	l, err := Acquire(fs, ".lock")
	require.NoError(t, err)
	require.NoError(t, l.Release())
	// Releasing twice is harmless.
	require.NoError(t, l.Release())

	l2, err := Acquire(fs, ".lock")
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestInt(t *testing.T) {
	cases := []struct {
		in   any
		want int
		ok   bool
	}{
		{json.Number("7"), 7, true},
		{json.Number("7.5"), 0, false},
		{float64(4), 4, true},
		{4.5, 0, false},
		{12, 12, true},
		{"3", 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		got, ok := Int(c.in)
		assert.Equal(t, c.ok, ok, "%v", c.in)
		assert.Equal(t, c.want, got, "%v", c.in)
	}
}
