package projector

import (
	"testing"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const posts = `
[
  {"content": "hello", "author": {"name": "Alice", "profileUrl": "https://x/alice"}, "tags": ["a", "b"]},
  {"content": "no author"},
  {"content": "third", "author": {"name": "Carol", "profileUrl": null}, "tags": []}
]
`

func loadPosts(t *testing.T) []any {
	t.Helper()
	var records []any
	require.NoError(t, jsonfile.Decode([]byte(posts), &records))
	return records
}

func values(items []api.Item) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it.Value
	}
	return out
}

func TestProjectPath(t *testing.T) {
	records := loadPosts(t)

	t.Run("wildcard selects every record", func(t *testing.T) {
		p, err := Compile("[*].content")
		require.NoError(t, err)
		items, err := p.Project(records)
		require.NoError(t, err)
		assert.Equal(t, []any{"hello", "no author", "third"}, values(items))
		assert.Equal(t, 2, items[2].Index)
	})

	t.Run("absent key yields null for that record only", func(t *testing.T) {
		p, err := Compile("[*].author.name")
		require.NoError(t, err)
		items, err := p.Project(records)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, []any{"Alice", nil, "Carol"}, values(items))

		assert.NoError(t, items[0].Err)
		require.ErrorIs(t, items[1].Err, api.ErrMissingField)
		var mf *api.MissingFieldError
		require.ErrorAs(t, items[1].Err, &mf)
		assert.Equal(t, 1, mf.Index)
	})

	t.Run("explicit null is a value, not a missing field", func(t *testing.T) {
		p, err := Compile("[*].author.profileUrl")
		require.NoError(t, err)
		items, err := p.Project(records)
		require.NoError(t, err)
		assert.Nil(t, items[2].Value)
		assert.NoError(t, items[2].Err)
	})

	t.Run("single record selector", func(t *testing.T) {
		p, err := Compile("[2].author.name")
		require.NoError(t, err)
		items, err := p.Project(records)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, api.Item{Index: 2, Value: "Carol"}, items[0])
	})

	t.Run("selector out of range", func(t *testing.T) {
		p, err := Compile("[3].content")
		require.NoError(t, err)
		_, err = p.Project(records)
		require.ErrorIs(t, err, api.ErrIndexOutOfRange)
	})

	t.Run("nested index and wildcard", func(t *testing.T) {
		p, err := Compile("[*].tags[0]")
		require.NoError(t, err)
		items, err := p.Project(records)
		require.NoError(t, err)
		assert.Equal(t, []any{"a", nil, nil}, values(items))

		p, err = Compile("[*].tags[*]")
		require.NoError(t, err)
		items, err = p.Project(records)
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, items[0].Value)
		assert.Equal(t, []any{}, items[2].Value)
	})

	t.Run("no selector applies to every record", func(t *testing.T) {
		p, err := Compile("content")
		require.NoError(t, err)
		items, err := p.Project(records)
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})

	t.Run("bare wildcard returns whole records", func(t *testing.T) {
		p, err := Compile("$[*]")
		require.NoError(t, err)
		items, err := p.Project(records)
		require.NoError(t, err)
		assert.Equal(t, records[1], items[1].Value)
	})

	t.Run("invalid paths", func(t *testing.T) {
		for _, bad := range []string{"", "[x].a", "[*].a[", "[1"} {
			_, err := Compile(bad)
			require.ErrorIs(t, err, api.ErrInvalidArgument, bad)
		}
	})
}

func TestProjectFields(t *testing.T) {
	records := loadPosts(t)

	fields, err := ParseFields("name=author.name, text=[*].content,tags")
	require.NoError(t, err)
	assert.Equal(t, []Field{{"name", "author.name"}, {"text", "[*].content"}, {"tags", "tags"}}, fields)

	p, err := CompileFields(fields)
	require.NoError(t, err)
	items, err := p.Project(records)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, map[string]any{"name": "Alice", "text": "hello", "tags": []any{"a", "b"}}, items[0].Value)
	assert.Equal(t, map[string]any{"name": nil, "text": "no author", "tags": nil}, items[1].Value)
	require.ErrorIs(t, items[1].Err, api.ErrMissingField)

	t.Run("duplicate keys rejected", func(t *testing.T) {
		_, err := CompileFields([]Field{{"a", "x"}, {"a", "y"}})
		require.ErrorIs(t, err, api.ErrInvalidArgument)
	})

	t.Run("empty field list rejected", func(t *testing.T) {
		_, err := ParseFields(" , ")
		require.ErrorIs(t, err, api.ErrInvalidArgument)
	})
}

func TestItemsIsRestartable(t *testing.T) {
	records := loadPosts(t)
	p, err := Compile("[*].content")
	require.NoError(t, err)

	seq := p.Items(records, []int{2, 0, 7})
	var first, second []int
	for it := range seq {
		first = append(first, it.Index)
	}
	for it := range seq {
		second = append(second, it.Index)
	}
	assert.Equal(t, []int{2, 0}, first)
	assert.Equal(t, first, second)
}
