package filter

import (
	"encoding/json"
	"testing"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	e, err := Parse("relevant=true")
	require.NoError(t, err)
	assert.Equal(t, Expr{Field: "relevant", Op: OpEq, Literal: true}, e)

	e, err = Parse("  score = 3 ")
	require.NoError(t, err)
	assert.Equal(t, "score", e.Field)
	assert.Equal(t, 3, e.Literal)

	e, err = Parse(`company="Acme, Inc"`)
	require.NoError(t, err)
	assert.Equal(t, "Acme, Inc", e.Literal)

	for _, bad := range []string{"", "relevant", "=true", "a.b=1", "x="} {
		_, err := Parse(bad)
		require.ErrorIs(t, err, api.ErrInvalidArgument, bad)
	}
}

func TestParseLiteral(t *testing.T) {
	cases := map[string]any{
		"TRUE":     true,
		"false":    false,
		"null":     nil,
		"42":       42,
		"-7":       -7,
		"0.5":      0.5,
		"'quoted'": "quoted",
		"yes":      "yes",
		"NaN":      "NaN",
		"0x10":     "0x10",
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLiteral(in), in)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(json.Number("1"), 1))
	assert.True(t, Equal(1.0, json.Number("1")))
	assert.False(t, Equal(json.Number("1"), "1"))
	assert.True(t, Equal(true, true))
	assert.False(t, Equal(true, "true"))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, false))
	assert.True(t, Equal([]any{"a"}, []any{"a"}))

	e := Expr{Field: "isAgency", Op: OpEq, Literal: false}
	assert.True(t, e.Match(false))
	assert.False(t, e.Match(nil))
}
