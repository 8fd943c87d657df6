package gres

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := map[string]Gres{
		"foo":         {Name: "foo"},
		"foo:5":       {Name: "foo", Count: &Count{Value: 5}},
		"foo:5K":      {Name: "foo", Count: &Count{Value: 5, Unit: UnitK}},
		"foo:bar":     {Name: "foo", Type: "bar"},
		"foo:bar:1P":  {Name: "foo", Type: "bar", Count: &Count{Value: 1, Unit: UnitP}},
		"gpu:tesla:2": {Name: "gpu", Type: "tesla", Count: &Count{Value: 2}},
		"mps:100":     {Name: "mps", Count: &Count{Value: 100}},
	}

	for input, expected := range tests {
		t.Run(input, func(t *testing.T) {
			gres, err := Parse(input)
			require.NoError(t, err)
			assert.Equal(t, expected, gres)
			assert.Equal(t, input, gres.String())
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		":",
		"foo:",
		":5",
		"foo::5",
		"foo:bar:baz",
		"foo:bar:5X",
		"foo:5X",
		"foo:bar:5:6",
		"fo o",
		"foo:-1",
		"gpu:9000P",
		"gpu:a100:9000P",
		"gpu:99999999999999999999",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, input, parseErr.Input)
		})
	}
}

func TestParseCountLimit(t *testing.T) {
	g, err := Parse("gpu:8191P")
	require.NoError(t, err)
	assert.Equal(t, int64(8191)<<50, g.Expand())

	_, err = Parse("gpu:a100:8192P")
	assert.EqualError(t, err, "invalid gres 'gpu:a100:8192P': count '8192P' is too large")
}

func TestParseAll(t *testing.T) {
	all, err := ParseAll("gpu:2, bandwidth:4G  foo:bar:1P,,")
	require.NoError(t, err)

	assert.Equal(t, []string{"gpu", "bandwidth", "foo"}, lo.Map(all, func(g Gres, _ int) string {
		return g.Name
	}))
	assert.Equal(t, int64(2), all[0].Expand())
	assert.Equal(t, int64(4)<<30, all[1].Expand())
	assert.Equal(t, int64(1)<<50, all[2].Expand())
}

func TestParseAllNamesOffendingElement(t *testing.T) {
	_, err := ParseAll("gpu:2,gpu:tesla:lots")
	assert.EqualError(t, err, "invalid gres 'gpu:tesla:lots': invalid count 'lots'")
}

func TestParseAllEmpty(t *testing.T) {
	all, err := ParseAll("  ")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestExpand(t *testing.T) {
	assert.Equal(t, int64(3), Count{Value: 3}.Expand())
	assert.Equal(t, int64(3*1024), Count{Value: 3, Unit: UnitK}.Expand())
	assert.Equal(t, int64(3)<<20, Count{Value: 3, Unit: UnitM}.Expand())
	assert.Equal(t, int64(3)<<40, Count{Value: 3, Unit: UnitT}.Expand())
	assert.Equal(t, int64(1), Gres{Name: "gpu"}.Expand())
}
