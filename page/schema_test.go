package page

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchemaCompiles(t *testing.T) {
	s := DefaultSchema()
	require.NoError(t, s.Compile())

	assert.Equal(t, DefaultVersion, s.Version)
	assert.Contains(t, s.Required(LevelContainer), FieldOrderID)
	assert.Equal(t, []string{FieldItemName}, s.Required(LevelItem))
	assert.NotContains(t, s.Required(LevelContainer), FieldOrderTotal)
}

func TestFieldMatches(t *testing.T) {
	s := DefaultSchema()
	require.NoError(t, s.Compile())

	assert.True(t, s.Field(FieldDate).Matches("Dec 31, 2024"))
	assert.True(t, s.Field(FieldDate).Matches("January 1, 2024"))
	assert.False(t, s.Field(FieldDate).Matches("2024-12-31"))
	assert.True(t, s.Field(FieldOrderID).Matches("MS71XHJJ3K"))
	assert.False(t, s.Field(FieldOrderID).Matches("ms71"))
	assert.True(t, s.Field(FieldPublisher).Matches("anything at all"))
}

func TestParseSchemaOverlaysDefaults(t *testing.T) {
	data := []byte(`
version: "2.0.0"
container: "section.order"
fields:
  orderId:
    selector: "span.order-number"
    required: true
    level: container
`)
	s, err := ParseSchema(data)
	require.NoError(t, err)

	assert.Equal(t, "2.0.0", s.Version)
	assert.Equal(t, "section.order", s.Container)
	assert.Equal(t, "span.order-number", s.Selector(FieldOrderID))
	assert.True(t, s.Field(FieldOrderID).Matches("lower-case is fine now"))
	// untouched entries keep their built-in definition
	assert.Equal(t, DefaultSchema().Selector(FieldPrice), s.Selector(FieldPrice))
}

func TestParseSchemaRejectsBadShape(t *testing.T) {
	cases := map[string]string{
		"unknown top-level key": "containers: div\n",
		"field without selector": "fields:\n  date:\n    required: true\n",
		"bad level":              "fields:\n  date:\n    selector: span\n    level: page\n",
		"empty file":             "",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSchema([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestParseSchemaRejectsBadPattern(t *testing.T) {
	_, err := ParseSchema([]byte("fields:\n  date:\n    selector: span\n    pattern: \"([\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestLoadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("container: \"div.purchase\"\n"), 0644))

	s, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, "div.purchase", s.Container)

	_, err = LoadSchema(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
