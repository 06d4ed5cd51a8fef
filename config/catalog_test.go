package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	cat := DefaultCatalog()
	require.NoError(t, cat.Validate())

	assert.Equal(t, map[string]int{
		"land":        200000,
		"rural_house": 250000,
		"villa":       300000,
		"finca":       250000,
	}, cat.Thresholds())

	tags := cat.ClassifierTags()
	require.Len(t, tags, 4)
	assert.Equal(t, "land", tags[0].Tag)
	assert.True(t, cat.GeoFilter().Enabled)
}

func TestLoadCatalogEmptyPathUsesDefaults(t *testing.T) {
	cat, err := LoadCatalog("")
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Sources)
	assert.NotEmpty(t, cat.SouthKeywords)
}

func TestLoadCatalogFromFile(t *testing.T) {
	yaml := `
sources:
  - name: Agency 1
    kind: agency
    url: https://agency1.example/properties
tags:
  - tag: villa
    ceiling: 350000
    keywords: [villa, chalet]
south_keywords: [adeje]
blacklist: [la laguna]
geo:
  enabled: false
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat.Sources, 1)
	assert.Equal(t, "Agency 1", cat.Sources[0].Name)
	assert.Equal(t, map[string]int{"villa": 350000}, cat.Thresholds())
	assert.False(t, cat.GeoFilter().Enabled)
}

func TestLoadCatalogRejectsMissingTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources: []\n"), 0644))

	_, err := LoadCatalog(path)
	assert.ErrorIs(t, err, ErrNoTags)
}

func TestLoadCatalogRejectsBadCeiling(t *testing.T) {
	yaml := `
tags:
  - tag: villa
    ceiling: 0
    keywords: [villa]
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	_, err := LoadCatalog(path)
	assert.ErrorIs(t, err, ErrBadCeiling)
}
