package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"propwatch/server/internal/classifier"
	"propwatch/server/internal/sources"
)

var (
	ErrNoTags     = errors.New("catalog must configure at least one property type")
	ErrBadCeiling = errors.New("catalog price ceilings must be positive")
)

// TagSpec binds a property-type tag to its keyword phrases and its default
// price ceiling.
type TagSpec struct {
	Tag      string   `yaml:"tag"`
	Ceiling  int      `yaml:"ceiling"`
	Keywords []string `yaml:"keywords"`
}

type GeoSpec struct {
	Enabled   bool    `yaml:"enabled"`
	CenterLat float64 `yaml:"center_lat"`
	CenterLon float64 `yaml:"center_lon"`
	RadiusKM  float64 `yaml:"radius_km"`
}

// Catalog is the domain knowledge of the collector: where to fetch, which
// property types to recognize, and how to decide south-region membership.
// Tag order matters, classification is first-match-wins.
type Catalog struct {
	Sources       []sources.SourceSpec `yaml:"sources"`
	Tags          []TagSpec            `yaml:"tags"`
	SouthKeywords []string             `yaml:"south_keywords"`
	Blacklist     []string             `yaml:"blacklist"`
	Geo           GeoSpec              `yaml:"geo"`
}

// DefaultCatalog returns the embedded catalog targeting Tenerife. It is
// used whenever no YAML file is configured.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Sources: []sources.SourceSpec{
			{Name: "Kyero", Kind: "kyero", URL: "https://www.kyero.com/en/property-for-sale/canary-islands/tenerife"},
		},
		Tags: []TagSpec{
			{
				Tag:      "land",
				Ceiling:  200000,
				Keywords: []string{"plot", "land for sale", "terreno", "parcela", "solar urbano"},
			},
			{
				Tag:      "rural_house",
				Ceiling:  250000,
				Keywords: []string{"casa rural", "rural house", "casa terrera", "country house", "casa de campo", "townhouse"},
			},
			{
				Tag:      "villa",
				Ceiling:  300000,
				Keywords: []string{"villa", "chalet", "detached house"},
			},
			{
				Tag:      "finca",
				Ceiling:  250000,
				Keywords: []string{"finca"},
			},
		},
		SouthKeywords: []string{
			"adeje", "costa adeje", "playa de las americas", "los cristianos",
			"arona", "san miguel de abona", "granadilla", "el medano",
			"callao salvaje", "playa paraiso", "guia de isora", "alcala",
			"palm mar", "las galletas", "costa del silencio", "golf del sur",
			"amarilla golf", "abades", "chayofa", "la caleta",
		},
		Blacklist: []string{
			"puerto de la cruz", "la laguna", "la orotava", "los realejos",
			"santa cruz de tenerife", "tacoronte", "el sauzal", "la matanza",
			"la victoria", "santa ursula", "icod de los vinos", "garachico",
			"bajamar", "punta del hidalgo", "tegueste",
		},
		Geo: GeoSpec{
			Enabled:   true,
			CenterLat: 28.05,
			CenterLon: -16.72,
			RadiusKM:  25,
		},
	}
}

// LoadCatalog reads the YAML catalog at path, falling back to the embedded
// defaults when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) Validate() error {
	if len(c.Tags) == 0 {
		return ErrNoTags
	}
	for _, t := range c.Tags {
		if t.Ceiling <= 0 {
			return fmt.Errorf("%w: %q", ErrBadCeiling, t.Tag)
		}
	}
	return nil
}

// Thresholds returns the default price ceiling per tag.
func (c *Catalog) Thresholds() map[string]int {
	out := make(map[string]int, len(c.Tags))
	for _, t := range c.Tags {
		out[t.Tag] = t.Ceiling
	}
	return out
}

// ClassifierTags converts the tag specs for the classifier, preserving
// configured order.
func (c *Catalog) ClassifierTags() []classifier.TagKeywords {
	out := make([]classifier.TagKeywords, 0, len(c.Tags))
	for _, t := range c.Tags {
		out = append(out, classifier.TagKeywords{Tag: t.Tag, Keywords: t.Keywords})
	}
	return out
}

// GeoFilter converts the geo spec for the classifier.
func (c *Catalog) GeoFilter() classifier.GeoFilter {
	return classifier.GeoFilter{
		Enabled:   c.Geo.Enabled,
		CenterLat: c.Geo.CenterLat,
		CenterLon: c.Geo.CenterLon,
		RadiusKM:  c.Geo.RadiusKM,
	}
}
