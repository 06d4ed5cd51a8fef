// Package classifier assigns a property-type tag and the south-region flag
// to listings using keyword and fuzzy-token matching, with an optional
// geographic override when a listing carries coordinates.
package classifier

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/sirupsen/logrus"

	"propwatch/server/internal/models"
	"propwatch/server/internal/textmatch"
)

// TagKeywords binds one property-type tag to its keyword phrases. Tag order
// is significant: the first matching tag wins.
type TagKeywords struct {
	Tag      string
	Keywords []string
}

// GeoFilter defines the great-circle membership test for the south region.
type GeoFilter struct {
	Enabled   bool
	CenterLat float64
	CenterLon float64
	RadiusKM  float64
}

// Config carries the keyword catalog and matcher thresholds.
type Config struct {
	Tags          []TagKeywords
	SouthKeywords []string
	Blacklist     []string
	Geo           GeoFilter
	Matcher       textmatch.Matcher
}

// Classifier is safe for concurrent use; all state is read-only after New.
type Classifier struct {
	tags      []TagKeywords
	south     []string
	blacklist []string
	geo       GeoFilter
	matcher   textmatch.Matcher
	logger    *logrus.Logger
}

// New builds a classifier, normalizing every configured keyword once up
// front so matching only normalizes the listing text.
func New(cfg Config, logger *logrus.Logger) *Classifier {
	if logger == nil {
		logger = logrus.New()
	}

	tags := make([]TagKeywords, 0, len(cfg.Tags))
	for _, t := range cfg.Tags {
		normalized := make([]string, 0, len(t.Keywords))
		for _, kw := range t.Keywords {
			if n := textmatch.Normalize(kw); n != "" {
				normalized = append(normalized, n)
			}
		}
		tags = append(tags, TagKeywords{Tag: t.Tag, Keywords: normalized})
	}

	return &Classifier{
		tags:      tags,
		south:     normalizeAll(cfg.SouthKeywords),
		blacklist: normalizeAll(cfg.Blacklist),
		geo:       cfg.Geo,
		matcher:   cfg.Matcher,
		logger:    logger,
	}
}

func normalizeAll(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if n := textmatch.Normalize(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Classify fills PropertyType and IsSouth on the listing in place.
func (c *Classifier) Classify(l *models.Listing) {
	text := textmatch.Normalize(l.Title + " " + l.Address + " " + l.Description)
	l.PropertyType = c.DetectType(text)
	l.IsSouth = c.IsSouth(l, text)
}

// DetectType returns the first tag whose keywords match the normalized
// text, or "" when nothing matches. Tiers are evaluated strictly in order:
// an exact hit on a later tag beats a fuzzy hit on an earlier one.
func (c *Classifier) DetectType(text string) string {
	if text == "" {
		return ""
	}
	tiers := []func(text, phrase string) bool{
		c.matcher.Exact,
		c.matcher.Tokens,
		c.matcher.Phrase,
	}
	for _, tier := range tiers {
		for _, tag := range c.tags {
			for _, kw := range tag.Keywords {
				if tier(text, kw) {
					return tag.Tag
				}
			}
		}
	}
	return ""
}

// IsSouth decides south-region membership. Blacklist phrases override
// everything; a conclusive geo decision short-circuits the textual checks.
// Blacklist phrases match exact only: fuzzy tiers over multi-word place
// names would fire on articles like "la" and exclude half the island.
func (c *Classifier) IsSouth(l *models.Listing, text string) bool {
	for _, phrase := range c.blacklist {
		if c.matcher.Exact(text, phrase) {
			return false
		}
	}

	if c.geo.Enabled {
		if decided, inside := c.geoDecision(l); decided {
			return inside
		}
	}

	for _, name := range c.south {
		if c.matcher.Match(text, name) {
			return true
		}
	}
	return false
}

// geoDecision reports whether coordinates allowed a conclusive decision and,
// if so, whether the listing lies within the configured radius. Malformed
// coordinates fall through to the textual path without error.
func (c *Classifier) geoDecision(l *models.Listing) (decided, inside bool) {
	if l.Latitude == nil || l.Longitude == nil {
		return false, false
	}
	lat, lon := *l.Latitude, *l.Longitude
	if math.IsNaN(lat) || math.IsNaN(lon) ||
		lat < -90 || lat > 90 || lon < -180 || lon > 180 ||
		(lat == 0 && lon == 0) {
		c.logger.WithFields(logrus.Fields{
			"latitude":  lat,
			"longitude": lon,
			"link":      l.Link,
		}).Debug("Ignoring malformed coordinates")
		return false, false
	}

	center := orb.Point{c.geo.CenterLon, c.geo.CenterLat}
	distance := geo.Distance(orb.Point{lon, lat}, center)
	return true, distance <= c.geo.RadiusKM*1000
}
