// Package normalize turns raw adapter records into canonical listings.
// All functions are pure; normalizing an already normalized value is a no-op.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"propwatch/server/internal/models"
)

// Sites pad prices with regular and non-breaking space variants.
var spaceStripper = strings.NewReplacer(" ", "", " ", "", " ", "")

// magnitudeRe captures a leading number with an optional decimal part
// followed by a k/m magnitude suffix, e.g. "250k" or "1.2m".
var magnitudeRe = regexp.MustCompile(`(?i)^€?\s*([0-9]+(?:[.,][0-9]+)?)\s*([km])\b`)

var nonDigitRe = regexp.MustCompile(`[^0-9]`)

// FromRaw builds a Listing from a raw adapter record, filling empty strings
// for missing text fields and normalizing the price.
func FromRaw(raw models.RawListing, source string) models.Listing {
	l := models.Listing{
		Source:      source,
		Title:       strings.TrimSpace(raw.Title),
		Address:     strings.TrimSpace(raw.Address),
		Description: strings.TrimSpace(raw.Description),
		Link:        strings.TrimSpace(raw.Link),
		RawPrice:    strings.TrimSpace(raw.PriceText),
		Latitude:    raw.Latitude,
		Longitude:   raw.Longitude,
	}
	l.Price = Price(l.RawPrice)
	return l
}

// Price parses a scraped price representation into whole currency units.
// It accepts plain integers, digit strings, locale-formatted strings with
// thousands separators ("250.000 €") and k/m magnitude suffixes ("250k",
// "1.2m"). As a last resort all non-digit characters are stripped. It
// returns nil when no digits are found.
func Price(raw string) *int {
	if raw == "" {
		return nil
	}
	s := spaceStripper.Replace(raw)
	if s == "" {
		return nil
	}

	if m := magnitudeRe.FindStringSubmatch(s); m != nil {
		num := strings.ReplaceAll(m[1], ",", ".")
		f, err := strconv.ParseFloat(num, 64)
		if err == nil && f >= 0 {
			factor := 1_000.0
			if strings.EqualFold(m[2], "m") {
				factor = 1_000_000.0
			}
			v := int(math.Round(f * factor))
			return &v
		}
	}

	digits := nonDigitRe.ReplaceAllString(s, "")
	if digits == "" {
		return nil
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		// Absurdly long digit runs overflow; treat them as unparseable.
		return nil
	}
	return &v
}
