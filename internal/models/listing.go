package models

import "time"

// RawListing is the untyped field bag a source adapter emits for one
// candidate record. Everything is text as scraped; coordinates are only
// present when the site exposes them.
type RawListing struct {
	Title       string   `json:"title"`
	Address     string   `json:"address"`
	Description string   `json:"description"`
	PriceText   string   `json:"price_text"`
	Link        string   `json:"link"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// Listing is the unit flowing through the collection pipeline. Fields are
// filled in by the normalizer and classifier stages and never removed.
type Listing struct {
	Source       string    `json:"source"`
	Title        string    `json:"title"`
	Address      string    `json:"address"`
	Description  string    `json:"description"`
	Link         string    `json:"link"`
	RawPrice     string    `json:"raw_price"`
	Price        *int      `json:"price"`
	PropertyType string    `json:"property_type"`
	IsSouth      bool      `json:"is_south"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
}

// DedupRecord is the persisted projection of an accepted listing. The table
// is append-only; the link column carries the uniqueness guarantee.
type DedupRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Link        string    `gorm:"uniqueIndex" json:"link"`
	Title       string    `json:"title"`
	Address     string    `json:"address"`
	Price       *int      `json:"price"`
	Source      string    `json:"source"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// TableName implements the GORM tabler interface.
func (DedupRecord) TableName() string { return "listings" }

// CycleSummary reports what a single collection pass did.
type CycleSummary struct {
	Fetched        int           `json:"fetched"`
	Classified     int           `json:"classified"`
	Accepted       int           `json:"accepted"`
	Notified       int           `json:"notified"`
	PagesAbandoned int           `json:"pages_abandoned"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}
