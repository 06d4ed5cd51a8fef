// Package dedup persists accepted listings and suppresses repeats, both by
// exact link and by fuzzy title+address similarity against every stored row.
package dedup

import (
	"errors"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"propwatch/server/internal/models"
	"propwatch/server/internal/textmatch"
)

// DefaultFuzzyThreshold is the similarity ratio at which two listings are
// considered the same offer.
const DefaultFuzzyThreshold = 0.86

// Store owns the listings table. All check-then-insert sequences are
// serialized by an internal mutex so two racing candidates cannot both pass
// the duplicate check; the unique index on link backs this up at the
// database level.
type Store struct {
	db        *gorm.DB
	threshold float64
	logger    *logrus.Logger
	mu        sync.Mutex
}

// Open opens (or creates) the sqlite database at path and returns a handle
// suitable for NewStore.
func Open(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

// NewStore wraps a database handle. A threshold of 0 selects the default.
func NewStore(db *gorm.DB, threshold float64, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	return &Store{db: db, threshold: threshold, logger: logger}
}

// Migrate creates the listings table and its unique link index.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&models.DedupRecord{})
}

// AcceptIfNew inserts the listing unless it duplicates an existing record.
// It returns true when the listing was newly persisted. A uniqueness
// violation on insert counts as a duplicate, not an error.
func (s *Store) AcceptIfNew(l *models.Listing) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.Link != "" {
		var count int64
		if err := s.db.Model(&models.DedupRecord{}).
			Where("link = ?", l.Link).
			Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return false, nil
		}
	}

	dup, err := s.fuzzyDuplicate(l)
	if err != nil {
		return false, err
	}
	if dup {
		return false, nil
	}

	rec := models.DedupRecord{
		Link:        l.Link,
		Title:       l.Title,
		Address:     l.Address,
		Price:       l.Price,
		Source:      l.Source,
		FirstSeenAt: time.Now().UTC(),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	l.FirstSeenAt = rec.FirstSeenAt
	return true, nil
}

// fuzzyDuplicate scans every stored row and compares the normalized
// title+address keys. Linear in table size, which is fine at the scale of
// thousands of rows.
func (s *Store) fuzzyDuplicate(l *models.Listing) (bool, error) {
	key := textmatch.Normalize(l.Title + " " + l.Address)
	if key == "" {
		return false, nil
	}

	var rows []models.DedupRecord
	if err := s.db.Select("title", "address").Find(&rows).Error; err != nil {
		return false, err
	}
	for _, r := range rows {
		existing := textmatch.Normalize(r.Title + " " + r.Address)
		if existing == "" {
			continue
		}
		if textmatch.Ratio(existing, key) >= s.threshold {
			return true, nil
		}
	}
	return false, nil
}

// Recent returns the most recently accepted records, newest first.
func (s *Store) Recent(limit int) ([]models.DedupRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.DedupRecord
	err := s.db.Order("first_seen_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Count returns the number of accepted records.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.Model(&models.DedupRecord{}).Count(&n).Error
	return n, err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
