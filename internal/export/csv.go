// Package export serializes the listings accepted in one collection cycle
// to a timestamped CSV artifact for operators.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"propwatch/server/internal/models"
)

var columns = []string{"title", "price", "link", "address", "source", "detected_type"}

// Writer writes one CSV file per cycle into its output directory.
type Writer struct {
	dir    string
	logger *logrus.Logger
}

// NewWriter builds a writer targeting dir, creating it on first use.
func NewWriter(dir string, logger *logrus.Logger) *Writer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Writer{dir: dir, logger: logger}
}

// Write stores the listings as candidates_YYYYMMDD_HHMMSS.csv and returns
// the file path. Nothing is written for an empty cycle.
func (w *Writer) Write(listings []models.Listing) (string, error) {
	if len(listings) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := fmt.Sprintf("candidates_%s.csv", time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(w.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(columns); err != nil {
		return "", err
	}
	for _, l := range listings {
		price := ""
		if l.Price != nil {
			price = strconv.Itoa(*l.Price)
		}
		row := []string{l.Title, price, l.Link, l.Address, l.Source, l.PropertyType}
		if err := cw.Write(row); err != nil {
			return "", err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", err
	}

	w.logger.WithFields(logrus.Fields{
		"path":  path,
		"count": len(listings),
	}).Info("Exported cycle candidates")
	return path, nil
}
