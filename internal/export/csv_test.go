package export

import (
	"encoding/csv"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propwatch/server/internal/models"
)

func TestWriteCreatesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)

	price := 250000
	path, err := w.Write([]models.Listing{
		{
			Title:        "Villa in Adeje",
			Price:        &price,
			Link:         "https://example.com/v",
			Address:      "Calle Mayor 1",
			Source:       "Kyero",
			PropertyType: "villa",
		},
		{
			Title:  "Plot without price",
			Link:   "https://example.com/p",
			Source: "Agency 1",
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, path)
	assert.Regexp(t, `candidates_\d{8}_\d{6}\.csv$`, path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"title", "price", "link", "address", "source", "detected_type"}, rows[0])
	assert.Equal(t, []string{"Villa in Adeje", "250000", "https://example.com/v", "Calle Mayor 1", "Kyero", "villa"}, rows[1])
	assert.Equal(t, "", rows[2][1])
}

func TestWriteSkipsEmptyCycle(t *testing.T) {
	w := NewWriter(t.TempDir(), nil)
	path, err := w.Write(nil)
	require.NoError(t, err)
	assert.Empty(t, path)
}
