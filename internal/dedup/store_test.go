package dedup

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propwatch/server/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	store := NewStore(db, 0, nil)
	require.NoError(t, store.Migrate())
	return store
}

func listing(link, title, address string) *models.Listing {
	price := 150000
	return &models.Listing{
		Source:  "Test",
		Title:   title,
		Address: address,
		Link:    link,
		Price:   &price,
	}
}

func TestAcceptIfNewExactLink(t *testing.T) {
	store := newTestStore(t)

	ok, err := store.AcceptIfNew(listing("https://example.com/1", "Villa in Adeje", "Calle Mayor 1"))
	require.NoError(t, err)
	assert.True(t, ok)

	// Same link, different text: still a duplicate.
	ok, err = store.AcceptIfNew(listing("https://example.com/1", "Completely different title", "Elsewhere"))
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestAcceptIfNewFuzzyDuplicate(t *testing.T) {
	store := newTestStore(t)

	ok, err := store.AcceptIfNew(listing("https://example.com/a", "Villa in Costa Adeje", "Calle del Mar 12, Adeje"))
	require.NoError(t, err)
	assert.True(t, ok)

	// Same offer reposted elsewhere: differs only in case and punctuation.
	ok, err = store.AcceptIfNew(listing("https://other.com/b", "VILLA in Costa Adeje!", "Calle del Mar 12 - Adeje"))
	require.NoError(t, err)
	assert.False(t, ok)

	// A clearly distinct listing is accepted.
	ok, err = store.AcceptIfNew(listing("https://other.com/c", "Plot of rural land", "El Medano, Granadilla"))
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := store.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestAcceptIfNewConcurrentSameLink(t *testing.T) {
	store := newTestStore(t)

	const workers = 8
	var wg sync.WaitGroup
	accepted := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.AcceptIfNew(listing("https://example.com/race", "Racing listing", "Somewhere"))
			assert.NoError(t, err)
			accepted <- ok
		}()
	}
	wg.Wait()
	close(accepted)

	wins := 0
	for ok := range accepted {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestRecentOrder(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AcceptIfNew(listing("https://example.com/old", "First listing accepted", "Arona"))
	require.NoError(t, err)
	_, err = store.AcceptIfNew(listing("https://example.com/new", "Completely unrelated plot", "Granadilla industrial park"))
	require.NoError(t, err)

	rows, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "https://example.com/new", rows[0].Link)
}
