package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbar/quotebar/internal/common"
	"github.com/stockbar/quotebar/internal/models"
)

func testQuote(symbol string, price float64) *models.Quote {
	return &models.Quote{
		Symbol:             symbol,
		Price:              price,
		RegularMarketPrice: price,
		PreviousClose:      price - 1,
		Timestamp:          1766167200,
		Source:             "yahoo",
	}
}

func TestStore_PutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := NewStore(common.NewSilentLogger(), path, time.Minute)

	require.NoError(t, store.Put("AAPL", testQuote("AAPL", 231.59)))

	got, ok := store.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, 231.59, got.Price)

	// A second store on the same path sees the persisted entry
	reopened := NewStore(common.NewSilentLogger(), path, time.Minute)
	got, ok = reopened.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, "AAPL", got.Symbol)
}

func TestStore_Expiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := NewStore(common.NewSilentLogger(), path, 5*time.Minute)

	base := time.Unix(1766167200, 0)
	store.now = func() time.Time { return base }
	require.NoError(t, store.Put("AAPL", testQuote("AAPL", 231.59)))

	store.now = func() time.Time { return base.Add(299 * time.Second) }
	_, ok := store.Get("AAPL")
	assert.True(t, ok, "entry should be fresh at 299s")

	store.now = func() time.Time { return base.Add(300 * time.Second) }
	_, ok = store.Get("AAPL")
	assert.False(t, ok, "entry should be stale at 300s")
}

func TestStore_UppercasesKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := NewStore(common.NewSilentLogger(), path, time.Minute)

	require.NoError(t, store.Put("aapl", testQuote("AAPL", 231.59)))

	_, ok := store.Get("AAPL")
	assert.True(t, ok)
	_, ok = store.Get("aapl")
	assert.True(t, ok)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	_, ok = raw["AAPL"]
	assert.True(t, ok, "file keys should be uppercase")
}

func TestStore_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := NewStore(common.NewSilentLogger(), path, time.Minute)

	base := time.Unix(1766167200, 0)
	store.now = func() time.Time { return base }
	require.NoError(t, store.Put("AAPL", testQuote("AAPL", 231.5)))

	// The on-disk shape is shared with other readers of the cache file
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]struct {
		Timestamp int64                  `json:"timestamp"`
		Result    map[string]interface{} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))

	entry, ok := raw["AAPL"]
	require.True(t, ok)
	assert.Equal(t, base.Unix(), entry.Timestamp)
	assert.Equal(t, 231.5, entry.Result["price"])
	assert.Equal(t, 230.5, entry.Result["previous_close"])
}

func TestStore_MissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := NewStore(common.NewSilentLogger(), path, time.Minute)

	_, ok := store.Get("AAPL")
	assert.False(t, ok)
}

func TestStore_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store := NewStore(common.NewSilentLogger(), path, time.Minute)
	_, ok := store.Get("AAPL")
	assert.False(t, ok)

	// The store recovers on the next write
	require.NoError(t, store.Put("AAPL", testQuote("AAPL", 231.59)))
	_, ok = store.Get("AAPL")
	assert.True(t, ok)
}

func TestStore_CorruptEntryIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	content := `{"GOOD":{"timestamp":1766167200,"result":{"symbol":"GOOD","price":10.5,"regular_market_price":10.5,"previous_close":10.0,"change":0.5,"change_p":5.0,"timestamp":1766167200}},"BAD":"nope"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	store := NewStore(common.NewSilentLogger(), path, 5*time.Minute)
	store.now = func() time.Time { return time.Unix(1766167210, 0) }

	got, ok := store.Get("GOOD")
	require.True(t, ok)
	assert.Equal(t, 10.5, got.Price)

	_, ok = store.Get("BAD")
	assert.False(t, ok)
}
