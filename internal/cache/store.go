// Package cache implements the single-file JSON quote cache. The file is
// shared with whatever else reads ~/.quotebar_cache.json, so the on-disk
// shape is a compatibility contract, not an implementation detail.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/stockbar/quotebar/internal/common"
	"github.com/stockbar/quotebar/internal/interfaces"
	"github.com/stockbar/quotebar/internal/models"
)

const (
	// DefaultFileName is resolved against the user home directory.
	DefaultFileName = ".quotebar_cache.json"
	DefaultTTL      = 5 * time.Minute
)

// Entry pairs a cached quote with the epoch second it was stored.
type Entry struct {
	Timestamp int64         `json:"timestamp"`
	Result    *models.Quote `json:"result"`
}

// Store caches real-time quotes in one JSON file keyed by uppercase symbol.
// Writes go through a temp file and rename; concurrent processes race on the
// whole file and the last writer wins, which is acceptable for a cache.
type Store struct {
	path   string
	ttl    time.Duration
	logger *common.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
}

// NewStore opens the cache at path. A missing or unreadable file starts the
// cache empty rather than failing.
func NewStore(logger *common.Logger, path string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		path:   path,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
	s.entries = s.load()
	return s
}

// Path returns the cache file path.
func (s *Store) Path() string {
	return s.path
}

// load reads the cache file, dropping entries that no longer decode. A
// corrupt file is treated as empty, never as an error.
func (s *Store) load() map[string]Entry {
	entries := make(map[string]Entry)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Cache file unreadable, starting empty")
		}
		return entries
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Cache file corrupt, starting empty")
		return entries
	}

	for key, msg := range raw {
		var e Entry
		if err := json.Unmarshal(msg, &e); err != nil {
			s.logger.Debug().Str("symbol", key).Msg("Dropping corrupt cache entry")
			continue
		}
		entries[strings.ToUpper(key)] = e
	}

	return entries
}

// Get returns the cached quote for symbol if it is still fresh.
func (s *Store) Get(symbol string) (*models.Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[strings.ToUpper(symbol)]
	if !ok || e.Result == nil {
		return nil, false
	}
	if s.now().Unix()-e.Timestamp >= int64(s.ttl.Seconds()) {
		return nil, false
	}
	return e.Result, true
}

// Put stores a quote and rewrites the cache file.
func (s *Store) Put(symbol string, quote *models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[strings.ToUpper(symbol)] = Entry{
		Timestamp: s.now().Unix(),
		Result:    quote,
	}
	return s.write()
}

// write persists the whole entry map through a temp file and rename.
func (s *Store) write() error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".quotebar-cache-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Ensure Store implements the cache contract
var _ interfaces.QuoteCache = (*Store)(nil)
