// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package weather

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Amenkhnisi/strom-sense/internal/logger"
)

// GeoCacheFile is the file name of the geocode cache inside its directory
const GeoCacheFile = "geocode_cache.json"

type geoEntry struct {
	Coordinates Coordinates `json:"coordinates"`
	CachedAt    time.Time   `json:"cached_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// GeoCache keeps geocoded postal codes in a JSON file with a fixed lifetime
type GeoCache struct {
	filePath string
	ttl      time.Duration
	entries  map[string]geoEntry
	mutex    sync.RWMutex
	logger   *logger.Logger
	now      func() time.Time
}

// NewGeoCache opens the cache in dir, dropping entries that have expired.
// An unreadable cache file is logged and replaced.
func NewGeoCache(dir string, ttl time.Duration, log *logger.Logger) (*GeoCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "weather: create cache dir %s", dir)
	}

	c := &GeoCache{
		filePath: filepath.Join(dir, GeoCacheFile),
		ttl:      ttl,
		entries:  make(map[string]geoEntry),
		logger:   log,
		now:      time.Now,
	}

	if err := c.load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Failed to load geocode cache, starting fresh", "error", err)
		c.entries = nil
	}
	if c.entries == nil {
		c.entries = make(map[string]geoEntry)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := c.purgeLocked(); err != nil {
		return nil, err
	}

	log.Debug("Geocode cache initialized", "path", c.filePath, "entries", len(c.entries))
	return c, nil
}

// Get returns the cached coordinates for a postal code if still fresh
func (c *GeoCache) Get(postalCode string) (Coordinates, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, ok := c.entries[postalCode]
	if !ok {
		c.logger.LogCacheEvent("miss", postalCode)
		return Coordinates{}, false
	}
	if c.now().After(entry.ExpiresAt) {
		c.logger.LogCacheEvent("expired", postalCode)
		return Coordinates{}, false
	}
	c.logger.LogCacheEvent("hit", postalCode)
	return entry.Coordinates, true
}

// Put stores coordinates for a postal code and persists the cache
func (c *GeoCache) Put(postalCode string, coords Coordinates) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	c.entries[postalCode] = geoEntry{Coordinates: coords, CachedAt: now, ExpiresAt: now.Add(c.ttl)}
	c.logger.LogCacheEvent("write", postalCode)
	return c.save()
}

// Len returns the number of entries, expired or not
func (c *GeoCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// Clear removes every entry
func (c *GeoCache) Clear() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]geoEntry)
	return c.save()
}

// purgeLocked drops expired entries; the caller holds the write lock
func (c *GeoCache) purgeLocked() error {
	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed == 0 {
		return nil
	}
	c.logger.Debug("Purged expired geocode entries", "count", removed)
	return c.save()
}

func (c *GeoCache) load() error {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return eris.Wrap(err, "weather: decode geocode cache")
	}
	return nil
}

// save replaces the cache file via a rename
func (c *GeoCache) save() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "weather: encode geocode cache")
	}
	tmp := c.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "weather: write geocode cache")
	}
	return eris.Wrap(os.Rename(tmp, c.filePath), "weather: replace geocode cache")
}
