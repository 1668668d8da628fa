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
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/Amenkhnisi/strom-sense/internal/apiclient"
	"github.com/Amenkhnisi/strom-sense/internal/config"
	"github.com/Amenkhnisi/strom-sense/internal/logger"
	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/store"
)

// Service serves heating degree days per postal code and year, reading
// through the store's weather cache
type Service struct {
	store    store.Store
	temps    TemperatureSource
	geocoder Geocoder
	log      *logger.Logger
	workers  int
}

// NewService creates a weather service. geocoder may be nil, in which case
// postal codes are located by region.
func NewService(st store.Store, temps TemperatureSource, geocoder Geocoder, log *logger.Logger) *Service {
	return &Service{store: st, temps: temps, geocoder: geocoder, log: log.WithComponent("weather"), workers: 2}
}

// New wires a service from configuration
func New(cfg config.WeatherConfig, st store.Store, log *logger.Logger) (*Service, error) {
	client := apiclient.New(apiclient.Options{
		Timeout:           cfg.Timeout(),
		MaxRetries:        cfg.MaxRetries,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, log.WithComponent("apiclient"))

	var geocoder Geocoder
	if cfg.GeocodeEnabled {
		cache, err := NewGeoCache(cfg.CacheDir, cfg.GeocodeCacheTTL(), log)
		if err != nil {
			return nil, err
		}
		geocoder = NewNominatim(client, cfg.GeocodeURL, cache, log)
	}
	return NewService(st, NewOpenMeteo(client, cfg.ArchiveURL), geocoder, log), nil
}

// Locate resolves a postal code, falling back to the region table when
// geocoding is disabled or fails
func (s *Service) Locate(ctx context.Context, postalCode string) Coordinates {
	if s.geocoder != nil {
		c, err := s.geocoder.Geocode(ctx, postalCode)
		if err == nil {
			return c
		}
		s.log.Warn("Geocoding failed, using region coordinates", "postal_code", postalCode, "error", err)
	}
	return RegionCoordinates(postalCode)
}

// HeatingDegreeDays returns the cached entry for a postal code and year,
// fetching and caching it when absent or when force is set. It returns nil
// without error when no weather data can be obtained.
func (s *Service) HeatingDegreeDays(ctx context.Context, postalCode string, year int, force bool) (*model.WeatherCacheEntry, error) {
	if !force {
		cached, err := s.store.GetWeather(ctx, postalCode, year)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			s.log.LogCacheEvent("hit", cacheKey(postalCode, year))
			return cached, nil
		}
		s.log.LogCacheEvent("miss", cacheKey(postalCode, year))
	}

	at := s.Locate(ctx, postalCode)
	start, end := YearRange(year)
	temps, err := s.temps.DailyMeanTemperatures(ctx, at, start, end)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "weather: fetch cancelled")
		}
		s.log.Warn("Weather data unavailable", "postal_code", postalCode, "year", year, "error", err)
		return nil, nil
	}
	if Observed(temps) == 0 {
		s.log.Warn("Weather series has no readings", "postal_code", postalCode, "year", year)
		return nil, nil
	}

	entry := &model.WeatherCacheEntry{
		PostalCode:         postalCode,
		Year:               year,
		HeatingDegreeDays:  HeatingDegreeDays(temps),
		AverageTemperature: AverageTemperature(temps),
		FetchedAt:          time.Now().UTC(),
	}
	if err := s.store.UpsertWeather(ctx, entry); err != nil {
		return nil, err
	}
	s.log.Info("Heating degree days cached",
		"postal_code", postalCode, "year", year, "hdd", entry.HeatingDegreeDays, "location", at.String())
	return entry, nil
}

func (s *Service) hdd(ctx context.Context, postalCode string, year int) (*float64, error) {
	entry, err := s.HeatingDegreeDays(ctx, postalCode, year, false)
	if err != nil || entry == nil {
		return nil, err
	}
	return &entry.HeatingDegreeDays, nil
}

// AdjustmentFactor is the ratio of heating degree days between two years
// for a postal code, or nil when either year has no weather data
func (s *Service) AdjustmentFactor(ctx context.Context, postalCode string, currentYear, previousYear int) (*float64, error) {
	current, err := s.hdd(ctx, postalCode, currentYear)
	if err != nil {
		return nil, err
	}
	previous, err := s.hdd(ctx, postalCode, previousYear)
	if err != nil {
		return nil, err
	}
	return AdjustmentFactor(current, previous), nil
}

// ExpectedConsumption predicts targetYear consumption from a baseline year,
// or nil without weather data
func (s *Service) ExpectedConsumption(ctx context.Context, baseline float64, postalCode string, baselineYear, targetYear int) (*float64, error) {
	factor, err := s.AdjustmentFactor(ctx, postalCode, targetYear, baselineYear)
	if err != nil || factor == nil {
		return nil, err
	}
	v := ExpectedConsumption(baseline, *factor)
	return &v, nil
}

// NormalizedConsumption restates actual consumption under the baseline
// year's weather, or nil without weather data
func (s *Service) NormalizedConsumption(ctx context.Context, actual float64, postalCode string, actualYear, baselineYear int) (*float64, error) {
	factor, err := s.AdjustmentFactor(ctx, postalCode, actualYear, baselineYear)
	if err != nil || factor == nil {
		return nil, err
	}
	v := NormalizedConsumption(actual, *factor)
	return &v, nil
}

// ListCache returns every cached entry
func (s *Service) ListCache(ctx context.Context) ([]model.WeatherCacheEntry, error) {
	return s.store.ListWeather(ctx)
}

// ClearCache deletes cached entries. An empty postal code or a zero year
// matches everything.
func (s *Service) ClearCache(ctx context.Context, postalCode string, year int) (int64, error) {
	n, err := s.store.DeleteWeather(ctx, postalCode, year)
	if err != nil {
		return 0, err
	}
	s.log.Info("Weather cache cleared", "entries", n)
	return n, nil
}

// PrefetchSummary counts the outcome of Prefetch
type PrefetchSummary struct {
	Fetched int `json:"fetched" yaml:"fetched"`
	Cached  int `json:"cached" yaml:"cached"`
	Failed  int `json:"failed" yaml:"failed"`
}

// Prefetch warms the cache for every postal code and year pair, skipping
// pairs already cached
func (s *Service) Prefetch(ctx context.Context, years []int, postalCodes []string) (PrefetchSummary, error) {
	var (
		mu  sync.Mutex
		sum PrefetchSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, pc := range postalCodes {
		for _, year := range years {
			g.Go(func() error {
				cached, err := s.store.GetWeather(gctx, pc, year)
				if err != nil {
					return err
				}
				if cached != nil {
					mu.Lock()
					sum.Cached++
					mu.Unlock()
					return nil
				}

				entry, err := s.HeatingDegreeDays(gctx, pc, year, false)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				if entry != nil {
					sum.Fetched++
				} else {
					sum.Failed++
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return sum, eris.Wrap(err, "weather: prefetch")
	}

	s.log.Info("Prefetch complete", "fetched", sum.Fetched, "cached", sum.Cached, "failed", sum.Failed)
	return sum, nil
}

func cacheKey(postalCode string, year int) string {
	return postalCode + "/" + strconv.Itoa(year)
}
