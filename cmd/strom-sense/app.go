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

package main

import (
	"context"
	"strconv"

	"github.com/Amenkhnisi/strom-sense/internal/anomaly"
	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/bills"
	"github.com/Amenkhnisi/strom-sense/internal/metrics"
	"github.com/Amenkhnisi/strom-sense/internal/ocr"
	"github.com/Amenkhnisi/strom-sense/internal/peer"
	"github.com/Amenkhnisi/strom-sense/internal/store"
	"github.com/Amenkhnisi/strom-sense/internal/weather"
)

// initStore opens the configured store and applies pending migrations
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store, appLogger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// withStore runs fn against a freshly opened store and closes it afterwards
func withStore(ctx context.Context, fn func(st store.Store) error) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	return fn(st)
}

func newBillService(st store.Store) *bills.Service {
	return bills.NewService(st, ocr.NewRouter(cfg.OCR), appLogger)
}

func newMetricsService(st store.Store) *metrics.Service {
	return metrics.NewService(st, appLogger)
}

func newPeerService(st store.Store) *peer.Service {
	return peer.NewService(st, appLogger, cfg.Anomaly.Workers)
}

func newWeatherService(st store.Store) (*weather.Service, error) {
	return weather.New(cfg.Weather, st, appLogger)
}

func newAnomalyService(st store.Store) (*anomaly.Service, error) {
	w, err := newWeatherService(st)
	if err != nil {
		return nil, err
	}
	return anomaly.NewService(st, w, appLogger, cfg.Anomaly.Workers), nil
}

func parseID(arg, name string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, &apperr.ValidationError{Field: name, Value: arg, Message: "must be a positive integer"}
	}
	return id, nil
}

func parseYear(arg string) (int, error) {
	year, err := strconv.Atoi(arg)
	if err != nil || year < bills.MinYear || year > bills.MaxYear {
		return 0, &apperr.ValidationError{Field: "year", Value: arg, Message: "must be a year between 2000 and 2100"}
	}
	return year, nil
}

func parseKWh(arg, name string) (float64, error) {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil || v < 0 {
		return 0, &apperr.ValidationError{Field: name, Value: arg, Message: "must be a non-negative number"}
	}
	return v, nil
}
