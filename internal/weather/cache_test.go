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
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amenkhnisi/strom-sense/internal/apiclient"
	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/logger"
)

func TestGeoCache_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	c, err := NewGeoCache(dir, time.Hour, logger.NewNop())
	require.NoError(t, err)

	_, ok := c.Get("10115")
	assert.False(t, ok)
	require.NoError(t, c.Put("10115", Coordinates{52.53, 13.38}))

	reopened, err := NewGeoCache(dir, time.Hour, logger.NewNop())
	require.NoError(t, err)
	got, ok := reopened.Get("10115")
	assert.True(t, ok)
	assert.Equal(t, Coordinates{52.53, 13.38}, got)
}

func TestGeoCache_Expiry(t *testing.T) {
	dir := t.TempDir()
	c, err := NewGeoCache(dir, time.Minute, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Put("20095", Coordinates{53.55, 9.99}))

	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, ok := c.Get("20095")
	assert.False(t, ok)

	reopened, err := NewGeoCache(dir, -time.Second, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
	require.NoError(t, reopened.Clear())
	assert.Equal(t, 0, reopened.Len())
}

func TestGeoCache_CorruptFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, GeoCacheFile), []byte("{not json"), 0o644))

	c, err := NewGeoCache(dir, time.Hour, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	assert.NoError(t, c.Put("50667", Coordinates{50.94, 6.96}))
}

func TestNominatim_GeocodeUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "80331", r.URL.Query().Get("postalcode"))
		assert.Equal(t, "de", r.URL.Query().Get("countrycodes"))
		_, _ = w.Write([]byte(`[{"lat":"48.1374","lon":"11.5755","display_name":"München"}]`))
	}))
	defer srv.Close()

	cache, err := NewGeoCache(t.TempDir(), time.Hour, logger.NewNop())
	require.NoError(t, err)
	client := apiclient.New(apiclient.Options{Timeout: time.Second}, logger.NewNop())
	n := NewNominatim(client, srv.URL, cache, logger.NewNop())

	for range 2 {
		c, err := n.Geocode(context.Background(), "80331")
		require.NoError(t, err)
		assert.Equal(t, Coordinates{48.1374, 11.5755}, c)
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestNominatim_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	n := NewNominatim(apiclient.New(apiclient.Options{}, logger.NewNop()), srv.URL, nil, logger.NewNop())
	_, err := n.Geocode(context.Background(), "00000")
	assert.True(t, apperr.IsNotFound(err))
}

func TestOpenMeteo_DailyMeanTemperatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "52.52", q.Get("latitude"))
		assert.Equal(t, "13.4", q.Get("longitude"))
		assert.Equal(t, "2024-01-01", q.Get("start_date"))
		assert.Equal(t, "2024-12-31", q.Get("end_date"))
		assert.Equal(t, "temperature_2m_mean", q.Get("daily"))
		assert.Equal(t, "Europe/Berlin", q.Get("timezone"))
		_, _ = w.Write([]byte(`{"daily":{"time":["2024-01-01","2024-01-02"],"temperature_2m_mean":[3.5,null]}}`))
	}))
	defer srv.Close()

	o := NewOpenMeteo(apiclient.New(apiclient.Options{}, logger.NewNop()), srv.URL)
	start, end := YearRange(2024)
	temps, err := o.DailyMeanTemperatures(context.Background(), RegionCoordinates("10115"), start, end)
	require.NoError(t, err)
	require.Len(t, temps, 2)
	assert.Equal(t, 3.5, *temps[0])
	assert.Nil(t, temps[1])
}

func TestOpenMeteo_MissingSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":false}`))
	}))
	defer srv.Close()

	o := NewOpenMeteo(apiclient.New(apiclient.Options{}, logger.NewNop()), srv.URL)
	start, end := YearRange(2024)
	_, err := o.DailyMeanTemperatures(context.Background(), GermanyCentre, start, end)
	var dataErr *apperr.DataError
	assert.ErrorAs(t, err, &dataErr)
}
