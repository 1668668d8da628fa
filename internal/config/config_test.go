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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("HOME", dir)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, filepath.Join(dir, ".config", "strom-sense", "strom-sense.db"), cfg.Store.SQLitePath)
	assert.Equal(t, "pdftotext", cfg.OCR.PdfToTextPath)
	assert.Equal(t, "deu", cfg.OCR.Language)
	assert.Equal(t, "https://archive-api.open-meteo.com/v1/archive", cfg.Weather.ArchiveURL)
	assert.False(t, cfg.Weather.GeocodeEnabled)
	assert.Equal(t, 10*time.Second, cfg.Weather.Timeout())
	assert.Equal(t, []int{2022, 2023, 2024}, cfg.Weather.DefaultYears)
	assert.Len(t, cfg.Weather.PrefetchPostalCodes, 9)
	assert.Equal(t, 4, cfg.Anomaly.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: json
store:
  driver: postgres
  postgres_dsn: postgres://localhost/strom
weather:
  timeout_secs: 5
  max_retries: 4
  geocode_enabled: true
anomaly:
  workers: 8
`
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/strom", cfg.Store.PostgresDSN)
	assert.Equal(t, 5, cfg.Weather.TimeoutSecs)
	assert.Equal(t, 4, cfg.Weather.MaxRetries)
	assert.True(t, cfg.Weather.GeocodeEnabled)
	assert.Equal(t, 8, cfg.Anomaly.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("STROMSENSE_LOG_LEVEL", "warn")
	t.Setenv("STROMSENSE_ANOMALY_WORKERS", "2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Anomaly.Workers)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdirTemp(t)
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &Config{
		Log:   LogConfig{Level: "info", Format: "xml"},
		Store: StoreConfig{Driver: "mysql"},
		OCR:   OCRConfig{TimeoutSecs: 0},
		Weather: WeatherConfig{
			TimeoutSecs:         0,
			MaxRetries:          -1,
			RequestsPerSecond:   0,
			PrefetchPostalCodes: []string{"123"},
		},
		Anomaly: AnomalyConfig{Workers: 0},
	}

	err := cfg.Validate()
	require.Error(t, err)
	var problems apperr.ConfigErrors
	require.ErrorAs(t, err, &problems)
	assert.Len(t, problems, 9)
	msg := err.Error()
	for _, field := range []string{
		"store.driver", "log.format", "ocr.timeout_secs", "weather.timeout_secs",
		"weather.max_retries", "weather.requests_per_second", "weather.archive_url",
		"weather.prefetch_postal_codes", "anomaly.workers",
	} {
		assert.Contains(t, msg, field)
	}
	assert.NotEmpty(t, cfg.Weather.CacheDir)
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	cfg := &Config{
		Log:     LogConfig{Format: "json"},
		Store:   StoreConfig{Driver: "postgres", MaxConns: 2, MinConns: 5},
		OCR:     OCRConfig{TimeoutSecs: 30},
		Weather: WeatherConfig{TimeoutSecs: 10, RequestsPerSecond: 1, ArchiveURL: "http://x"},
		Anomaly: AnomalyConfig{Workers: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.postgres_dsn")
	assert.Contains(t, err.Error(), "store.min_conns")
}
