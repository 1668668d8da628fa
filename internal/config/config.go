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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
)

// Config holds the application configuration
type Config struct {
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	OCR     OCRConfig     `yaml:"ocr" mapstructure:"ocr"`
	Weather WeatherConfig `yaml:"weather" mapstructure:"weather"`
	Anomaly AnomalyConfig `yaml:"anomaly" mapstructure:"anomaly"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`

	// Debugging
	Debug bool `yaml:"debug" mapstructure:"debug"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig selects and configures the persistence backend
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// OCRConfig points at the external text-extraction binaries
type OCRConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	TesseractPath string `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	Language      string `yaml:"language" mapstructure:"language"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// WeatherConfig configures the weather archive and geocoding collaborators
type WeatherConfig struct {
	ArchiveURL           string   `yaml:"archive_url" mapstructure:"archive_url"`
	GeocodeURL           string   `yaml:"geocode_url" mapstructure:"geocode_url"`
	GeocodeEnabled       bool     `yaml:"geocode_enabled" mapstructure:"geocode_enabled"`
	TimeoutSecs          int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries           int      `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond    float64  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	CacheDir             string   `yaml:"cache_dir" mapstructure:"cache_dir"`
	GeocodeCacheTTLHours int      `yaml:"geocode_cache_ttl_hours" mapstructure:"geocode_cache_ttl_hours"`
	DefaultYears         []int    `yaml:"default_years" mapstructure:"default_years"`
	PrefetchPostalCodes  []string `yaml:"prefetch_postal_codes" mapstructure:"prefetch_postal_codes"`
}

// AnomalyConfig tunes batch detection
type AnomalyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// ReportConfig tunes report rendering
type ReportConfig struct {
	ChartTheme string `yaml:"chart_theme" mapstructure:"chart_theme"`
}

// Timeout returns the weather request timeout as a duration
func (w WeatherConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSecs) * time.Second
}

// GeocodeCacheTTL returns the geocode cache lifetime as a duration
func (w WeatherConfig) GeocodeCacheTTL() time.Duration {
	return time.Duration(w.GeocodeCacheTTLHours) * time.Hour
}

// Timeout returns the OCR command timeout as a duration
func (o OCRConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSecs) * time.Second
}

// Load reads configuration from the given YAML file, or from config.yaml in
// the working directory or the default storage directory when path is empty.
// Environment variables prefixed with STROMSENSE_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultDataDir())
	}

	v.SetEnvPrefix("STROMSENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	dataDir := DefaultDataDir()

	v.SetDefault("debug", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", filepath.Join(dataDir, "strom-sense.db"))
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.language", "deu")
	v.SetDefault("ocr.timeout_secs", 60)
	v.SetDefault("weather.archive_url", "https://archive-api.open-meteo.com/v1/archive")
	v.SetDefault("weather.geocode_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("weather.geocode_enabled", false)
	v.SetDefault("weather.timeout_secs", 10)
	v.SetDefault("weather.max_retries", 2)
	v.SetDefault("weather.requests_per_second", 1.0)
	v.SetDefault("weather.cache_dir", dataDir)
	v.SetDefault("weather.geocode_cache_ttl_hours", 24*30)
	v.SetDefault("weather.default_years", []int{2022, 2023, 2024})
	v.SetDefault("weather.prefetch_postal_codes", []string{
		"10115", "20095", "30159", "40210", "50667", "60311", "70173", "80331", "90402",
	})
	v.SetDefault("anomaly.workers", 4)
	v.SetDefault("report.chart_theme", "light")
}

// DefaultDataDir returns the default directory for the database and caches
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".strom-sense"
	}
	return filepath.Join(home, ".config", "strom-sense")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var problems apperr.ConfigErrors

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			problems = append(problems, &apperr.ConfigError{Field: "store.sqlite_path", Message: "is required for the sqlite driver"})
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			problems = append(problems, &apperr.ConfigError{Field: "store.postgres_dsn", Message: "is required for the postgres driver"})
		}
		if c.Store.MinConns > c.Store.MaxConns {
			problems = append(problems, &apperr.ConfigError{Field: "store.min_conns", Message: "must not exceed store.max_conns"})
		}
	default:
		problems = append(problems, &apperr.ConfigError{Field: "store.driver", Value: c.Store.Driver, Message: "must be sqlite or postgres"})
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		problems = append(problems, &apperr.ConfigError{Field: "log.format", Value: c.Log.Format, Message: "must be json or console"})
	}

	if c.OCR.TimeoutSecs < 1 {
		problems = append(problems, &apperr.ConfigError{Field: "ocr.timeout_secs", Message: "must be at least 1"})
	}

	if c.Weather.TimeoutSecs < 1 || c.Weather.TimeoutSecs > 120 {
		problems = append(problems, &apperr.ConfigError{Field: "weather.timeout_secs", Message: "must be between 1 and 120"})
	}
	if c.Weather.MaxRetries < 0 || c.Weather.MaxRetries > 10 {
		problems = append(problems, &apperr.ConfigError{Field: "weather.max_retries", Message: "must be between 0 and 10"})
	}
	if c.Weather.RequestsPerSecond <= 0 {
		problems = append(problems, &apperr.ConfigError{Field: "weather.requests_per_second", Message: "must be positive"})
	}
	if c.Weather.ArchiveURL == "" {
		problems = append(problems, &apperr.ConfigError{Field: "weather.archive_url", Message: "is required"})
	}
	if c.Weather.GeocodeEnabled && c.Weather.GeocodeURL == "" {
		problems = append(problems, &apperr.ConfigError{Field: "weather.geocode_url", Message: "is required when geocoding is enabled"})
	}
	for _, pc := range c.Weather.PrefetchPostalCodes {
		if len(pc) != 5 {
			problems = append(problems, &apperr.ConfigError{Field: "weather.prefetch_postal_codes", Value: pc, Message: "postal codes have five digits"})
		}
	}

	if c.Anomaly.Workers < 1 || c.Anomaly.Workers > 64 {
		problems = append(problems, &apperr.ConfigError{Field: "anomaly.workers", Message: "must be between 1 and 64"})
	}

	// Set default cache directory if empty
	if c.Weather.CacheDir == "" {
		c.Weather.CacheDir = DefaultDataDir()
	}

	return problems.OrNil()
}
