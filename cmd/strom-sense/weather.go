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
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/store"
)

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Heating degree days and weather-adjusted consumption",
}

var weatherHDDCmd = &cobra.Command{
	Use:   "hdd <postal-code> <year>",
	Short: "Show heating degree days of a location and year",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, err := parseYear(args[1])
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")

		return withStore(cmd.Context(), func(st store.Store) error {
			svc, err := newWeatherService(st)
			if err != nil {
				return err
			}
			entry, err := svc.HeatingDegreeDays(cmd.Context(), args[0], year, force)
			if err != nil {
				return err
			}
			if entry == nil {
				appLogger.UserMessage("No weather data available for %s in %d.", args[0], year)
				return nil
			}
			return render(entry, func(w io.Writer) { formatWeather(w, []model.WeatherCacheEntry{*entry}) })
		})
	},
}

var weatherFactorCmd = &cobra.Command{
	Use:   "factor <postal-code> <current-year> <previous-year>",
	Short: "Show how much colder or warmer one year was than another",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := parseYear(args[1])
		if err != nil {
			return err
		}
		previous, err := parseYear(args[2])
		if err != nil {
			return err
		}

		return withStore(cmd.Context(), func(st store.Store) error {
			svc, err := newWeatherService(st)
			if err != nil {
				return err
			}
			factor, err := svc.AdjustmentFactor(cmd.Context(), args[0], current, previous)
			if err != nil {
				return err
			}
			out := map[string]any{
				"postal_code":       args[0],
				"current_year":      current,
				"previous_year":     previous,
				"adjustment_factor": factor,
			}
			return render(out, func(w io.Writer) {
				fmt.Fprintf(w, "Adjustment factor %d vs %d:\t%s\n", current, previous, optFloat(factor, "%.3f"))
			})
		})
	},
}

var weatherExpectedCmd = &cobra.Command{
	Use:   "expected <postal-code> <baseline-kwh> <baseline-year> <target-year>",
	Short: "Project a baseline consumption onto the weather of another year",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseline, err := parseKWh(args[1], "baseline-kwh")
		if err != nil {
			return err
		}
		baselineYear, err := parseYear(args[2])
		if err != nil {
			return err
		}
		targetYear, err := parseYear(args[3])
		if err != nil {
			return err
		}

		return withStore(cmd.Context(), func(st store.Store) error {
			svc, err := newWeatherService(st)
			if err != nil {
				return err
			}
			expected, err := svc.ExpectedConsumption(cmd.Context(), baseline, args[0], baselineYear, targetYear)
			if err != nil {
				return err
			}
			out := map[string]any{"baseline_kwh": baseline, "target_year": targetYear, "expected_kwh": expected}
			return render(out, func(w io.Writer) {
				fmt.Fprintf(w, "Expected consumption in %d:\t%s\n", targetYear, optFloat(expected, "%.2f kWh"))
			})
		})
	},
}

var weatherNormalizeCmd = &cobra.Command{
	Use:   "normalize <postal-code> <actual-kwh> <actual-year> <baseline-year>",
	Short: "Remove the weather effect from a consumption figure",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		actual, err := parseKWh(args[1], "actual-kwh")
		if err != nil {
			return err
		}
		actualYear, err := parseYear(args[2])
		if err != nil {
			return err
		}
		baselineYear, err := parseYear(args[3])
		if err != nil {
			return err
		}

		return withStore(cmd.Context(), func(st store.Store) error {
			svc, err := newWeatherService(st)
			if err != nil {
				return err
			}
			normalized, err := svc.NormalizedConsumption(cmd.Context(), actual, args[0], actualYear, baselineYear)
			if err != nil {
				return err
			}
			out := map[string]any{"actual_kwh": actual, "baseline_year": baselineYear, "normalized_kwh": normalized}
			return render(out, func(w io.Writer) {
				fmt.Fprintf(w, "Consumption at %d weather:\t%s\n", baselineYear, optFloat(normalized, "%.2f kWh"))
			})
		})
	},
}

var weatherCacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear cached weather data",
}

var weatherCacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached heating degree days",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			svc, err := newWeatherService(st)
			if err != nil {
				return err
			}
			entries, err := svc.ListCache(cmd.Context())
			if err != nil {
				return err
			}
			return render(entries, func(w io.Writer) { formatWeather(w, entries) })
		})
	},
}

var weatherCacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached heating degree days",
	RunE: func(cmd *cobra.Command, _ []string) error {
		postal, _ := cmd.Flags().GetString("postal-code")
		year, _ := cmd.Flags().GetInt("year")

		return withStore(cmd.Context(), func(st store.Store) error {
			svc, err := newWeatherService(st)
			if err != nil {
				return err
			}
			n, err := svc.ClearCache(cmd.Context(), postal, year)
			if err != nil {
				return err
			}
			appLogger.UserMessage("Removed %d cached entries.", n)
			return nil
		})
	},
}

var weatherPrefetchCmd = &cobra.Command{
	Use:   "prefetch",
	Short: "Warm the cache for common locations and years",
	RunE: func(cmd *cobra.Command, _ []string) error {
		years, _ := cmd.Flags().GetIntSlice("years")
		postalCodes, _ := cmd.Flags().GetStringSlice("postal-codes")
		if len(years) == 0 {
			years = cfg.Weather.DefaultYears
		}
		if len(postalCodes) == 0 {
			postalCodes = cfg.Weather.PrefetchPostalCodes
		}

		return withStore(cmd.Context(), func(st store.Store) error {
			svc, err := newWeatherService(st)
			if err != nil {
				return err
			}
			sum, err := svc.Prefetch(cmd.Context(), years, postalCodes)
			if err != nil {
				return err
			}
			return render(sum, func(w io.Writer) {
				fmt.Fprintln(w, "FETCHED\tCACHED\tFAILED")
				fmt.Fprintf(w, "%d\t%d\t%d\n", sum.Fetched, sum.Cached, sum.Failed)
			})
		})
	},
}

func formatWeather(w io.Writer, entries []model.WeatherCacheEntry) {
	fmt.Fprintln(w, "POSTAL CODE\tYEAR\tHDD\tAVG TEMP\tFETCHED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%.1f\t%s\t%s\n",
			e.PostalCode, e.Year, e.HeatingDegreeDays,
			optFloat(e.AverageTemperature, "%.2f °C"), e.FetchedAt.Format("2006-01-02 15:04"))
	}
}

func init() {
	weatherHDDCmd.Flags().Bool("force", false, "fetch again even when cached")

	weatherCacheClearCmd.Flags().String("postal-code", "", "only this postal code")
	weatherCacheClearCmd.Flags().Int("year", 0, "only this year")
	weatherCacheCmd.AddCommand(weatherCacheListCmd, weatherCacheClearCmd)

	weatherPrefetchCmd.Flags().IntSlice("years", nil, "years to fetch (default from configuration)")
	weatherPrefetchCmd.Flags().StringSlice("postal-codes", nil, "postal codes to fetch (default from configuration)")

	weatherCmd.AddCommand(weatherHDDCmd, weatherFactorCmd, weatherExpectedCmd, weatherNormalizeCmd, weatherCacheCmd, weatherPrefetchCmd)
	rootCmd.AddCommand(weatherCmd)
}
