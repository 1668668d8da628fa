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

// Package weather turns daily temperature series into heating degree days
// and uses them to scale consumption between years.
package weather

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// BaseTemperature is the heating threshold in degrees Celsius
const BaseTemperature = 18.0

// HeatingDegreeDays sums max(0, BaseTemperature - t) over the readings,
// rounded to one decimal. Missing readings are skipped.
func HeatingDegreeDays(temps []*float64) float64 {
	deficits := make([]float64, 0, len(temps))
	for _, t := range temps {
		if t != nil && *t < BaseTemperature {
			deficits = append(deficits, BaseTemperature-*t)
		}
	}
	return scalar.Round(floats.Sum(deficits), 1)
}

// AverageTemperature returns the mean of the non-missing readings, or nil
// when there are none
func AverageTemperature(temps []*float64) *float64 {
	present := readings(temps)
	if len(present) == 0 {
		return nil
	}
	avg := scalar.Round(floats.Sum(present)/float64(len(present)), 2)
	return &avg
}

// Observed reports how many readings in the series are present
func Observed(temps []*float64) int {
	return len(readings(temps))
}

func readings(temps []*float64) []float64 {
	out := make([]float64, 0, len(temps))
	for _, t := range temps {
		if t != nil {
			out = append(out, *t)
		}
	}
	return out
}

// AdjustmentFactor is current/previous heating degree days rounded to three
// decimals. A factor above 1 means the current year was colder. It is nil
// when either value is missing or previous is zero.
func AdjustmentFactor(current, previous *float64) *float64 {
	if current == nil || previous == nil || *previous == 0 {
		return nil
	}
	f := scalar.Round(*current / *previous, 3)
	return &f
}

// ExpectedConsumption scales a baseline year's consumption by the weather
// factor, rounded to two decimals. The model is linear in heating demand.
func ExpectedConsumption(baseline, factor float64) float64 {
	return scalar.Round(baseline*factor, 2)
}

// NormalizedConsumption is what actual consumption would have been under the
// baseline year's weather, rounded to two decimals. It is 0 for a
// non-positive factor.
func NormalizedConsumption(actual, factor float64) float64 {
	if factor <= 0 {
		return 0
	}
	return scalar.Round(actual/factor, 2)
}
