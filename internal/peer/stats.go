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

// Package peer computes peer-group consumption statistics and compares a
// household against its group.
package peer

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"

	"github.com/Amenkhnisi/strom-sense/internal/model"
)

// MinSampleSize is the smallest group for which statistics are computed
const MinSampleSize = 3

// Percentile buckets of a household within its group
const (
	BucketBottom = "bottom 25%"
	BucketMiddle = "middle 50%"
	BucketTop    = "top 25%"
)

// Summarize computes the statistics of a peer group from its bills. It
// returns nil when fewer than MinSampleSize bills are given.
func Summarize(key model.PeerKey, bills []model.Bill) *model.PeerStatistics {
	n := len(bills)
	if n < MinSampleSize {
		return nil
	}

	consumptions := make([]float64, n)
	costs := make([]float64, n)
	for i, b := range bills {
		consumptions[i] = b.ConsumptionKWh
		costs[i] = b.TotalCostEUR
	}

	mean, stdDev := stat.MeanStdDev(consumptions, nil)
	if n < 2 || math.IsNaN(stdDev) {
		stdDev = 0
	}

	sorted := append([]float64(nil), consumptions...)
	sort.Float64s(sorted)

	var costPerKWh float64
	if total := floats.Sum(consumptions); total > 0 {
		costPerKWh = floats.Sum(costs) / total
	}

	return &model.PeerStatistics{
		HouseholdSize:     key.HouseholdSize,
		PropertyType:      key.PropertyType,
		Year:              key.Year,
		SampleSize:        n,
		AvgConsumptionKWh: scalar.Round(mean, 2),
		StdDevKWh:         scalar.Round(stdDev, 2),
		MedianKWh:         scalar.Round(median(sorted), 2),
		Percentile25KWh:   scalar.Round(sorted[n/4], 2),
		Percentile75KWh:   scalar.Round(sorted[3*n/4], 2),
		AvgCostEUR:        scalar.Round(stat.Mean(costs, nil), 2),
		AvgCostPerKWh:     scalar.Round(costPerKWh, 4),
	}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// ZScore returns the number of standard deviations value lies from mean,
// or 0 when stdDev is not positive
func ZScore(value, mean, stdDev float64) float64 {
	if stdDev <= 0 {
		return 0
	}
	return (value - mean) / stdDev
}

// Score maps the distance from the peer mean onto 0..10. One standard
// deviation scores 3, two score 7 and three or more score 10.
func Score(consumption, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	z := math.Abs(ZScore(consumption, mean, stdDev))

	var score float64
	switch {
	case z <= 1:
		score = z * 3
	case z <= 2:
		score = 3 + (z-1)*4
	case z <= 3:
		score = 7 + (z-2)*3
	default:
		score = 10
	}
	return scalar.Round(math.Min(score, 10), 2)
}

// Bucket places consumption into a percentile bucket of the group. Values
// exactly on a threshold fall into the outer bucket.
func Bucket(consumption float64, stats *model.PeerStatistics) string {
	switch {
	case consumption <= stats.Percentile25KWh:
		return BucketBottom
	case consumption >= stats.Percentile75KWh:
		return BucketTop
	default:
		return BucketMiddle
	}
}

// Classify names how far a z-score lies from the group
func Classify(z float64) string {
	switch a := math.Abs(z); {
	case a <= 1:
		return "normal"
	case a <= 2:
		return "moderate_outlier"
	default:
		return "significant_outlier"
	}
}
