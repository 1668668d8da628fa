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

package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amenkhnisi/strom-sense/internal/model"
)

func billsOf(kwh ...float64) []model.Bill {
	out := make([]model.Bill, len(kwh))
	for i, v := range kwh {
		out[i] = model.Bill{ConsumptionKWh: v, TotalCostEUR: v * 0.3}
	}
	return out
}

func TestSummarize(t *testing.T) {
	key := model.PeerKey{HouseholdSize: 2, PropertyType: model.PropertyApartment, Year: 2024}
	stats := Summarize(key, billsOf(3800, 3200, 4000, 3400, 3600))
	require.NotNil(t, stats)

	assert.Equal(t, key, stats.Key())
	assert.Equal(t, 5, stats.SampleSize)
	assert.Equal(t, 3600.0, stats.AvgConsumptionKWh)
	assert.Equal(t, 3600.0, stats.MedianKWh)
	assert.Equal(t, 3400.0, stats.Percentile25KWh)
	assert.Equal(t, 3800.0, stats.Percentile75KWh)
	assert.InDelta(t, 316.23, stats.StdDevKWh, 0.005)
	assert.Equal(t, 1080.0, stats.AvgCostEUR)
	assert.Equal(t, 0.3, stats.AvgCostPerKWh)
}

func TestSummarize_EvenSampleMedian(t *testing.T) {
	stats := Summarize(model.PeerKey{}, billsOf(1000, 2000, 3000, 4000))
	require.NotNil(t, stats)
	assert.Equal(t, 2500.0, stats.MedianKWh)
	assert.Equal(t, 2000.0, stats.Percentile25KWh)
	assert.Equal(t, 4000.0, stats.Percentile75KWh)
}

func TestSummarize_TooFewBills(t *testing.T) {
	assert.Nil(t, Summarize(model.PeerKey{}, billsOf(3000, 3500)))
	assert.Nil(t, Summarize(model.PeerKey{}, nil))
}

func TestSummarize_IdenticalValues(t *testing.T) {
	stats := Summarize(model.PeerKey{}, billsOf(2500, 2500, 2500))
	require.NotNil(t, stats)
	assert.Equal(t, 0.0, stats.StdDevKWh)
	assert.Equal(t, 0.0, Score(9000, stats.AvgConsumptionKWh, stats.StdDevKWh))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name        string
		consumption float64
		want        float64
	}{
		{"at mean", 3600, 0},
		{"one deviation above", 3916.23, 3},
		{"one deviation below", 3283.77, 3},
		{"two deviations", 4232.46, 7},
		{"three deviations", 4548.69, 10},
		{"far above", 5000, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.consumption, 3600, 316.23), 0.01)
		})
	}
}

func TestBucket(t *testing.T) {
	stats := &model.PeerStatistics{Percentile25KWh: 3400, Percentile75KWh: 3800}
	assert.Equal(t, BucketBottom, Bucket(3000, stats))
	assert.Equal(t, BucketBottom, Bucket(3400, stats))
	assert.Equal(t, BucketMiddle, Bucket(3600, stats))
	assert.Equal(t, BucketTop, Bucket(3800, stats))
	assert.Equal(t, BucketTop, Bucket(5000, stats))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "normal", Classify(-1))
	assert.Equal(t, "moderate_outlier", Classify(1.5))
	assert.Equal(t, "moderate_outlier", Classify(-2))
	assert.Equal(t, "significant_outlier", Classify(2.01))
}

func TestAgainst(t *testing.T) {
	stats := &model.PeerStatistics{
		HouseholdSize:     2,
		PropertyType:      model.PropertyAll,
		SampleSize:        5,
		AvgConsumptionKWh: 3600,
		StdDevKWh:         316.23,
		MedianKWh:         3600,
		Percentile25KWh:   3400,
		Percentile75KWh:   3800,
	}
	c := Against(4200, stats)
	assert.Equal(t, 600.0, c.DifferenceKWh)
	assert.Equal(t, 16.7, c.PercentDifference)
	assert.Equal(t, 1.9, c.ZScore)
	assert.Equal(t, BucketTop, c.Percentile)
	assert.Equal(t, "moderate_outlier", c.Classification)
	assert.Equal(t, Group{HouseholdSize: 2, PropertyType: model.PropertyAll, SampleSize: 5}, c.PeerGroup)
}

func TestRangesFor(t *testing.T) {
	r := RangesFor(&model.PeerStatistics{AvgConsumptionKWh: 3600, MedianKWh: 3550, Percentile25KWh: 3400, Percentile75KWh: 3800})
	assert.Equal(t, "< 3400 kWh", r.Excellent)
	assert.Equal(t, "3400 - 3600 kWh", r.Good)
	assert.Equal(t, "3600 - 3800 kWh", r.Average)
	assert.Equal(t, "> 3800 kWh", r.High)
}
