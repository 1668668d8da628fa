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

// Package anomaly scores a bill with three independent detectors and
// combines them into one verdict.
package anomaly

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/peer"
	"github.com/Amenkhnisi/strom-sense/internal/weather"
)

// AnomalyThreshold is the score at which a single detector flags a bill
const AnomalyThreshold = 5.0

// Anomaly types
const (
	TypeNormal            = "normal"
	TypeConsumptionSpike  = "consumption_spike"
	TypeConsumptionDrop   = "consumption_drop"
	TypeModerateIncrease  = "moderate_increase"
	TypeModerateDecrease  = "moderate_decrease"
	TypePeerOutlierHigh   = "peer_outlier_high"
	TypePeerOutlierLow    = "peer_outlier_low"
	TypeAbovePeerAverage  = "above_peer_average"
	TypeUnexplainedSpike  = "unexplained_spike"
	TypeUnexplainedDrop   = "unexplained_drop"
	TypeModerateDeviation = "moderate_deviation"
)

// Reasons a detector had nothing to score
const (
	ReasonNoHistoricalData = "no_historical_data"
	ReasonNoPeerData       = "no_peer_data"
	ReasonNoBaselineData   = "no_baseline_data"
	ReasonNoWeatherData    = "no_weather_data"
)

var printer = message.NewPrinter(language.English)

// kwh formats a consumption value with thousands separators
func kwh(v float64) string {
	return printer.Sprintf("%.0f", v)
}

// Signal is the part of a detector result shared by all detectors. A
// result with a Reason carries no data and scores zero.
type Signal struct {
	HasAnomaly  bool    `json:"has_anomaly" yaml:"has_anomaly"`
	Score       float64 `json:"score" yaml:"score"`
	Type        string  `json:"anomaly_type,omitempty" yaml:"anomaly_type,omitempty"`
	Reason      string  `json:"reason,omitempty" yaml:"reason,omitempty"`
	Message     string  `json:"message,omitempty" yaml:"message,omitempty"`
	Explanation string  `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// HasData reports whether the detector could score the bill
func (s Signal) HasData() bool {
	return s.Reason == ""
}

func missing(reason, msg string) Signal {
	return Signal{Type: TypeNormal, Reason: reason, Message: msg}
}

// HistoricalResult compares a bill with the same household's previous year
type HistoricalResult struct {
	Signal              `yaml:",inline"`
	YoYChangePercent    float64 `json:"yoy_change_percent,omitempty" yaml:"yoy_change_percent,omitempty"`
	CurrentConsumption  float64 `json:"current_consumption,omitempty" yaml:"current_consumption,omitempty"`
	PreviousConsumption float64 `json:"previous_consumption,omitempty" yaml:"previous_consumption,omitempty"`
}

// Historical scores the year-over-year change recorded in the bill's metrics
func Historical(bill *model.Bill, m *model.BillMetrics) HistoricalResult {
	if m == nil || m.YoYConsumptionChangePct == nil || m.PreviousYearConsumptionKWh == nil {
		return HistoricalResult{Signal: missing(ReasonNoHistoricalData, "No previous year data available for comparison")}
	}

	change := *m.YoYConsumptionChangePct
	previous := *m.PreviousYearConsumptionKWh
	score := HistoricalScore(change)

	var explanation string
	if change > 0 {
		explanation = fmt.Sprintf("Your consumption increased from %s kWh to %s kWh, a %.1f%% increase compared to last year.",
			kwh(previous), kwh(bill.ConsumptionKWh), change)
	} else {
		explanation = fmt.Sprintf("Your consumption decreased from %s kWh to %s kWh, a %.1f%% decrease compared to last year.",
			kwh(previous), kwh(bill.ConsumptionKWh), math.Abs(change))
	}

	return HistoricalResult{
		Signal: Signal{
			HasAnomaly:  score >= AnomalyThreshold,
			Score:       score,
			Type:        ClassifyHistorical(change),
			Explanation: explanation,
		},
		YoYChangePercent:    change,
		CurrentConsumption:  bill.ConsumptionKWh,
		PreviousConsumption: previous,
	}
}

// HistoricalScore maps a year-over-year change in percent onto 0..10
func HistoricalScore(changePercent float64) float64 {
	a := math.Abs(changePercent)
	var score float64
	switch {
	case a < 10:
		score = a / 10 * 2
	case a < 20:
		score = 3 + (a-10)/10*2
	case a < 30:
		score = 6 + (a-20)/10
	case a < 40:
		score = 8 + (a-30)/10
	default:
		score = 10
	}
	return scalar.Round(score, 2)
}

// ClassifyHistorical names a year-over-year change. Its thresholds differ
// from HistoricalScore's bands.
func ClassifyHistorical(changePercent float64) string {
	switch {
	case math.Abs(changePercent) < 15:
		return TypeNormal
	case changePercent > 30:
		return TypeConsumptionSpike
	case changePercent < -30:
		return TypeConsumptionDrop
	case changePercent > 15:
		return TypeModerateIncrease
	default:
		return TypeModerateDecrease
	}
}

// PeerResult compares a bill with similar households
type PeerResult struct {
	Signal            `yaml:",inline"`
	ZScore            float64 `json:"z_score,omitempty" yaml:"z_score,omitempty"`
	UserConsumption   float64 `json:"user_consumption,omitempty" yaml:"user_consumption,omitempty"`
	PeerAverage       float64 `json:"peer_average,omitempty" yaml:"peer_average,omitempty"`
	PercentDifference float64 `json:"percent_difference,omitempty" yaml:"percent_difference,omitempty"`
	Percentile        string  `json:"percentile,omitempty" yaml:"percentile,omitempty"`
	PeerGroupSize     int     `json:"peer_group_size,omitempty" yaml:"peer_group_size,omitempty"`
}

// Peer scores a peer comparison. A nil comparison has no data.
func Peer(c *peer.Comparison) PeerResult {
	if c == nil {
		return PeerResult{Signal: missing(ReasonNoPeerData, "No peer data available for comparison")}
	}

	score := peer.Score(c.UserConsumptionKWh, c.PeerAvgKWh, c.PeerStdDevKWh)

	var explanation string
	if c.PercentDifference > 0 {
		explanation = fmt.Sprintf("Your consumption of %s kWh is %.1f%% higher than the average %s kWh for similar households.",
			kwh(c.UserConsumptionKWh), c.PercentDifference, kwh(c.PeerAvgKWh))
	} else {
		explanation = fmt.Sprintf("Your consumption of %s kWh is %.1f%% lower than the average %s kWh for similar households.",
			kwh(c.UserConsumptionKWh), math.Abs(c.PercentDifference), kwh(c.PeerAvgKWh))
	}

	return PeerResult{
		Signal: Signal{
			HasAnomaly:  score >= AnomalyThreshold,
			Score:       score,
			Type:        ClassifyPeer(c.ZScore),
			Explanation: explanation,
		},
		ZScore:            c.ZScore,
		UserConsumption:   c.UserConsumptionKWh,
		PeerAverage:       c.PeerAvgKWh,
		PercentDifference: c.PercentDifference,
		Percentile:        c.Percentile,
		PeerGroupSize:     c.PeerGroup.SampleSize,
	}
}

// ClassifyPeer names a z-score against the peer group
func ClassifyPeer(z float64) string {
	switch {
	case z > 2:
		return TypePeerOutlierHigh
	case z < -2:
		return TypePeerOutlierLow
	case z > 1:
		return TypeAbovePeerAverage
	default:
		return TypeNormal
	}
}

// PredictiveResult compares a bill with the previous year's consumption
// scaled by the weather difference
type PredictiveResult struct {
	Signal              `yaml:",inline"`
	ActualConsumption   float64 `json:"actual_consumption,omitempty" yaml:"actual_consumption,omitempty"`
	ExpectedConsumption float64 `json:"expected_consumption,omitempty" yaml:"expected_consumption,omitempty"`
	DeviationKWh        float64 `json:"deviation_kwh,omitempty" yaml:"deviation_kwh,omitempty"`
	DeviationPercent    float64 `json:"deviation_percent,omitempty" yaml:"deviation_percent,omitempty"`
}

// Predictive scores a bill against the weather-adjusted previous year.
// previous is the prior year's bill and factor the heating degree day ratio
// between the bill's year and the prior year; either may be nil.
func Predictive(bill, previous *model.Bill, factor *float64) PredictiveResult {
	if previous == nil || previous.ConsumptionKWh <= 0 {
		return PredictiveResult{Signal: missing(ReasonNoBaselineData, "No previous year data for weather adjustment")}
	}
	if factor == nil || *factor <= 0 {
		return PredictiveResult{Signal: missing(ReasonNoWeatherData, "Weather data not available")}
	}

	expected := weather.ExpectedConsumption(previous.ConsumptionKWh, *factor)
	actual := bill.ConsumptionKWh
	deviation := actual - expected
	deviationPct := deviation / expected * 100
	score := PredictiveScore(deviationPct)

	var explanation string
	if deviationPct > 0 {
		explanation = fmt.Sprintf("After adjusting for weather differences, your consumption of %s kWh is %.1f%% higher than the expected %s kWh based on %d patterns.",
			kwh(actual), deviationPct, kwh(expected), previous.BillYear)
	} else {
		explanation = fmt.Sprintf("After adjusting for weather differences, your consumption of %s kWh is %.1f%% lower than the expected %s kWh based on %d patterns.",
			kwh(actual), math.Abs(deviationPct), kwh(expected), previous.BillYear)
	}

	return PredictiveResult{
		Signal: Signal{
			HasAnomaly:  score >= AnomalyThreshold,
			Score:       score,
			Type:        ClassifyPredictive(deviationPct),
			Explanation: explanation,
		},
		ActualConsumption:   actual,
		ExpectedConsumption: expected,
		DeviationKWh:        scalar.Round(deviation, 2),
		DeviationPercent:    scalar.Round(deviationPct, 2),
	}
}

// PredictiveScore maps a deviation from the expected consumption in percent
// onto 0..10
func PredictiveScore(deviationPercent float64) float64 {
	a := math.Abs(deviationPercent)
	var score float64
	switch {
	case a < 15:
		score = a / 15 * 3
	case a < 25:
		score = 4 + (a-15)/10*2
	case a < 40:
		score = 7 + (a-25)/15*2
	default:
		score = 10
	}
	return scalar.Round(score, 2)
}

// ClassifyPredictive names a deviation from the expected consumption
func ClassifyPredictive(deviationPercent float64) string {
	switch {
	case math.Abs(deviationPercent) < 15:
		return TypeNormal
	case deviationPercent > 25:
		return TypeUnexplainedSpike
	case deviationPercent < -25:
		return TypeUnexplainedDrop
	default:
		return TypeModerateDeviation
	}
}
