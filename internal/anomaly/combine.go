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

package anomaly

import (
	"strings"
	"time"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/Amenkhnisi/strom-sense/internal/model"
)

// Detector weights in the combined score
const (
	WeightHistorical = 0.4
	WeightPeer       = 0.3
	WeightPredictive = 0.3
)

// CombinedThreshold is the combined score at which a bill is anomalous
const CombinedThreshold = 4.0

// Scores holds the three detector scores
type Scores struct {
	Historical float64 `json:"historical" yaml:"historical"`
	Peer       float64 `json:"peer" yaml:"peer"`
	Predictive float64 `json:"predictive" yaml:"predictive"`
}

// Results holds the three detector results
type Results struct {
	Historical HistoricalResult `json:"historical" yaml:"historical"`
	Peer       PeerResult       `json:"peer" yaml:"peer"`
	Predictive PredictiveResult `json:"predictive" yaml:"predictive"`
}

// Detection is the combined verdict for one bill
type Detection struct {
	BillID                int64    `json:"bill_id" yaml:"bill_id"`
	UserID                int64    `json:"user_id" yaml:"user_id"`
	BillYear              int      `json:"bill_year" yaml:"bill_year"`
	HasAnomaly            bool     `json:"has_anomaly" yaml:"has_anomaly"`
	Severity              string   `json:"severity" yaml:"severity"`
	CombinedScore         float64  `json:"combined_score" yaml:"combined_score"`
	PrimaryType           string   `json:"primary_anomaly_type" yaml:"primary_anomaly_type"`
	Scores                Scores   `json:"detector_scores" yaml:"detector_scores"`
	Results               Results  `json:"detector_results" yaml:"detector_results"`
	Explanation           string   `json:"explanation" yaml:"explanation"`
	Recommendations       string   `json:"recommendations" yaml:"recommendations"`
	EstimatedExtraCostEUR *float64 `json:"estimated_extra_cost_euros" yaml:"estimated_extra_cost_euros"`
	AnomalyID             *int64   `json:"anomaly_id,omitempty" yaml:"anomaly_id,omitempty"`
}

// Combine merges the detector results for a bill into a verdict
func Combine(bill *model.Bill, h HistoricalResult, p PeerResult, pr PredictiveResult) *Detection {
	scores := Scores{Historical: h.Score, Peer: p.Score, Predictive: pr.Score}
	combined := CombinedScore(scores)
	primary := PrimaryType(h.Signal, p.Signal, pr.Signal)

	return &Detection{
		BillID:                bill.ID,
		UserID:                bill.UserID,
		BillYear:              bill.BillYear,
		HasAnomaly:            combined >= CombinedThreshold,
		Severity:              Severity(combined),
		CombinedScore:         combined,
		PrimaryType:           primary,
		Scores:                scores,
		Results:               Results{Historical: h, Peer: p, Predictive: pr},
		Explanation:           Explain(h.Signal, p.Signal, pr.Signal),
		Recommendations:       Recommendations(primary),
		EstimatedExtraCostEUR: ExtraCost(bill, h, pr),
	}
}

// CombinedScore is the weighted sum of the detector scores, rounded to two
// decimals
func CombinedScore(s Scores) float64 {
	return scalar.Round(s.Historical*WeightHistorical+s.Peer*WeightPeer+s.Predictive*WeightPredictive, 2)
}

// Severity maps a combined score onto a severity tier
func Severity(combined float64) string {
	switch {
	case combined < 4:
		return model.SeverityNormal
	case combined < 7:
		return model.SeverityWarning
	default:
		return model.SeverityCritical
	}
}

// PrimaryType is the type reported by the highest scoring detector, or
// normal when no detector reaches CombinedThreshold. Ties go to the detector
// evaluated first.
func PrimaryType(signals ...Signal) string {
	best := Signal{Type: TypeNormal}
	for _, s := range signals {
		if s.Score > best.Score {
			best = s
		}
	}
	if best.Score < CombinedThreshold || best.Type == "" {
		return TypeNormal
	}
	return best.Type
}

// Explain joins the explanations of the detectors that flagged the bill
func Explain(signals ...Signal) string {
	var parts []string
	for _, s := range signals {
		if s.HasAnomaly {
			parts = append(parts, s.Explanation)
		}
	}
	if len(parts) == 0 {
		return "Your energy consumption is within normal range across all metrics."
	}
	return strings.Join(parts, " ")
}

var recommendations = map[string][]string{
	TypeConsumptionSpike: {
		"Check for new appliances or changed usage patterns",
		"Review heating/cooling system efficiency",
		"Consider an energy audit",
	},
	TypePeerOutlierHigh: {
		"Your consumption is higher than similar households",
		"Check insulation and window seals",
		"Review thermostat settings",
		"Consider energy-efficient appliances",
	},
	TypeUnexplainedSpike: {
		"Consumption increase cannot be explained by weather",
		"Check for equipment malfunctions",
		"Review usage habits",
	},
}

var defaultRecommendations = []string{
	"Continue current energy practices",
	"Monitor for any changes",
}

// Recommendations returns the bullet list for a primary anomaly type
func Recommendations(primaryType string) string {
	items, ok := recommendations[primaryType]
	if !ok {
		items = defaultRecommendations
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "• " + item
	}
	return strings.Join(lines, "\n")
}

// ExtraCost estimates the cost of consumption above expectation: the
// weather-adjusted deviation when available, else the increase over last
// year, priced at the bill's tariff. It is nil without a tariff.
func ExtraCost(bill *model.Bill, h HistoricalResult, pr PredictiveResult) *float64 {
	if bill.TariffRate == nil || *bill.TariffRate <= 0 {
		return nil
	}

	var extra float64
	switch {
	case pr.HasData():
		extra = max(0, pr.DeviationKWh)
	case h.HasData():
		extra = max(0, h.CurrentConsumption-h.PreviousConsumption)
	}
	cost := scalar.Round(extra**bill.TariffRate, 2)
	return &cost
}

// Record converts a verdict into the persisted row. Dismissal fields are
// left to the store.
func (d *Detection) Record(consumption float64, at time.Time) *model.AnomalyDetection {
	rec := &model.AnomalyDetection{
		UserID:                d.UserID,
		BillID:                d.BillID,
		DetectionDate:         at,
		AnomalyType:           d.PrimaryType,
		SeverityLevel:         d.Severity,
		SeverityScore:         d.CombinedScore,
		HistoricalScore:       model.Float(d.Scores.Historical),
		PeerScore:             model.Float(d.Scores.Peer),
		PredictiveScore:       model.Float(d.Scores.Predictive),
		CurrentConsumptionKWh: consumption,
		ExplanationText:       d.Explanation,
		RecommendationsText:   d.Recommendations,
		EstimatedExtraCostEUR: d.EstimatedExtraCostEUR,
	}

	switch h, p := d.Results.Historical, d.Results.Peer; {
	case p.HasData():
		rec.ComparisonValue = model.Float(p.PeerAverage)
		rec.DeviationPercent = model.Float(p.PercentDifference)
	case h.HasData():
		rec.ComparisonValue = model.Float(h.PreviousConsumption)
		rec.DeviationPercent = model.Float(h.YoYChangePercent)
	}
	return rec
}
