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

// Package model defines the entities persisted by strom-sense.
package model

import (
	"time"
)

// DateLayout is the ISO 8601 calendar date format used for billing periods
const DateLayout = "2006-01-02"

// Property types recognised for peer grouping
const (
	PropertyApartment = "apartment"
	PropertyHouse     = "house"
	PropertyAll       = "all"
)

// UserProfile represents a household that uploads bills
type UserProfile struct {
	UserID          int64     `json:"user_id" yaml:"user_id"`
	Email           string    `json:"email" yaml:"email"`
	Username        string    `json:"username" yaml:"username"`
	PostalCode      string    `json:"postal_code" yaml:"postal_code"`
	HouseholdSize   *int      `json:"household_size,omitempty" yaml:"household_size,omitempty"`
	PropertyType    *string   `json:"property_type,omitempty" yaml:"property_type,omitempty"`
	PropertySizeSqm *float64  `json:"property_size_sqm,omitempty" yaml:"property_size_sqm,omitempty"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
}

// BillConfidence carries the extraction confidence of each bill attribute
// that was read from an invoice. Nil means the value was entered by hand.
type BillConfidence struct {
	BillYear     *float64 `json:"bill_year,omitempty" yaml:"bill_year,omitempty"`
	Consumption  *float64 `json:"consumption_kwh,omitempty" yaml:"consumption_kwh,omitempty"`
	TotalCost    *float64 `json:"total_cost_euros,omitempty" yaml:"total_cost_euros,omitempty"`
	BillingStart *float64 `json:"billing_start_date,omitempty" yaml:"billing_start_date,omitempty"`
	BillingEnd   *float64 `json:"billing_end_date,omitempty" yaml:"billing_end_date,omitempty"`
	TariffRate   *float64 `json:"tariff_rate,omitempty" yaml:"tariff_rate,omitempty"`
}

// Bill is one annual energy bill of a user
type Bill struct {
	ID             int64          `json:"id" yaml:"id"`
	UserID         int64          `json:"user_id" yaml:"user_id"`
	BillYear       int            `json:"bill_year" yaml:"bill_year"`
	ConsumptionKWh float64        `json:"consumption_kwh" yaml:"consumption_kwh"`
	TotalCostEUR   float64        `json:"total_cost_euros" yaml:"total_cost_euros"`
	BillingStart   time.Time      `json:"billing_start_date" yaml:"billing_start_date"`
	BillingEnd     time.Time      `json:"billing_end_date" yaml:"billing_end_date"`
	TariffRate     *float64       `json:"tariff_rate,omitempty" yaml:"tariff_rate,omitempty"` // EUR per kWh
	Confidence     BillConfidence `json:"confidence" yaml:"confidence"`
	UploadedAt     time.Time      `json:"uploaded_at" yaml:"uploaded_at"`
}

// BillMetrics holds values derived from a bill and its prior-year bill
type BillMetrics struct {
	BillID                     int64     `json:"bill_id" yaml:"bill_id"`
	DaysInBillingPeriod        int       `json:"days_in_billing_period" yaml:"days_in_billing_period"`
	DailyAvgConsumptionKWh     float64   `json:"daily_avg_consumption_kwh" yaml:"daily_avg_consumption_kwh"`
	CostPerKWh                 float64   `json:"cost_per_kwh" yaml:"cost_per_kwh"`
	YoYConsumptionChangePct    *float64  `json:"yoy_consumption_change_percent" yaml:"yoy_consumption_change_percent"`
	PreviousYearConsumptionKWh *float64  `json:"previous_year_consumption_kwh" yaml:"previous_year_consumption_kwh"`
	CalculatedAt               time.Time `json:"calculated_at" yaml:"calculated_at"`
}

// PeerStatistics summarises the consumption of one peer group in one year
type PeerStatistics struct {
	HouseholdSize     int       `json:"household_size" yaml:"household_size"`
	PropertyType      string    `json:"property_type" yaml:"property_type"`
	Year              int       `json:"year" yaml:"year"`
	SampleSize        int       `json:"sample_size" yaml:"sample_size"`
	AvgConsumptionKWh float64   `json:"avg_consumption_kwh" yaml:"avg_consumption_kwh"`
	StdDevKWh         float64   `json:"std_dev_consumption_kwh" yaml:"std_dev_consumption_kwh"`
	MedianKWh         float64   `json:"median_consumption_kwh" yaml:"median_consumption_kwh"`
	Percentile25KWh   float64   `json:"percentile_25_kwh" yaml:"percentile_25_kwh"`
	Percentile75KWh   float64   `json:"percentile_75_kwh" yaml:"percentile_75_kwh"`
	AvgCostEUR        float64   `json:"avg_cost_euros" yaml:"avg_cost_euros"`
	AvgCostPerKWh     float64   `json:"avg_cost_per_kwh" yaml:"avg_cost_per_kwh"`
	CalculatedAt      time.Time `json:"calculated_at" yaml:"calculated_at"`
}

// PeerKey identifies a peer group
type PeerKey struct {
	HouseholdSize int
	PropertyType  string
	Year          int
}

// Key returns the natural key of the statistics row
func (p *PeerStatistics) Key() PeerKey {
	return PeerKey{HouseholdSize: p.HouseholdSize, PropertyType: p.PropertyType, Year: p.Year}
}

// WeatherCacheEntry caches the heating degree days of a postal code and year
type WeatherCacheEntry struct {
	PostalCode         string    `json:"postal_code" yaml:"postal_code"`
	Year               int       `json:"year" yaml:"year"`
	HeatingDegreeDays  float64   `json:"heating_degree_days" yaml:"heating_degree_days"`
	AverageTemperature *float64  `json:"average_temperature_celsius,omitempty" yaml:"average_temperature_celsius,omitempty"`
	FetchedAt          time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// Severity tiers of a combined anomaly verdict
const (
	SeverityNormal   = "normal"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// AnomalyDetection is the persisted verdict for one bill
type AnomalyDetection struct {
	ID                    int64      `json:"id" yaml:"id"`
	UserID                int64      `json:"user_id" yaml:"user_id"`
	BillID                int64      `json:"bill_id" yaml:"bill_id"`
	DetectionDate         time.Time  `json:"detection_date" yaml:"detection_date"`
	AnomalyType           string     `json:"anomaly_type" yaml:"anomaly_type"`
	SeverityLevel         string     `json:"severity_level" yaml:"severity_level"`
	SeverityScore         float64    `json:"severity_score" yaml:"severity_score"`
	HistoricalScore       *float64   `json:"historical_score" yaml:"historical_score"`
	PeerScore             *float64   `json:"peer_score" yaml:"peer_score"`
	PredictiveScore       *float64   `json:"predictive_score" yaml:"predictive_score"`
	CurrentConsumptionKWh float64    `json:"current_consumption_kwh" yaml:"current_consumption_kwh"`
	ComparisonValue       *float64   `json:"comparison_value" yaml:"comparison_value"`
	DeviationPercent      *float64   `json:"deviation_percent" yaml:"deviation_percent"`
	ExplanationText       string     `json:"explanation_text" yaml:"explanation_text"`
	RecommendationsText   string     `json:"recommendations_text" yaml:"recommendations_text"`
	EstimatedExtraCostEUR *float64   `json:"estimated_extra_cost_euros" yaml:"estimated_extra_cost_euros"`
	IsDismissed           bool       `json:"is_dismissed" yaml:"is_dismissed"`
	DismissedAt           *time.Time `json:"dismissed_at,omitempty" yaml:"dismissed_at,omitempty"`
	UserFeedback          *string    `json:"user_feedback,omitempty" yaml:"user_feedback,omitempty"`
}

// Float returns a pointer to v
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }

// String returns a pointer to v
func String(v string) *string { return &v }
