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

package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/model"
)

// queries implements every entity operation against a conn. Both backends
// and their transactions share it.
type queries struct {
	c conn
}

const userColumns = `user_id, email, username, postal_code, household_size, property_type, property_size_sqm, created_at`

func scanUser(row scanner) (*model.UserProfile, error) {
	var u model.UserProfile
	err := row.Scan(&u.UserID, &u.Email, &u.Username, &u.PostalCode,
		&u.HouseholdSize, &u.PropertyType, &u.PropertySizeSqm, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (q *queries) CreateUser(ctx context.Context, u *model.UserProfile) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	err := q.c.queryRow(ctx,
		`INSERT INTO user_profiles (email, username, postal_code, household_size, property_type, property_size_sqm, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING user_id`,
		u.Email, u.Username, u.PostalCode, u.HouseholdSize, u.PropertyType, u.PropertySizeSqm, u.CreatedAt,
	).Scan(&u.UserID)
	return eris.Wrapf(err, "store: insert user %s", u.Username)
}

func (q *queries) GetUser(ctx context.Context, userID int64) (*model.UserProfile, error) {
	u, err := scanUser(q.c.queryRow(ctx,
		`SELECT `+userColumns+` FROM user_profiles WHERE user_id = ?`, userID))
	if isNoRows(err) {
		return nil, apperr.NotFound("user", userID)
	}
	return u, eris.Wrapf(err, "store: get user %d", userID)
}

func (q *queries) ListUsers(ctx context.Context) ([]model.UserProfile, error) {
	rows, err := q.c.query(ctx, `SELECT `+userColumns+` FROM user_profiles ORDER BY user_id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list users")
	}
	defer rows.Close()

	var users []model.UserProfile
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan user")
		}
		users = append(users, *u)
	}
	return users, eris.Wrap(rows.Err(), "store: list users")
}

func (q *queries) HouseholdSizes(ctx context.Context) ([]int, error) {
	return q.ints(ctx, "household sizes",
		`SELECT DISTINCT household_size FROM user_profiles WHERE household_size IS NOT NULL ORDER BY household_size`)
}

func (q *queries) BillYears(ctx context.Context) ([]int, error) {
	return q.ints(ctx, "bill years", `SELECT DISTINCT bill_year FROM user_bills ORDER BY bill_year`)
}

func (q *queries) ints(ctx context.Context, what, query string) ([]int, error) {
	rows, err := q.c.query(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "store: list %s", what)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrapf(err, "store: scan %s", what)
		}
		out = append(out, v)
	}
	return out, eris.Wrapf(rows.Err(), "store: list %s", what)
}

const billColumns = `b.id, b.user_id, b.bill_year, b.consumption_kwh, b.total_cost_euros,
	b.billing_start_date, b.billing_end_date, b.tariff_rate,
	b.bill_year_confidence, b.consumption_kwh_confidence, b.total_cost_euros_confidence,
	b.billing_start_date_confidence, b.billing_end_date_confidence, b.tariff_rate_confidence,
	b.uploaded_at`

func scanBill(row scanner) (*model.Bill, error) {
	var b model.Bill
	c := &b.Confidence
	err := row.Scan(&b.ID, &b.UserID, &b.BillYear, &b.ConsumptionKWh, &b.TotalCostEUR,
		&b.BillingStart, &b.BillingEnd, &b.TariffRate,
		&c.BillYear, &c.Consumption, &c.TotalCost, &c.BillingStart, &c.BillingEnd, &c.TariffRate,
		&b.UploadedAt)
	if err != nil {
		return nil, err
	}
	b.BillingStart = b.BillingStart.UTC()
	b.BillingEnd = b.BillingEnd.UTC()
	return &b, nil
}

func (q *queries) CreateBill(ctx context.Context, b *model.Bill) error {
	if b.UploadedAt.IsZero() {
		b.UploadedAt = time.Now().UTC()
	}
	c := b.Confidence
	err := q.c.queryRow(ctx,
		`INSERT INTO user_bills (user_id, bill_year, consumption_kwh, total_cost_euros,
			billing_start_date, billing_end_date, tariff_rate,
			bill_year_confidence, consumption_kwh_confidence, total_cost_euros_confidence,
			billing_start_date_confidence, billing_end_date_confidence, tariff_rate_confidence, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		b.UserID, b.BillYear, b.ConsumptionKWh, b.TotalCostEUR,
		b.BillingStart, b.BillingEnd, b.TariffRate,
		c.BillYear, c.Consumption, c.TotalCost, c.BillingStart, c.BillingEnd, c.TariffRate, b.UploadedAt,
	).Scan(&b.ID)
	return eris.Wrapf(err, "store: insert bill for user %d", b.UserID)
}

func (q *queries) UpdateBill(ctx context.Context, b *model.Bill) error {
	c := b.Confidence
	n, err := q.c.exec(ctx,
		`UPDATE user_bills SET bill_year = ?, consumption_kwh = ?, total_cost_euros = ?,
			billing_start_date = ?, billing_end_date = ?, tariff_rate = ?,
			bill_year_confidence = ?, consumption_kwh_confidence = ?, total_cost_euros_confidence = ?,
			billing_start_date_confidence = ?, billing_end_date_confidence = ?, tariff_rate_confidence = ?
		WHERE id = ?`,
		b.BillYear, b.ConsumptionKWh, b.TotalCostEUR,
		b.BillingStart, b.BillingEnd, b.TariffRate,
		c.BillYear, c.Consumption, c.TotalCost, c.BillingStart, c.BillingEnd, c.TariffRate,
		b.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "store: update bill %d", b.ID)
	}
	if n == 0 {
		return apperr.NotFound("bill", b.ID)
	}
	return nil
}

func (q *queries) GetBill(ctx context.Context, billID int64) (*model.Bill, error) {
	b, err := scanBill(q.c.queryRow(ctx,
		`SELECT `+billColumns+` FROM user_bills b WHERE b.id = ?`, billID))
	if isNoRows(err) {
		return nil, apperr.NotFound("bill", billID)
	}
	return b, eris.Wrapf(err, "store: get bill %d", billID)
}

func (q *queries) FindBill(ctx context.Context, userID int64, year int) (*model.Bill, error) {
	b, err := scanBill(q.c.queryRow(ctx,
		`SELECT `+billColumns+` FROM user_bills b WHERE b.user_id = ? AND b.bill_year = ? ORDER BY b.id LIMIT 1`,
		userID, year))
	if isNoRows(err) {
		return nil, nil
	}
	return b, eris.Wrapf(err, "store: find bill for user %d in %d", userID, year)
}

func (q *queries) ListBills(ctx context.Context, filter BillFilter) ([]model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM user_bills b WHERE 1=1`
	var args []any
	if filter.UserID != 0 {
		query += ` AND b.user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Year != 0 {
		query += ` AND b.bill_year = ?`
		args = append(args, filter.Year)
	}
	query += ` ORDER BY b.bill_year, b.id`
	return q.bills(ctx, query, args...)
}

func (q *queries) CohortBills(ctx context.Context, householdSize int, propertyType string, year int) ([]model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM user_bills b
		JOIN user_profiles u ON u.user_id = b.user_id
		WHERE u.household_size = ? AND b.bill_year = ?`
	args := []any{householdSize, year}
	if propertyType != "" && propertyType != model.PropertyAll {
		query += ` AND u.property_type = ?`
		args = append(args, propertyType)
	}
	query += ` ORDER BY b.id`
	return q.bills(ctx, query, args...)
}

func (q *queries) bills(ctx context.Context, query string, args ...any) ([]model.Bill, error) {
	rows, err := q.c.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list bills")
	}
	defer rows.Close()

	var out []model.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan bill")
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "store: list bills")
}

// DeleteBill removes a bill together with its metrics and anomaly verdict
func (q *queries) DeleteBill(ctx context.Context, billID int64) error {
	for _, stmt := range []string{
		`DELETE FROM anomaly_detections WHERE bill_id = ?`,
		`DELETE FROM bill_metrics WHERE bill_id = ?`,
	} {
		if _, err := q.c.exec(ctx, stmt, billID); err != nil {
			return eris.Wrapf(err, "store: delete dependents of bill %d", billID)
		}
	}
	n, err := q.c.exec(ctx, `DELETE FROM user_bills WHERE id = ?`, billID)
	if err != nil {
		return eris.Wrapf(err, "store: delete bill %d", billID)
	}
	if n == 0 {
		return apperr.NotFound("bill", billID)
	}
	return nil
}

func (q *queries) UpsertMetrics(ctx context.Context, m *model.BillMetrics) error {
	if m.CalculatedAt.IsZero() {
		m.CalculatedAt = time.Now().UTC()
	}
	_, err := q.c.exec(ctx,
		`INSERT INTO bill_metrics (bill_id, days_in_billing_period, daily_avg_consumption_kwh, cost_per_kwh,
			yoy_consumption_change_percent, previous_year_consumption_kwh, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (bill_id) DO UPDATE SET
			days_in_billing_period = excluded.days_in_billing_period,
			daily_avg_consumption_kwh = excluded.daily_avg_consumption_kwh,
			cost_per_kwh = excluded.cost_per_kwh,
			yoy_consumption_change_percent = excluded.yoy_consumption_change_percent,
			previous_year_consumption_kwh = excluded.previous_year_consumption_kwh,
			calculated_at = excluded.calculated_at`,
		m.BillID, m.DaysInBillingPeriod, m.DailyAvgConsumptionKWh, m.CostPerKWh,
		m.YoYConsumptionChangePct, m.PreviousYearConsumptionKWh, m.CalculatedAt,
	)
	return eris.Wrapf(err, "store: upsert metrics for bill %d", m.BillID)
}

func (q *queries) GetMetrics(ctx context.Context, billID int64) (*model.BillMetrics, error) {
	var m model.BillMetrics
	err := q.c.queryRow(ctx,
		`SELECT bill_id, days_in_billing_period, daily_avg_consumption_kwh, cost_per_kwh,
			yoy_consumption_change_percent, previous_year_consumption_kwh, calculated_at
		FROM bill_metrics WHERE bill_id = ?`, billID,
	).Scan(&m.BillID, &m.DaysInBillingPeriod, &m.DailyAvgConsumptionKWh, &m.CostPerKWh,
		&m.YoYConsumptionChangePct, &m.PreviousYearConsumptionKWh, &m.CalculatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get metrics for bill %d", billID)
	}
	return &m, nil
}

const peerColumns = `household_size, property_type, year, sample_size, avg_consumption_kwh,
	std_dev_consumption_kwh, median_consumption_kwh, percentile_25_kwh, percentile_75_kwh,
	avg_cost_euros, avg_cost_per_kwh, calculated_at`

func scanPeer(row scanner) (*model.PeerStatistics, error) {
	var p model.PeerStatistics
	err := row.Scan(&p.HouseholdSize, &p.PropertyType, &p.Year, &p.SampleSize, &p.AvgConsumptionKWh,
		&p.StdDevKWh, &p.MedianKWh, &p.Percentile25KWh, &p.Percentile75KWh,
		&p.AvgCostEUR, &p.AvgCostPerKWh, &p.CalculatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *queries) UpsertPeerStats(ctx context.Context, p *model.PeerStatistics) error {
	if p.CalculatedAt.IsZero() {
		p.CalculatedAt = time.Now().UTC()
	}
	_, err := q.c.exec(ctx,
		`INSERT INTO peer_statistics (`+peerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (household_size, property_type, year) DO UPDATE SET
			sample_size = excluded.sample_size,
			avg_consumption_kwh = excluded.avg_consumption_kwh,
			std_dev_consumption_kwh = excluded.std_dev_consumption_kwh,
			median_consumption_kwh = excluded.median_consumption_kwh,
			percentile_25_kwh = excluded.percentile_25_kwh,
			percentile_75_kwh = excluded.percentile_75_kwh,
			avg_cost_euros = excluded.avg_cost_euros,
			avg_cost_per_kwh = excluded.avg_cost_per_kwh,
			calculated_at = excluded.calculated_at`,
		p.HouseholdSize, p.PropertyType, p.Year, p.SampleSize, p.AvgConsumptionKWh,
		p.StdDevKWh, p.MedianKWh, p.Percentile25KWh, p.Percentile75KWh,
		p.AvgCostEUR, p.AvgCostPerKWh, p.CalculatedAt,
	)
	return eris.Wrapf(err, "store: upsert peer statistics %d/%s/%d", p.HouseholdSize, p.PropertyType, p.Year)
}

func (q *queries) GetPeerStats(ctx context.Context, key model.PeerKey) (*model.PeerStatistics, error) {
	p, err := scanPeer(q.c.queryRow(ctx,
		`SELECT `+peerColumns+` FROM peer_statistics WHERE household_size = ? AND property_type = ? AND year = ?`,
		key.HouseholdSize, key.PropertyType, key.Year))
	if isNoRows(err) {
		return nil, nil
	}
	return p, eris.Wrapf(err, "store: get peer statistics %d/%s/%d", key.HouseholdSize, key.PropertyType, key.Year)
}

func (q *queries) ListPeerStats(ctx context.Context, year int) ([]model.PeerStatistics, error) {
	query := `SELECT ` + peerColumns + ` FROM peer_statistics`
	var args []any
	if year != 0 {
		query += ` WHERE year = ?`
		args = append(args, year)
	}
	query += ` ORDER BY year DESC, household_size, property_type`

	rows, err := q.c.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list peer statistics")
	}
	defer rows.Close()

	var out []model.PeerStatistics
	for rows.Next() {
		p, err := scanPeer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan peer statistics")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "store: list peer statistics")
}

const weatherColumns = `postal_code, year, heating_degree_days, average_temperature_celsius, fetched_at`

func scanWeather(row scanner) (*model.WeatherCacheEntry, error) {
	var e model.WeatherCacheEntry
	if err := row.Scan(&e.PostalCode, &e.Year, &e.HeatingDegreeDays, &e.AverageTemperature, &e.FetchedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (q *queries) GetWeather(ctx context.Context, postalCode string, year int) (*model.WeatherCacheEntry, error) {
	e, err := scanWeather(q.c.queryRow(ctx,
		`SELECT `+weatherColumns+` FROM weather_cache WHERE postal_code = ? AND year = ?`, postalCode, year))
	if isNoRows(err) {
		return nil, nil
	}
	return e, eris.Wrapf(err, "store: get weather %s/%d", postalCode, year)
}

func (q *queries) UpsertWeather(ctx context.Context, e *model.WeatherCacheEntry) error {
	if e.FetchedAt.IsZero() {
		e.FetchedAt = time.Now().UTC()
	}
	_, err := q.c.exec(ctx,
		`INSERT INTO weather_cache (`+weatherColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (postal_code, year) DO UPDATE SET
			heating_degree_days = excluded.heating_degree_days,
			average_temperature_celsius = excluded.average_temperature_celsius,
			fetched_at = excluded.fetched_at`,
		e.PostalCode, e.Year, e.HeatingDegreeDays, e.AverageTemperature, e.FetchedAt,
	)
	return eris.Wrapf(err, "store: upsert weather %s/%d", e.PostalCode, e.Year)
}

func (q *queries) ListWeather(ctx context.Context) ([]model.WeatherCacheEntry, error) {
	rows, err := q.c.query(ctx, `SELECT `+weatherColumns+` FROM weather_cache ORDER BY year DESC, postal_code`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list weather")
	}
	defer rows.Close()

	var out []model.WeatherCacheEntry
	for rows.Next() {
		e, err := scanWeather(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan weather")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "store: list weather")
}

// DeleteWeather removes cache entries. An empty postal code or zero year
// matches any value.
func (q *queries) DeleteWeather(ctx context.Context, postalCode string, year int) (int64, error) {
	query := `DELETE FROM weather_cache WHERE 1=1`
	var args []any
	if postalCode != "" {
		query += ` AND postal_code = ?`
		args = append(args, postalCode)
	}
	if year != 0 {
		query += ` AND year = ?`
		args = append(args, year)
	}
	n, err := q.c.exec(ctx, query, args...)
	return n, eris.Wrap(err, "store: delete weather")
}

const anomalyColumns = `a.id, a.user_id, a.bill_id, a.detection_date, a.anomaly_type, a.severity_level,
	a.severity_score, a.historical_score, a.peer_score, a.predictive_score, a.current_consumption_kwh,
	a.comparison_value, a.deviation_percent, a.explanation_text, a.recommendations_text,
	a.estimated_extra_cost_euros, a.is_dismissed, a.dismissed_at, a.user_feedback`

func scanAnomaly(row scanner) (*model.AnomalyDetection, error) {
	var a model.AnomalyDetection
	err := row.Scan(&a.ID, &a.UserID, &a.BillID, &a.DetectionDate, &a.AnomalyType, &a.SeverityLevel,
		&a.SeverityScore, &a.HistoricalScore, &a.PeerScore, &a.PredictiveScore, &a.CurrentConsumptionKWh,
		&a.ComparisonValue, &a.DeviationPercent, &a.ExplanationText, &a.RecommendationsText,
		&a.EstimatedExtraCostEUR, &a.IsDismissed, &a.DismissedAt, &a.UserFeedback)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertAnomaly writes the verdict for a bill, replacing an earlier one in
// place. Dismissal state of an existing row is kept.
func (q *queries) UpsertAnomaly(ctx context.Context, a *model.AnomalyDetection) error {
	if a.DetectionDate.IsZero() {
		a.DetectionDate = time.Now().UTC()
	}
	err := q.c.queryRow(ctx,
		`INSERT INTO anomaly_detections (user_id, bill_id, detection_date, anomaly_type, severity_level,
			severity_score, historical_score, peer_score, predictive_score, current_consumption_kwh,
			comparison_value, deviation_percent, explanation_text, recommendations_text, estimated_extra_cost_euros)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (bill_id) DO UPDATE SET
			user_id = excluded.user_id,
			detection_date = excluded.detection_date,
			anomaly_type = excluded.anomaly_type,
			severity_level = excluded.severity_level,
			severity_score = excluded.severity_score,
			historical_score = excluded.historical_score,
			peer_score = excluded.peer_score,
			predictive_score = excluded.predictive_score,
			current_consumption_kwh = excluded.current_consumption_kwh,
			comparison_value = excluded.comparison_value,
			deviation_percent = excluded.deviation_percent,
			explanation_text = excluded.explanation_text,
			recommendations_text = excluded.recommendations_text,
			estimated_extra_cost_euros = excluded.estimated_extra_cost_euros
		RETURNING id, is_dismissed, dismissed_at, user_feedback`,
		a.UserID, a.BillID, a.DetectionDate, a.AnomalyType, a.SeverityLevel,
		a.SeverityScore, a.HistoricalScore, a.PeerScore, a.PredictiveScore, a.CurrentConsumptionKWh,
		a.ComparisonValue, a.DeviationPercent, a.ExplanationText, a.RecommendationsText, a.EstimatedExtraCostEUR,
	).Scan(&a.ID, &a.IsDismissed, &a.DismissedAt, &a.UserFeedback)
	return eris.Wrapf(err, "store: upsert anomaly for bill %d", a.BillID)
}

func (q *queries) GetAnomaly(ctx context.Context, anomalyID int64) (*model.AnomalyDetection, error) {
	a, err := scanAnomaly(q.c.queryRow(ctx,
		`SELECT `+anomalyColumns+` FROM anomaly_detections a WHERE a.id = ?`, anomalyID))
	if isNoRows(err) {
		return nil, apperr.NotFound("anomaly", anomalyID)
	}
	return a, eris.Wrapf(err, "store: get anomaly %d", anomalyID)
}

func (q *queries) GetAnomalyForBill(ctx context.Context, billID int64) (*model.AnomalyDetection, error) {
	a, err := scanAnomaly(q.c.queryRow(ctx,
		`SELECT `+anomalyColumns+` FROM anomaly_detections a WHERE a.bill_id = ?`, billID))
	if isNoRows(err) {
		return nil, nil
	}
	return a, eris.Wrapf(err, "store: get anomaly for bill %d", billID)
}

func (q *queries) ListAnomalies(ctx context.Context, filter AnomalyFilter) ([]model.AnomalyDetection, error) {
	query := `SELECT ` + anomalyColumns + ` FROM anomaly_detections a
		JOIN user_bills b ON b.id = a.bill_id WHERE 1=1`
	var args []any
	if filter.UserID != 0 {
		query += ` AND a.user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Year != 0 {
		query += ` AND b.bill_year = ?`
		args = append(args, filter.Year)
	}
	if filter.OnlyActive {
		query += ` AND a.is_dismissed = ?`
		args = append(args, false)
	}
	query += ` ORDER BY a.detection_date DESC, a.id DESC`

	rows, err := q.c.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list anomalies")
	}
	defer rows.Close()

	var out []model.AnomalyDetection
	for rows.Next() {
		a, err := scanAnomaly(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan anomaly")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "store: list anomalies")
}

// DismissAnomaly marks a verdict as dismissed. Dismissing again resets the
// timestamp and feedback.
func (q *queries) DismissAnomaly(ctx context.Context, anomalyID int64, feedback *string, at time.Time) error {
	n, err := q.c.exec(ctx,
		`UPDATE anomaly_detections SET is_dismissed = ?, dismissed_at = ?, user_feedback = ? WHERE id = ?`,
		true, at, feedback, anomalyID,
	)
	if err != nil {
		return eris.Wrapf(err, "store: dismiss anomaly %d", anomalyID)
	}
	if n == 0 {
		return apperr.NotFound("anomaly", anomalyID)
	}
	return nil
}
