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
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/logger"
	"github.com/Amenkhnisi/strom-sense/internal/metrics"
	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/peer"
	"github.com/Amenkhnisi/strom-sense/internal/store"
)

type fakeWeather struct {
	factor *float64
	calls  atomic.Int32
	onCall func()
}

func (f *fakeWeather) AdjustmentFactor(context.Context, string, int, int) (*float64, error) {
	f.calls.Add(1)
	if f.onCall != nil {
		f.onCall()
	}
	return f.factor, nil
}

type fixture struct {
	st      *store.SQLiteStore
	svc     *Service
	weather *fakeWeather
	n       int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "anomaly.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	w := &fakeWeather{factor: model.Float(1.1)}
	return &fixture{st: st, svc: NewService(st, w, logger.NewNop(), 2), weather: w}
}

func (f *fixture) user(t *testing.T) *model.UserProfile {
	t.Helper()
	f.n++
	u := &model.UserProfile{
		Email:         fmt.Sprintf("haushalt%d@example.de", f.n),
		Username:      fmt.Sprintf("haushalt%d", f.n),
		PostalCode:    "10115",
		HouseholdSize: model.Int(2),
		PropertyType:  model.String(model.PropertyApartment),
	}
	require.NoError(t, f.st.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) bill(t *testing.T, userID int64, year int, kwh float64) *model.Bill {
	t.Helper()
	b := &model.Bill{
		UserID:         userID,
		BillYear:       year,
		ConsumptionKWh: kwh,
		TotalCostEUR:   kwh * 0.35,
		BillingStart:   time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		BillingEnd:     time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
		TariffRate:     model.Float(0.35),
	}
	require.NoError(t, f.st.CreateBill(context.Background(), b))
	_, _, err := metrics.Recalculate(context.Background(), f.st, b.ID)
	require.NoError(t, err)
	return b
}

// seed stores a household whose 2024 bill jumped 43% over 2023, and two
// neighbours with ordinary 2024 bills
func (f *fixture) seed(t *testing.T) (target, neighbour *model.Bill) {
	ctx := context.Background()
	u := f.user(t)
	f.bill(t, u.UserID, 2023, 3000)
	target = f.bill(t, u.UserID, 2024, 4290)
	neighbour = f.bill(t, f.user(t).UserID, 2024, 3300)
	f.bill(t, f.user(t).UserID, 2024, 3500)

	_, err := peer.NewService(f.st, logger.NewNop(), 1).Compute(ctx, 2, model.PropertyApartment, 2024)
	require.NoError(t, err)
	return target, neighbour
}

func TestService_DetectForBill(t *testing.T) {
	f := newFixture(t)
	target, _ := f.seed(t)

	d, err := f.svc.DetectForBill(context.Background(), target.ID)
	require.NoError(t, err)

	assert.Equal(t, 10.0, d.Scores.Historical)
	assert.True(t, d.Results.Peer.HasData())
	assert.Equal(t, TypeAbovePeerAverage, d.Results.Peer.Type)
	assert.Equal(t, 7.67, d.Scores.Predictive)
	assert.Equal(t, CombinedScore(d.Scores), d.CombinedScore)
	assert.True(t, d.HasAnomaly)
	assert.Equal(t, model.SeverityCritical, d.Severity)
	assert.Equal(t, TypeConsumptionSpike, d.PrimaryType)
	require.NotNil(t, d.EstimatedExtraCostEUR)
	assert.Equal(t, 346.5, *d.EstimatedExtraCostEUR)
	assert.Nil(t, d.AnomalyID)

	list, err := f.svc.ListForUser(context.Background(), target.UserID, false)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_DetectForBill_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.DetectForBill(context.Background(), 77)
	assert.True(t, apperr.IsNotFound(err))
}

func TestService_NoWeatherData(t *testing.T) {
	f := newFixture(t)
	f.weather.factor = nil
	target, _ := f.seed(t)

	d, err := f.svc.DetectForBill(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, ReasonNoWeatherData, d.Results.Predictive.Reason)
	assert.Zero(t, d.Scores.Predictive)
}

func TestService_SaveDismissAndRedetect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target, neighbour := f.seed(t)

	d, rec, err := f.svc.DetectAndSave(ctx, target.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.NotNil(t, d.AnomalyID)
	assert.Equal(t, rec.ID, *d.AnomalyID)
	assert.Equal(t, TypeConsumptionSpike, rec.AnomalyType)
	require.NotNil(t, rec.ComparisonValue)
	assert.Equal(t, d.Results.Peer.PeerAverage, *rec.ComparisonValue)

	_, rec, err = f.svc.DetectAndSave(ctx, neighbour.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)

	dismissed, err := f.svc.Dismiss(ctx, *d.AnomalyID, model.String("false_positive"))
	require.NoError(t, err)
	assert.True(t, dismissed.IsDismissed)
	require.NotNil(t, dismissed.DismissedAt)
	assert.Equal(t, "false_positive", *dismissed.UserFeedback)

	_, err = f.svc.Dismiss(ctx, *d.AnomalyID, nil)
	require.NoError(t, err)

	_, rec, err = f.svc.DetectAndSave(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, *d.AnomalyID, rec.ID)
	assert.True(t, rec.IsDismissed)

	active, err := f.svc.ListForUser(ctx, target.UserID, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	stats, err := f.svc.Stats(ctx, 0, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Dismissed)
	assert.Equal(t, map[string]int{model.SeverityCritical: 1}, stats.BySeverity)
	assert.Equal(t, map[string]int{TypeConsumptionSpike: 1}, stats.ByType)

	_, err = f.svc.Dismiss(ctx, 999, nil)
	assert.True(t, apperr.IsNotFound(err))
}

func TestService_CheckBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target, _ := f.seed(t)

	res, err := f.svc.CheckBill(ctx, target.ID)
	require.NoError(t, err)
	assert.False(t, res.HasExistingDetection)
	require.NotNil(t, res.Detection)
	require.NotNil(t, res.Anomaly)

	res, err = f.svc.CheckBill(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, res.HasExistingDetection)
	assert.Nil(t, res.Detection)

	got, err := f.svc.Get(ctx, res.Anomaly.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, got.BillID)
}

func TestService_DetectForUser(t *testing.T) {
	f := newFixture(t)
	target, _ := f.seed(t)

	sum, err := f.svc.DetectForUser(context.Background(), target.UserID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.BillsChecked)
	assert.Equal(t, 1, sum.AnomaliesFound)
	require.Len(t, sum.Results, 2)

	_, err = f.svc.DetectForUser(context.Background(), target.UserID, 2019)
	assert.True(t, apperr.IsNotFound(err))
}

func TestService_BatchDetect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target, _ := f.seed(t)

	_, _, err := f.svc.DetectAndSave(ctx, target.ID)
	require.NoError(t, err)

	sum, err := f.svc.BatchDetect(ctx, 2024, true)
	require.NoError(t, err)
	assert.NotEmpty(t, sum.RequestID)
	assert.Equal(t, 3, sum.TotalBills)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 0, sum.AnomaliesFound)
	assert.Equal(t, 0, sum.Errors)

	sum, err = f.svc.BatchDetect(ctx, 2024, false)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 1, sum.AnomaliesFound)

	_, err = f.svc.BatchDetect(ctx, 2030, false)
	assert.True(t, apperr.IsNotFound(err))
}

func TestService_BatchDetect_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	svc := NewService(f.st, f.weather, logger.NewNop(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.weather.onCall = cancel

	sum, err := svc.BatchDetect(ctx, 2024, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, sum)
	assert.Equal(t, 3, sum.TotalBills)
	assert.Equal(t, 1, sum.Processed+sum.Skipped+sum.Errors)
}
