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
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/logger"
	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/store"
)

type fixture struct {
	st  *store.SQLiteStore
	svc *Service
	n   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "peer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return &fixture{st: st, svc: NewService(st, logger.NewNop(), 3)}
}

func (f *fixture) household(t *testing.T, size *int, property string, year int, kwh float64) *model.UserProfile {
	t.Helper()
	ctx := context.Background()
	f.n++
	u := &model.UserProfile{
		Email:         fmt.Sprintf("user%d@example.de", f.n),
		Username:      fmt.Sprintf("user%d", f.n),
		PostalCode:    "10115",
		HouseholdSize: size,
		PropertyType:  model.String(property),
	}
	require.NoError(t, f.st.CreateUser(ctx, u))
	require.NoError(t, f.st.CreateBill(ctx, &model.Bill{
		UserID:         u.UserID,
		BillYear:       year,
		ConsumptionKWh: kwh,
		TotalCostEUR:   kwh * 0.35,
		BillingStart:   time.Date(year-1, 12, 15, 0, 0, 0, 0, time.UTC),
		BillingEnd:     time.Date(year, 12, 14, 0, 0, 0, 0, time.UTC),
	}))
	return u
}

// seed creates three two-person apartments and two two-person houses
func (f *fixture) seed(t *testing.T) (apartment, house *model.UserProfile) {
	apartment = f.household(t, model.Int(2), model.PropertyApartment, 2024, 4000)
	f.household(t, model.Int(2), model.PropertyApartment, 2024, 3200)
	f.household(t, model.Int(2), model.PropertyApartment, 2024, 3600)
	house = f.household(t, model.Int(2), model.PropertyHouse, 2024, 3800)
	f.household(t, model.Int(2), model.PropertyHouse, 2024, 3400)
	return apartment, house
}

func TestService_Compute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t)

	stats, err := f.svc.Compute(ctx, 2, "", 2024)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, model.PropertyAll, stats.PropertyType)
	assert.Equal(t, 5, stats.SampleSize)
	assert.Equal(t, 3600.0, stats.AvgConsumptionKWh)

	stored, err := f.svc.Get(ctx, model.PeerKey{HouseholdSize: 2, Year: 2024})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 3600.0, stored.MedianKWh)

	stats, err = f.svc.Compute(ctx, 2, model.PropertyHouse, 2024)
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestService_CalculateAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t)

	sum, err := f.svc.CalculateAll(ctx, 2024, false)
	require.NoError(t, err)
	assert.Equal(t, CalculateSummary{Created: 2, Insufficient: 1}, sum)

	sum, err = f.svc.CalculateAll(ctx, 0, false)
	require.NoError(t, err)
	assert.Equal(t, CalculateSummary{Skipped: 2, Insufficient: 1}, sum)

	sum, err = f.svc.CalculateAll(ctx, 2024, true)
	require.NoError(t, err)
	assert.Equal(t, CalculateSummary{Updated: 2, Insufficient: 1}, sum)

	groups, err := f.svc.ListGroups(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	for _, g := range groups {
		if g.PropertyType == model.PropertyApartment {
			assert.Equal(t, "3200 - 4000 kWh", g.Range)
		}
	}
}

func TestService_Compare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apartment, house := f.seed(t)
	_, err := f.svc.CalculateAll(ctx, 2024, false)
	require.NoError(t, err)

	c, err := f.svc.Compare(ctx, apartment.UserID, 2024)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, model.PropertyApartment, c.PeerGroup.PropertyType)
	assert.Equal(t, 3, c.PeerGroup.SampleSize)
	assert.Equal(t, 1.0, c.ZScore)
	assert.Equal(t, "normal", c.Classification)
	assert.Equal(t, BucketTop, c.Percentile)

	c, err = f.svc.Compare(ctx, house.UserID, 2024)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, model.PropertyAll, c.PeerGroup.PropertyType)
	assert.Equal(t, 200.0, c.DifferenceKWh)
	assert.Equal(t, 0.63, c.ZScore)

	c, err = f.svc.Compare(ctx, house.UserID, 2020)
	require.NoError(t, err)
	assert.Nil(t, c)

	single := f.household(t, nil, model.PropertyHouse, 2024, 2000)
	c, err = f.svc.Compare(ctx, single.UserID, 2024)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = f.svc.Compare(ctx, 999, 2024)
	assert.True(t, apperr.IsNotFound(err))
}

func TestService_Benchmarks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t)
	_, err := f.svc.CalculateAll(ctx, 2024, false)
	require.NoError(t, err)

	bench, err := f.svc.Benchmarks(ctx, 2, 2024)
	require.NoError(t, err)
	require.NotNil(t, bench.Apartment)
	require.NotNil(t, bench.AllTypes)
	assert.Nil(t, bench.House)
	assert.Equal(t, "< 3400 kWh", bench.AllTypes.Excellent)

	_, err = f.svc.Benchmarks(ctx, 5, 2024)
	assert.True(t, apperr.IsNotFound(err))
}
