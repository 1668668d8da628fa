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

// Package metrics derives per-bill figures from a bill and its prior-year bill.
package metrics

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/Amenkhnisi/strom-sense/internal/logger"
	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/store"
)

const day = 24 * time.Hour

// Calculate derives metrics for bill. previous is the same user's bill of
// the prior year, or nil when there is none.
func Calculate(bill *model.Bill, previous *model.Bill) model.BillMetrics {
	days := DaysBetween(bill.BillingStart, bill.BillingEnd)

	var dailyAvg float64
	if days > 0 {
		dailyAvg = bill.ConsumptionKWh / float64(days)
	}

	var costPerKWh float64
	if bill.ConsumptionKWh > 0 {
		costPerKWh = bill.TotalCostEUR / bill.ConsumptionKWh
	}

	m := model.BillMetrics{
		BillID:                 bill.ID,
		DaysInBillingPeriod:    days,
		DailyAvgConsumptionKWh: scalar.Round(dailyAvg, 2),
		CostPerKWh:             scalar.Round(costPerKWh, 4),
	}

	if previous != nil {
		m.PreviousYearConsumptionKWh = model.Float(scalar.Round(previous.ConsumptionKWh, 2))
		if change, ok := YoYChange(bill.ConsumptionKWh, previous.ConsumptionKWh); ok {
			m.YoYConsumptionChangePct = model.Float(scalar.Round(change, 2))
		}
	}
	return m
}

// DaysBetween returns the number of calendar days from start to end
func DaysBetween(start, end time.Time) int {
	s := start.UTC().Truncate(day)
	e := end.UTC().Truncate(day)
	return int(e.Sub(s) / day)
}

// YoYChange returns the percent change from previous to current. It
// reports false when previous is not positive.
func YoYChange(current, previous float64) (float64, bool) {
	if previous <= 0 {
		return 0, false
	}
	return (current - previous) / previous * 100, true
}

// Summary counts the outcome of a multi-bill calculation
type Summary struct {
	Total     int `json:"total" yaml:"total"`
	Processed int `json:"processed" yaml:"processed"`
	Created   int `json:"created" yaml:"created"`
	Updated   int `json:"updated" yaml:"updated"`
	Errors    int `json:"errors" yaml:"errors"`
}

// Service persists bill metrics
type Service struct {
	store store.Store
	log   *logger.Logger
}

// NewService creates a metrics service
func NewService(st store.Store, log *logger.Logger) *Service {
	return &Service{store: st, log: log.WithComponent("metrics")}
}

// CalculateForBill recalculates and stores the metrics of one bill inside a
// single transaction
func (s *Service) CalculateForBill(ctx context.Context, billID int64) (*model.BillMetrics, error) {
	var out *model.BillMetrics
	err := s.store.InTx(ctx, func(tx store.Store) error {
		m, _, err := Recalculate(ctx, tx, billID)
		out = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Recalculate derives and upserts the metrics of a bill using st, which is
// usually bound to a caller's transaction. created reports whether no
// metrics existed before.
func Recalculate(ctx context.Context, st store.Store, billID int64) (m *model.BillMetrics, created bool, err error) {
	bill, err := st.GetBill(ctx, billID)
	if err != nil {
		return nil, false, err
	}
	previous, err := st.FindBill(ctx, bill.UserID, bill.BillYear-1)
	if err != nil {
		return nil, false, err
	}
	existing, err := st.GetMetrics(ctx, billID)
	if err != nil {
		return nil, false, err
	}

	calculated := Calculate(bill, previous)
	calculated.CalculatedAt = time.Now().UTC()
	if err := st.UpsertMetrics(ctx, &calculated); err != nil {
		return nil, false, err
	}
	return &calculated, existing == nil, nil
}

// CalculateForUser recalculates the metrics of every bill of a user
func (s *Service) CalculateForUser(ctx context.Context, userID int64) (Summary, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return Summary{}, err
	}
	bills, err := s.store.ListBills(ctx, store.BillFilter{UserID: userID})
	if err != nil {
		return Summary{}, err
	}
	return s.calculateAll(ctx, bills), nil
}

// RecalculateAll recalculates the metrics of every stored bill
func (s *Service) RecalculateAll(ctx context.Context) (Summary, error) {
	bills, err := s.store.ListBills(ctx, store.BillFilter{})
	if err != nil {
		return Summary{}, eris.Wrap(err, "metrics: list bills")
	}
	return s.calculateAll(ctx, bills), nil
}

func (s *Service) calculateAll(ctx context.Context, bills []model.Bill) Summary {
	sum := Summary{Total: len(bills)}
	for i, b := range bills {
		var created bool
		err := s.store.InTx(ctx, func(tx store.Store) error {
			var err error
			_, created, err = Recalculate(ctx, tx, b.ID)
			return err
		})
		if err != nil {
			s.log.Error("Metrics calculation failed", "bill_id", b.ID, "error", err)
			sum.Errors++
			continue
		}
		sum.Processed++
		if created {
			sum.Created++
		} else {
			sum.Updated++
		}
		if (i+1)%50 == 0 {
			s.log.LogBatchProgress("metrics", i+1, len(bills))
		}
	}
	s.log.Info("Metrics calculated", "total", sum.Total, "created", sum.Created, "updated", sum.Updated, "errors", sum.Errors)
	return sum
}

// GetForBill returns stored metrics, or nil when none were calculated
func (s *Service) GetForBill(ctx context.Context, billID int64) (*model.BillMetrics, error) {
	if _, err := s.store.GetBill(ctx, billID); err != nil {
		return nil, err
	}
	return s.store.GetMetrics(ctx, billID)
}
