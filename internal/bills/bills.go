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

package bills

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/logger"
	"github.com/Amenkhnisi/strom-sense/internal/metrics"
	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/ocr"
	"github.com/Amenkhnisi/strom-sense/internal/store"
)

// Accepted bill years
const (
	MinYear = 2000
	MaxYear = 2100
)

// Service stores bills and runs the invoice ingest pipeline
type Service struct {
	store  store.Store
	source ocr.Source
	log    *logger.Logger
}

// NewService creates a bill service. source may be nil when only CRUD is needed.
func NewService(st store.Store, source ocr.Source, log *logger.Logger) *Service {
	return &Service{store: st, source: source, log: log.WithComponent("bills")}
}

// Validate checks a bill before it is stored and reports every problem at once
func Validate(b *model.Bill) error {
	var problems apperr.ValidationErrors

	if b.UserID <= 0 {
		problems = append(problems, &apperr.ValidationError{Field: "user_id", Message: "is required"})
	}
	if b.BillYear < MinYear || b.BillYear > MaxYear {
		problems = append(problems, &apperr.ValidationError{
			Field:   "bill_year",
			Value:   strconv.Itoa(b.BillYear),
			Message: fmt.Sprintf("must be between %d and %d", MinYear, MaxYear),
		})
	}
	if b.ConsumptionKWh < 0 {
		problems = append(problems, &apperr.ValidationError{Field: "consumption_kwh", Message: "must not be negative"})
	}
	if b.TotalCostEUR < 0 {
		problems = append(problems, &apperr.ValidationError{Field: "total_cost_euros", Message: "must not be negative"})
	}
	if b.BillingStart.IsZero() || b.BillingEnd.IsZero() {
		problems = append(problems, &apperr.ValidationError{Field: "billing_period", Message: "start and end dates are required"})
	} else if !b.BillingEnd.After(b.BillingStart) {
		problems = append(problems, &apperr.ValidationError{
			Field:   "billing_end_date",
			Value:   b.BillingEnd.Format(model.DateLayout),
			Message: "must be after billing_start_date",
		})
	}
	if b.TariffRate != nil && *b.TariffRate < 0 {
		problems = append(problems, &apperr.ValidationError{Field: "tariff_rate", Message: "must not be negative"})
	}

	return problems.OrNil()
}

// Create validates and stores a bill, then derives its metrics in the same
// transaction. A user holds at most one bill per year.
func (s *Service) Create(ctx context.Context, b *model.Bill) (*model.BillMetrics, error) {
	if err := Validate(b); err != nil {
		return nil, err
	}

	var m *model.BillMetrics
	err := s.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetUser(ctx, b.UserID); err != nil {
			return err
		}
		existing, err := tx.FindBill(ctx, b.UserID, b.BillYear)
		if err != nil {
			return err
		}
		if existing != nil {
			return &apperr.ValidationError{
				Field:   "bill_year",
				Value:   strconv.Itoa(b.BillYear),
				Message: fmt.Sprintf("user already has bill %d for this year", existing.ID),
			}
		}
		if err := tx.CreateBill(ctx, b); err != nil {
			return err
		}
		if m, _, err = metrics.Recalculate(ctx, tx, b.ID); err != nil {
			return err
		}
		return refreshFollowingYear(ctx, tx, b.UserID, b.BillYear)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Bill stored",
		"bill_id", b.ID,
		"user_id", b.UserID,
		"year", b.BillYear,
		"consumption_kwh", b.ConsumptionKWh,
	)
	return m, nil
}

// Get returns a bill by id
func (s *Service) Get(ctx context.Context, billID int64) (*model.Bill, error) {
	return s.store.GetBill(ctx, billID)
}

// List returns the bills of a user, or of everyone when userID is 0
func (s *Service) List(ctx context.Context, userID int64) ([]model.Bill, error) {
	if userID != 0 {
		if _, err := s.store.GetUser(ctx, userID); err != nil {
			return nil, err
		}
	}
	bills, err := s.store.ListBills(ctx, store.BillFilter{UserID: userID})
	if err != nil {
		return nil, eris.Wrap(err, "bills: list")
	}
	return bills, nil
}

// Delete removes a bill together with its metrics and anomaly record
func (s *Service) Delete(ctx context.Context, billID int64) error {
	err := s.store.InTx(ctx, func(tx store.Store) error {
		b, err := tx.GetBill(ctx, billID)
		if err != nil {
			return err
		}
		if err := tx.DeleteBill(ctx, billID); err != nil {
			return err
		}
		return refreshFollowingYear(ctx, tx, b.UserID, b.BillYear)
	})
	if err != nil {
		return err
	}
	s.log.Info("Bill deleted", "bill_id", billID)
	return nil
}

// refreshFollowingYear recalculates the metrics of the user's bill for
// year+1, whose year-over-year figures depend on the bill for year.
func refreshFollowingYear(ctx context.Context, tx store.Store, userID int64, year int) error {
	next, err := tx.FindBill(ctx, userID, year+1)
	if err != nil || next == nil {
		return err
	}
	_, _, err = metrics.Recalculate(ctx, tx, next.ID)
	return err
}
