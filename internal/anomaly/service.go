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
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/logger"
	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/peer"
	"github.com/Amenkhnisi/strom-sense/internal/store"
)

// FactorSource provides the heating degree day ratio between two years
type FactorSource interface {
	AdjustmentFactor(ctx context.Context, postalCode string, currentYear, previousYear int) (*float64, error)
}

// Service runs the detectors against stored bills and persists verdicts
type Service struct {
	store   store.Store
	weather FactorSource
	log     *logger.Logger
	workers int
	now     func() time.Time
}

// NewService creates an anomaly service. weather may be nil, in which case
// the predictive detector never has weather data.
func NewService(st store.Store, weather FactorSource, log *logger.Logger, workers int) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		store:   st,
		weather: weather,
		log:     log.WithComponent("anomaly"),
		workers: workers,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// inputs are the values read before detection that need no transaction
type inputs struct {
	bill     *model.Bill
	user     *model.UserProfile
	previous *model.Bill
	factor   *float64
}

// prepare loads the bill and resolves the weather factor. The weather
// lookup may reach an external service, so it runs outside any transaction.
func (s *Service) prepare(ctx context.Context, billID int64) (*inputs, error) {
	bill, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, bill.UserID)
	if err != nil {
		return nil, err
	}
	previous, err := s.store.FindBill(ctx, bill.UserID, bill.BillYear-1)
	if err != nil {
		return nil, err
	}

	in := &inputs{bill: bill, user: user, previous: previous}
	if previous != nil && s.weather != nil {
		in.factor, err = s.weather.AdjustmentFactor(ctx, user.PostalCode, bill.BillYear, previous.BillYear)
		if err != nil {
			return nil, eris.Wrapf(err, "anomaly: weather factor for bill %d", billID)
		}
	}
	return in, nil
}

// detect runs the three detectors using st for the metrics and peer reads
func detect(ctx context.Context, st store.Store, in *inputs) (*Detection, error) {
	metrics, err := st.GetMetrics(ctx, in.bill.ID)
	if err != nil {
		return nil, err
	}
	comparison, err := peer.CompareWith(ctx, st, in.bill.UserID, in.bill.BillYear)
	if err != nil {
		return nil, err
	}

	return Combine(in.bill,
		Historical(in.bill, metrics),
		Peer(comparison),
		Predictive(in.bill, in.previous, in.factor),
	), nil
}

// DetectForBill runs detection without persisting anything
func (s *Service) DetectForBill(ctx context.Context, billID int64) (*Detection, error) {
	in, err := s.prepare(ctx, billID)
	if err != nil {
		return nil, err
	}
	return detect(ctx, s.store, in)
}

// DetectAndSave runs detection and stores the verdict when the bill is
// anomalous or already has a stored verdict, which is then overwritten in
// place. The returned record is nil when nothing was stored.
func (s *Service) DetectAndSave(ctx context.Context, billID int64) (*Detection, *model.AnomalyDetection, error) {
	in, err := s.prepare(ctx, billID)
	if err != nil {
		return nil, nil, err
	}

	var (
		det *Detection
		rec *model.AnomalyDetection
	)
	err = s.store.InTx(ctx, func(tx store.Store) error {
		det, rec, err = s.detectAndSave(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if rec != nil && det.HasAnomaly {
		s.log.LogAnomalyDetected(billID, det.PrimaryType, det.Severity, det.CombinedScore)
	}
	return det, rec, nil
}

func (s *Service) detectAndSave(ctx context.Context, tx store.Store, in *inputs) (*Detection, *model.AnomalyDetection, error) {
	det, err := detect(ctx, tx, in)
	if err != nil {
		return nil, nil, err
	}

	existing, err := tx.GetAnomalyForBill(ctx, in.bill.ID)
	if err != nil {
		return nil, nil, err
	}
	if !det.HasAnomaly && existing == nil {
		return det, nil, nil
	}

	rec := det.Record(in.bill.ConsumptionKWh, s.now())
	if err := tx.UpsertAnomaly(ctx, rec); err != nil {
		return nil, nil, err
	}
	det.AnomalyID = &rec.ID
	return det, rec, nil
}

// CheckResult is either a stored verdict or a fresh detection
type CheckResult struct {
	HasExistingDetection bool                    `json:"has_existing_detection" yaml:"has_existing_detection"`
	Anomaly              *model.AnomalyDetection `json:"anomaly,omitempty" yaml:"anomaly,omitempty"`
	Detection            *Detection              `json:"detection_result,omitempty" yaml:"detection_result,omitempty"`
}

// CheckBill returns the stored verdict for a bill, or detects and saves one
func (s *Service) CheckBill(ctx context.Context, billID int64) (*CheckResult, error) {
	if _, err := s.store.GetBill(ctx, billID); err != nil {
		return nil, err
	}
	existing, err := s.store.GetAnomalyForBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &CheckResult{HasExistingDetection: true, Anomaly: existing}, nil
	}

	det, rec, err := s.DetectAndSave(ctx, billID)
	if err != nil {
		return nil, err
	}
	return &CheckResult{Anomaly: rec, Detection: det}, nil
}

// ListForUser returns a user's stored verdicts, newest first
func (s *Service) ListForUser(ctx context.Context, userID int64, onlyActive bool) ([]model.AnomalyDetection, error) {
	return s.store.ListAnomalies(ctx, store.AnomalyFilter{UserID: userID, OnlyActive: onlyActive})
}

// Get returns a stored verdict by id
func (s *Service) Get(ctx context.Context, anomalyID int64) (*model.AnomalyDetection, error) {
	return s.store.GetAnomaly(ctx, anomalyID)
}

// Dismiss marks a verdict as acknowledged. Dismissing again overwrites the
// timestamp and feedback.
func (s *Service) Dismiss(ctx context.Context, anomalyID int64, feedback *string) (*model.AnomalyDetection, error) {
	if err := s.store.DismissAnomaly(ctx, anomalyID, feedback, s.now()); err != nil {
		return nil, err
	}
	s.log.Info("Anomaly dismissed", "anomaly_id", anomalyID)
	return s.store.GetAnomaly(ctx, anomalyID)
}

// Stats summarises stored verdicts
type Stats struct {
	Total      int            `json:"total_anomalies" yaml:"total_anomalies"`
	Active     int            `json:"active" yaml:"active"`
	Dismissed  int            `json:"dismissed" yaml:"dismissed"`
	BySeverity map[string]int `json:"by_severity" yaml:"by_severity"`
	ByType     map[string]int `json:"by_type" yaml:"by_type"`
	UserID     int64          `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Year       int            `json:"year,omitempty" yaml:"year,omitempty"`
}

// Stats counts stored verdicts. Zero userID or year matches everything.
func (s *Service) Stats(ctx context.Context, userID int64, year int) (*Stats, error) {
	list, err := s.store.ListAnomalies(ctx, store.AnomalyFilter{UserID: userID, Year: year})
	if err != nil {
		return nil, err
	}

	st := &Stats{
		Total:      len(list),
		BySeverity: make(map[string]int),
		ByType:     make(map[string]int),
		UserID:     userID,
		Year:       year,
	}
	for _, a := range list {
		if a.IsDismissed {
			st.Dismissed++
		} else {
			st.Active++
		}
		st.BySeverity[a.SeverityLevel]++
		st.ByType[a.AnomalyType]++
	}
	return st, nil
}

// UserSummary is the outcome of DetectForUser
type UserSummary struct {
	UserID         int64       `json:"user_id" yaml:"user_id"`
	Year           int         `json:"year,omitempty" yaml:"year,omitempty"`
	BillsChecked   int         `json:"total_bills_checked" yaml:"total_bills_checked"`
	AnomaliesFound int         `json:"anomalies_found" yaml:"anomalies_found"`
	Results        []Detection `json:"results" yaml:"results"`
}

// DetectForUser runs detection on a user's bills, optionally limited to
// one year, saving anomalous verdicts
func (s *Service) DetectForUser(ctx context.Context, userID int64, year int) (*UserSummary, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	bills, err := s.store.ListBills(ctx, store.BillFilter{UserID: userID, Year: year})
	if err != nil {
		return nil, err
	}
	if len(bills) == 0 {
		return nil, apperr.NotFound("bills of user", userID)
	}

	out := &UserSummary{UserID: userID, Year: year}
	for _, b := range bills {
		det, _, err := s.DetectAndSave(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		out.BillsChecked++
		if det.HasAnomaly {
			out.AnomaliesFound++
		}
		out.Results = append(out.Results, *det)
	}
	return out, nil
}

// BatchSummary counts the outcome of BatchDetect
type BatchSummary struct {
	RequestID      string `json:"request_id" yaml:"request_id"`
	Year           int    `json:"year" yaml:"year"`
	TotalBills     int    `json:"total_bills" yaml:"total_bills"`
	Processed      int    `json:"processed" yaml:"processed"`
	Skipped        int    `json:"skipped" yaml:"skipped"`
	AnomaliesFound int    `json:"anomalies_found" yaml:"anomalies_found"`
	Errors         int    `json:"errors" yaml:"errors"`
}

// BatchDetect runs detection over every bill of a year in parallel, each
// bill in its own transaction. With onlyNew, bills that already have a
// stored verdict are skipped. A failing bill is counted, not fatal.
func (s *Service) BatchDetect(ctx context.Context, year int, onlyNew bool) (*BatchSummary, error) {
	bills, err := s.store.ListBills(ctx, store.BillFilter{Year: year})
	if err != nil {
		return nil, err
	}
	if len(bills) == 0 {
		return nil, apperr.NotFound("bills for year", year)
	}

	sum := &BatchSummary{RequestID: uuid.NewString(), Year: year, TotalBills: len(bills)}
	log := s.log.WithRequestID(sum.RequestID)
	log.Info("Batch detection started", "year", year, "bills", len(bills), "only_new", onlyNew)

	var (
		mu   sync.Mutex
		done atomic.Int32
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, b := range bills {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			skipped, anomalous, err := s.batchOne(gctx, b.ID, onlyNew)

			mu.Lock()
			switch {
			case err != nil:
				log.Error("Detection failed", "bill_id", b.ID, "error", err)
				sum.Errors++
			case skipped:
				sum.Skipped++
			default:
				sum.Processed++
				if anomalous {
					sum.AnomaliesFound++
				}
			}
			mu.Unlock()

			if n := int(done.Add(1)); n%25 == 0 {
				log.LogBatchProgress("anomaly detection", n, len(bills))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, eris.Wrap(err, "anomaly: batch detection")
	}
	if err := ctx.Err(); err != nil {
		return sum, eris.Wrap(err, "anomaly: batch detection")
	}

	log.Info("Batch detection complete",
		"processed", sum.Processed, "skipped", sum.Skipped,
		"anomalies", sum.AnomaliesFound, "errors", sum.Errors)
	return sum, nil
}

func (s *Service) batchOne(ctx context.Context, billID int64, onlyNew bool) (skipped, anomalous bool, err error) {
	if onlyNew {
		existing, err := s.store.GetAnomalyForBill(ctx, billID)
		if err != nil {
			return false, false, err
		}
		if existing != nil {
			return true, false, nil
		}
	}
	det, _, err := s.DetectAndSave(ctx, billID)
	if err != nil {
		return false, false, err
	}
	return false, det.HasAnomaly, nil
}
