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
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/logger"
	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/store"
)

// PropertyTypes are the groupings computed for every household size
var PropertyTypes = []string{model.PropertyApartment, model.PropertyHouse, model.PropertyAll}

// Group identifies the peer group a comparison was made against
type Group struct {
	HouseholdSize int    `json:"household_size" yaml:"household_size"`
	PropertyType  string `json:"property_type" yaml:"property_type"`
	SampleSize    int    `json:"sample_size" yaml:"sample_size"`
}

// Comparison describes a household's consumption relative to its peers
type Comparison struct {
	UserConsumptionKWh float64 `json:"user_consumption_kwh" yaml:"user_consumption_kwh"`
	PeerAvgKWh         float64 `json:"peer_avg_kwh" yaml:"peer_avg_kwh"`
	PeerMedianKWh      float64 `json:"peer_median_kwh" yaml:"peer_median_kwh"`
	PeerStdDevKWh      float64 `json:"peer_std_dev_kwh" yaml:"peer_std_dev_kwh"`
	DifferenceKWh      float64 `json:"difference_kwh" yaml:"difference_kwh"`
	PercentDifference  float64 `json:"percent_difference" yaml:"percent_difference"`
	ZScore             float64 `json:"z_score" yaml:"z_score"`
	Percentile         string  `json:"percentile" yaml:"percentile"`
	Classification     string  `json:"classification" yaml:"classification"`
	PeerGroup          Group   `json:"peer_group" yaml:"peer_group"`
}

// CalculateSummary counts the outcome of CalculateAll
type CalculateSummary struct {
	Created      int `json:"created" yaml:"created"`
	Updated      int `json:"updated" yaml:"updated"`
	Skipped      int `json:"skipped" yaml:"skipped"`
	Insufficient int `json:"insufficient" yaml:"insufficient"`
	Errors       int `json:"errors" yaml:"errors"`
}

// GroupSummary is a short listing entry for a stored peer group
type GroupSummary struct {
	HouseholdSize        int     `json:"household_size" yaml:"household_size"`
	PropertyType         string  `json:"property_type" yaml:"property_type"`
	Year                 int     `json:"year" yaml:"year"`
	SampleSize           int     `json:"sample_size" yaml:"sample_size"`
	AvgConsumptionKWh    float64 `json:"avg_consumption_kwh" yaml:"avg_consumption_kwh"`
	MedianConsumptionKWh float64 `json:"median_consumption_kwh" yaml:"median_consumption_kwh"`
	Range                string  `json:"range" yaml:"range"`
}

// Ranges are the consumption bands of one peer group
type Ranges struct {
	Excellent string  `json:"excellent" yaml:"excellent"`
	Good      string  `json:"good" yaml:"good"`
	Average   string  `json:"average" yaml:"average"`
	High      string  `json:"high" yaml:"high"`
	P25       float64 `json:"percentile_25" yaml:"percentile_25"`
	Mean      float64 `json:"average_kwh" yaml:"average_kwh"`
	Median    float64 `json:"median" yaml:"median"`
	P75       float64 `json:"percentile_75" yaml:"percentile_75"`
}

// Benchmark collects the bands of a household size for each property type
type Benchmark struct {
	HouseholdSize int     `json:"household_size" yaml:"household_size"`
	Year          int     `json:"year" yaml:"year"`
	Apartment     *Ranges `json:"apartment" yaml:"apartment"`
	House         *Ranges `json:"house" yaml:"house"`
	AllTypes      *Ranges `json:"all_types" yaml:"all_types"`
}

// Service computes and stores peer statistics
type Service struct {
	store   store.Store
	log     *logger.Logger
	workers int
}

// NewService creates a peer service. workers bounds CalculateAll concurrency.
func NewService(st store.Store, log *logger.Logger, workers int) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{store: st, log: log.WithComponent("peer"), workers: workers}
}

// Compute gathers the bills of a peer group, stores its statistics and
// returns them. It returns nil without error when the group has fewer than
// MinSampleSize bills.
func (s *Service) Compute(ctx context.Context, householdSize int, propertyType string, year int) (*model.PeerStatistics, error) {
	var out *model.PeerStatistics
	err := s.store.InTx(ctx, func(tx store.Store) error {
		stats, _, err := compute(ctx, tx, householdSize, propertyType, year)
		out = stats
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		s.log.Debug("Insufficient peer data", "household_size", householdSize, "property_type", propertyType, "year", year)
	}
	return out, nil
}

func compute(ctx context.Context, st store.Store, householdSize int, propertyType string, year int) (*model.PeerStatistics, bool, error) {
	if propertyType == "" {
		propertyType = model.PropertyAll
	}
	key := model.PeerKey{HouseholdSize: householdSize, PropertyType: propertyType, Year: year}

	bills, err := st.CohortBills(ctx, householdSize, propertyType, year)
	if err != nil {
		return nil, false, err
	}
	stats := Summarize(key, bills)
	if stats == nil {
		return nil, false, nil
	}

	existing, err := st.GetPeerStats(ctx, key)
	if err != nil {
		return nil, false, err
	}
	stats.CalculatedAt = time.Now().UTC()
	if err := st.UpsertPeerStats(ctx, stats); err != nil {
		return nil, false, err
	}
	return stats, existing == nil, nil
}

// CalculateAll computes statistics for every combination of year, stored
// household size and property type. year 0 means every year with bills.
// Existing groups are skipped unless force is set.
func (s *Service) CalculateAll(ctx context.Context, year int, force bool) (CalculateSummary, error) {
	years := []int{year}
	if year == 0 {
		var err error
		if years, err = s.store.BillYears(ctx); err != nil {
			return CalculateSummary{}, eris.Wrap(err, "peer: list years")
		}
	}
	sizes, err := s.store.HouseholdSizes(ctx)
	if err != nil {
		return CalculateSummary{}, eris.Wrap(err, "peer: list household sizes")
	}

	var (
		mu  sync.Mutex
		sum CalculateSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, y := range years {
		for _, size := range sizes {
			for _, pt := range PropertyTypes {
				key := model.PeerKey{HouseholdSize: size, PropertyType: pt, Year: y}
				g.Go(func() error {
					outcome := s.calculateOne(gctx, key, force)
					mu.Lock()
					defer mu.Unlock()
					switch outcome {
					case outcomeCreated:
						sum.Created++
					case outcomeUpdated:
						sum.Updated++
					case outcomeSkipped:
						sum.Skipped++
					case outcomeInsufficient:
						sum.Insufficient++
					default:
						sum.Errors++
					}
					return nil
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	if err := ctx.Err(); err != nil {
		return sum, eris.Wrap(err, "peer: calculate all")
	}

	s.log.Info("Peer statistics calculated",
		"created", sum.Created, "updated", sum.Updated, "skipped", sum.Skipped,
		"insufficient", sum.Insufficient, "errors", sum.Errors)
	return sum, nil
}

type outcome int

const (
	outcomeError outcome = iota
	outcomeCreated
	outcomeUpdated
	outcomeSkipped
	outcomeInsufficient
)

func (s *Service) calculateOne(ctx context.Context, key model.PeerKey, force bool) outcome {
	result := outcomeError
	err := s.store.InTx(ctx, func(tx store.Store) error {
		if !force {
			existing, err := tx.GetPeerStats(ctx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				result = outcomeSkipped
				return nil
			}
		}
		stats, created, err := compute(ctx, tx, key.HouseholdSize, key.PropertyType, key.Year)
		switch {
		case err != nil:
			return err
		case stats == nil:
			result = outcomeInsufficient
		case created:
			result = outcomeCreated
		default:
			result = outcomeUpdated
		}
		return nil
	})
	if err != nil {
		s.log.Error("Peer statistics failed",
			"household_size", key.HouseholdSize, "property_type", key.PropertyType, "year", key.Year, "error", err)
		return outcomeError
	}
	return result
}

// Get returns stored statistics for a group, or nil
func (s *Service) Get(ctx context.Context, key model.PeerKey) (*model.PeerStatistics, error) {
	if key.PropertyType == "" {
		key.PropertyType = model.PropertyAll
	}
	return s.store.GetPeerStats(ctx, key)
}

// Compare compares a user's bill of the given year against the user's peer
// group, falling back to the group of all property types. It returns nil
// without error when the user has no bill, no household size or no group.
func (s *Service) Compare(ctx context.Context, userID int64, year int) (*Comparison, error) {
	return CompareWith(ctx, s.store, userID, year)
}

// CompareWith is Compare against an explicit store, usually a transaction
func CompareWith(ctx context.Context, st store.Store, userID int64, year int) (*Comparison, error) {
	user, err := st.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.HouseholdSize == nil {
		return nil, nil
	}
	bill, err := st.FindBill(ctx, userID, year)
	if err != nil || bill == nil {
		return nil, err
	}

	var stats *model.PeerStatistics
	if user.PropertyType != nil && *user.PropertyType != "" {
		stats, err = st.GetPeerStats(ctx, model.PeerKey{HouseholdSize: *user.HouseholdSize, PropertyType: *user.PropertyType, Year: year})
		if err != nil {
			return nil, err
		}
	}
	if stats == nil {
		stats, err = st.GetPeerStats(ctx, model.PeerKey{HouseholdSize: *user.HouseholdSize, PropertyType: model.PropertyAll, Year: year})
		if err != nil || stats == nil {
			return nil, err
		}
	}
	return Against(bill.ConsumptionKWh, stats), nil
}

// Against compares a consumption value with stored group statistics
func Against(consumption float64, stats *model.PeerStatistics) *Comparison {
	z := ZScore(consumption, stats.AvgConsumptionKWh, stats.StdDevKWh)

	var pct float64
	if stats.AvgConsumptionKWh != 0 {
		pct = (consumption - stats.AvgConsumptionKWh) / stats.AvgConsumptionKWh * 100
	}

	return &Comparison{
		UserConsumptionKWh: consumption,
		PeerAvgKWh:         stats.AvgConsumptionKWh,
		PeerMedianKWh:      stats.MedianKWh,
		PeerStdDevKWh:      stats.StdDevKWh,
		DifferenceKWh:      consumption - stats.AvgConsumptionKWh,
		PercentDifference:  scalar.Round(pct, 1),
		ZScore:             scalar.Round(z, 2),
		Percentile:         Bucket(consumption, stats),
		Classification:     Classify(z),
		PeerGroup: Group{
			HouseholdSize: stats.HouseholdSize,
			PropertyType:  stats.PropertyType,
			SampleSize:    stats.SampleSize,
		},
	}
}

// ListGroups summarises stored peer groups. year 0 lists every year.
func (s *Service) ListGroups(ctx context.Context, year int) ([]GroupSummary, error) {
	stats, err := s.store.ListPeerStats(ctx, year)
	if err != nil {
		return nil, err
	}
	out := make([]GroupSummary, 0, len(stats))
	for _, p := range stats {
		out = append(out, GroupSummary{
			HouseholdSize:        p.HouseholdSize,
			PropertyType:         p.PropertyType,
			Year:                 p.Year,
			SampleSize:           p.SampleSize,
			AvgConsumptionKWh:    p.AvgConsumptionKWh,
			MedianConsumptionKWh: p.MedianKWh,
			Range:                fmt.Sprintf("%.0f - %.0f kWh", p.Percentile25KWh, p.Percentile75KWh),
		})
	}
	return out, nil
}

// Benchmarks returns consumption bands for a household size. It fails with
// a not-found error when no group of that size has statistics.
func (s *Service) Benchmarks(ctx context.Context, householdSize, year int) (*Benchmark, error) {
	bench := &Benchmark{HouseholdSize: householdSize, Year: year}
	targets := map[string]**Ranges{
		model.PropertyApartment: &bench.Apartment,
		model.PropertyHouse:     &bench.House,
		model.PropertyAll:       &bench.AllTypes,
	}
	found := false
	for _, pt := range PropertyTypes {
		stats, err := s.store.GetPeerStats(ctx, model.PeerKey{HouseholdSize: householdSize, PropertyType: pt, Year: year})
		if err != nil {
			return nil, err
		}
		if stats != nil {
			*targets[pt] = RangesFor(stats)
			found = true
		}
	}
	if !found {
		return nil, apperr.NotFound("benchmark", fmt.Sprintf("%d-person/%d", householdSize, year))
	}
	return bench, nil
}

// RangesFor derives consumption bands from group statistics
func RangesFor(p *model.PeerStatistics) *Ranges {
	return &Ranges{
		Excellent: fmt.Sprintf("< %.0f kWh", p.Percentile25KWh),
		Good:      fmt.Sprintf("%.0f - %.0f kWh", p.Percentile25KWh, p.AvgConsumptionKWh),
		Average:   fmt.Sprintf("%.0f - %.0f kWh", p.AvgConsumptionKWh, p.Percentile75KWh),
		High:      fmt.Sprintf("> %.0f kWh", p.Percentile75KWh),
		P25:       p.Percentile25KWh,
		Mean:      p.AvgConsumptionKWh,
		Median:    p.MedianKWh,
		P75:       p.Percentile75KWh,
	}
}
