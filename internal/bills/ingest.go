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
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/invoice"
	"github.com/Amenkhnisi/strom-sense/internal/model"
)

// IngestResult reports one pass of the ingest pipeline. Bill and Metrics are
// nil on a dry run.
type IngestResult struct {
	RequestID string                 `json:"request_id" yaml:"request_id"`
	Path      string                 `json:"path" yaml:"path"`
	Invoice   *invoice.ParsedInvoice `json:"invoice" yaml:"invoice"`
	Bill      *model.Bill            `json:"bill,omitempty" yaml:"bill,omitempty"`
	Metrics   *model.BillMetrics     `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Ingest extracts the text of an invoice file, parses it and stores the
// resulting bill for userID. With dryRun set nothing is stored.
func (s *Service) Ingest(ctx context.Context, userID int64, path string, dryRun bool) (*IngestResult, error) {
	if s.source == nil {
		return nil, eris.New("bills: no text source configured")
	}

	res := &IngestResult{RequestID: uuid.NewString(), Path: path}
	log := s.log.WithRequestID(res.RequestID)
	log.Info("Starting invoice ingest", "path", path, "user_id", userID, "dry_run", dryRun)

	text, err := s.source.ExtractText(ctx, path)
	if err != nil {
		return nil, err
	}

	res.Invoice = invoice.Parse(text)
	log.Info("Invoice parsed",
		"supplier", res.Invoice.Supplier,
		"fields_found", len(res.Invoice.Found()),
	)
	if dryRun {
		return res, nil
	}

	draft, err := DraftFromInvoice(userID, res.Invoice)
	if err != nil {
		log.Warn("Invoice is missing bill fields", "error", err)
		return res, err
	}

	m, err := s.Create(ctx, draft)
	if err != nil {
		return res, err
	}
	res.Bill = draft
	res.Metrics = m
	return res, nil
}

// DraftFromInvoice builds an unsaved bill from a parsed invoice. The bill
// year is the year the billing period ends. The work price is quoted in
// cents per kWh and stored as a rate in euros.
func DraftFromInvoice(userID int64, p *invoice.ParsedInvoice) (*model.Bill, error) {
	var problems apperr.ValidationErrors
	missing := func(f invoice.Field) {
		problems = append(problems, &apperr.ValidationError{Field: f.String(), Message: "was not found on the invoice"})
	}

	b := &model.Bill{UserID: userID}

	periodField := p.Get(invoice.FieldBillingPeriod)
	if period, ok := periodField.Period(); ok {
		start, errStart := time.Parse(model.DateLayout, period.Start)
		end, errEnd := time.Parse(model.DateLayout, period.End)
		if errStart != nil || errEnd != nil {
			problems = append(problems, &apperr.ValidationError{
				Field:   invoice.FieldBillingPeriod.String(),
				Value:   period.Start + " - " + period.End,
				Message: "is not a valid date range",
			})
		} else {
			b.BillingStart = start
			b.BillingEnd = end
			b.BillYear = end.Year()
			conf := periodField.Confidence
			b.Confidence.BillYear = model.Float(conf)
			b.Confidence.BillingStart = model.Float(conf)
			b.Confidence.BillingEnd = model.Float(conf)
		}
	} else {
		missing(invoice.FieldBillingPeriod)
	}

	consumption := p.Get(invoice.FieldTotalConsumption)
	if v, ok := consumption.Float(); ok {
		b.ConsumptionKWh = v
		b.Confidence.Consumption = model.Float(consumption.Confidence)
	} else {
		missing(invoice.FieldTotalConsumption)
	}

	cost := p.Get(invoice.FieldTotalAmount)
	if _, ok := cost.Float(); !ok {
		cost = p.Get(invoice.FieldNetAmount)
	}
	if v, ok := cost.Float(); ok {
		b.TotalCostEUR = v
		b.Confidence.TotalCost = model.Float(cost.Confidence)
	} else {
		missing(invoice.FieldTotalAmount)
	}

	price := p.Get(invoice.FieldWorkPrice)
	if cents, ok := price.Float(); ok && cents > 0 {
		b.TariffRate = model.Float(math.Round(cents*100) / 10000)
		b.Confidence.TariffRate = model.Float(price.Confidence)
	}

	if err := problems.OrNil(); err != nil {
		return nil, err
	}
	return b, nil
}
