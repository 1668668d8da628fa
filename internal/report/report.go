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

package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Amenkhnisi/strom-sense/internal/logger"
	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/peer"
	"github.com/Amenkhnisi/strom-sense/internal/store"
	"github.com/Amenkhnisi/strom-sense/internal/version"
)

var printer = message.NewPrinter(language.German)

// YearSummary collects everything known about one bill
type YearSummary struct {
	Bill    model.Bill              `json:"bill" yaml:"bill"`
	Metrics *model.BillMetrics      `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Peer    *peer.Comparison        `json:"peer,omitempty" yaml:"peer,omitempty"`
	Anomaly *model.AnomalyDetection `json:"anomaly,omitempty" yaml:"anomaly,omitempty"`
}

// HouseholdReport is the input of Generate. Years are ordered by bill year.
type HouseholdReport struct {
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	User        model.UserProfile `json:"user" yaml:"user"`
	Years       []YearSummary     `json:"years" yaml:"years"`
}

// Latest returns the most recent year, or nil when the household has no bills
func (r *HouseholdReport) Latest() *YearSummary {
	if len(r.Years) == 0 {
		return nil
	}
	return &r.Years[len(r.Years)-1]
}

// Build gathers bills, metrics, peer comparisons and anomaly records of a user
func Build(ctx context.Context, st store.Store, userID int64) (*HouseholdReport, error) {
	user, err := st.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	bills, err := st.ListBills(ctx, store.BillFilter{UserID: userID})
	if err != nil {
		return nil, eris.Wrap(err, "report: list bills")
	}

	rep := &HouseholdReport{GeneratedAt: time.Now().UTC(), User: *user}
	for _, b := range bills {
		y := YearSummary{Bill: b}
		if y.Metrics, err = st.GetMetrics(ctx, b.ID); err != nil {
			return nil, err
		}
		if y.Peer, err = peer.CompareWith(ctx, st, userID, b.BillYear); err != nil {
			return nil, err
		}
		if y.Anomaly, err = st.GetAnomalyForBill(ctx, b.ID); err != nil {
			return nil, err
		}
		rep.Years = append(rep.Years, y)
	}
	return rep, nil
}

// Reporter renders household reports
type Reporter struct {
	logger *logger.Logger
	charts *ChartGenerator
}

// NewReporter creates a report generator using the given chart theme
func NewReporter(theme string, log *logger.Logger) *Reporter {
	return &Reporter{logger: log.WithComponent("report"), charts: NewChartGenerator(theme)}
}

// Generate writes a markdown report to w
func (r *Reporter) Generate(w io.Writer, rep *HouseholdReport) error {
	if rep == nil {
		return eris.New("report: nothing to render")
	}
	r.logger.Info("Generating report", "user_id", rep.User.UserID, "years", len(rep.Years))

	r.writeHeader(w, rep)
	r.writeHousehold(w, rep)
	r.writeBills(w, rep)
	r.writePeerComparison(w, rep)
	r.writeAnomalies(w, rep)
	r.writeRecommendations(w, rep)
	r.writeFooter(w)
	return nil
}

func (r *Reporter) writeHeader(w io.Writer, rep *HouseholdReport) {
	fmt.Fprintf(w, "# Household Electricity Report\n\n")
	fmt.Fprintf(w, "**Generated:** %s\n\n", rep.GeneratedAt.Format("2006-01-02 15:04:05"))
	if latest := rep.Latest(); latest != nil {
		fmt.Fprintf(w, "**Bills on file:** %d (%d to %d)\n\n", len(rep.Years), rep.Years[0].Bill.BillYear, latest.Bill.BillYear)
	}
	fmt.Fprintf(w, "**strom-sense version:** %s\n\n", version.Get())
	fmt.Fprintf(w, "---\n\n")
}

func (r *Reporter) writeHousehold(w io.Writer, rep *HouseholdReport) {
	u := rep.User
	fmt.Fprintf(w, "## 🏠 Household\n\n")
	fmt.Fprintf(w, "| Item | Value |\n")
	fmt.Fprintf(w, "|------|-------|\n")
	fmt.Fprintf(w, "| User | %s |\n", u.Username)
	fmt.Fprintf(w, "| Postal code | %s |\n", u.PostalCode)
	fmt.Fprintf(w, "| Household size | %s |\n", optionalInt(u.HouseholdSize, " persons"))
	fmt.Fprintf(w, "| Property type | %s |\n", optionalString(u.PropertyType))
	if u.PropertySizeSqm != nil {
		fmt.Fprintf(w, "| Living space | %s m² |\n", printer.Sprintf("%.0f", *u.PropertySizeSqm))
	}
	fmt.Fprintf(w, "\n")
}

func (r *Reporter) writeBills(w io.Writer, rep *HouseholdReport) {
	fmt.Fprintf(w, "## 📊 Bills\n\n")
	if len(rep.Years) == 0 {
		fmt.Fprintf(w, "No bills have been recorded yet.\n\n")
		return
	}

	fmt.Fprintf(w, "| Year | Period | Consumption | Cost | Daily average | Cost per kWh | Change |\n")
	fmt.Fprintf(w, "|------|--------|-------------|------|---------------|--------------|--------|\n")
	for _, y := range rep.Years {
		b := y.Bill
		daily, perKWh, change := "-", "-", "-"
		if m := y.Metrics; m != nil {
			daily = printer.Sprintf("%.2f kWh", m.DailyAvgConsumptionKWh)
			perKWh = printer.Sprintf("%.4f €", m.CostPerKWh)
			if m.YoYConsumptionChangePct != nil {
				change = FormatPercent(*m.YoYConsumptionChangePct)
			}
		}
		fmt.Fprintf(w, "| %d | %s to %s | %s | %s | %s | %s | %s |\n",
			b.BillYear,
			b.BillingStart.Format(model.DateLayout),
			b.BillingEnd.Format(model.DateLayout),
			FormatKWh(b.ConsumptionKWh),
			FormatEuro(b.TotalCostEUR),
			daily,
			perKWh,
			change,
		)
	}
	fmt.Fprintf(w, "\n")
}

func (r *Reporter) writePeerComparison(w io.Writer, rep *HouseholdReport) {
	var latest *YearSummary
	for i := range rep.Years {
		if rep.Years[i].Peer != nil {
			latest = &rep.Years[i]
		}
	}
	if latest == nil {
		return
	}
	c := latest.Peer

	fmt.Fprintf(w, "## 👥 Peer Comparison (%d)\n\n", latest.Bill.BillYear)
	fmt.Fprintf(w, "Compared with **%d households** of %d persons (%s):\n\n",
		c.PeerGroup.SampleSize, c.PeerGroup.HouseholdSize, c.PeerGroup.PropertyType)
	fmt.Fprintf(w, "| Metric | Value |\n")
	fmt.Fprintf(w, "|--------|-------|\n")
	fmt.Fprintf(w, "| Your consumption | %s |\n", FormatKWh(c.UserConsumptionKWh))
	fmt.Fprintf(w, "| Peer average | %s |\n", FormatKWh(c.PeerAvgKWh))
	fmt.Fprintf(w, "| Peer median | %s |\n", FormatKWh(c.PeerMedianKWh))
	fmt.Fprintf(w, "| Difference | %s (%s) |\n", FormatKWh(c.DifferenceKWh), FormatPercent(c.PercentDifference))
	fmt.Fprintf(w, "| Z-score | %.2f |\n", c.ZScore)
	fmt.Fprintf(w, "| Position | %s |\n", strings.ReplaceAll(c.Percentile, "_", " "))
	fmt.Fprintf(w, "\n")
}

func (r *Reporter) writeAnomalies(w io.Writer, rep *HouseholdReport) {
	var rows []YearSummary
	for _, y := range rep.Years {
		if y.Anomaly != nil {
			rows = append(rows, y)
		}
	}
	if len(rows) == 0 {
		return
	}

	fmt.Fprintf(w, "## 🔍 Anomaly Checks\n\n")
	fmt.Fprintf(w, "| Year | Type | Severity | Score | Estimated extra cost | Status |\n")
	fmt.Fprintf(w, "|------|------|----------|-------|----------------------|--------|\n")
	for _, y := range rows {
		a := y.Anomaly
		extra := "-"
		if a.EstimatedExtraCostEUR != nil {
			extra = FormatEuro(*a.EstimatedExtraCostEUR)
		}
		status := "active"
		if a.IsDismissed {
			status = "dismissed"
		}
		fmt.Fprintf(w, "| %d | %s | %s %s | %.2f | %s | %s |\n",
			y.Bill.BillYear,
			strings.ReplaceAll(a.AnomalyType, "_", " "),
			severityIcon(a.SeverityLevel),
			a.SeverityLevel,
			a.SeverityScore,
			extra,
			status,
		)
	}
	fmt.Fprintf(w, "\n")
}

func (r *Reporter) writeRecommendations(w io.Writer, rep *HouseholdReport) {
	latest := rep.Latest()
	if latest == nil || latest.Anomaly == nil || latest.Anomaly.IsDismissed {
		return
	}
	a := latest.Anomaly
	if a.SeverityLevel == model.SeverityNormal {
		return
	}

	fmt.Fprintf(w, "## 💡 What To Check (%d)\n\n", latest.Bill.BillYear)
	if a.ExplanationText != "" {
		fmt.Fprintf(w, "%s\n\n", a.ExplanationText)
	}
	if a.RecommendationsText != "" {
		fmt.Fprintf(w, "%s\n\n", a.RecommendationsText)
	}
}

func (r *Reporter) writeFooter(w io.Writer) {
	fmt.Fprintf(w, "---\n\n")
	fmt.Fprintf(w, "*Figures are taken from your uploaded bills. Peer and weather comparisons are estimates; check your supplier's statements for exact amounts.*\n\n")
	fmt.Fprintf(w, "*Generated by strom-sense*\n")
}

// FormatEuro formats an amount the way German invoices print it
func FormatEuro(v float64) string {
	return printer.Sprintf("%.2f €", v)
}

// FormatKWh formats whole kilowatt hours with German digit grouping
func FormatKWh(v float64) string {
	return printer.Sprintf("%.0f kWh", v)
}

// FormatPercent formats a signed percentage
func FormatPercent(v float64) string {
	return fmt.Sprintf("%+.1f%%", v)
}

func severityIcon(level string) string {
	switch level {
	case model.SeverityCritical:
		return "🔴"
	case model.SeverityWarning:
		return "⚠️"
	default:
		return "✅"
	}
}

func optionalInt(v *int, suffix string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d%s", *v, suffix)
}

func optionalString(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}
