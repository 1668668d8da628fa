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
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/version"
)

// GenerateHTML writes a standalone HTML report to w with the consumption
// chart embedded as an inline PNG
func (r *Reporter) GenerateHTML(w io.Writer, rep *HouseholdReport) error {
	if rep == nil {
		return eris.New("report: nothing to render")
	}
	r.logger.Info("Generating HTML report", "user_id", rep.User.UserID, "years", len(rep.Years))

	r.writeHTMLHeader(w, rep)
	r.writeHTMLSummary(w, rep)
	r.writeHTMLBills(w, rep)
	r.writeHTMLChart(w, rep)
	r.writeHTMLAnomalies(w, rep)
	r.writeHTMLFooter(w)
	return nil
}

func (r *Reporter) writeHTMLHeader(w io.Writer, rep *HouseholdReport) {
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="de">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Household Electricity Report</title>
    <style>
        :root {
            --primary-color: #0B6E4F;
            --warning-color: #E0A100;
            --danger-color: #C62828;
            --success-color: #2E7D32;
            --bg-color: #F5F7F6;
            --card-bg: #FFFFFF;
            --text-color: #1C2321;
            --text-muted: #5F6B66;
            --border-color: #D8E0DC;
        }
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Ubuntu, sans-serif;
            background: var(--bg-color);
            color: var(--text-color);
            line-height: 1.6;
            padding: 20px;
        }
        .container { max-width: 1000px; margin: 0 auto; }
        header { background: var(--primary-color); color: #fff; padding: 32px; border-radius: 12px; margin-bottom: 24px; }
        header p { opacity: 0.85; }
        .card { background: var(--card-bg); border: 1px solid var(--border-color); border-radius: 12px; padding: 24px; margin-bottom: 24px; }
        h2 { margin-bottom: 16px; }
        .metric-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 16px; }
        .metric-label { color: var(--text-muted); font-size: 0.9em; }
        .metric-value { font-size: 1.6em; font-weight: 600; }
        table { width: 100%%; border-collapse: collapse; }
        th, td { text-align: left; padding: 8px 10px; border-bottom: 1px solid var(--border-color); }
        .badge { display: inline-block; padding: 2px 10px; border-radius: 10px; font-size: 0.85em; color: #fff; }
        .badge-critical { background: var(--danger-color); }
        .badge-warning { background: var(--warning-color); }
        .badge-normal { background: var(--success-color); }
        .chart { width: 100%%; border-radius: 8px; }
        footer { color: var(--text-muted); font-size: 0.9em; text-align: center; margin-top: 32px; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>Household Electricity Report</h1>
            <p>%s &middot; %s &middot; generated %s</p>
        </header>
`,
		html.EscapeString(rep.User.Username),
		html.EscapeString(rep.User.PostalCode),
		rep.GeneratedAt.Format("2006-01-02 15:04"),
	)
}

func (r *Reporter) writeHTMLSummary(w io.Writer, rep *HouseholdReport) {
	latest := rep.Latest()
	if latest == nil {
		fmt.Fprintf(w, `        <div class="card"><p>No bills have been recorded yet.</p></div>
`)
		return
	}

	peerAvg, position := "-", "-"
	if c := latest.Peer; c != nil {
		peerAvg = FormatKWh(c.PeerAvgKWh)
		position = strings.ReplaceAll(c.Percentile, "_", " ")
	}
	change := "-"
	if m := latest.Metrics; m != nil && m.YoYConsumptionChangePct != nil {
		change = FormatPercent(*m.YoYConsumptionChangePct)
	}

	fmt.Fprintf(w, `        <div class="card">
            <h2>📊 %d at a Glance</h2>
            <div class="metric-grid">
                <div><div class="metric-label">Consumption</div><div class="metric-value">%s</div></div>
                <div><div class="metric-label">Total cost</div><div class="metric-value">%s</div></div>
                <div><div class="metric-label">Change on last year</div><div class="metric-value">%s</div></div>
                <div><div class="metric-label">Peer average</div><div class="metric-value">%s</div><div class="metric-label">%s</div></div>
            </div>
        </div>
`,
		latest.Bill.BillYear,
		FormatKWh(latest.Bill.ConsumptionKWh),
		FormatEuro(latest.Bill.TotalCostEUR),
		change,
		peerAvg,
		html.EscapeString(position),
	)
}

func (r *Reporter) writeHTMLBills(w io.Writer, rep *HouseholdReport) {
	if len(rep.Years) == 0 {
		return
	}
	fmt.Fprintf(w, `        <div class="card">
            <h2>🧾 Bills</h2>
            <table>
                <thead><tr><th>Year</th><th>Period</th><th>Consumption</th><th>Cost</th><th>Cost per kWh</th></tr></thead>
                <tbody>
`)
	for _, y := range rep.Years {
		perKWh := "-"
		if y.Metrics != nil {
			perKWh = printer.Sprintf("%.4f €", y.Metrics.CostPerKWh)
		}
		fmt.Fprintf(w, "                    <tr><td>%d</td><td>%s to %s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			y.Bill.BillYear,
			y.Bill.BillingStart.Format(model.DateLayout),
			y.Bill.BillingEnd.Format(model.DateLayout),
			FormatKWh(y.Bill.ConsumptionKWh),
			FormatEuro(y.Bill.TotalCostEUR),
			perKWh,
		)
	}
	fmt.Fprintf(w, `                </tbody>
            </table>
        </div>
`)
}

func (r *Reporter) writeHTMLChart(w io.Writer, rep *HouseholdReport) {
	if len(rep.Years) == 0 {
		return
	}
	buf, err := r.charts.ConsumptionChart(rep)
	if err != nil {
		r.logger.Warn("Failed to render chart", "error", err)
		return
	}
	fmt.Fprintf(w, `        <div class="card">
            <h2>📈 Consumption by Year</h2>
            <img class="chart" alt="Yearly consumption" src="data:image/png;base64,%s">
        </div>
`, base64.StdEncoding.EncodeToString(buf))
}

func (r *Reporter) writeHTMLAnomalies(w io.Writer, rep *HouseholdReport) {
	var rows []YearSummary
	for _, y := range rep.Years {
		if y.Anomaly != nil {
			rows = append(rows, y)
		}
	}
	if len(rows) == 0 {
		return
	}

	fmt.Fprintf(w, `        <div class="card">
            <h2>🔍 Anomaly Checks</h2>
            <table>
                <thead><tr><th>Year</th><th>Type</th><th>Severity</th><th>Extra cost</th><th>Explanation</th></tr></thead>
                <tbody>
`)
	for _, y := range rows {
		a := y.Anomaly
		extra := "-"
		if a.EstimatedExtraCostEUR != nil {
			extra = FormatEuro(*a.EstimatedExtraCostEUR)
		}
		explanation := a.ExplanationText
		if a.IsDismissed {
			explanation = "Dismissed. " + explanation
		}
		fmt.Fprintf(w, "                    <tr><td>%d</td><td>%s</td><td><span class=\"badge badge-%s\">%s</span></td><td>%s</td><td>%s</td></tr>\n",
			y.Bill.BillYear,
			html.EscapeString(strings.ReplaceAll(a.AnomalyType, "_", " ")),
			html.EscapeString(a.SeverityLevel),
			html.EscapeString(a.SeverityLevel),
			extra,
			html.EscapeString(explanation),
		)
	}
	fmt.Fprintf(w, `                </tbody>
            </table>
        </div>
`)
}

func (r *Reporter) writeHTMLFooter(w io.Writer) {
	fmt.Fprintf(w, `        <footer>
            <p><em>Figures are taken from your uploaded bills. Peer and weather comparisons are estimates.</em></p>
            <p>Generated by strom-sense %s</p>
        </footer>
    </div>
</body>
</html>
`, html.EscapeString(version.Get()))
}
