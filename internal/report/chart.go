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
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	charts "github.com/vicanso/go-charts/v2"
)

// ChartGenerator renders report charts
type ChartGenerator struct {
	theme string
}

// NewChartGenerator creates a chart generator. An empty theme selects "light".
func NewChartGenerator(theme string) *ChartGenerator {
	if theme == "" {
		theme = "light"
	}
	return &ChartGenerator{theme: theme}
}

// ConsumptionChart renders yearly consumption as a PNG bar chart. The peer
// average is drawn next to each year that has a peer comparison.
func (cg *ChartGenerator) ConsumptionChart(rep *HouseholdReport) ([]byte, error) {
	if rep == nil || len(rep.Years) == 0 {
		return nil, eris.New("report: no bills to chart")
	}

	var labels []string
	var consumption, peerAvg []float64
	hasPeer := false
	for _, y := range rep.Years {
		labels = append(labels, strconv.Itoa(y.Bill.BillYear))
		consumption = append(consumption, y.Bill.ConsumptionKWh)
		if y.Peer != nil {
			peerAvg = append(peerAvg, y.Peer.PeerAvgKWh)
			hasPeer = true
		} else {
			peerAvg = append(peerAvg, 0)
		}
	}

	values := [][]float64{consumption}
	legendLabels := []string{"Your consumption (kWh)"}
	if hasPeer {
		values = append(values, peerAvg)
		legendLabels = append(legendLabels, "Peer average (kWh)")
	}

	p, err := charts.BarRender(
		values,
		charts.TitleTextOptionFunc("Yearly Electricity Consumption"),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc(legendLabels, charts.PositionRight),
		charts.ThemeOptionFunc(cg.theme),
		charts.WidthOptionFunc(900),
		charts.HeightOptionFunc(400),
		charts.PaddingOptionFunc(charts.Box{
			Top:    20,
			Right:  20,
			Bottom: 20,
			Left:   20,
		}),
	)
	if err != nil {
		return nil, eris.Wrap(err, "report: render consumption chart")
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, eris.Wrap(err, "report: encode consumption chart")
	}
	return buf, nil
}

// WriteChart renders the consumption chart of rep to path
func (r *Reporter) WriteChart(path string, rep *HouseholdReport) error {
	buf, err := r.charts.ConsumptionChart(rep)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return eris.Wrapf(err, "report: write chart %s", path)
	}
	r.logger.Info("Chart saved", "path", path)
	return nil
}
