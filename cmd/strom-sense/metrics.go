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

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Amenkhnisi/strom-sense/internal/metrics"
	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/store"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Derive daily averages, unit prices and year-over-year change",
}

var metricsCalcCmd = &cobra.Command{
	Use:   "calc <bill-id>",
	Short: "Calculate the metrics of one bill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "bill-id")
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(st store.Store) error {
			m, err := newMetricsService(st).CalculateForBill(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render(m, func(w io.Writer) { formatMetrics(w, m) })
		})
	},
}

var metricsUserCmd = &cobra.Command{
	Use:   "user <user-id>",
	Short: "Recalculate the metrics of every bill of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "user-id")
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(st store.Store) error {
			sum, err := newMetricsService(st).CalculateForUser(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render(sum, func(w io.Writer) { formatMetricsSummary(w, sum) })
		})
	},
}

var metricsAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Recalculate the metrics of every stored bill",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			sum, err := newMetricsService(st).RecalculateAll(cmd.Context())
			if err != nil {
				return err
			}
			return render(sum, func(w io.Writer) { formatMetricsSummary(w, sum) })
		})
	},
}

var metricsGetCmd = &cobra.Command{
	Use:   "get <bill-id>",
	Short: "Show stored metrics of a bill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "bill-id")
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(st store.Store) error {
			m, err := newMetricsService(st).GetForBill(cmd.Context(), id)
			if err != nil {
				return err
			}
			if m == nil {
				appLogger.UserMessage("No metrics calculated for bill %d yet. Run 'strom-sense metrics calc %d'.", id, id)
				return nil
			}
			return render(m, func(w io.Writer) { formatMetrics(w, m) })
		})
	},
}

func formatMetrics(w io.Writer, m *model.BillMetrics) {
	fmt.Fprintf(w, "Bill:\t%d\n", m.BillID)
	fmt.Fprintf(w, "Days in period:\t%d\n", m.DaysInBillingPeriod)
	fmt.Fprintf(w, "Daily average:\t%.2f kWh\n", m.DailyAvgConsumptionKWh)
	fmt.Fprintf(w, "Cost per kWh:\t%.4f EUR\n", m.CostPerKWh)
	fmt.Fprintf(w, "Previous year:\t%s\n", optFloat(m.PreviousYearConsumptionKWh, "%.0f kWh"))
	fmt.Fprintf(w, "Change:\t%s\n", optFloat(m.YoYConsumptionChangePct, "%+.2f%%"))
}

func formatMetricsSummary(w io.Writer, s metrics.Summary) {
	fmt.Fprintln(w, "TOTAL\tPROCESSED\tCREATED\tUPDATED\tERRORS")
	fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n", s.Total, s.Processed, s.Created, s.Updated, s.Errors)
}

func init() {
	metricsCmd.AddCommand(metricsCalcCmd, metricsUserCmd, metricsAllCmd, metricsGetCmd)
	rootCmd.AddCommand(metricsCmd)
}
