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

	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/peer"
	"github.com/Amenkhnisi/strom-sense/internal/store"
)

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "Compare households of the same size and property type",
}

var peersCalcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Compute statistics for one peer group",
	RunE: func(cmd *cobra.Command, _ []string) error {
		size, _ := cmd.Flags().GetInt("household-size")
		pt, _ := cmd.Flags().GetString("property-type")
		year, _ := cmd.Flags().GetInt("year")

		return withStore(cmd.Context(), func(st store.Store) error {
			stats, err := newPeerService(st).Compute(cmd.Context(), size, pt, year)
			if err != nil {
				return err
			}
			if stats == nil {
				appLogger.UserMessage("Not enough bills for %d-person households (%s) in %d.", size, pt, year)
				return nil
			}
			return render(stats, func(w io.Writer) { formatPeerStats(w, stats) })
		})
	},
}

var peersCalcAllCmd = &cobra.Command{
	Use:   "calc-all",
	Short: "Compute statistics for every peer group",
	RunE: func(cmd *cobra.Command, _ []string) error {
		year, _ := cmd.Flags().GetInt("year")
		force, _ := cmd.Flags().GetBool("force")

		return withStore(cmd.Context(), func(st store.Store) error {
			sum, err := newPeerService(st).CalculateAll(cmd.Context(), year, force)
			if err != nil {
				return err
			}
			return render(sum, func(w io.Writer) {
				fmt.Fprintln(w, "CREATED\tUPDATED\tSKIPPED\tINSUFFICIENT\tERRORS")
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n", sum.Created, sum.Updated, sum.Skipped, sum.Insufficient, sum.Errors)
			})
		})
	},
}

var peersCompareCmd = &cobra.Command{
	Use:   "compare <user-id>",
	Short: "Compare a household with its peer group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "user-id")
		if err != nil {
			return err
		}
		year, _ := cmd.Flags().GetInt("year")

		return withStore(cmd.Context(), func(st store.Store) error {
			c, err := newPeerService(st).Compare(cmd.Context(), id, year)
			if err != nil {
				return err
			}
			if c == nil {
				appLogger.UserMessage("No peer comparison available for user %d in %d.", id, year)
				return nil
			}
			return render(c, func(w io.Writer) { formatComparison(w, c) })
		})
	},
}

var peersGroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List computed peer groups",
	RunE: func(cmd *cobra.Command, _ []string) error {
		year, _ := cmd.Flags().GetInt("year")
		return withStore(cmd.Context(), func(st store.Store) error {
			groups, err := newPeerService(st).ListGroups(cmd.Context(), year)
			if err != nil {
				return err
			}
			return render(groups, func(w io.Writer) {
				fmt.Fprintln(w, "YEAR\tHOUSEHOLD\tPROPERTY\tSAMPLE\tAVERAGE\tMEDIAN\tRANGE")
				for _, g := range groups {
					fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%.0f kWh\t%.0f kWh\t%s\n",
						g.Year, g.HouseholdSize, g.PropertyType, g.SampleSize,
						g.AvgConsumptionKWh, g.MedianConsumptionKWh, g.Range)
				}
			})
		})
	},
}

var peersBenchmarksCmd = &cobra.Command{
	Use:   "benchmarks",
	Short: "Show consumption bands for a household size",
	RunE: func(cmd *cobra.Command, _ []string) error {
		size, _ := cmd.Flags().GetInt("household-size")
		year, _ := cmd.Flags().GetInt("year")

		return withStore(cmd.Context(), func(st store.Store) error {
			b, err := newPeerService(st).Benchmarks(cmd.Context(), size, year)
			if err != nil {
				return err
			}
			return render(b, func(w io.Writer) { formatBenchmark(w, b) })
		})
	},
}

func formatPeerStats(w io.Writer, p *model.PeerStatistics) {
	fmt.Fprintf(w, "Group:\t%d persons, %s, %d\n", p.HouseholdSize, p.PropertyType, p.Year)
	fmt.Fprintf(w, "Sample size:\t%d\n", p.SampleSize)
	fmt.Fprintf(w, "Average:\t%.2f kWh\n", p.AvgConsumptionKWh)
	fmt.Fprintf(w, "Std deviation:\t%.2f kWh\n", p.StdDevKWh)
	fmt.Fprintf(w, "Median:\t%.2f kWh\n", p.MedianKWh)
	fmt.Fprintf(w, "25th to 75th percentile:\t%.0f to %.0f kWh\n", p.Percentile25KWh, p.Percentile75KWh)
	fmt.Fprintf(w, "Average cost:\t%.2f EUR (%.4f EUR/kWh)\n", p.AvgCostEUR, p.AvgCostPerKWh)
}

func formatComparison(w io.Writer, c *peer.Comparison) {
	fmt.Fprintf(w, "Peer group:\t%d persons, %s (%d bills)\n", c.PeerGroup.HouseholdSize, c.PeerGroup.PropertyType, c.PeerGroup.SampleSize)
	fmt.Fprintf(w, "Your consumption:\t%.0f kWh\n", c.UserConsumptionKWh)
	fmt.Fprintf(w, "Peer average:\t%.0f kWh (median %.0f kWh)\n", c.PeerAvgKWh, c.PeerMedianKWh)
	fmt.Fprintf(w, "Difference:\t%+.0f kWh (%+.1f%%)\n", c.DifferenceKWh, c.PercentDifference)
	fmt.Fprintf(w, "Z-score:\t%.2f\n", c.ZScore)
	fmt.Fprintf(w, "Position:\t%s\n", c.Percentile)
	fmt.Fprintf(w, "Classification:\t%s\n", c.Classification)
}

func formatBenchmark(w io.Writer, b *peer.Benchmark) {
	fmt.Fprintln(w, "PROPERTY\tEXCELLENT\tGOOD\tAVERAGE\tHIGH")
	for _, row := range []struct {
		name   string
		ranges *peer.Ranges
	}{
		{model.PropertyApartment, b.Apartment},
		{model.PropertyHouse, b.House},
		{model.PropertyAll, b.AllTypes},
	} {
		if row.ranges == nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\n", row.name)
			continue
		}
		r := row.ranges
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", row.name, r.Excellent, r.Good, r.Average, r.High)
	}
}

func init() {
	peersCalcCmd.Flags().Int("household-size", 0, "number of people in the household")
	peersCalcCmd.Flags().String("property-type", model.PropertyAll, "apartment, house or all")
	peersCalcCmd.Flags().Int("year", 0, "bill year")
	_ = peersCalcCmd.MarkFlagRequired("household-size")
	_ = peersCalcCmd.MarkFlagRequired("year")

	peersCalcAllCmd.Flags().Int("year", 0, "only this year (default: every year with bills)")
	peersCalcAllCmd.Flags().Bool("force", false, "recompute groups that already have statistics")

	peersCompareCmd.Flags().Int("year", 0, "bill year")
	_ = peersCompareCmd.MarkFlagRequired("year")

	peersGroupsCmd.Flags().Int("year", 0, "only this year")

	peersBenchmarksCmd.Flags().Int("household-size", 0, "number of people in the household")
	peersBenchmarksCmd.Flags().Int("year", 0, "bill year")
	_ = peersBenchmarksCmd.MarkFlagRequired("household-size")
	_ = peersBenchmarksCmd.MarkFlagRequired("year")

	peersCmd.AddCommand(peersCalcCmd, peersCalcAllCmd, peersCompareCmd, peersGroupsCmd, peersBenchmarksCmd)
	rootCmd.AddCommand(peersCmd)
}
