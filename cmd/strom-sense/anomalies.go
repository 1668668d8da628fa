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

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Amenkhnisi/strom-sense/internal/anomaly"
	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/store"
)

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Detect and review unusual consumption",
}

var anomaliesDetectCmd = &cobra.Command{
	Use:   "detect [bill-id]",
	Short: "Run the detectors on a bill, or on every bill of a user",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		year, _ := cmd.Flags().GetInt("year")
		save, _ := cmd.Flags().GetBool("save")
		if (len(args) == 0) == (userID == 0) {
			return eris.New("pass either a bill id or --user")
		}

		return withStore(cmd.Context(), func(st store.Store) error {
			svc, err := newAnomalyService(st)
			if err != nil {
				return err
			}

			if userID != 0 {
				sum, err := svc.DetectForUser(cmd.Context(), userID, year)
				if err != nil {
					return err
				}
				return render(sum, func(w io.Writer) {
					formatDetections(w, sum.Results)
					fmt.Fprintf(w, "\nChecked %d bills, %d anomalous.\n", sum.BillsChecked, sum.AnomaliesFound)
				})
			}

			billID, err := parseID(args[0], "bill-id")
			if err != nil {
				return err
			}
			var d *anomaly.Detection
			if save {
				d, _, err = svc.DetectAndSave(cmd.Context(), billID)
			} else {
				d, err = svc.DetectForBill(cmd.Context(), billID)
			}
			if err != nil {
				return err
			}
			return render(d, func(w io.Writer) { formatDetection(w, d) })
		})
	},
}

var anomaliesCheckCmd = &cobra.Command{
	Use:   "check <bill-id>",
	Short: "Show the stored verdict of a bill, detecting one if none exists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		billID, err := parseID(args[0], "bill-id")
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(st store.Store) error {
			svc, err := newAnomalyService(st)
			if err != nil {
				return err
			}
			res, err := svc.CheckBill(cmd.Context(), billID)
			if err != nil {
				return err
			}
			return render(res, func(w io.Writer) {
				switch {
				case res.Anomaly != nil:
					formatAnomaly(w, res.Anomaly)
				case res.Detection != nil:
					formatDetection(w, res.Detection)
				}
			})
		})
	},
}

var anomaliesListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List stored verdicts of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseID(args[0], "user-id")
		if err != nil {
			return err
		}
		active, _ := cmd.Flags().GetBool("active")

		return withStore(cmd.Context(), func(st store.Store) error {
			svc, err := newAnomalyService(st)
			if err != nil {
				return err
			}
			list, err := svc.ListForUser(cmd.Context(), userID, active)
			if err != nil {
				return err
			}
			return render(list, func(w io.Writer) { formatAnomalies(w, list) })
		})
	},
}

var anomaliesGetCmd = &cobra.Command{
	Use:   "get <anomaly-id>",
	Short: "Show one stored verdict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "anomaly-id")
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(st store.Store) error {
			svc, err := newAnomalyService(st)
			if err != nil {
				return err
			}
			a, err := svc.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render(a, func(w io.Writer) { formatAnomaly(w, a) })
		})
	},
}

var anomaliesDismissCmd = &cobra.Command{
	Use:   "dismiss <anomaly-id>",
	Short: "Mark a verdict as reviewed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "anomaly-id")
		if err != nil {
			return err
		}
		var feedback *string
		if cmd.Flags().Changed("feedback") {
			text, _ := cmd.Flags().GetString("feedback")
			feedback = &text
		}

		return withStore(cmd.Context(), func(st store.Store) error {
			svc, err := newAnomalyService(st)
			if err != nil {
				return err
			}
			a, err := svc.Dismiss(cmd.Context(), id, feedback)
			if err != nil {
				return err
			}
			return render(a, func(w io.Writer) { formatAnomaly(w, a) })
		})
	},
}

var anomaliesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count stored verdicts by severity and type",
	RunE: func(cmd *cobra.Command, _ []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		year, _ := cmd.Flags().GetInt("year")

		return withStore(cmd.Context(), func(st store.Store) error {
			svc, err := newAnomalyService(st)
			if err != nil {
				return err
			}
			stats, err := svc.Stats(cmd.Context(), userID, year)
			if err != nil {
				return err
			}
			return render(stats, func(w io.Writer) {
				fmt.Fprintf(w, "Total:\t%d\nActive:\t%d\nDismissed:\t%d\n", stats.Total, stats.Active, stats.Dismissed)
				for _, level := range []string{model.SeverityCritical, model.SeverityWarning, model.SeverityNormal} {
					fmt.Fprintf(w, "Severity %s:\t%d\n", level, stats.BySeverity[level])
				}
				for typ, n := range stats.ByType {
					fmt.Fprintf(w, "Type %s:\t%d\n", typ, n)
				}
			})
		})
	},
}

var anomaliesBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run detection over every bill of a year",
	RunE: func(cmd *cobra.Command, _ []string) error {
		year, _ := cmd.Flags().GetInt("year")
		onlyNew, _ := cmd.Flags().GetBool("only-new")

		return withStore(cmd.Context(), func(st store.Store) error {
			svc, err := newAnomalyService(st)
			if err != nil {
				return err
			}
			sum, err := svc.BatchDetect(cmd.Context(), year, onlyNew)
			if err != nil {
				return err
			}
			return render(sum, func(w io.Writer) {
				fmt.Fprintln(w, "YEAR\tBILLS\tPROCESSED\tSKIPPED\tANOMALIES\tERRORS")
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\n",
					sum.Year, sum.TotalBills, sum.Processed, sum.Skipped, sum.AnomaliesFound, sum.Errors)
			})
		})
	},
}

func formatDetection(w io.Writer, d *anomaly.Detection) {
	fmt.Fprintf(w, "Bill:\t%d (%d)\n", d.BillID, d.BillYear)
	fmt.Fprintf(w, "Anomaly:\t%t\n", d.HasAnomaly)
	fmt.Fprintf(w, "Severity:\t%s (%.2f)\n", d.Severity, d.CombinedScore)
	fmt.Fprintf(w, "Primary type:\t%s\n", d.PrimaryType)
	fmt.Fprintf(w, "Scores:\thistorical %.2f, peer %.2f, predictive %.2f\n",
		d.Scores.Historical, d.Scores.Peer, d.Scores.Predictive)
	fmt.Fprintf(w, "Extra cost:\t%s\n", optFloat(d.EstimatedExtraCostEUR, "%.2f EUR"))
	fmt.Fprintf(w, "\n%s\n\n%s\n", d.Explanation, d.Recommendations)
}

func formatDetections(w io.Writer, list []anomaly.Detection) {
	fmt.Fprintln(w, "BILL\tYEAR\tANOMALY\tSEVERITY\tSCORE\tTYPE")
	for _, d := range list {
		fmt.Fprintf(w, "%d\t%d\t%t\t%s\t%.2f\t%s\n", d.BillID, d.BillYear, d.HasAnomaly, d.Severity, d.CombinedScore, d.PrimaryType)
	}
}

func formatAnomaly(w io.Writer, a *model.AnomalyDetection) {
	fmt.Fprintf(w, "Anomaly:\t%d (bill %d)\n", a.ID, a.BillID)
	fmt.Fprintf(w, "Detected:\t%s\n", a.DetectionDate.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "Type:\t%s\n", a.AnomalyType)
	fmt.Fprintf(w, "Severity:\t%s (%.2f)\n", a.SeverityLevel, a.SeverityScore)
	fmt.Fprintf(w, "Consumption:\t%.0f kWh (compared with %s)\n", a.CurrentConsumptionKWh, optFloat(a.ComparisonValue, "%.0f kWh"))
	fmt.Fprintf(w, "Extra cost:\t%s\n", optFloat(a.EstimatedExtraCostEUR, "%.2f EUR"))
	fmt.Fprintf(w, "Dismissed:\t%t\n", a.IsDismissed)
	if a.UserFeedback != nil {
		fmt.Fprintf(w, "Feedback:\t%s\n", *a.UserFeedback)
	}
	fmt.Fprintf(w, "\n%s\n\n%s\n", a.ExplanationText, a.RecommendationsText)
}

func formatAnomalies(w io.Writer, list []model.AnomalyDetection) {
	fmt.Fprintln(w, "ID\tBILL\tDETECTED\tTYPE\tSEVERITY\tSCORE\tEXTRA COST\tDISMISSED")
	for _, a := range list {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%.2f\t%s\t%t\n",
			a.ID, a.BillID, a.DetectionDate.Format("2006-01-02"), a.AnomalyType, a.SeverityLevel,
			a.SeverityScore, optFloat(a.EstimatedExtraCostEUR, "%.2f EUR"), a.IsDismissed)
	}
}

func init() {
	anomaliesDetectCmd.Flags().Int64("user", 0, "check every bill of this user instead of one bill")
	anomaliesDetectCmd.Flags().Int("year", 0, "with --user, only this year")
	anomaliesDetectCmd.Flags().Bool("save", false, "store the verdict of a single bill")

	anomaliesListCmd.Flags().Bool("active", false, "hide dismissed verdicts")
	anomaliesDismissCmd.Flags().String("feedback", "", "note explaining the consumption")

	anomaliesStatsCmd.Flags().Int64("user", 0, "only this user")
	anomaliesStatsCmd.Flags().Int("year", 0, "only this year")

	anomaliesBatchCmd.Flags().Int("year", 0, "bill year")
	anomaliesBatchCmd.Flags().Bool("only-new", false, "skip bills that already have a verdict")
	_ = anomaliesBatchCmd.MarkFlagRequired("year")

	anomaliesCmd.AddCommand(anomaliesDetectCmd, anomaliesCheckCmd, anomaliesListCmd, anomaliesGetCmd,
		anomaliesDismissCmd, anomaliesStatsCmd, anomaliesBatchCmd)
	rootCmd.AddCommand(anomaliesCmd)
}
