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
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Amenkhnisi/strom-sense/internal/report"
	"github.com/Amenkhnisi/strom-sense/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report <user-id>",
	Short: "Write a markdown or HTML report for a household",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseID(args[0], "user-id")
		if err != nil {
			return err
		}
		outPath, _ := cmd.Flags().GetString("out")
		chartPath, _ := cmd.Flags().GetString("chart")
		asHTML, _ := cmd.Flags().GetBool("html")

		return withStore(cmd.Context(), func(st store.Store) error {
			rep, err := report.Build(cmd.Context(), st, userID)
			if err != nil {
				return err
			}
			r := report.NewReporter(cfg.Report.ChartTheme, appLogger)

			if outputFormat != "table" {
				return render(rep, nil)
			}

			var w io.Writer = os.Stdout
			if outPath != "" {
				file, err := os.Create(outPath)
				if err != nil {
					return eris.Wrap(err, "create report file")
				}
				defer file.Close() //nolint:errcheck
				w = file
			}
			generate := r.Generate
			if asHTML {
				generate = r.GenerateHTML
			}
			if err := generate(w, rep); err != nil {
				return err
			}
			if outPath != "" {
				appLogger.Info("Report saved", "path", outPath)
			}

			if chartPath != "" {
				return r.WriteChart(chartPath, rep)
			}
			return nil
		})
	},
}

func init() {
	reportCmd.Flags().String("out", "", "write the report to this file (default: stdout)")
	reportCmd.Flags().String("chart", "", "also write a PNG consumption chart to this file")
	reportCmd.Flags().Bool("html", false, "write an HTML report with an embedded chart instead of markdown")
	rootCmd.AddCommand(reportCmd)
}
