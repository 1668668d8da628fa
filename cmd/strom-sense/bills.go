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
	"time"

	"github.com/spf13/cobra"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/store"
)

var billsCmd = &cobra.Command{
	Use:   "bills",
	Short: "Manage yearly electricity bills",
}

var billsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a bill by hand",
	RunE: func(cmd *cobra.Command, _ []string) error {
		b, err := billFromFlags(cmd)
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(st store.Store) error {
			m, err := newBillService(st).Create(cmd.Context(), b)
			if err != nil {
				return err
			}
			out := struct {
				Bill    *model.Bill        `json:"bill" yaml:"bill"`
				Metrics *model.BillMetrics `json:"metrics" yaml:"metrics"`
			}{b, m}
			return render(out, func(w io.Writer) { formatBills(w, []model.Bill{*b}) })
		})
	},
}

var billsIngestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Read a bill from an invoice PDF, scan or text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		return withStore(cmd.Context(), func(st store.Store) error {
			res, err := newBillService(st).Ingest(cmd.Context(), userID, args[0], dryRun)
			if err != nil {
				if res != nil && res.Invoice != nil {
					_ = render(res.Invoice, func(w io.Writer) { formatInvoice(w, res.Invoice) })
				}
				return err
			}
			if dryRun {
				return render(res.Invoice, func(w io.Writer) { formatInvoice(w, res.Invoice) })
			}
			return render(res, func(w io.Writer) {
				formatBills(w, []model.Bill{*res.Bill})
				fmt.Fprintf(w, "\nSupplier:\t%s\nRequest:\t%s\n", res.Invoice.Supplier, res.RequestID)
			})
		})
	},
}

var billsGetCmd = &cobra.Command{
	Use:   "get <bill-id>",
	Short: "Show one bill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "bill-id")
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(st store.Store) error {
			b, err := newBillService(st).Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render(b, func(w io.Writer) { formatBills(w, []model.Bill{*b}) })
		})
	},
}

var billsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bills",
	RunE: func(cmd *cobra.Command, _ []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		return withStore(cmd.Context(), func(st store.Store) error {
			list, err := newBillService(st).List(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return render(list, func(w io.Writer) { formatBills(w, list) })
		})
	},
}

var billsDeleteCmd = &cobra.Command{
	Use:   "delete <bill-id>",
	Short: "Delete a bill with its metrics and anomaly record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "bill-id")
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(st store.Store) error {
			if err := newBillService(st).Delete(cmd.Context(), id); err != nil {
				return err
			}
			appLogger.UserMessage("Deleted bill %d.", id)
			return nil
		})
	},
}

func billFromFlags(cmd *cobra.Command) (*model.Bill, error) {
	f := cmd.Flags()
	var problems apperr.ValidationErrors

	b := &model.Bill{}
	b.UserID, _ = f.GetInt64("user")
	b.BillYear, _ = f.GetInt("year")
	b.ConsumptionKWh, _ = f.GetFloat64("kwh")
	b.TotalCostEUR, _ = f.GetFloat64("cost")

	for _, d := range []struct {
		flag string
		dst  *time.Time
	}{
		{"start", &b.BillingStart},
		{"end", &b.BillingEnd},
	} {
		raw, _ := f.GetString(d.flag)
		t, err := time.Parse(model.DateLayout, raw)
		if err != nil {
			problems = append(problems, &apperr.ValidationError{Field: d.flag, Value: raw, Message: "must be a date like 2024-01-31"})
			continue
		}
		*d.dst = t
	}
	if f.Changed("tariff") {
		rate, _ := f.GetFloat64("tariff")
		b.TariffRate = model.Float(rate)
	}
	if b.BillYear == 0 && !b.BillingEnd.IsZero() {
		b.BillYear = b.BillingEnd.Year()
	}

	if err := problems.OrNil(); err != nil {
		return nil, err
	}
	return b, nil
}

func formatBills(w io.Writer, list []model.Bill) {
	fmt.Fprintln(w, "ID\tUSER\tYEAR\tPERIOD\tCONSUMPTION\tCOST\tTARIFF")
	for _, b := range list {
		fmt.Fprintf(w, "%d\t%d\t%d\t%s to %s\t%.0f kWh\t%.2f EUR\t%s\n",
			b.ID, b.UserID, b.BillYear,
			b.BillingStart.Format(model.DateLayout), b.BillingEnd.Format(model.DateLayout),
			b.ConsumptionKWh, b.TotalCostEUR, optFloat(b.TariffRate, "%.4f EUR/kWh"))
	}
}

func addBillFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int64("user", 0, "user id")
	f.Int("year", 0, "bill year (default: year of the end date)")
	f.Float64("kwh", 0, "consumption in kWh")
	f.Float64("cost", 0, "total cost in EUR")
	f.String("start", "", "billing period start (YYYY-MM-DD)")
	f.String("end", "", "billing period end (YYYY-MM-DD)")
	f.Float64("tariff", 0, "work price in EUR per kWh")
	for _, name := range []string{"user", "kwh", "cost", "start", "end"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func init() {
	addBillFlags(billsAddCmd)

	billsIngestCmd.Flags().Int64("user", 0, "user id")
	billsIngestCmd.Flags().Bool("dry-run", false, "parse the invoice without storing a bill")
	_ = billsIngestCmd.MarkFlagRequired("user")

	billsListCmd.Flags().Int64("user", 0, "only bills of this user")

	billsCmd.AddCommand(billsAddCmd, billsIngestCmd, billsGetCmd, billsListCmd, billsDeleteCmd)
	rootCmd.AddCommand(billsCmd)
}
