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
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Amenkhnisi/strom-sense/internal/invoice"
	"github.com/Amenkhnisi/strom-sense/internal/ocr"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file|->",
	Short: "Extract invoice fields from a PDF, image or text file",
	Long:  "Runs text extraction, OCR cleanup and field extraction without storing anything. Use - to read already extracted text from stdin.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInvoiceText(cmd, args[0])
		if err != nil {
			return err
		}

		if supplierOnly, _ := cmd.Flags().GetBool("supplier-only"); supplierOnly {
			supplier := invoice.DetectSupplier(invoice.Normalize(text))
			return render(map[string]invoice.Supplier{"supplier": supplier}, func(w io.Writer) {
				fmt.Fprintln(w, supplier)
			})
		}

		parsed := invoice.Parse(text)
		appLogger.Info("Invoice parsed", "supplier", parsed.Supplier, "fields_found", len(parsed.Found()))
		return render(parsed, func(w io.Writer) { formatInvoice(w, parsed) })
	},
}

func readInvoiceText(cmd *cobra.Command, arg string) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", eris.Wrap(err, "read stdin")
		}
		return string(data), nil
	}
	if _, err := os.Stat(arg); err != nil {
		return "", eris.Wrapf(err, "invoice file %s", arg)
	}
	return ocr.NewRouter(cfg.OCR).ExtractText(cmd.Context(), arg)
}

func formatInvoice(w io.Writer, p *invoice.ParsedInvoice) {
	fmt.Fprintf(w, "Supplier:\t%s\n\n", p.Supplier)
	fmt.Fprintln(w, "FIELD\tVALUE\tCONFIDENCE\tRAW")
	for _, f := range p.Found() {
		e := p.Get(f)
		raw := e.Raw
		if len(e.RawParts) > 0 {
			raw = strings.Join(e.RawParts, " / ")
		}
		conf := fmt.Sprintf("%.2f", e.Confidence)
		if e.Generic {
			conf += " (generic)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f, formatValue(e.Normalized), conf, raw)
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case float64:
		return fmt.Sprintf("%.2f", val)
	case invoice.Period:
		return val.Start + " to " + val.End
	case invoice.Installment:
		if val.Amount == nil {
			return val.Date
		}
		return fmt.Sprintf("%.2f from %s", *val.Amount, val.Date)
	case invoice.Balance:
		return fmt.Sprintf("%.2f (%s)", val.Amount, val.Type)
	default:
		return fmt.Sprint(val)
	}
}

func init() {
	parseCmd.Flags().Bool("supplier-only", false, "only detect the supplier")
	rootCmd.AddCommand(parseCmd)
}
