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
	"bytes"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/invoice"
	"github.com/Amenkhnisi/strom-sense/internal/model"
)

func subcommandNames(c *cobra.Command) map[string]bool {
	names := make(map[string]bool)
	for _, sub := range c.Commands() {
		names[sub.Name()] = true
	}
	return names
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(rootCmd)
	for _, name := range []string{"migrate", "parse", "users", "bills", "metrics", "peers", "weather", "anomalies", "report", "version"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestCommandGroups(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		subs []string
	}{
		{usersCmd, []string{"add", "list"}},
		{billsCmd, []string{"add", "ingest", "get", "list", "delete"}},
		{metricsCmd, []string{"calc", "user", "all", "get"}},
		{peersCmd, []string{"calc", "calc-all", "compare", "groups", "benchmarks"}},
		{weatherCmd, []string{"hdd", "factor", "expected", "normalize", "cache", "prefetch"}},
		{weatherCacheCmd, []string{"list", "clear"}},
		{anomaliesCmd, []string{"detect", "check", "list", "get", "dismiss", "stats", "batch"}},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			names := subcommandNames(tt.cmd)
			for _, sub := range tt.subs {
				assert.True(t, names[sub], "%s should have subcommand %q", tt.cmd.Name(), sub)
			}
		})
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	for _, name := range []string{"config", "debug", "output"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
	assert.Equal(t, "table", rootCmd.PersistentFlags().Lookup("output").DefValue)
}

func TestCommandFlags(t *testing.T) {
	assert.NotNil(t, parseCmd.Flags().Lookup("supplier-only"))
	assert.NotNil(t, billsIngestCmd.Flags().Lookup("dry-run"))
	assert.NotNil(t, peersCalcAllCmd.Flags().Lookup("force"))
	assert.NotNil(t, anomaliesBatchCmd.Flags().Lookup("only-new"))
	assert.NotNil(t, reportCmd.Flags().Lookup("chart"))
	assert.Equal(t, model.PropertyAll, peersCalcCmd.Flags().Lookup("property-type").DefValue)
}

func TestRenderTo(t *testing.T) {
	v := map[string]int{"processed": 3}

	var buf bytes.Buffer
	require.NoError(t, renderTo(&buf, "json", v, nil))
	assert.JSONEq(t, `{"processed": 3}`, buf.String())

	buf.Reset()
	require.NoError(t, renderTo(&buf, "yaml", v, nil))
	assert.Equal(t, "processed: 3\n", buf.String())

	buf.Reset()
	require.NoError(t, renderTo(&buf, "table", v, func(w io.Writer) {
		fmt.Fprintln(w, "NAME\tCOUNT")
		fmt.Fprintln(w, "processed\t3")
	}))
	assert.Equal(t, "NAME       COUNT\nprocessed  3\n", buf.String())

	buf.Reset()
	require.NoError(t, renderTo(&buf, "table", v, nil))
	assert.Equal(t, "processed: 3\n", buf.String())
}

func TestParseArgs(t *testing.T) {
	id, err := parseID("42", "bill-id")
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	for _, bad := range []string{"0", "-3", "abc"} {
		_, err := parseID(bad, "bill-id")
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr, bad)
		assert.Equal(t, "bill-id", verr.Field)
	}

	year, err := parseYear("2024")
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	_, err = parseYear("1999")
	assert.Error(t, err)

	kwh, err := parseKWh("3512.5", "actual-kwh")
	require.NoError(t, err)
	assert.Equal(t, 3512.5, kwh)
	_, err = parseKWh("-1", "actual-kwh")
	assert.Error(t, err)
}

func TestBillFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "add"}
	addBillFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--user", "3", "--kwh", "3512", "--cost", "1213.80",
		"--start", "2023-01-01", "--end", "2023-12-31", "--tariff", "0.3215",
	}))

	b, err := billFromFlags(cmd)
	require.NoError(t, err)
	assert.EqualValues(t, 3, b.UserID)
	assert.Equal(t, 2023, b.BillYear)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), b.BillingEnd)
	require.NotNil(t, b.TariffRate)
	assert.Equal(t, 0.3215, *b.TariffRate)
}

func TestBillFromFlags_BadDates(t *testing.T) {
	cmd := &cobra.Command{Use: "add"}
	addBillFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--start", "01.01.2023", "--end", "31.12.2023"}))

	_, err := billFromFlags(cmd)
	var problems apperr.ValidationErrors
	require.ErrorAs(t, err, &problems)
	assert.Len(t, problems, 2)
}

func TestValidateUser(t *testing.T) {
	valid := func() *model.UserProfile {
		return &model.UserProfile{
			Email:         "anna@example.de",
			Username:      "anna",
			PostalCode:    "80331",
			HouseholdSize: model.Int(2),
			PropertyType:  model.String(model.PropertyApartment),
		}
	}
	assert.NoError(t, validateUser(valid()))

	tests := []struct {
		name   string
		mutate func(u *model.UserProfile)
		field  string
	}{
		{"email", func(u *model.UserProfile) { u.Email = "anna" }, "email"},
		{"username", func(u *model.UserProfile) { u.Username = "" }, "username"},
		{"postal code", func(u *model.UserProfile) { u.PostalCode = "8033" }, "postal-code"},
		{"household size", func(u *model.UserProfile) { u.HouseholdSize = model.Int(0) }, "household-size"},
		{"property type", func(u *model.UserProfile) { u.PropertyType = model.String(model.PropertyAll) }, "property-type"},
		{"size", func(u *model.UserProfile) { u.PropertySizeSqm = model.Float(-40) }, "size-sqm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := valid()
			tt.mutate(u)
			err := validateUser(u)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestFormatInvoice(t *testing.T) {
	amount := 101.0
	p := &invoice.ParsedInvoice{
		Supplier: invoice.SupplierUnknown,
		Fields: map[invoice.Field]*invoice.ExtractedField{
			invoice.FieldBillingPeriod:    {RawParts: []string{"1.1.2023", "31.12.2023"}, Normalized: invoice.Period{Start: "2023-01-01", End: "2023-12-31"}, Confidence: 0.75, Generic: true},
			invoice.FieldTotalConsumption: {Raw: "3512 kWh", Normalized: 3512.0, Confidence: 0.75, Generic: true},
			invoice.FieldNextInstallment:  {Raw: "01.02.2024 101,00 €", Normalized: invoice.Installment{Date: "2024-02-01", Amount: &amount}, Confidence: 0.75},
		},
	}

	var buf bytes.Buffer
	formatInvoice(&buf, p)
	out := buf.String()
	assert.Contains(t, out, "billingPeriod\t2023-01-01 to 2023-12-31\t0.75 (generic)\t1.1.2023 / 31.12.2023")
	assert.Contains(t, out, "totalConsumption\t3512.00\t0.75 (generic)\t3512 kWh")
	assert.Contains(t, out, "nextInstallment\t101.00 from 2024-02-01\t0.75\t")
	assert.Equal(t, "-", formatValue(nil))
	assert.Equal(t, "12.50 (credit)", formatValue(invoice.Balance{Amount: 12.5, Type: invoice.BalanceCredit}))
}
