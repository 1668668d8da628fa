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

package invoice

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eonSample = `e-on
Born CO Enge DanschmdniPonfch 475-8800 Landeut So erreichen Sie uns:
je]
Sereiaportal Mein EON:
Einfach aufsonde
Herrn einloggen oder registrieren.
Max Mustermann Nutzen Siegernauch unser
Beispielstraße 123 Kontaktformular unter
12345 Musterstadt eon.de/kontaktformuler
8
ON Energie Deutschland GmbH
Postfach 1475
Ihre Stromrechnung 2023/24 84001 Landshut
für don Zeitraum vom 27. März 2023 bis 26. März 2024
Bitte Immar angeben:
Kunde: Max Mustermann Vertragenummer
Verbrauchsstlle: Beiepilstraße 129, 12348 Musterstadt 1234667890
Zähler: 13456-000000
Rachnungsnummer
Sehr geehrter Herr Mustermann, 224 567 B00128
28. März 2024
Ihr Energieverbrauch von 1.246 kWh im Energieverbrauch?
Rechnungszeitraum entspricht 1.248 KWh per Jahr (auf 365 Tage umgerechnet).
Ihre Gutschrift 84,63€
Wir überweisen Ihre Gutschrift in den nächsten Tagen auf das Konto mit IBAN DEO1200000000 2007 89
Ihr nächster Abschlag ab dem 2. Mai 2024 52,00 Euro.
`

const greenPlanetSample = `Green Planet Energy eG
Kundennummer: 4711-0815
Vertragsnummer: GP-2023-778
Rechnungsnummer: R-99812
Zählernummer: 60012345
Abrechnungszeitraum vom 01.01.2023 bis 31.12.2023
Ökostrom 2.345 kWh
Arbeitspreis: 32,15 ct/kWh
Nachzahlung: 45,10 €
Gesamtbetrag 812,40 €
Hamburg, 15. Januar 2024
`

const municipalSample = `Stadtwerke Musterstadt GmbH
Kundennummer: 12345678
Rechnungsnummer: 2024-000123
Lieferzeitraum vom 1.1.2023 bis 31.12.2023
Verbrauch: 3512 kWh
Gesamtbetrag 1.020,00 € 193,80 € 1.213,80 €
Zählernummer: 1234567890
Nächster Abschlag ab 01.02.2024 101,00 €
`

func floatField(t *testing.T, p *ParsedInvoice, f Field) float64 {
	t.Helper()
	v, ok := p.Get(f).Float()
	require.True(t, ok, "field %s has no numeric value", f)
	return v
}

func TestDetectSupplier(t *testing.T) {
	tests := []struct {
		text string
		want Supplier
	}{
		{"E.ON Energie Deutschland GmbH", SupplierEON},
		{"Ihre Rechnung von EON Deutschland", SupplierEON},
		{"Rechnung von Greenpeace Energy", SupplierGreenPlanet},
		{"green planet energy eG", SupplierGreenPlanet},
		{"E.ON Vertrieb, früher Green Planet Energy", SupplierEON},
		{"Stadtwerke Musterstadt", SupplierUnknown},
		{"Neon Leuchtreklame", SupplierUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSupplier(tt.text))
		})
	}
}

func TestParse_EON(t *testing.T) {
	p := Parse(eonSample)
	require.Equal(t, SupplierEON, p.Supplier)

	meter, ok := p.Get(FieldMeterNumber).Text()
	require.True(t, ok)
	assert.Equal(t, "13456-000000", meter)

	period, ok := p.Get(FieldBillingPeriod).Period()
	require.True(t, ok)
	assert.Equal(t, Period{Start: "2023-03-27", End: "2024-03-26"}, period)
	assert.Equal(t, []string{"27. März 2023", "26. März 2024"}, p.Get(FieldBillingPeriod).RawParts)

	assert.Equal(t, 1246.0, floatField(t, p, FieldTotalConsumption))
	assert.InDelta(t, 84.63, floatField(t, p, FieldCredit), 1e-9)

	inst, ok := p.Get(FieldNextInstallment).Installment()
	require.True(t, ok)
	amount := 52.0
	if diff := cmp.Diff(Installment{Date: "2024-05-02", Amount: &amount}, inst); diff != "" {
		t.Errorf("next installment mismatch (-want +got):\n%s", diff)
	}

	issued, ok := p.Get(FieldIssueDate).Text()
	require.True(t, ok)
	assert.Equal(t, "2024-03-28", issued)

	customer, ok := p.Get(FieldCustomerID).Text()
	require.True(t, ok)
	assert.Contains(t, customer, "Max Mustermann")

	for _, f := range []Field{FieldMeterNumber, FieldBillingPeriod, FieldTotalConsumption, FieldCredit, FieldNextInstallment} {
		assert.InDelta(t, 0.92, p.Get(f).Confidence, 1e-9, f.String())
		assert.False(t, p.Get(f).Generic, f.String())
	}

	assert.Nil(t, p.Get(FieldNetAmount))
	assert.Nil(t, p.Get(FieldTotalAmount))
	assert.NotEmpty(t, p.TextSample)
}

func TestParse_GreenPlanet(t *testing.T) {
	p := Parse(greenPlanetSample)
	require.Equal(t, SupplierGreenPlanet, p.Supplier)

	want := map[Field]string{
		FieldSupplierName:   "Green Planet Energy",
		FieldCustomerID:     "4711-0815",
		FieldContractNumber: "GP-2023-778",
		FieldInvoiceID:      "R-99812",
		FieldMeterNumber:    "60012345",
		FieldIssueDate:      "2024-01-15",
	}
	for f, v := range want {
		got, ok := p.Get(f).Text()
		require.True(t, ok, f.String())
		assert.Equal(t, v, got, f.String())
	}

	period, ok := p.Get(FieldBillingPeriod).Period()
	require.True(t, ok)
	assert.Equal(t, Period{Start: "2023-01-01", End: "2023-12-31"}, period)

	assert.Equal(t, 2345.0, floatField(t, p, FieldTotalConsumption))
	assert.InDelta(t, 812.40, floatField(t, p, FieldTotalAmount), 1e-9)

	// generic fallbacks fill fields the supplier set has no pattern for
	work := p.Get(FieldWorkPrice)
	require.NotNil(t, work)
	assert.True(t, work.Generic)
	assert.InDelta(t, 0.75, work.Confidence, 1e-9)
	assert.InDelta(t, 32.15, floatField(t, p, FieldWorkPrice), 1e-9)

	bal, ok := p.Get(FieldBalance).Balance()
	require.True(t, ok)
	assert.Equal(t, BalanceDebit, bal.Type)
	assert.InDelta(t, 45.10, bal.Amount, 1e-9)
}

func TestParse_UnknownSupplierUsesGenericPatterns(t *testing.T) {
	p := Parse(municipalSample)
	require.Equal(t, SupplierUnknown, p.Supplier)

	for _, f := range p.Found() {
		assert.True(t, p.Get(f).Generic, f.String())
		assert.LessOrEqual(t, p.Get(f).Confidence, 0.75, f.String())
	}

	name, _ := p.Get(FieldSupplierName).Text()
	assert.Equal(t, "stadtwerke", name)
	customer, _ := p.Get(FieldCustomerID).Text()
	assert.Equal(t, "12345678", customer)
	invoiceID, _ := p.Get(FieldInvoiceID).Text()
	assert.Equal(t, "2024-000123", invoiceID)
	meter, _ := p.Get(FieldMeterNumber).Text()
	assert.Equal(t, "1234567890", meter)

	period, ok := p.Get(FieldBillingPeriod).Period()
	require.True(t, ok)
	assert.Equal(t, Period{Start: "2023-01-01", End: "2023-12-31"}, period)

	assert.Equal(t, 3512.0, floatField(t, p, FieldTotalConsumption))
	assert.InDelta(t, 1213.80, floatField(t, p, FieldTotalAmount), 1e-9)

	inst, ok := p.Get(FieldNextInstallment).Installment()
	require.True(t, ok)
	assert.Equal(t, "2024-02-01", inst.Date)
	require.NotNil(t, inst.Amount)
	assert.InDelta(t, 101.0, *inst.Amount, 1e-9)
}

func TestExtract_EveryFieldKeyPresent(t *testing.T) {
	p := Extract("", SupplierUnknown)
	assert.Len(t, p.Fields, len(AllFields()))
	for _, f := range AllFields() {
		v, present := p.Fields[f]
		assert.True(t, present, f.String())
		assert.Nil(t, v, f.String())
	}
}

func TestExtract_RejectsInvoiceNumbersAsCustomerID(t *testing.T) {
	p := Parse("Vertrags-Nr.: zahlerkonto99")
	assert.Nil(t, p.Get(FieldCustomerID))

	assert.True(t, rejectedCustomerID("Rechnungsnummer 123"))
	assert.True(t, rejectedCustomerID("Gläubiger-ID DE98"))
	assert.True(t, rejectedCustomerID("GLÄUBIGER-ID"))
	assert.True(t, rejectedCustomerID("Zähler 4711"))
	assert.False(t, rejectedCustomerID("12345678"))
}

func TestNormalize_CreditorIDIsNotACustomerID(t *testing.T) {
	text := Normalize("EI Sudig.er-ID DE98ZZZ09999999999")
	assert.Contains(t, text, "Gläubiger-ID")
	assert.True(t, rejectedCustomerID(text))
}

func TestExtract_UnparseableMatchHasZeroConfidence(t *testing.T) {
	p := Parse("Green Planet Energy\nGesamtbetrag ,€")
	f := p.Get(FieldTotalAmount)
	require.NotNil(t, f)
	assert.Equal(t, ",€", f.Raw)
	assert.Nil(t, f.Normalized)
	assert.Equal(t, 0.0, f.Confidence)
}

func TestFieldText(t *testing.T) {
	assert.Equal(t, "totalConsumption", FieldTotalConsumption.String())
	assert.Equal(t, "GREEN_PLANET", SupplierGreenPlanet.String())
	text, err := FieldCredit.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "credit", string(text))
}
