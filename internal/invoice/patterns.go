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
	"regexp"
)

// candidate is one pattern alternative for a field. Candidates of a field
// are ordered from most specific to most generic.
type candidate struct {
	re          *regexp.Regexp
	balanceType string
}

type patternSet map[Field][]candidate

func pat(expr string) candidate {
	return candidate{re: regexp.MustCompile(expr)}
}

func balancePat(expr, balanceType string) candidate {
	return candidate{re: regexp.MustCompile(expr), balanceType: balanceType}
}

// Supplier signatures, tried in priority order
var supplierSignatures = []struct {
	supplier Supplier
	re       *regexp.Regexp
}{
	{SupplierEON, regexp.MustCompile(`(?i)\bE[\.\-]?ON\b|EON\s*Deutschland`)},
	{SupplierGreenPlanet, regexp.MustCompile(`(?i)green\s*planet\s*energy|greenpeace\s*energy`)},
}

// dateLikeRe finds numeric or spelled-out dates inside a billing period match
var dateLikeRe = regexp.MustCompile(`[0-3]?\d\.[01]?\d\.\d{4}|[0-3]?\d\.\s*[A-Za-zÄÖÜäöüß]+\s*\d{4}`)

// E.ON patterns run case-insensitively against the normalized text and are
// tolerant to the OCR typos seen on E.ON invoices.
var eonPatterns = patternSet{
	FieldSupplierName: {
		pat(`(?i)\b(?:E[\.\-]?ON Energie Deutschland|EON\s*Deutschland|E[\.\-]?ON)\b`),
	},
	FieldCustomerID: {
		pat(`(?i)(?:Kundennr\.?|Kundennummer|Kunde)\s*[:\-\s]{0,10}([A-Z0-9\-\s]{4,30})`),
	},
	FieldContractNumber: {
		pat(`(?i)(?:Vertrags(?:nummer|konto)|Vertragenummer|Vertrags-?Nr\.?)\s*[:\-\s]{0,10}([A-Z0-9\-\s]{3,40})`),
	},
	FieldInvoiceID: {
		pat(`(?i)(?:Rechnungs?nummer|Rachnungsnummer|Rechnung Nr\.?)\s*[:\-\s]{0,10}([A-Z0-9\-\s]{3,40})`),
	},
	FieldMeterNumber: {
		pat(`(?i)(?:Z[äa]hler\b|Z[aä]hler[:\-\s]*|Zähler:?)\s*[:\-\s]{0,6}([0-9\-]{3,40})`),
	},
	FieldBillingPeriod: {
		pat(`(?is)(?:Zeitraum|für den Zeitraum|Abrechnungszeitraum|Lieferzeitraum).{0,60}?([0-3]?\d[\.\s]*[A-Za-z0-9ÄÖÜäöüß\.\s]{1,20}\d{4}).{0,40}?([0-3]?\d[\.\s]*[A-Za-z0-9ÄÖÜäöüß\.\s]{1,20}\d{4})`),
	},
	FieldTotalConsumption: {
		pat(`(?i)(?:Verbrauch|Energieverbrauch|Ihr Verbrauch).{0,20}?([\d\.\,\s]{2,15})\s*kWh`),
	},
	FieldNetAmount: {
		pat(`(?i)(?:Nettobetrag|Netto).{0,20}?([\-–]?\s?[\d\.\,]+\s*€)`),
	},
	FieldTotalAmount: {
		pat(`(?i)(?:Zu\s*zah?lend[er]*\s*Betrag|Zu\s*zahlen|Gesamtbetrag).{0,30}?([\-–]?\s?[\d\.\,]+\s*€)`),
	},
	FieldCredit: {
		pat(`(?i)(?:Gutschrift|Guthaben).{0,20}?([\-–]?\s?[\d\.\,]+\s*€)`),
	},
	FieldNextInstallment: {
		pat(`(?i)Abschlag.{0,40}?ab\s*(?:dem\s*)?([0-3]?\d[\.\s]*[A-Za-zÄÖÜäöüß]{3,10}\s*\d{4})[^\d]{0,10}?([\d\.\,]+\s*(?:€|Euro))`),
	},
	FieldIssueDate: {
		pat(`(?i)(?:Rechnungsdatum|Datum)\s*[:\-\s]*([0-3]?\d[\.\sA-Za-zäöüÄÖÜß]{0,20}\d{4})`),
		pat(`(?m)^\s*([0-3]?\d\.\s*[A-Za-zÄÖÜäöüß]{3,10}\s+\d{4})\s*$`),
	},
}

// Green Planet Energy prints labelled values on one line
var greenPlanetPatterns = patternSet{
	FieldSupplierName: {
		pat(`(?i)Green\s*Planet\s*Energy|Greenpeace\s*Energy`),
	},
	FieldCustomerID: {
		pat(`(?i)(?:Kundennr\.?|Kundennummer)\s*[:\-]?\s*([A-Z0-9\-]+)`),
	},
	FieldContractNumber: {
		pat(`(?i)(?:Vertragsnummer|Vertragskonto)\s*[:\-]?\s*([A-Z0-9\-]+)`),
	},
	FieldInvoiceID: {
		pat(`(?i)(?:Rechnungsnummer|Rechn\.-Nr\.?)\s*[:\-]?\s*([A-Z0-9\-]+)`),
	},
	FieldMeterNumber: {
		pat(`(?i)Z[äa]hlernummer\s*[:\-]?\s*([0-9\-]{3,40})`),
		pat(`(?i)Z[äa]hler\s*[:\-]?\s*([0-9\-]{3,40})`),
	},
	FieldBillingPeriod: {
		pat(`(?i)(?:Zeitraum|Abrechnungszeitraum)\s*(?:vom)?\s*([0-3]?\d\.[01]?\d\.\d{4}).{0,40}?(?:bis)?\s*([0-3]?\d\.[01]?\d\.\d{4})`),
	},
	FieldTotalConsumption: {
		pat(`(?i)([\d\.\,]+)\s*kWh`),
	},
	FieldTotalAmount: {
		pat(`(?i)Gesamtbetrag.{0,20}?([\-–]?\s?[\d\.\,]+\s*€)`),
	},
	FieldIssueDate: {
		pat(`(?i)(\d{1,2}\.\s*[A-Za-zÄÖÜäöüß]+\s*\d{4})`),
	},
}

// genericPatterns run against the lowercased text for every supplier,
// either as the only set or as a fallback for fields the supplier set
// did not find.
var genericPatterns = patternSet{
	FieldSupplierName: {
		pat(`\b(green\s*planet\s*energy|greenpeace\s*energy|naturstrom|e\.?\s*on|vattenfall|lichtblick|stadtwerke)\b`),
	},
	FieldCustomerID: {
		pat(`kundennummer[:\s]*([0-9]{6,})`),
		pat(`(?:kund|kurien|kurrden)(?:en)?nummer[:\s]*([0-9]{6,})`),
		pat(`kunden[-\s]?nr\.?[:\s]*([0-9]{6,})`),
		pat(`vertrags?[-\s]?nr\.?[:\s]*([a-z0-9\-]{8,})`),
	},
	FieldContractNumber: {
		pat(`vertrags(?:nummer|konto)[:\s]*([a-z0-9\-]{6,})`),
	},
	FieldInvoiceID: {
		pat(`rechnungs(?:nummer|-nr\.?)[:\s]*([a-z0-9\-]{6,})`),
	},
	FieldMeterNumber: {
		pat(`z[äa]hlernummer[:\s]*(\d{10,})`),
	},
	FieldBillingPeriod: {
		pat(`lieferzeitraum\s+(?:vom|wm)\s+(\d{1,2})[.\s]*(\d{1,2})[.\s]*(\d{2,4})\s+bis\s+(\d{1,2})[.\s]*(\d{1,2})[.\s]*(\d{2,4})`),
		pat(`zeitraum\s+(?:vom|wm)\s+(\d{1,2})[.\s]*(\d{1,2})[.\s]*(\d{2,4})\s+bis\s+(\d{1,2})[.\s]*(\d{1,2})[.\s]*(\d{2,4})`),
		pat(`(\d{1,2})[.\s]+(\d{1,2})[.\s]+(\d{2,4})\s+bis\s+(\d{1,2})[.\s]+(\d{1,2})[.\s]+(\d{2,4})`),
	},
	FieldTotalConsumption: {
		pat(`(?:ö|o|oe)\s*kostrom\s+([\d\.]{1,9})\s*kwh`),
		pat(`verbrauch[:\s]+([\d\.]{1,9})\s*kwh`),
		pat(`(\d{3,6})\s*kwh\s+an\s+\d+\s+tagen`),
	},
	FieldNetAmount: {
		pat(`nettobetrag\s+([\d\.,]+)\s*€`),
	},
	FieldTotalAmount: {
		pat(`gesamtbetrag\s+[\d\.,]+\s*€\s+[\d\.,]+\s*€\s+([\d\.,]+)\s*€`),
		pat(`gesamtbetrag[:\s]+([\d\.,]+)\s*€`),
		pat(`bruttobetrag[:\s]+([\d\.,]+)\s*€`),
	},
	FieldCredit: {
		pat(`(?:gutschrift|guthaben)\s*[:\-]?\s*([\d\.,]+)\s*€`),
	},
	FieldNextInstallment: {
		pat(`nächster\s+abschlag.*?(\d{1,2})[.\s]+(\d{1,2})[.\s]+(\d{2,4}).*?([\d\.,]+)\s*€`),
		pat(`abschlag.*?ab.*?(\d{1,2})[.\s]+(\d{1,2})[.\s]+(\d{2,4}).*?([\d\.,]+)\s*€`),
		pat(`neuer\s+abschlag.*?(\d{1,2})[.\s]+(\d{1,2})[.\s]+(\d{2,4}).*?([\d\.,]+)\s*€`),
	},
	FieldIssueDate: {
		pat(`rechnungsdatum[:\s]*(\d{1,2}\.\d{1,2}\.\d{2,4})`),
		pat(`datum[:\s]*(\d{1,2}\.\d{1,2}\.\d{4})`),
	},
	FieldVATAmount: {
		pat(`(?:ust|mwst)[.:\s]+([\d\.,]+)\s*€`),
		pat(`umsatzsteuer[:\s]+([\d\.,]+)\s*€`),
	},
	FieldVATRate: {
		pat(`(?:mwst|ust|mehrwertsteuer)[:\s]*(\d+[,\.]?\d*)\s*%`),
		pat(`(\d+)\s*%\s*(?:mwst|ust)`),
	},
	FieldWorkPrice: {
		pat(`arbeitspreis[:\s]+(\d+[,\.]\d+)\s*(?:ct|cent)`),
		pat(`preis\s+je\s+kwh[:\s]+(\d+[,\.]\d+)\s*(?:ct|cent)`),
		pat(`verbrauchspreis[:\s]+(\d+[,\.]\d+)\s*(?:ct|cent)`),
	},
	FieldBasicFee: {
		pat(`grundpreis[:\s]+(\d+[,\.]\d+)\s*€`),
		pat(`grundgebühr[:\s]+(\d+[,\.]\d+)\s*€`),
	},
	FieldBalance: {
		balancePat(`guthaben\s*[:\-]?\s*([\d\.,]+)\s*€`, BalanceCredit),
		balancePat(`nachzahlung\s*[:\-]?\s*([\d\.,]+)\s*€`, BalanceDebit),
		balancePat(`zu\s+zahlen\s*[:\-]?\s*([\d\.,]+)\s*€`, BalanceDebit),
	},
	FieldPaymentsMade: {
		pat(`abschlagszahlungen.*?-[\d\.,]+\s*€\s+-[\d\.,]+\s*€\s+-([\d\.,]+)\s*€`),
		pat(`abschlagszahlungen.*?-([\d\.,]+)\s*€`),
		pat(`gezahlte\s+abschläge.*?-([\d\.,]+)\s*€`),
	},
}

// supplierPatterns is indexed by Supplier. UNKNOWN has no specific set.
var supplierPatterns = [...]patternSet{
	SupplierEON:         eonPatterns,
	SupplierGreenPlanet: greenPlanetPatterns,
	SupplierUnknown:     nil,
}
