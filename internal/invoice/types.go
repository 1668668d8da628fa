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

// Package invoice turns OCR text of German energy invoices into structured
// fields.
package invoice

import (
	"fmt"
)

// Supplier identifies which pattern set is used for extraction
type Supplier int

// Known suppliers, in detection priority order
const (
	SupplierEON Supplier = iota
	SupplierGreenPlanet
	SupplierUnknown
)

var supplierNames = [...]string{
	SupplierEON:         "EON",
	SupplierGreenPlanet: "GREEN_PLANET",
	SupplierUnknown:     "UNKNOWN",
}

func (s Supplier) String() string {
	if s < 0 || int(s) >= len(supplierNames) {
		return fmt.Sprintf("Supplier(%d)", int(s))
	}
	return supplierNames[s]
}

// MarshalText implements encoding.TextMarshaler
func (s Supplier) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Field names an invoice attribute that extraction looks for
type Field int

// Extracted invoice fields
const (
	FieldSupplierName Field = iota
	FieldCustomerID
	FieldContractNumber
	FieldInvoiceID
	FieldMeterNumber
	FieldBillingPeriod
	FieldTotalConsumption
	FieldNetAmount
	FieldTotalAmount
	FieldCredit
	FieldNextInstallment
	FieldIssueDate
	FieldVATAmount
	FieldVATRate
	FieldWorkPrice
	FieldBasicFee
	FieldBalance
	FieldPaymentsMade
	numFields
)

var fieldNames = [...]string{
	FieldSupplierName:     "supplierName",
	FieldCustomerID:       "customerId",
	FieldContractNumber:   "contractNumber",
	FieldInvoiceID:        "invoiceId",
	FieldMeterNumber:      "meterNumber",
	FieldBillingPeriod:    "billingPeriod",
	FieldTotalConsumption: "totalConsumption",
	FieldNetAmount:        "netAmount",
	FieldTotalAmount:      "totalAmount",
	FieldCredit:           "credit",
	FieldNextInstallment:  "nextInstallment",
	FieldIssueDate:        "issueDate",
	FieldVATAmount:        "vatAmount",
	FieldVATRate:          "vatRate",
	FieldWorkPrice:        "workPrice",
	FieldBasicFee:         "basicFee",
	FieldBalance:          "balance",
	FieldPaymentsMade:     "paymentsMade",
}

// AllFields returns every field in extraction order
func AllFields() []Field {
	fields := make([]Field, 0, numFields)
	for f := Field(0); f < numFields; f++ {
		fields = append(fields, f)
	}
	return fields
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// MarshalText implements encoding.TextMarshaler
func (f Field) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// valueKind decides how a raw match is normalized
type valueKind int

const (
	kindText valueKind = iota
	kindAmount
	kindKWh
	kindDate
	kindPeriod
	kindInstallment
	kindBalance
	kindPercent
	kindCents
)

func (f Field) kind() valueKind {
	switch f {
	case FieldNetAmount, FieldTotalAmount, FieldCredit, FieldVATAmount, FieldBasicFee, FieldPaymentsMade:
		return kindAmount
	case FieldTotalConsumption:
		return kindKWh
	case FieldIssueDate:
		return kindDate
	case FieldBillingPeriod:
		return kindPeriod
	case FieldNextInstallment:
		return kindInstallment
	case FieldBalance:
		return kindBalance
	case FieldVATRate:
		return kindPercent
	case FieldWorkPrice:
		return kindCents
	default:
		return kindText
	}
}

// Period is a normalized billing period with ISO dates
type Period struct {
	Start string `json:"start_date" yaml:"start_date"`
	End   string `json:"end_date" yaml:"end_date"`
}

// Installment is the next advance payment announced on the invoice
type Installment struct {
	Date   string   `json:"date" yaml:"date"`
	Amount *float64 `json:"amount" yaml:"amount"`
}

// Balance types
const (
	BalanceCredit = "credit"
	BalanceDebit  = "debit"
)

// Balance is the settlement amount and whether it is owed or refunded
type Balance struct {
	Amount float64 `json:"amount" yaml:"amount"`
	Type   string  `json:"type" yaml:"type"`
}

// ExtractedField is one matched field. Normalized holds a string, float64,
// Period, Installment or Balance depending on the field, or nil when the
// raw match could not be normalized. Confidence ranks matches against each
// other and is not a probability.
type ExtractedField struct {
	Raw        string   `json:"raw" yaml:"raw"`
	RawParts   []string `json:"raw_parts,omitempty" yaml:"raw_parts,omitempty"`
	Normalized any      `json:"normalized" yaml:"normalized"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
	Generic    bool     `json:"generic,omitempty" yaml:"generic,omitempty"`
}

// Float returns the numeric value of an amount, consumption, rate or price field
func (e *ExtractedField) Float() (float64, bool) {
	if e == nil {
		return 0, false
	}
	v, ok := e.Normalized.(float64)
	return v, ok
}

// Text returns the value of a text or date field
func (e *ExtractedField) Text() (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e.Normalized.(string)
	return v, ok
}

// Period returns the value of the billing period field
func (e *ExtractedField) Period() (Period, bool) {
	if e == nil {
		return Period{}, false
	}
	v, ok := e.Normalized.(Period)
	return v, ok
}

// Installment returns the value of the next installment field
func (e *ExtractedField) Installment() (Installment, bool) {
	if e == nil {
		return Installment{}, false
	}
	v, ok := e.Normalized.(Installment)
	return v, ok
}

// Balance returns the value of the balance field
func (e *ExtractedField) Balance() (Balance, bool) {
	if e == nil {
		return Balance{}, false
	}
	v, ok := e.Normalized.(Balance)
	return v, ok
}

// ParsedInvoice is the result of extraction. Fields holds an entry for every
// known field; absent fields map to nil.
type ParsedInvoice struct {
	Supplier   Supplier                  `json:"supplier" yaml:"supplier"`
	Fields     map[Field]*ExtractedField `json:"fields" yaml:"fields"`
	TextSample string                    `json:"text_sample,omitempty" yaml:"text_sample,omitempty"`
}

// Get returns the extracted field or nil
func (p *ParsedInvoice) Get(f Field) *ExtractedField {
	if p == nil {
		return nil
	}
	return p.Fields[f]
}

// Found lists the fields that matched, in extraction order
func (p *ParsedInvoice) Found() []Field {
	var found []Field
	for _, f := range AllFields() {
		if p.Fields[f] != nil {
			found = append(found, f)
		}
	}
	return found
}
