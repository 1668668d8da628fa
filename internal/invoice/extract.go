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
	"strings"
	"unicode/utf8"
)

const (
	textSampleRunes = 800
	periodWindow    = 200
)

// Parse normalizes raw OCR text, detects the supplier and extracts every
// field. It never fails; fields that could not be found are nil.
func Parse(raw string) *ParsedInvoice {
	text := Normalize(raw)
	parsed := Extract(text, DetectSupplier(text))
	parsed.TextSample = sample(text, textSampleRunes)
	return parsed
}

// DetectSupplier returns the first supplier whose signature occurs in text
func DetectSupplier(text string) Supplier {
	for _, sig := range supplierSignatures {
		if sig.re.MatchString(text) {
			return sig.supplier
		}
	}
	return SupplierUnknown
}

// Extract runs the supplier's pattern set over normalized text and falls
// back to the generic patterns for every field the supplier set misses.
func Extract(text string, supplier Supplier) *ParsedInvoice {
	lower := germanLower.String(text)
	specific := supplierPatterns[supplier]

	parsed := &ParsedInvoice{
		Supplier: supplier,
		Fields:   make(map[Field]*ExtractedField, numFields),
	}
	for _, f := range AllFields() {
		var field *ExtractedField
		if specific != nil {
			field = extractField(f, specific[f], text, true)
		}
		if field == nil {
			field = extractField(f, genericPatterns[f], lower, false)
		}
		parsed.Fields[f] = field
	}
	return parsed
}

// extractField returns the first candidate match for f, or nil
func extractField(f Field, candidates []candidate, text string, specific bool) *ExtractedField {
	for _, c := range candidates {
		loc := c.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		groups := submatches(text, loc)

		raw := groups[0]
		if len(groups) > 1 && loc[2] >= 0 {
			raw = groups[1]
		}
		raw = strings.TrimSpace(raw)

		if f == FieldCustomerID && rejectedCustomerID(raw) {
			continue
		}

		field := &ExtractedField{Raw: raw, Generic: !specific}
		switch f.kind() {
		case kindText:
			field.Normalized = raw
		case kindAmount, kindCents:
			if v, ok := NormalizeAmount(raw); ok {
				field.Normalized = v
			}
		case kindKWh:
			if v, ok := NormalizeKWh(raw); ok {
				field.Normalized = v
			}
		case kindPercent:
			if v, ok := NormalizePercent(raw); ok {
				field.Normalized = v
			}
		case kindDate:
			if v, ok := ParseGermanDate(raw); ok {
				field.Normalized = v
			}
		case kindBalance:
			if v, ok := NormalizeAmount(raw); ok {
				field.Normalized = Balance{Amount: v, Type: c.balanceType}
			}
		case kindPeriod:
			extractPeriod(field, groups, text, loc)
		case kindInstallment:
			extractInstallment(field, groups)
		}
		field.Confidence = Confidence(field.Normalized, specific)
		return field
	}
	return nil
}

// extractPeriod fills a billing period from either six day/month/year
// groups or from two date-like substrings found in or around the match.
// Both dates must parse, otherwise the value stays nil.
func extractPeriod(field *ExtractedField, groups []string, text string, loc []int) {
	var startRaw, endRaw string
	if len(groups) == 7 {
		startRaw = zeroPadDate(groups[1], groups[2], groups[3])
		endRaw = zeroPadDate(groups[4], groups[5], groups[6])
	} else {
		dates := dateLikeRe.FindAllString(groups[0], -1)
		if len(dates) < 2 {
			dates = dateLikeRe.FindAllString(window(text, loc[0]-periodWindow, loc[1]+periodWindow), -1)
		}
		if len(dates) < 2 {
			return
		}
		startRaw, endRaw = dates[0], dates[1]
	}

	field.Raw = startRaw + " - " + endRaw
	field.RawParts = []string{startRaw, endRaw}

	start, ok := ParseGermanDate(startRaw)
	if !ok {
		return
	}
	end, ok := ParseGermanDate(endRaw)
	if !ok {
		return
	}
	field.Normalized = Period{Start: start, End: end}
}

// extractInstallment reads the date and amount of the next advance payment.
// The amount may be missing; the date may not.
func extractInstallment(field *ExtractedField, groups []string) {
	var dateRaw, amountRaw string
	switch len(groups) {
	case 5:
		dateRaw = zeroPadDate(groups[1], groups[2], groups[3])
		amountRaw = groups[4]
	case 3:
		dateRaw = strings.TrimSpace(groups[1])
		amountRaw = strings.TrimSpace(groups[2])
	default:
		return
	}

	field.Raw = strings.TrimSpace(dateRaw + " " + amountRaw)
	field.RawParts = []string{dateRaw, amountRaw}

	date, ok := ParseGermanDate(dateRaw)
	if !ok {
		return
	}
	inst := Installment{Date: date}
	if amount, ok := NormalizeAmount(amountRaw); ok {
		inst.Amount = &amount
	}
	field.Normalized = inst
}

// rejectedCustomerID filters matches that are really invoice, meter or
// creditor numbers
func rejectedCustomerID(raw string) bool {
	v := foldUmlauts(germanLower.String(raw))
	if strings.HasPrefix(v, "rechnung") {
		return true
	}
	for _, bad := range []string{"zahler", "glaub"} {
		if strings.Contains(v, bad) {
			return true
		}
	}
	return false
}

func submatches(text string, loc []int) []string {
	groups := make([]string, len(loc)/2)
	for i := range groups {
		if loc[2*i] >= 0 {
			groups[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return groups
}

// window returns text[lo:hi] clamped to the string and to rune boundaries
func window(text string, lo, hi int) string {
	if lo < 0 {
		lo = 0
	}
	if hi > len(text) {
		hi = len(text)
	}
	for lo < hi && !utf8.RuneStart(text[lo]) {
		lo++
	}
	for hi < len(text) && hi > lo && !utf8.RuneStart(text[hi]) {
		hi--
	}
	return text[lo:hi]
}

func sample(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n])
}
