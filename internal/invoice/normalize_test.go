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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"customer number misread", "Kuriennummer: 123456", "Kundennummer: 123456"},
		{"vom misread", "Zeitraum wm 01.01.2023", "Zeitraum vom 01.01.2023"},
		{"green electricity with space", "O kostrom 2.345 kWh", "Ökostrom 2.345 kWh"},
		{"green electricity with zero", "0kostrom", "Ökostrom"},
		{"thousands comma", "Verbrauch 1,246 kW h", "Verbrauch 1.246 kWh"},
		{"letters inside date", "Datum 2O.O3.2O24", "Datum 20.03.2024"},
		{"vat label", "Mw5t 19 %", "MwSt 19 %"},
		{"meter number", "Zahlernummer 1234567890", "Zählernummer 1234567890"},
		{"supplier app name", "Ihr MeinGp Konto", "Ihr Green Planet Energy Konto"},
		{"spacing", "a  \t b", "a b"},
		{"line endings", "A\r\nB", "A\n\nB"},
		{"dashes", "1 – 2 — 3", "1 - 2 - 3"},
		{"double euro", "12,00 €€", "12,00 €"},
		{"words are untouched", "Soll und Haben", "Soll und Haben"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_NoOpOnCleanText(t *testing.T) {
	clean := "Kundennummer: 12345678\nGesamtbetrag 812,40 €"
	assert.Equal(t, clean, Normalize(clean))
}

func TestLiteralFixes_LongerBeforeContained(t *testing.T) {
	for i := range literalFixes {
		for j := i + 1; j < len(literalFixes); j++ {
			assert.False(t, strings.Contains(literalFixes[j].from, literalFixes[i].from),
				"%q is replaced before %q which contains it", literalFixes[i].from, literalFixes[j].from)
		}
	}
}

func TestRepairNumericToken(t *testing.T) {
	assert.Equal(t, "2023", repairNumericToken("2O23"))
	assert.Equal(t, "10", repairNumericToken("l0"))
	assert.Equal(t, "So", repairNumericToken("So"))
	assert.Equal(t, "1OOS", repairNumericToken("1OOS"))
}
