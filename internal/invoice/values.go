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
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	currencyWordRe  = regexp.MustCompile(`(?i)euro|eur|€`)
	nonAmountRe     = regexp.MustCompile(`[^0-9.\-]`)
	nonKWhRe        = regexp.MustCompile(`[^\d.,\-]`)
	spelledDateRe   = regexp.MustCompile(`([0-3]?\d)[\.\s]*[ ]*([A-Za-zÄÖÜäöüß]{3,20})[\s,\.]+(\d{4})`)
	embeddedDateRe  = regexp.MustCompile(`([0-3]?\d\.[01]?\d\.\d{4})`)
	numericDateForm = []string{"2.1.2006", "2.1.06", "2006-01-02"}
)

type monthName struct {
	key   string
	month time.Month
}

// germanMonths is ordered so that prefix matching resolves deterministically
var germanMonths = []monthName{
	{"jan", time.January}, {"januar", time.January},
	{"feb", time.February}, {"februar", time.February},
	{"mar", time.March}, {"märz", time.March}, {"maerz", time.March}, {"marz", time.March},
	{"apr", time.April}, {"april", time.April},
	{"mai", time.May},
	{"jun", time.June}, {"juni", time.June},
	{"jul", time.July}, {"juli", time.July},
	{"aug", time.August}, {"august", time.August},
	{"sep", time.September}, {"september", time.September},
	{"okt", time.October}, {"oktober", time.October},
	{"nov", time.November}, {"november", time.November},
	{"dez", time.December}, {"dezember", time.December},
}

var germanLower = cases.Lower(language.German)

// NormalizeAmount converts a German formatted amount such as "1.234,56 €"
// or "−811,68 €" to euros. The boolean is false when nothing numeric is left.
func NormalizeAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	s = strings.NewReplacer("\u00a0", "", " ", "", "−", "-", "–", "-").Replace(s)
	s = currencyWordRe.ReplaceAllString(s, "")
	s = strings.NewReplacer("O", "0", "o", "0").Replace(s)

	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
		if strings.Count(s, ".") > 1 {
			last := strings.LastIndex(s, ".")
			s = strings.ReplaceAll(s[:last], ".", "") + s[last:]
		}
	}
	s = nonAmountRe.ReplaceAllString(s, "")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// NormalizeKWh converts a consumption string such as "1.246" or "3.512,5"
// to kilowatt hours. Dots are always thousands separators here.
func NormalizeKWh(s string) (float64, bool) {
	s = nonKWhRe.ReplaceAllString(s, "")
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseGermanDate returns the ISO 8601 form of a German date written as
// "27.03.2023", "27.03.23", "2023-03-27" or with a spelled-out month such
// as "2. Mai 2024". OCR-mangled month names are matched by their first
// three letters after folding umlauts.
func ParseGermanDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	for _, layout := range numericDateForm {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}

	if m := spelledDateRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		name := foldUmlauts(germanLower.String(m[2]))

		for _, mn := range germanMonths {
			if strings.HasPrefix(name, mn.key[:3]) {
				if iso, ok := isoDate(year, mn.month, day); ok {
					return iso, true
				}
			}
		}
		for _, mn := range germanMonths {
			if strings.Contains(name, mn.key) {
				if iso, ok := isoDate(year, mn.month, day); ok {
					return iso, true
				}
			}
		}
	}

	if m := embeddedDateRe.FindString(s); m != "" {
		if t, err := time.Parse("2.1.2006", m); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// isoDate validates a calendar date without letting time.Date roll it over
func isoDate(year int, month time.Month, day int) (string, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if day < 1 || t.Day() != day || t.Month() != month {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// foldUmlauts strips combining marks ("märz" becomes "marz") and expands ß
func foldUmlauts(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ReplaceAll(folded, "ß", "ss")
}

// NormalizePercent converts "19%" or "7,0 %" to a number
func NormalizePercent(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// zeroPadDate builds "dd.mm.yyyy" from separately captured components
func zeroPadDate(day, month, year string) string {
	pad := func(v string) string {
		if len(v) < 2 {
			return "0" + v
		}
		return v
	}
	return pad(day) + "." + pad(month) + "." + year
}
