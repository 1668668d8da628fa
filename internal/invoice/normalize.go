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
	"strings"
	"unicode"
)

// replacement is a literal OCR fix applied in order
type replacement struct {
	from string
	to   string
}

var (
	dashRe       = regexp.MustCompile("–|—")
	mwstRe       = regexp.MustCompile(`(?i)\bMw5t\b`)
	kwhSpacingRe = regexp.MustCompile(`(?i)\bkW\s*h\b`)
	blankRunRe   = regexp.MustCompile(`[ \t]+`)

	zeroKostromRe   = regexp.MustCompile(`(?i)\b0+kostrom\b`)
	letterKostromRe = regexp.MustCompile(`(?i)\bO+kostrom\b`)
	thousandsRe     = regexp.MustCompile(`(\d),(\d{3})\b`)
	numericTokenRe  = regexp.MustCompile(`\b[0-9OoSl][0-9OoSl.,]*[0-9OoSl]\b`)
)

// literalFixes lists known OCR misreadings of German invoice vocabulary.
// An earlier entry must never be a substring of a later one, otherwise the
// later entry could no longer match after the earlier replacement ran.
var literalFixes = []replacement{
	{"Kuriennummer", "Kundennummer"},
	{"kuriennummer", "kundennummer"},
	{"Kurriennummer", "Kundennummer"},
	{"MeinGp", "Green Planet Energy"},
	{"mein gp", "green planet energy"},
	{"ZÉhIernummer", "Zählernummer"},
	{"Zahlernummer", "Zählernummer"},
	{"Liefe rarschrift", "Lieferanschrift"},
	{"O kostrom", "Ökostrom"},
	{"0kostrom", "Ökostrom"},
	{"Okostrom", "Ökostrom"},
	{"obvÆhl", "obwohl"},
	{"Entlestunqsöetraq", "Entlastungsbetrag"},
	{"Entlastunqsbetrag", "Entlastungsbetrag"},
	{"abzgl", "abzüglich"},
	{"8.echnungsnumrrEr", "Rechnungsnummer"},
	{"EI Sudig.er-ID", "Gläubiger-ID"},
	{"wm", "vom"},
	{"WM", "vom"},
	{"Wm", "Vom"},
	{"€€", "€"},
	{"  ", " "},
}

// Normalize repairs OCR noise in raw invoice text so that the field patterns
// can match. It never fails; text without known defects is returned with
// only whitespace tidied.
func Normalize(raw string) string {
	if raw == "" {
		return raw
	}

	s := cleanup(raw)
	for _, r := range literalFixes {
		s = strings.ReplaceAll(s, r.from, r.to)
	}

	s = zeroKostromRe.ReplaceAllString(s, "Ökostrom")
	s = letterKostromRe.ReplaceAllString(s, "Ökostrom")
	s = thousandsRe.ReplaceAllString(s, "${1}.${2}")
	s = numericTokenRe.ReplaceAllStringFunc(s, repairNumericToken)
	return s
}

// cleanup unifies line endings, dashes and spacing
func cleanup(s string) string {
	s = strings.ReplaceAll(s, "\r", "\n")
	s = dashRe.ReplaceAllString(s, "-")
	s = strings.NewReplacer("‚", ",", "´", "'").Replace(s)
	s = mwstRe.ReplaceAllString(s, "MwSt")
	s = kwhSpacingRe.ReplaceAllString(s, "kWh")
	return blankRunRe.ReplaceAllString(s, " ")
}

// repairNumericToken maps letters commonly confused with digits back to
// digits when the token is mostly numeric already
func repairNumericToken(tok string) string {
	digits, letters := 0, 0
	for _, r := range tok {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == 'O' || r == 'o' || r == 'S' || r == 'l':
			letters++
		}
	}
	if letters == 0 || digits == 0 || digits < letters {
		return tok
	}
	return digitFixer.Replace(tok)
}

var digitFixer = strings.NewReplacer("O", "0", "o", "0", "S", "5", "l", "1")
