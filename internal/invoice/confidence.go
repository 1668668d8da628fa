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
	"math"
	"strings"

	"gonum.org/v1/gonum/floats/scalar"
)

const (
	supplierConfidence = 0.92
	genericConfidence  = 0.75
)

// Confidence scores a normalized value. Supplier-specific matches start
// higher than generic ones; near-zero numbers and near-empty strings are
// penalized. A nil value scores zero.
func Confidence(value any, supplierSpecific bool) float64 {
	if value == nil {
		return 0
	}

	base := genericConfidence
	if supplierSpecific {
		base = supplierConfidence
	}

	switch v := value.(type) {
	case float64:
		if math.Abs(v) < 0.001 {
			base -= 0.2
		}
	case string:
		if len(strings.TrimSpace(v)) < 2 {
			base -= 0.3
		}
	}
	return scalar.Round(base, 3)
}
