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

package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amenkhnisi/strom-sense/internal/model"
)

func series(vals ...any) []*float64 {
	out := make([]*float64, len(vals))
	for i, v := range vals {
		if f, ok := v.(float64); ok {
			out[i] = model.Float(f)
		}
	}
	return out
}

func TestHeatingDegreeDays(t *testing.T) {
	tests := []struct {
		name  string
		temps []*float64
		want  float64
	}{
		{"empty", nil, 0},
		{"all warm", series(18.0, 22.5, 30.0), 0},
		{"mixed", series(10.0, 20.0, 17.5), 8.5},
		{"missing days skipped", series(8.0, nil, nil, -2.0), 30},
		{"rounded to one decimal", series(17.96, 17.96), 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HeatingDegreeDays(tt.temps))
		})
	}
}

func TestAverageTemperature(t *testing.T) {
	assert.Nil(t, AverageTemperature(series(nil, nil)))
	avg := AverageTemperature(series(4.0, nil, 8.0))
	require.NotNil(t, avg)
	assert.Equal(t, 6.0, *avg)
	assert.Equal(t, 2, Observed(series(4.0, nil, 8.0)))
}

func TestAdjustmentFactor(t *testing.T) {
	f := AdjustmentFactor(model.Float(3240), model.Float(3000))
	require.NotNil(t, f)
	assert.Equal(t, 1.08, *f)

	f = AdjustmentFactor(model.Float(2000), model.Float(3000))
	require.NotNil(t, f)
	assert.Equal(t, 0.667, *f)

	assert.Nil(t, AdjustmentFactor(nil, model.Float(3000)))
	assert.Nil(t, AdjustmentFactor(model.Float(3000), nil))
	assert.Nil(t, AdjustmentFactor(model.Float(3000), model.Float(0)))
}

func TestExpectedAndNormalizedConsumption(t *testing.T) {
	assert.Equal(t, 3456.0, ExpectedConsumption(3200, 1.08))
	assert.Equal(t, 3200.0, NormalizedConsumption(3456, 1.08))
	assert.Equal(t, 0.0, NormalizedConsumption(3456, 0))
}

func TestRegionCoordinates(t *testing.T) {
	assert.Equal(t, Coordinates{52.52, 13.40}, RegionCoordinates("10115"))
	assert.Equal(t, Coordinates{48.14, 11.58}, RegionCoordinates("80331"))
	assert.Equal(t, Coordinates{51.05, 13.74}, RegionCoordinates("01067"))
	assert.Equal(t, GermanyCentre, RegionCoordinates(""))
	assert.Equal(t, GermanyCentre, RegionCoordinates("X1234"))
}
