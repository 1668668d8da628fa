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
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Amenkhnisi/strom-sense/internal/apiclient"
	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/model"
)

// TemperatureSource returns one daily mean temperature per day in the
// inclusive range. Missing days are nil.
type TemperatureSource interface {
	DailyMeanTemperatures(ctx context.Context, at Coordinates, start, end time.Time) ([]*float64, error)
}

// OpenMeteo reads daily means from the Open-Meteo historical archive
type OpenMeteo struct {
	client   *apiclient.Client
	endpoint string
	timezone string
}

// NewOpenMeteo creates an archive client for endpoint
func NewOpenMeteo(client *apiclient.Client, endpoint string) *OpenMeteo {
	return &OpenMeteo{client: client, endpoint: endpoint, timezone: "Europe/Berlin"}
}

type archiveResponse struct {
	Daily *struct {
		Time            []string   `json:"time"`
		TemperatureMean []*float64 `json:"temperature_2m_mean"`
	} `json:"daily"`
}

// DailyMeanTemperatures implements TemperatureSource
func (o *OpenMeteo) DailyMeanTemperatures(ctx context.Context, at Coordinates, start, end time.Time) ([]*float64, error) {
	params := url.Values{
		"latitude":   {strconv.FormatFloat(at.Latitude, 'f', -1, 64)},
		"longitude":  {strconv.FormatFloat(at.Longitude, 'f', -1, 64)},
		"start_date": {start.Format(model.DateLayout)},
		"end_date":   {end.Format(model.DateLayout)},
		"daily":      {"temperature_2m_mean"},
		"timezone":   {o.timezone},
	}

	var resp archiveResponse
	if err := o.client.GetJSON(ctx, o.endpoint, params, &resp); err != nil {
		return nil, eris.Wrap(err, "weather: fetch archive")
	}
	if resp.Daily == nil || resp.Daily.TemperatureMean == nil {
		return nil, &apperr.DataError{DataType: "weather", Message: "no temperature_2m_mean series in archive response"}
	}
	return resp.Daily.TemperatureMean, nil
}

// YearRange returns the first and last day of a calendar year
func YearRange(year int) (time.Time, time.Time) {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}
