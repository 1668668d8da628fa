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
	"fmt"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/Amenkhnisi/strom-sense/internal/apiclient"
	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/logger"
)

// Coordinates is a latitude/longitude pair in degrees
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.2f,%.2f", c.Latitude, c.Longitude)
}

// GermanyCentre is used for postal codes outside the region table
var GermanyCentre = Coordinates{Latitude: 51.16, Longitude: 10.45}

// regions maps the leading postal code digit to a representative city
var regions = map[byte]Coordinates{
	'0': {51.05, 13.74}, // Dresden
	'1': {52.52, 13.40}, // Berlin
	'2': {53.55, 9.99},  // Hamburg
	'3': {52.37, 9.73},  // Hannover
	'4': {51.23, 6.78},  // Düsseldorf
	'5': {50.94, 6.96},  // Köln
	'6': {50.11, 8.68},  // Frankfurt
	'7': {48.78, 9.18},  // Stuttgart
	'8': {48.14, 11.58}, // München
	'9': {49.45, 11.08}, // Nürnberg
}

// RegionCoordinates approximates a postal code by the first digit's region
func RegionCoordinates(postalCode string) Coordinates {
	if postalCode == "" {
		return GermanyCentre
	}
	if c, ok := regions[postalCode[0]]; ok {
		return c
	}
	return GermanyCentre
}

// Geocoder resolves a German postal code to coordinates
type Geocoder interface {
	Geocode(ctx context.Context, postalCode string) (Coordinates, error)
}

// Nominatim geocodes postal codes with an OpenStreetMap Nominatim endpoint,
// caching results on disk
type Nominatim struct {
	client   *apiclient.Client
	endpoint string
	cache    *GeoCache
	logger   *logger.Logger
}

// NewNominatim creates a geocoder. cache may be nil.
func NewNominatim(client *apiclient.Client, endpoint string, cache *GeoCache, log *logger.Logger) *Nominatim {
	return &Nominatim{client: client, endpoint: endpoint, cache: cache, logger: log}
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode returns the first match for the postal code in Germany
func (n *Nominatim) Geocode(ctx context.Context, postalCode string) (Coordinates, error) {
	if n.cache != nil {
		if c, ok := n.cache.Get(postalCode); ok {
			return c, nil
		}
	}

	params := url.Values{
		"postalcode":   {postalCode},
		"countrycodes": {"de"},
		"format":       {"json"},
		"limit":        {"1"},
	}
	var places []nominatimPlace
	if err := n.client.GetJSON(ctx, n.endpoint, params, &places); err != nil {
		return Coordinates{}, eris.Wrapf(err, "weather: geocode %s", postalCode)
	}
	if len(places) == 0 {
		return Coordinates{}, apperr.NotFound("postal code", postalCode)
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Coordinates{}, &apperr.DataError{DataType: "geocode", Message: "invalid latitude " + places[0].Lat}
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Coordinates{}, &apperr.DataError{DataType: "geocode", Message: "invalid longitude " + places[0].Lon}
	}
	c := Coordinates{Latitude: lat, Longitude: lon}

	if n.cache != nil {
		if err := n.cache.Put(postalCode, c); err != nil {
			n.logger.Warn("Failed to persist geocode cache", "error", err)
		}
	}
	return c, nil
}
