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

package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestNotFound_MatchesSentinelThroughWrapping(t *testing.T) {
	err := NotFound("bill", 42)
	assert.EqualError(t, err, "bill 42 not found")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("lookup: %w", err)))
	assert.True(t, IsNotFound(eris.Wrap(err, "anomaly service")))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestAPIError_IsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want bool
	}{
		{"rate limited", &APIError{StatusCode: 429}, true},
		{"bad gateway", &APIError{StatusCode: 502}, true},
		{"not found", &APIError{StatusCode: 404}, false},
		{"bad request", &APIError{StatusCode: 400}, false},
		{"transport", &APIError{Err: errors.New("connection reset")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.IsRetryable())
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("dial tcp: timeout")
	err := &APIError{Endpoint: "https://example.test", Message: "request failed", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "request failed")
}

func TestValidationErrors(t *testing.T) {
	var v ValidationErrors
	assert.NoError(t, v.OrNil())

	v = append(v, &ValidationError{Field: "consumption_kwh", Message: "is required"})
	v = append(v, &ValidationError{Field: "billing_end", Value: "2023-01-01", Message: "must be after billing_start"})
	err := v.OrNil()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "consumption_kwh: is required")
	assert.Contains(t, err.Error(), "billing_end (2023-01-01)")
}

func TestConfigErrors(t *testing.T) {
	var c ConfigErrors
	assert.NoError(t, c.OrNil())

	c = append(c, &ConfigError{Field: "store.driver", Value: "mysql", Message: "must be sqlite or postgres"})
	err := c.OrNil()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "store.driver (mysql): must be sqlite or postgres")
}

func TestStorageError_Unwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := eris.Wrap(&StorageError{Operation: "migrate", Path: "/tmp/strom.db", Err: inner}, "startup")

	var se *StorageError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, "migrate", se.Operation)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, se.Error(), "migrate at /tmp/strom.db")
}
