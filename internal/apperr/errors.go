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

// Package apperr holds the typed errors shared across strom-sense packages.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is matched by every NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// NotFoundError reports that an entity looked up by identifier does not exist
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound builds a NotFoundError for the given entity and identifier
func NotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}

// IsNotFound reports whether err is, or wraps, a not-found condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// APIError represents a failed call to an external HTTP collaborator
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API error at %s (status %d): %s: %v", e.Endpoint, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("API error at %s (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if this error should be retried
func (e *APIError) IsRetryable() bool {
	if e.StatusCode == 0 && e.Err != nil {
		// transport failure, no response received
		return true
	}
	return isRetryableStatus(e.StatusCode)
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ValidationError represents an input validation failure
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("validation error for %s (%s): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// ValidationErrors collects several validation problems into one error
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// OrNil returns nil when no problems were collected
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// StorageError represents a storage operation error
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s at %s: %v", e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// DataError represents insufficient or malformed input data
type DataError struct {
	DataType string
	Message  string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error for %s: %s", e.DataType, e.Message)
}

// ConfigError reports one invalid configuration key
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("configuration error for %s (%s): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// ConfigErrors collects every configuration problem found in one pass
type ConfigErrors []*ConfigError

func (c ConfigErrors) Error() string {
	msgs := make([]string, 0, len(c))
	for _, e := range c {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("invalid configuration:\n  - %s", strings.Join(msgs, "\n  - "))
}

// OrNil returns nil when no problems were collected
func (c ConfigErrors) OrNil() error {
	if len(c) == 0 {
		return nil
	}
	return c
}
