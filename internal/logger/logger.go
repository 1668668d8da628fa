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

package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.SugaredLogger with domain-specific methods
type Logger struct {
	*zap.SugaredLogger
	out io.Writer
}

// Options controls how a Logger is built
type Options struct {
	Level  string
	Format string
	Debug  bool
}

// New creates a logger writing to stderr. Format "console" gives
// human-readable output, anything else produces JSON.
func New(opts Options) (*Logger, error) {
	var zapCfg zap.Config
	if opts.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	levelText := opts.Level
	if levelText == "" {
		levelText = "info"
	}
	if opts.Debug {
		levelText = "debug"
	}
	level, err := zapcore.ParseLevel(levelText)
	if err != nil {
		return nil, eris.Wrap(err, "logger: parse level")
	}
	zapCfg.Level.SetLevel(level)

	base, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "logger: build")
	}
	return &Logger{SugaredLogger: base.Sugar(), out: os.Stdout}, nil
}

// NewNop returns a logger that discards everything, for tests
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), out: io.Discard}
}

// WithOutput returns a copy whose UserMessage output goes to w
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger, out: w}
}

// Debug logs a message with key/value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.Debugw(msg, keysAndValues...)
}

// Info logs a message with key/value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.Infow(msg, keysAndValues...)
}

// Warn logs a message with key/value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.Warnw(msg, keysAndValues...)
}

// Error logs a message with key/value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.Errorw(msg, keysAndValues...)
}

// WithComponent adds a component field to the logger
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{SugaredLogger: l.With("component", component), out: l.out}
}

// WithUserID adds a masked user e-mail or id field to the logger
func (l *Logger) WithUserID(userID int64, email string) *Logger {
	masked := email
	if at := strings.IndexByte(email, '@'); at > 2 {
		masked = email[:2] + "***" + email[at:]
	}
	return &Logger{SugaredLogger: l.With("user_id", userID, "email", masked), out: l.out}
}

// WithRequestID tags every entry with a request or batch identifier
func (l *Logger) WithRequestID(id string) *Logger {
	return &Logger{SugaredLogger: l.With("request_id", id), out: l.out}
}

// LogAPIRequest logs an API request
func (l *Logger) LogAPIRequest(method, endpoint string) {
	l.Debug("API request",
		"method", method,
		"endpoint", endpoint,
	)
}

// LogAPIError logs an API error
func (l *Logger) LogAPIError(endpoint string, statusCode int, err error) {
	l.Error("API request failed",
		"endpoint", endpoint,
		"status_code", statusCode,
		"error", err,
	)
}

// LogCacheEvent logs a cache hit, miss or write
func (l *Logger) LogCacheEvent(event, key string) {
	l.Debug("Cache "+event,
		"key", key,
	)
}

// LogStorageOperation logs storage operations
func (l *Logger) LogStorageOperation(operation, target string) {
	l.Debug("Storage operation",
		"operation", operation,
		"target", target,
	)
}

// LogAnomalyDetected logs a detected anomaly for a bill
func (l *Logger) LogAnomalyDetected(billID int64, anomalyType, severity string, score float64) {
	l.Warn("Anomaly detected",
		"bill_id", billID,
		"type", anomalyType,
		"severity", severity,
		"score", fmt.Sprintf("%.2f", score),
	)
}

// LogBatchProgress logs progress of a batch operation
func (l *Logger) LogBatchProgress(operation string, done, total int) {
	l.Info("Batch progress",
		"operation", operation,
		"done", done,
		"total", total,
	)
}

// UserMessage outputs a message directly to stdout (bypassing structured logging)
func (l *Logger) UserMessage(format string, args ...interface{}) {
	fmt.Fprintf(l.out, format+"\n", args...)
}
