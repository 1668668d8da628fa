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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{SugaredLogger: zap.New(core).Sugar(), out: &bytes.Buffer{}}, logs
}

func TestNew_Levels(t *testing.T) {
	l, err := New(Options{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Desugar().Core().Enabled(zapcore.WarnLevel))

	l, err = New(Options{Level: "warn", Format: "console", Debug: true})
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))

	_, err = New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestWithComponent_AddsField(t *testing.T) {
	l, logs := newObserved(zapcore.DebugLevel)
	l.WithComponent("peer").Info("computed", "year", 2024)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "computed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "peer", fields["component"])
	assert.EqualValues(t, 2024, fields["year"])
}

func TestWithUserID_MasksEmail(t *testing.T) {
	l, logs := newObserved(zapcore.DebugLevel)
	l.WithUserID(7, "maxmuster@example.de").Info("hello")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "ma***@example.de", fields["email"])
	assert.EqualValues(t, 7, fields["user_id"])
}

func TestLogAnomalyDetected_IsWarning(t *testing.T) {
	l, logs := newObserved(zapcore.DebugLevel)
	l.LogAnomalyDetected(3, "consumption_spike", "critical", 8.456)

	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "8.46", entry.ContextMap()["score"])
}

func TestUserMessage_WritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewNop().WithOutput(&buf)
	l.UserMessage("processed %d bills", 4)
	assert.Equal(t, "processed 4 bills\n", buf.String())
}
