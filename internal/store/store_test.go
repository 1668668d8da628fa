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

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/config"
	"github.com/Amenkhnisi/strom-sense/internal/logger"
)

func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func operations(logs *observer.ObservedLogs) []string {
	var ops []string
	for _, e := range logs.FilterMessage("Storage operation").All() {
		ops = append(ops, e.ContextMap()["operation"].(string))
	}
	return ops
}

func TestOpen_SQLiteLogsOpenAndMigrate(t *testing.T) {
	log, logs := observedLogger()
	path := filepath.Join(t.TempDir(), "open.db")

	st, err := Open(context.Background(), config.StoreConfig{Driver: "sqlite", SQLitePath: path}, log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	assert.Equal(t, []string{"open", "migrate"}, operations(logs))
	entry := logs.FilterMessage("Storage operation").All()[0]
	assert.Equal(t, path, entry.ContextMap()["target"])
	assert.Equal(t, "store", entry.ContextMap()["component"])
}

func TestOpen_FailureIsStorageError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "open.db")

	_, err := Open(context.Background(), config.StoreConfig{Driver: "sqlite", SQLitePath: path}, nil)
	require.Error(t, err)
	var se *apperr.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "open", se.Operation)
	assert.Equal(t, path, se.Path)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mysql"}, logger.NewNop())
	assert.ErrorContains(t, err, "unknown driver")
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://strom:xxxxx@db:5432/strom", redactDSN("postgres://strom:geheim@db:5432/strom"))
	assert.Equal(t, "postgres", redactDSN("host=db user=strom password=geheim"))
}
