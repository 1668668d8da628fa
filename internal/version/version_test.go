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

package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNewer(t *testing.T) {
	tests := []struct {
		latest, current string
		want            bool
	}{
		{"v1.2.0", "v1.1.9", true},
		{"v1.10.0", "v1.9.0", true},
		{"v1.1.0", "v1.1.0", false},
		{"v1.0.0", "v1.1.0", false},
		{"v1.1.0.1", "v1.1.0", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsNewer(tt.latest, tt.current), "%s vs %s", tt.latest, tt.current)
	}
}

func TestUserAgent(t *testing.T) {
	assert.True(t, strings.HasPrefix(UserAgent(), "Amenkhnisi/strom-sense "))
}

func TestLatestRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "strom-sense")
		_, _ = w.Write([]byte(`{"tag_name":"v0.3.0","html_url":"https://example.test/r","name":"0.3.0"}`))
	}))
	defer srv.Close()

	orig := ReleasesURL
	ReleasesURL = srv.URL
	t.Cleanup(func() { ReleasesURL = orig })

	rel, err := LatestRelease(context.Background(), srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "v0.3.0", rel.TagName)
}

func TestLatestRelease_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	orig := ReleasesURL
	ReleasesURL = srv.URL
	t.Cleanup(func() { ReleasesURL = orig })

	_, err := LatestRelease(context.Background(), srv.Client())
	assert.Error(t, err)
}
