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

// Package version reports the build version of strom-sense.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

var (
	version = "dev"
	commit  = "unknown"
)

// ReleasesURL is the endpoint queried by LatestRelease
var ReleasesURL = "https://api.github.com/repos/Amenkhnisi/strom-sense/releases/latest"

// Get returns the application version
func Get() string {
	if version != "dev" {
		return version
	}

	// Try to get version from build info
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				return shortRevision(setting.Value)
			}
		}
	}

	if commit != "unknown" {
		return shortRevision(commit)
	}

	return "dev"
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// UserAgent returns the user agent string for outbound HTTP requests
func UserAgent() string {
	return fmt.Sprintf("Amenkhnisi/strom-sense %s", Get())
}

// Release represents a published GitHub release
type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
	Name    string `json:"name"`
}

// LatestRelease fetches the newest published release
func LatestRelease(ctx context.Context, client *http.Client) (*Release, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ReleasesURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "version: build request")
	}
	req.Header.Set("User-Agent", UserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "version: fetch latest release")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("version: unexpected status %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, eris.Wrap(err, "version: decode release")
	}
	return &release, nil
}

// IsNewer performs a simple semantic version comparison
func IsNewer(latest, current string) bool {
	latest = strings.TrimPrefix(latest, "v")
	current = strings.TrimPrefix(current, "v")

	latestParts := strings.Split(latest, ".")
	currentParts := strings.Split(current, ".")

	for i := 0; i < len(latestParts) && i < len(currentParts); i++ {
		l, lok := atoi(latestParts[i])
		c, cok := atoi(currentParts[i])
		if !lok || !cok {
			if latestParts[i] != currentParts[i] {
				return latestParts[i] > currentParts[i]
			}
			continue
		}
		if l != c {
			return l > c
		}
	}

	// If all parts are equal, check if latest has more parts
	return len(latestParts) > len(currentParts)
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}
