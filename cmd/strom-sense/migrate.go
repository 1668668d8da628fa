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

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Amenkhnisi/strom-sense/internal/store"
	"github.com/Amenkhnisi/strom-sense/internal/version"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(store.Store) error {
			appLogger.Info("Schema is up to date", "driver", cfg.Store.Driver)
			appLogger.UserMessage("Database schema is up to date.")
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := map[string]string{"version": version.Get()}

		if check, _ := cmd.Flags().GetBool("check"); check {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			release, err := version.LatestRelease(ctx, &http.Client{Timeout: 10 * time.Second})
			if err != nil {
				appLogger.Warn("Update check failed", "error", err)
			} else if version.IsNewer(release.TagName, version.Get()) {
				info["latest"] = release.TagName
				info["download"] = release.HTMLURL
			}
		}

		return render(info, func(w io.Writer) {
			fmt.Fprintf(w, "strom-sense %s\n", info["version"])
			if latest, ok := info["latest"]; ok {
				fmt.Fprintf(w, "New version available: %s (%s)\n", latest, info["download"])
			}
		})
	},
}

func init() {
	versionCmd.Flags().Bool("check", false, "check for a newer release")
	rootCmd.AddCommand(migrateCmd, versionCmd)
}
