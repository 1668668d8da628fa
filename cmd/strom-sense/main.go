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
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Amenkhnisi/strom-sense/internal/config"
	"github.com/Amenkhnisi/strom-sense/internal/logger"
)

var (
	cfgFile      string
	debugMode    bool
	outputFormat string

	cfg       *config.Config
	appLogger *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "strom-sense",
	Short: "Electricity bill parsing and consumption anomaly detection",
	Long: "Reads German electricity invoices, stores yearly bills and flags unusual consumption " +
		"by comparing each bill with the household's history, similar households and the weather.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if debugMode {
			c.Debug = true
		}
		if err := c.Validate(); err != nil {
			return eris.Wrap(err, "configuration validation failed")
		}

		l, err := logger.New(logger.Options{Level: c.Log.Level, Format: c.Log.Format, Debug: c.Debug})
		if err != nil {
			return err
		}
		cfg, appLogger = c, l

		switch outputFormat {
		case "json", "yaml", "table":
		default:
			return eris.Errorf("unknown output format %q (json, yaml or table)", outputFormat)
		}

		appLogger.Debug("Configuration loaded", "config_file", cfgFile, "store", cfg.Store.Driver)
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if appLogger != nil {
			_ = appLogger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to configuration file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: json, yaml or table")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if appLogger != nil {
			appLogger.Error("Command failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
