/*
Copyright 2020 Google LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tuneline/tuneline/internal/api"
	"github.com/tuneline/tuneline/internal/ingest"
	"github.com/tuneline/tuneline/internal/report"
	"github.com/tuneline/tuneline/internal/store"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the HTTP API",
	Long: `Serves the ingestion and analysis endpoints over HTTP. The API mirrors
the CLI: user management, scrobble fetching, and trend analysis.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	var addr string
	serveCmd.Flags().StringVar(&addr, "addr", ":8000", "Address to listen on")
	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
}

func runServe() error {
	db, err := store.New(viper.GetString("database"))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	logger := newLogger()
	client, err := newLastFmClient(logger)
	if err != nil {
		return err
	}

	pipeline := ingest.NewPipeline(db, client, logger, viper.GetInt("max_pages"))
	reports := report.NewService(db, pipeline, client, logger)
	server := api.NewServer(db, pipeline, reports, logger)

	addr := viper.GetString("addr")
	logger.Info().Str("addr", addr).Msg("listening")
	return http.ListenAndServe(addr, server.Router())
}
