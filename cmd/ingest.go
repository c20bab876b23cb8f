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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tuneline/tuneline/internal/ingest"
	"github.com/tuneline/tuneline/internal/store"
)

type IngestConfig struct {
	DbPath   string
	User     string
	From     string
	To       string
	MaxPages int
}

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetches listening history from last.fm",
	Long: `Stores deduplicated listen events in a local SQLite database. Histories
larger than the synchronous page budget are completed in the background before
the command exits.`,
	Run: func(cmd *cobra.Command, args []string) {
		config := IngestConfig{
			DbPath:   viper.GetString("database"),
			User:     viper.GetString("user"),
			From:     viper.GetString("from"),
			To:       viper.GetString("to"),
			MaxPages: viper.GetInt("max_pages"),
		}

		if err := runIngest(config); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	var fromString string
	ingestCmd.Flags().StringVar(&fromString, "from", "", "Only get listening data after this date, in yyyy-mm-dd format")
	viper.BindPFlag("from", ingestCmd.Flags().Lookup("from"))

	var toString string
	ingestCmd.Flags().StringVar(&toString, "to", "", "Only get listening data before this date, in yyyy-mm-dd format")
	viper.BindPFlag("to", ingestCmd.Flags().Lookup("to"))

	var maxPages int
	ingestCmd.Flags().IntVar(&maxPages, "max_pages", 10, "Pages to fetch before handing off to the background continuation")
	viper.BindPFlag("max_pages", ingestCmd.Flags().Lookup("max_pages"))
}

func runIngest(config IngestConfig) error {
	if config.User == "" {
		return fmt.Errorf("--user is required")
	}

	var from, to time.Time
	var err error
	if config.From != "" {
		from, err = time.Parse("2006-01-02", config.From)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
	}
	if config.To != "" {
		to, err = time.Parse("2006-01-02", config.To)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
	}

	db, err := store.New(config.DbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	logger := newLogger()
	client, err := newLastFmClient(logger)
	if err != nil {
		return err
	}

	pipeline := ingest.NewPipeline(db, client, logger, config.MaxPages)
	ingested, runID, err := pipeline.Ingest(context.Background(), config.User, from, to)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d new listens for %q\n", ingested, config.User)
	if runID != "" {
		fmt.Printf("Fetching remaining pages in the background (run %s)\n", runID)
	}

	// The continuation has no caller waiting on it; hold the process open
	// until it finishes.
	pipeline.Wait()
	return nil
}
