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
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tuneline/tuneline/internal/analysis"
	"github.com/tuneline/tuneline/internal/ingest"
	"github.com/tuneline/tuneline/internal/report"
	"github.com/tuneline/tuneline/internal/store"
)

var analyzeGenreLimit int
var analyzeSkipGenres bool

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [from] [to (optional)]",
	Short: "Analyzes listening history into per-month trends",
	Long: `Computes per-month top artists, new-artist discoveries, daily activity
extremes, and genre distribution. Date strings look like 'yyyy', 'yyyy-mm', or
'yyyy-mm-dd'; with no dates the whole stored history is analyzed. Missing
history is fetched from last.fm first.`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runAnalyze(os.Stdout, args); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().IntVar(&analyzeGenreLimit, "genre-limit", 10, "Number of genres to show in the distribution")
	analyzeCmd.Flags().BoolVar(&analyzeSkipGenres, "skip-genres", false, "Skip the genre distribution (avoids per-artist API calls)")
}

func runAnalyze(out io.Writer, args []string) error {
	user := viper.GetString("user")
	if user == "" {
		return fmt.Errorf("--user is required")
	}

	start, end, err := parseOptionalDateRange(args)
	if err != nil {
		return err
	}

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
	var tags analysis.TagSource
	if !analyzeSkipGenres {
		tags = client
	}
	svc := report.NewService(db, pipeline, tags, logger)
	svc.GenreLimit = analyzeGenreLimit

	summary, err := svc.Summarize(context.Background(), user, start, end)
	if errors.Is(err, store.ErrNoListens) {
		return fmt.Errorf("No listening data found for %q in the requested range", user)
	}
	if err != nil {
		return err
	}

	if err := renderSummary(out, summary); err != nil {
		return err
	}

	pipeline.Wait()
	return nil
}

func renderSummary(out io.Writer, s *report.Summary) error {
	fmt.Fprintf(out, "Listening report for %s\n", s.Username)
	fmt.Fprintf(out, "Period: %s to %s\n", s.PeriodStart, s.PeriodEnd)
	fmt.Fprintf(out, "Total scrobbles: %d\n", s.TotalScrobbles)
	fmt.Fprintf(out, "Unique artists: %d, unique tracks: %d\n", s.UniqueArtists, s.UniqueTracks)
	fmt.Fprintf(out, "New artists discovered: %d\n", s.NewArtistsDiscovered)
	fmt.Fprintf(out, "Most active day: %s\n", s.MostActiveDate)
	if s.LeastActiveDate != "" {
		fmt.Fprintf(out, "Least active day: %s\n", s.LeastActiveDate)
	}
	fmt.Fprintln(out)

	table := tablewriter.NewWriter(out)
	table.Header([]string{"Period", "Artist", "Plays", "New"})
	for _, period := range s.PeriodAnalysis {
		for _, artist := range period.TopArtists {
			discovery := ""
			if artist.IsNewDiscovery {
				discovery = "*"
			}
			row := []string{period.Period, artist.Artist, strconv.Itoa(artist.PlayCount), discovery}
			if err := table.Append(row); err != nil {
				return fmt.Errorf("rendering period table: %w", err)
			}
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering period table: %w", err)
	}

	if len(s.GenreDistribution) > 0 {
		fmt.Fprintln(out)
		genres := tablewriter.NewWriter(out)
		genres.Header([]string{"Genre", "Artists", "Share"})
		for _, g := range s.GenreDistribution {
			row := []string{g.Genre, strconv.Itoa(g.Count), fmt.Sprintf("%.1f%%", g.Percentage)}
			if err := genres.Append(row); err != nil {
				return fmt.Errorf("rendering genre table: %w", err)
			}
		}
		if err := genres.Render(); err != nil {
			return fmt.Errorf("rendering genre table: %w", err)
		}
	}

	return nil
}
