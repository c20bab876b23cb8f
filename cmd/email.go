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
	"html"
	"os"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tuneline/tuneline/internal/ingest"
	"github.com/tuneline/tuneline/internal/report"
	"github.com/tuneline/tuneline/internal/store"
)

var emailFromAddress string

type EmailConfig struct {
	DbPath string
	User   string
	From   string
	To     string
	DryRun bool
	Start  time.Time
	End    time.Time
}

// emailCmd represents the email command
var emailCmd = &cobra.Command{
	Use:   "email <address> [date] [date]",
	Short: "Emails a listening report",
	Long: `Emails the monthly listening report to the specified address.
  Optional date arguments narrow the range (e.g. '2023-01' or '2023-01 2023-06').
  If no dates are provided, defaults to the previous month.`,
	Args: cobra.RangeArgs(1, 3),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetString("from_address") == "" {
			return fmt.Errorf("required flag(s) \"from_address\" not set")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		var start, end time.Time
		var err error
		if len(args) > 1 {
			start, end, err = parseDateRangeFromArgs(args[1:])
			if err != nil {
				fmt.Printf("Error parsing dates: %v\n", err)
				os.Exit(1)
			}
		} else {
			// Default to last month
			now := time.Now()
			start = time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, now.Location())
			end = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		}

		config := EmailConfig{
			DbPath: viper.GetString("database"),
			User:   viper.GetString("user"),
			From:   viper.GetString("from_address"),
			To:     args[0],
			DryRun: viper.GetBool("dryRun"),
			Start:  start,
			End:    end,
		}
		if err := sendEmail(config); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(emailCmd)

	emailCmd.Flags().StringVar(&emailFromAddress, "from_address", "", "Address to send the report from")
	viper.BindPFlag("from_address", emailCmd.Flags().Lookup("from_address"))

	var dryRun bool
	emailCmd.Flags().BoolVarP(&dryRun, "dry_run", "n", false, "When true, just print instead of emailing")
	viper.BindPFlag("dryRun", emailCmd.Flags().Lookup("dry_run"))
}

func sendEmail(config EmailConfig) error {
	if config.User == "" {
		return fmt.Errorf("--user is required")
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

	pipeline := ingest.NewPipeline(db, client, logger, viper.GetInt("max_pages"))
	svc := report.NewService(db, pipeline, client, logger)

	summary, err := svc.Summarize(context.Background(), config.User, config.Start, config.End)
	if errors.Is(err, store.ErrNoListens) {
		return fmt.Errorf("No listens found for %q in the requested range", config.User)
	}
	if err != nil {
		return err
	}

	subject, body := generateEmailContent(config, summary)

	if config.DryRun {
		fmt.Printf("Would have sent email: \nsubject: %s\n%s\n", subject, body)
		pipeline.Wait()
		return nil
	}

	if viper.GetString("sendgrid_api_key") == "" {
		return fmt.Errorf("sendgrid_api_key must be set in order to send emails")
	}

	from := mail.NewEmail("tuneline", config.From)
	to := mail.NewEmail(config.To, config.To)
	plain := fmt.Sprintf("Listening report for %s: %d scrobbles across %d artists.",
		summary.Username, summary.TotalScrobbles, summary.UniqueArtists)
	message := mail.NewSingleEmail(from, subject, to, plain, body)
	sender := sendgrid.NewSendClient(viper.GetString("sendgrid_api_key"))
	if _, err := sender.Send(message); err != nil {
		return fmt.Errorf("sendEmail: %w", err)
	}

	pipeline.Wait()
	return nil
}

func generateEmailContent(config EmailConfig, summary *report.Summary) (subject string, body string) {
	out := `
<html>
  <head>
<style>
td {
  padding: 0.1em 0.2em;
}
table, th, td {
  border: 1px solid black;
  border-collapse: collapse;
}
</style>
  </head>
  <body>
`
	out += fmt.Sprintf("<h2>Listening report for %s %s to %s:</h2>\n",
		html.EscapeString(summary.Username), summary.PeriodStart, summary.PeriodEnd)
	out += fmt.Sprintf("<div>%d scrobbles, %d unique artists, %d unique tracks.</div>\n",
		summary.TotalScrobbles, summary.UniqueArtists, summary.UniqueTracks)
	out += fmt.Sprintf("<div>New artists discovered: %d. Most active day: %s.</div>\n",
		summary.NewArtistsDiscovered, summary.MostActiveDate)

	out += `
	<table>
		<thead>
			<tr><th>Period</th><th>Artist</th><th>Plays</th><th>New</th></tr>
		</thead>
		<tbody>
`
	for _, period := range summary.PeriodAnalysis {
		for _, artist := range period.TopArtists {
			discovery := ""
			if artist.IsNewDiscovery {
				discovery = "&#10003;"
			}
			out += fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%d</td><td>%s</td></tr>\n",
				period.Period, html.EscapeString(artist.Artist), artist.PlayCount, discovery)
		}
	}
	out += `
		</tbody>
	</table>
`

	if len(summary.GenreDistribution) > 0 {
		out += `
	<table>
		<thead>
			<tr><th>Genre</th><th>Artists</th><th>Share</th></tr>
		</thead>
		<tbody>
`
		for _, g := range summary.GenreDistribution {
			out += fmt.Sprintf("<tr><td>%s</td><td>%d</td><td>%.1f%%</td></tr>\n",
				html.EscapeString(g.Genre), g.Count, g.Percentage)
		}
		out += `
		</tbody>
	</table>
`
	}
	out += `
  </body>
</html>
`

	subject = fmt.Sprintf("Listening report for %s %s to %s",
		summary.Username, summary.PeriodStart, summary.PeriodEnd)
	return subject, out
}
