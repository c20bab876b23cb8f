// Package report orchestrates one analysis request end to end: ensure the
// user's history is ingested, run the analysis engine, persist the derived
// rows, enrich with genres, and shape the caller-facing summary. The CLI,
// the email command, and the HTTP API all go through it.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tuneline/tuneline/internal/analysis"
	"github.com/tuneline/tuneline/internal/ingest"
	"github.com/tuneline/tuneline/internal/store"
)

const (
	// genreArtistCount is how many top artists feed the genre distribution;
	// each costs a remote call.
	genreArtistCount = 20

	defaultGenreLimit = 10

	dateLayout = "2006-01-02"
)

// Summary is the caller-facing analysis result.
type Summary struct {
	Username             string                    `json:"username"`
	PeriodStart          string                    `json:"period_start"`
	PeriodEnd            string                    `json:"period_end"`
	TotalScrobbles       int                       `json:"total_scrobbles"`
	UniqueArtists        int                       `json:"unique_artists"`
	UniqueTracks         int                       `json:"unique_tracks"`
	NewArtistsDiscovered int                       `json:"new_artists_discovered"`
	MostActiveDate       string                    `json:"most_active_date"`
	LeastActiveDate      string                    `json:"least_active_date,omitempty"`
	PeriodAnalysis       []analysis.PeriodAnalysis `json:"period_analysis"`
	GenreDistribution    []analysis.GenreCount     `json:"genre_distribution,omitempty"`
}

type Service struct {
	store    *store.Store
	pipeline *ingest.Pipeline
	tags     analysis.TagSource
	logger   zerolog.Logger

	// GenreLimit caps the genre distribution; zero means the default.
	GenreLimit int
}

func NewService(st *store.Store, pipeline *ingest.Pipeline, tags analysis.TagSource, logger zerolog.Logger) *Service {
	return &Service{
		store:    st,
		pipeline: pipeline,
		tags:     tags,
		logger:   logger.With().Str("component", "report").Logger(),
	}
}

// Summarize produces the analysis summary for a user and date range,
// ingesting from the source first if the store has nothing for the range.
// When even an ingestion attempt yields no listens, it returns
// store.ErrNoListens: an empty history is a caller-visible condition, not a
// zero-activity result.
func (s *Service) Summarize(ctx context.Context, username string, start, end time.Time) (*Summary, error) {
	user := strings.ToLower(username)
	if err := s.store.CreateUser(user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	queryEnd := endOfDay(end)
	count, err := s.store.CountScrobbles(user, start, queryEnd)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		if _, _, err := s.pipeline.Ingest(ctx, user, start, queryEnd); err != nil {
			return nil, fmt.Errorf("ingesting history: %w", err)
		}
	}

	events, err := s.store.ScrobblesInRange(user, start, queryEnd, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, store.ErrNoListens
	}

	result := analysis.Analyze(events, start, end)

	if err := s.persist(user, result); err != nil {
		return nil, err
	}

	limit := s.GenreLimit
	if limit <= 0 {
		limit = defaultGenreLimit
	}
	var genres []analysis.GenreCount
	if s.tags != nil {
		top := analysis.TopArtistNames(events, genreArtistCount)
		genres = analysis.GenreDistribution(ctx, s.tags, top, limit)
	}

	summary := &Summary{
		Username:             user,
		PeriodStart:          result.Start.Format(dateLayout),
		PeriodEnd:            result.End.Format(dateLayout),
		TotalScrobbles:       result.TotalScrobbles,
		UniqueArtists:        result.UniqueArtists,
		UniqueTracks:         result.UniqueTracks,
		NewArtistsDiscovered: result.NewArtistsDiscovered,
		MostActiveDate:       result.MostActiveDate.Format(dateLayout),
		PeriodAnalysis:       result.Periods,
		GenreDistribution:    genres,
	}
	if !result.LeastActiveDate.IsZero() {
		summary.LeastActiveDate = result.LeastActiveDate.Format(dateLayout)
	}
	return summary, nil
}

// persist upserts the derived rows from one analysis run.
func (s *Service) persist(user string, result analysis.Result) error {
	trends := make([]store.Trend, 0, len(result.Trends))
	for _, t := range result.Trends {
		trends = append(trends, store.Trend{
			User:           user,
			Period:         t.Period,
			Artist:         t.Artist,
			PlayCount:      t.PlayCount,
			IsNewDiscovery: t.IsNewDiscovery,
		})
	}
	if err := s.store.SaveTrends(trends); err != nil {
		return fmt.Errorf("saving trends: %w", err)
	}

	activities := make([]store.Activity, 0, len(result.Activity))
	for _, a := range result.Activity {
		activities = append(activities, store.Activity{
			User:       user,
			Date:       a.Date,
			TrackCount: a.TrackCount,
		})
	}
	if err := s.store.SaveActivities(activities); err != nil {
		return fmt.Errorf("saving activity: %w", err)
	}
	return nil
}

// endOfDay widens a date bound to include the whole final day.
func endOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
