package analysis

import "time"

// ArtistPlayCount is one artist's play count within a period.
type ArtistPlayCount struct {
	Artist         string `json:"artist"`
	PlayCount      int    `json:"play_count"`
	IsNewDiscovery bool   `json:"is_new_discovery"`
}

// PeriodAnalysis summarizes one calendar month.
type PeriodAnalysis struct {
	Period      string            `json:"period"`
	TopArtists  []ArtistPlayCount `json:"top_artists"`
	TotalTracks int               `json:"total_tracks"`
}

// TrendRow is a per-period, per-artist count destined for persistence. Unlike
// PeriodAnalysis.TopArtists it covers every artist, not just the top ten.
type TrendRow struct {
	Period         string
	Artist         string
	PlayCount      int
	IsNewDiscovery bool
}

// ActivityRow is a per-day listen count destined for persistence.
type ActivityRow struct {
	Date       time.Time
	TrackCount int
}

// GenreCount is one genre's share of a tag distribution.
type GenreCount struct {
	Genre      string  `json:"genre"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Result is the full output of one analysis run.
type Result struct {
	TotalScrobbles       int
	UniqueArtists        int
	UniqueTracks         int
	NewArtistsDiscovered int

	// MostActiveDate is zero when there is no data. LeastActiveDate is zero
	// whenever any day in the analyzed span has no listens at all: the
	// quietest day among silent days would be meaningless.
	MostActiveDate  time.Time
	LeastActiveDate time.Time

	// Start and End are the resolved bounds, defaulted from the data when
	// the caller left them unset.
	Start time.Time
	End   time.Time

	Periods  []PeriodAnalysis
	Trends   []TrendRow
	Activity []ActivityRow
}
