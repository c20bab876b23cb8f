// Package analysis turns a set of stored listen events into period, artist,
// and daily statistics. Analyze is a pure function over its inputs: it does
// no I/O and is safe to call concurrently.
package analysis

import (
	"sort"
	"time"

	"github.com/tuneline/tuneline/internal/store"
)

// topArtistCount is how many artists each period summary keeps.
const topArtistCount = 10

// Analyze computes period statistics for a set of listen events. Zero start
// or end default to the first and last event dates. An empty input, or a
// range that filters everything out, yields a zero-valued result, never an
// error.
func Analyze(events []store.Scrobble, start, end time.Time) Result {
	if len(events) == 0 {
		return Result{}
	}

	sorted := make([]store.Scrobble, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ListenedAt.Before(sorted[j].ListenedAt)
	})

	if start.IsZero() {
		start = dateOf(sorted[0].ListenedAt)
	} else {
		start = dateOf(start)
	}
	if end.IsZero() {
		end = dateOf(sorted[len(sorted)-1].ListenedAt)
	} else {
		end = dateOf(end)
	}

	var filtered []store.Scrobble
	for _, e := range sorted {
		d := dateOf(e.ListenedAt)
		if !d.Before(start) && !d.After(end) {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == 0 {
		return Result{}
	}

	result := Result{
		TotalScrobbles: len(filtered),
		Start:          start,
		End:            end,
	}

	artists := make(map[string]struct{})
	tracks := make(map[[2]string]struct{})
	byPeriod := make(map[string][]store.Scrobble)
	for _, e := range filtered {
		artists[e.Artist] = struct{}{}
		tracks[[2]string{e.Artist, e.Track}] = struct{}{}
		period := FormatPeriod(e.ListenedAt)
		byPeriod[period] = append(byPeriod[period], e)
	}
	result.UniqueArtists = len(artists)
	result.UniqueTracks = len(tracks)

	// Periods must be processed in chronological order: an artist's
	// discovery period is the first one in which it has any play.
	firstSeen := make(map[string]string)
	for _, period := range PeriodRange(start, end) {
		periodEvents := byPeriod[period]

		counts := make(map[string]int)
		for _, e := range periodEvents {
			counts[e.Artist]++
		}

		ranked := rankArtists(counts)
		top := ranked
		if len(top) > topArtistCount {
			top = top[:topArtistCount]
		}

		topArtists := make([]ArtistPlayCount, 0, len(top))
		for _, a := range top {
			_, seen := firstSeen[a.Artist]
			topArtists = append(topArtists, ArtistPlayCount{
				Artist:         a.Artist,
				PlayCount:      a.PlayCount,
				IsNewDiscovery: !seen,
			})
		}

		// Every artist in the period updates the first-seen map, not just
		// the top ten, so later periods see accurate discovery status.
		for artist := range counts {
			if _, seen := firstSeen[artist]; !seen {
				firstSeen[artist] = period
			}
		}

		result.Periods = append(result.Periods, PeriodAnalysis{
			Period:      period,
			TopArtists:  topArtists,
			TotalTracks: len(periodEvents),
		})

		for _, a := range ranked {
			result.Trends = append(result.Trends, TrendRow{
				Period:         period,
				Artist:         a.Artist,
				PlayCount:      a.PlayCount,
				IsNewDiscovery: firstSeen[a.Artist] == period,
			})
		}
	}

	result.NewArtistsDiscovered = len(firstSeen)

	result.Activity, result.MostActiveDate, result.LeastActiveDate = dailyActivity(filtered, start, end)

	return result
}

// rankArtists orders a period's play counts by count descending, ties broken
// alphabetically by artist name so the ranking is deterministic.
func rankArtists(counts map[string]int) []ArtistPlayCount {
	ranked := make([]ArtistPlayCount, 0, len(counts))
	for artist, count := range counts {
		ranked = append(ranked, ArtistPlayCount{Artist: artist, PlayCount: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].PlayCount != ranked[j].PlayCount {
			return ranked[i].PlayCount > ranked[j].PlayCount
		}
		return ranked[i].Artist < ranked[j].Artist
	})
	return ranked
}

// dailyActivity counts events per calendar day and finds the extremes. The
// least-active date is only defined when every day in [start, end] has at
// least one listen; earliest date wins ties on both extremes.
func dailyActivity(events []store.Scrobble, start, end time.Time) ([]ActivityRow, time.Time, time.Time) {
	byDay := make(map[time.Time]int)
	for _, e := range events {
		byDay[dateOf(e.ListenedAt)]++
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	activity := make([]ActivityRow, 0, len(days))
	var mostActive, leastActive time.Time
	for _, day := range days {
		activity = append(activity, ActivityRow{Date: day, TrackCount: byDay[day]})
		if mostActive.IsZero() || byDay[day] > byDay[mostActive] {
			mostActive = day
		}
	}

	spanDays := int(end.Sub(start).Hours()/24) + 1
	if len(byDay) == spanDays {
		for _, day := range days {
			if leastActive.IsZero() || byDay[day] < byDay[leastActive] {
				leastActive = day
			}
		}
	}

	return activity, mostActive, leastActive
}

// TopArtistNames returns the n most played artists across the whole event
// set, for genre enrichment. Same tie-break as the period ranking.
func TopArtistNames(events []store.Scrobble, n int) []string {
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.Artist]++
	}

	ranked := rankArtists(counts)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	names := make([]string, 0, len(ranked))
	for _, a := range ranked {
		names = append(names, a.Artist)
	}
	return names
}
