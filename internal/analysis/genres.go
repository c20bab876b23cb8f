package analysis

import (
	"context"
	"sort"
)

// TagSource looks up the genre tags attached to an artist. Lookups are best
// effort: implementations return an empty set on failure.
type TagSource interface {
	FetchGenres(ctx context.Context, artist string) []string
}

// GenreDistribution fetches each artist's tags and aggregates them into the
// top-limit genres. The weight of a genre is the number of artists carrying
// the tag, not their play counts. An empty artist list, or artists with no
// tags at all, yields an empty distribution.
func GenreDistribution(ctx context.Context, src TagSource, artists []string, limit int) []GenreCount {
	counts := make(map[string]int)
	total := 0
	for _, artist := range artists {
		for _, genre := range src.FetchGenres(ctx, artist) {
			counts[genre]++
			total++
		}
	}
	if total == 0 {
		return nil
	}

	distribution := make([]GenreCount, 0, len(counts))
	for genre, count := range counts {
		distribution = append(distribution, GenreCount{
			Genre:      genre,
			Count:      count,
			Percentage: float64(count) / float64(total) * 100,
		})
	}
	sort.Slice(distribution, func(i, j int) bool {
		if distribution[i].Count != distribution[j].Count {
			return distribution[i].Count > distribution[j].Count
		}
		return distribution[i].Genre < distribution[j].Genre
	})

	if limit > 0 && len(distribution) > limit {
		distribution = distribution[:limit]
	}
	return distribution
}
