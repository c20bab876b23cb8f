// Package lastfm wraps the Last.fm API behind a client that owns pagination,
// retry with exponential backoff, rate limiting, and normalization of raw
// track records into canonical listen events.
package lastfm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ademuri/lastfm-go/lastfm"
	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// MaxPageSize is the largest page the recent-tracks endpoint serves.
	MaxPageSize = 200

	defaultMaxRetries = 3
)

// Config carries the credentials and tuning for a Client. It replaces any
// ambient configuration: everything the client needs arrives here.
type Config struct {
	APIKey    string
	Secret    string
	UserAgent string

	// PageSize is clamped to MaxPageSize; zero means MaxPageSize.
	PageSize int

	// MaxRetries bounds attempts per page before the page is recorded as
	// failed. Zero means the default.
	MaxRetries uint
}

type Client struct {
	api        *lastfm.Api
	limiter    *rate.Limiter
	pageSize   int
	maxRetries uint
	logger     zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("lastfm: API key is required")
	}

	api := lastfm.New(cfg.APIKey, cfg.Secret)
	if cfg.UserAgent != "" {
		api.SetUserAgent(cfg.UserAgent)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}

	return &Client{
		api:        api,
		limiter:    rate.NewLimiter(rate.Every(1*time.Second), 1),
		pageSize:   pageSize,
		maxRetries: maxRetries,
		logger:     logger.With().Str("component", "lastfm").Logger(),
	}, nil
}

// PageSize reports the configured records-per-page.
func (c *Client) PageSize() int {
	return c.pageSize
}

// Image is one size variant of a track's artwork.
type Image struct {
	Size string
	URL  string
}

// Track is a raw recent-tracks record, already flattened into a single
// explicit shape at the client boundary. UTS is empty only before now-playing
// filtering; FetchPage never returns such records.
type Track struct {
	Artist string
	Album  string
	Name   string
	UTS    string
	Images []Image
}

// Page is one page of historical listens.
type Page struct {
	Page       int
	TotalPages int
	Tracks     []Track
}

// FetchResult is the outcome of a full ranged fetch. FailedPages lists pages
// that exhausted their retries; their absence from Tracks is the only damage.
type FetchResult struct {
	Tracks      []Track
	TotalPages  int
	FailedPages []int
}

// FetchPage fetches one page of a user's recent tracks, retrying transient
// failures with exponential backoff (2^attempt seconds). Live "now playing"
// records carry no listened-at timestamp and are dropped here.
func (c *Client) FetchPage(ctx context.Context, user string, page int, from, to time.Time) (Page, error) {
	params := lastfm.P{
		"user":  user,
		"limit": c.pageSize,
		"page":  page,
	}
	if !from.IsZero() {
		params["from"] = strconv.FormatInt(from.Unix(), 10)
	}
	if !to.IsZero() {
		params["to"] = strconv.FormatInt(to.Unix(), 10)
	}

	var recent lastfm.UserGetRecentTracks
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			var err error
			recent, err = c.api.User.GetRecentTracks(params)
			return err
		},
		retry.Attempts(c.maxRetries),
		retry.Delay(1*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
	)
	if err != nil {
		return Page{}, fmt.Errorf("fetching recent tracks page %d for %q: %w", page, user, err)
	}

	result := Page{Page: page, TotalPages: recent.TotalPages}
	for _, t := range recent.Tracks {
		if t.Date.Uts == "" {
			// Now playing, not a historical listen.
			continue
		}
		track := Track{
			Artist: t.Artist.Name,
			Album:  t.Album.Name,
			Name:   t.Name,
			UTS:    t.Date.Uts,
		}
		for _, img := range t.Images {
			track.Images = append(track.Images, Image{Size: img.Size, URL: img.Url})
		}
		result.Tracks = append(result.Tracks, track)
	}
	return result, nil
}

// FetchAllInRange pulls pages sequentially until min(totalPages, maxPages).
// Page 1 is fetched first to discover the total page count. A page that
// exhausts its retries is recorded in FailedPages and the fetch moves on:
// partial results beat total failure. maxPages <= 0 means no page budget.
func (c *Client) FetchAllInRange(ctx context.Context, user string, from, to time.Time, maxPages int) (FetchResult, error) {
	result := FetchResult{TotalPages: 1}

	page := 1
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		p, err := c.FetchPage(ctx, user, page, from, to)
		if err != nil {
			c.logger.Warn().Err(err).Int("page", page).Str("user", user).
				Msg("page failed after retries, skipping")
			result.FailedPages = append(result.FailedPages, page)
			if page == 1 {
				// Without the first page the total page count is unknown.
				return result, nil
			}
		} else {
			if page == 1 {
				result.TotalPages = p.TotalPages
			}
			result.Tracks = append(result.Tracks, p.Tracks...)
		}

		page++
		if page > result.TotalPages {
			break
		}
		if maxPages > 0 && page > maxPages {
			break
		}
	}

	return result, nil
}

// FetchGenres returns the tag names attached to an artist. Genre enrichment
// is best effort: every failure collapses to an empty set so it can never
// block an analysis.
func (c *Client) FetchGenres(ctx context.Context, artist string) []string {
	var topTags lastfm.ArtistGetTopTags
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			var err error
			topTags, err = c.api.Artist.GetTopTags(lastfm.P{
				"artist":      artist,
				"autocorrect": 1,
			})
			return err
		},
		retry.Attempts(c.maxRetries),
		retry.Delay(1*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
	)
	if err != nil {
		c.logger.Warn().Err(err).Str("artist", artist).Msg("tag lookup failed")
		return nil
	}

	var tags []string
	for _, t := range topTags.Tags {
		if t.Name != "" {
			tags = append(tags, t.Name)
		}
	}
	return tags
}

// isTransient reports whether an error is worth a retry. Last.fm 5xx codes
// and transport-level failures are; client errors and cancellation are not.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var lerr *lastfm.LastfmError
	if errors.As(err, &lerr) {
		return lerr.Code/100 == 5
	}
	return true
}
