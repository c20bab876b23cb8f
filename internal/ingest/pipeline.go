// Package ingest pulls a user's full listening history from the external
// source into the store. A synchronous ingest is bounded by a page budget;
// histories that exceed it are completed by a detached background
// continuation that reports through a status record in the store.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tuneline/tuneline/internal/lastfm"
	"github.com/tuneline/tuneline/internal/store"
)

// defaultMaxPages bounds the synchronous portion of an ingest. It is a
// latency/throughput tradeoff, not a correctness limit: the continuation
// makes up the remainder.
const defaultMaxPages = 10

// Source is the slice of the external client the pipeline needs.
type Source interface {
	FetchPage(ctx context.Context, user string, page int, from, to time.Time) (lastfm.Page, error)
	FetchAllInRange(ctx context.Context, user string, from, to time.Time, maxPages int) (lastfm.FetchResult, error)
}

type Pipeline struct {
	store    *store.Store
	source   Source
	logger   zerolog.Logger
	maxPages int

	wg sync.WaitGroup
}

func NewPipeline(st *store.Store, src Source, logger zerolog.Logger, maxPages int) *Pipeline {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &Pipeline{
		store:    st,
		source:   src,
		logger:   logger.With().Str("component", "ingest").Logger(),
		maxPages: maxPages,
	}
}

// Ingest resolves or creates the user, pulls their history for the range, and
// persists it. Re-ingesting already-seen events is a no-op thanks to the
// store's identity key; no locking against concurrent ingests is needed or
// attempted. When the synchronous fetch hits the page budget, a continuation
// is scheduled in the background and its run id is returned alongside the
// count ingested so far.
func (p *Pipeline) Ingest(ctx context.Context, username string, from, to time.Time) (int, string, error) {
	user := strings.ToLower(username)
	if err := p.store.CreateUser(user); err != nil {
		return 0, "", fmt.Errorf("creating user: %w", err)
	}

	result, err := p.source.FetchAllInRange(ctx, user, from, to, p.maxPages)
	if err != nil {
		return 0, "", fmt.Errorf("fetching history for %q: %w", user, err)
	}

	inserted, err := p.insertTracks(user, result.Tracks)
	if err != nil {
		return 0, "", err
	}
	p.logger.Info().Str("user", user).Int("fetched", len(result.Tracks)).
		Int("inserted", inserted).Ints("failed_pages", result.FailedPages).
		Msg("synchronous ingest finished")

	if result.TotalPages <= p.maxPages {
		return inserted, "", nil
	}

	runID, err := p.scheduleContinuation(user, from, to, p.maxPages+1)
	if err != nil {
		return inserted, "", err
	}
	return inserted, runID, nil
}

// Wait blocks until all scheduled continuations have finished. The CLI calls
// it before exiting; the HTTP server never does.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// insertTracks normalizes and bulk-inserts raw tracks, skipping records that
// cannot be normalized.
func (p *Pipeline) insertTracks(user string, tracks []lastfm.Track) (int, error) {
	scrobbles := make([]store.Scrobble, 0, len(tracks))
	for _, t := range tracks {
		sc, err := lastfm.Normalize(user, t)
		if err != nil {
			p.logger.Warn().Err(err).Str("track", t.Name).Msg("skipping malformed record")
			continue
		}
		scrobbles = append(scrobbles, sc)
	}

	inserted, err := p.store.InsertScrobbles(scrobbles)
	if err != nil {
		return 0, fmt.Errorf("inserting scrobbles for %q: %w", user, err)
	}
	return inserted, nil
}

func (p *Pipeline) scheduleContinuation(user string, from, to time.Time, startPage int) (string, error) {
	run := store.ContinuationRun{
		ID:        uuid.NewString(),
		User:      user,
		StartPage: startPage,
		From:      from,
		To:        to,
	}
	if err := p.store.StartContinuation(run); err != nil {
		return "", err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Detached from the triggering request: the run outlives the
		// caller's context and has no return channel to it.
		p.ContinueFrom(context.Background(), run.ID, user, from, to, startPage)
	}()

	return run.ID, nil
}
