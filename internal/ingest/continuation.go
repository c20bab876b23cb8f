package ingest

import (
	"context"
	"time"

	"github.com/tuneline/tuneline/internal/store"
)

// ContinueFrom completes an interrupted ingestion, pulling pages
// startPage..totalPages and inserting each page as it arrives rather than
// buffering the remainder. It re-queries page 1 only to recover the total
// page count, which is cheaper than persisting pipeline state. A page that
// fails after the client's retries is recorded and skipped; one bad page
// never aborts the rest. The run's ContinuationRun row is the only
// completion signal.
func (p *Pipeline) ContinueFrom(ctx context.Context, runID, user string, from, to time.Time, startPage int) {
	logger := p.logger.With().Str("run", runID).Str("user", user).Logger()

	first, err := p.source.FetchPage(ctx, user, 1, from, to)
	if err != nil {
		// Without the total page count nothing can be fetched; this run
		// failed rather than completed.
		logger.Error().Err(err).Msg("continuation could not recover total page count")
		p.finish(runID, store.RunFailed, 0, []int{1})
		return
	}

	pagesDone := 0
	var failedPages []int
	for page := startPage; page <= first.TotalPages; page++ {
		if ctx.Err() != nil {
			logger.Warn().Int("page", page).Msg("continuation cancelled")
			break
		}

		pg, err := p.source.FetchPage(ctx, user, page, from, to)
		if err != nil {
			logger.Warn().Err(err).Int("page", page).Msg("skipping failed page")
			failedPages = append(failedPages, page)
			continue
		}

		inserted, err := p.insertTracks(user, pg.Tracks)
		if err != nil {
			logger.Warn().Err(err).Int("page", page).Msg("skipping page that failed to insert")
			failedPages = append(failedPages, page)
			continue
		}
		pagesDone++
		logger.Debug().Int("page", page).Int("of", first.TotalPages).
			Int("inserted", inserted).Msg("continuation page done")
	}

	p.finish(runID, store.RunCompleted, pagesDone, failedPages)
	logger.Info().Int("pages_done", pagesDone).Ints("failed_pages", failedPages).
		Msg("continuation finished")
}

func (p *Pipeline) finish(runID, status string, pagesDone int, failedPages []int) {
	if err := p.store.FinishContinuation(runID, status, pagesDone, failedPages); err != nil {
		p.logger.Error().Err(err).Str("run", runID).Msg("recording continuation completion")
	}
}
