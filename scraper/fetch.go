package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/use-agent/chartfetch/config"
	"github.com/use-agent/chartfetch/extract"
	"github.com/use-agent/chartfetch/identity"
	"github.com/use-agent/chartfetch/models"
)

// RowFetcher is the slice of Session the fetch loop needs. Narrowing it to
// an interface keeps the loop testable without a live browser.
type RowFetcher interface {
	Identify(id identity.Identity) error
	FetchRows(ctx context.Context, src *models.Source) ([]models.RawRow, error)
}

// Fetcher drives the attempt loop around a RowFetcher: jittered pause,
// fresh identity, one bounded attempt, extraction as the success test.
type Fetcher struct {
	drv  RowFetcher
	opts config.FetchConfig
	rng  *rand.Rand
	log  *slog.Logger
}

// NewFetcher builds a Fetcher. The caller supplies the randomness source
// used for jitter delays and identity selection.
func NewFetcher(drv RowFetcher, opts config.FetchConfig, rng *rand.Rand, log *slog.Logger) *Fetcher {
	return &Fetcher{drv: drv, opts: opts, rng: rng, log: log}
}

// Fetch runs up to MaxAttempts acquisition attempts against src and returns
// the first non-empty record set.
//
// Per attempt: sleep a jittered delay (raced against ctx), install a fresh
// identity, fetch rows under the per-attempt timeout, extract. A fatal error
// aborts on the spot. A retryable error, or a page that yields zero usable
// records, burns the attempt and loops. After the last attempt the loop
// returns RETRIES_EXHAUSTED wrapping the final cause, and no output file
// must be written by the caller.
func (f *Fetcher) Fetch(ctx context.Context, src *models.Source) (*models.RecordSet, error) {
	var lastErr error

	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		// ── 1. Jittered pause before every attempt, the first included ──
		delay := jitterDuration(f.rng, f.opts.JitterMin, f.opts.JitterMax)
		f.log.Debug("pausing before attempt",
			"source", src.Name,
			"attempt", attempt,
			"delay", delay,
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, categorizeError(ctx.Err(), "fetch canceled while pausing")
		}

		// ── 2. Fresh identity per attempt ────────────────────────────
		id := identity.Pick(f.rng)
		if err := f.drv.Identify(id); err != nil {
			lastErr = err
			f.log.Warn("identity install failed",
				"source", src.Name,
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		// ── 3. One bounded attempt ───────────────────────────────────
		attemptCtx, cancel := context.WithTimeout(ctx, f.opts.AttemptTimeout)
		rows, err := f.drv.FetchRows(attemptCtx, src)
		cancel()
		if err != nil {
			var serr *models.ScrapeError
			if errors.As(err, &serr) && serr.Kind() == models.KindFatal {
				return nil, err
			}
			lastErr = err
			f.log.Warn("attempt failed",
				"source", src.Name,
				"attempt", attempt,
				"maxAttempts", f.opts.MaxAttempts,
				"error", err,
			)
			continue
		}

		// ── 4. Success test: does the page yield usable records? ────
		rs := extract.Records(rows, src, f.log)
		if rs.Empty() {
			lastErr = models.NewScrapeError(
				models.ErrCodeEmptyResult,
				"page loaded but yielded no usable rows",
				nil,
			)
			f.log.Warn("attempt yielded no records",
				"source", src.Name,
				"attempt", attempt,
				"rawRows", len(rows),
			)
			continue
		}

		f.log.Info("fetch succeeded",
			"source", src.Name,
			"attempt", attempt,
			"records", rs.Len(),
		)
		return rs, nil
	}

	return nil, models.NewScrapeError(
		models.ErrCodeExhausted,
		fmt.Sprintf("no usable table after %d attempts", f.opts.MaxAttempts),
		lastErr,
	)
}

// jitterDuration draws a uniform duration from [min, max). A window with
// max <= min collapses to min.
func jitterDuration(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)))
}
