package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/use-agent/chartfetch/config"
	"github.com/use-agent/chartfetch/identity"
	"github.com/use-agent/chartfetch/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loopOpts() config.FetchConfig {
	return config.FetchConfig{
		MaxAttempts:    3,
		AttemptTimeout: time.Second,
		JitterMin:      0,
		JitterMax:      0,
	}
}

func loopSource() *models.Source {
	return &models.Source{
		Name:       "loop",
		MinColumns: 1,
		Fields:     []models.FieldSpec{{Name: "Value", Cell: 0}},
	}
}

// stubDriver scripts one FetchRows outcome per attempt and records the
// identities installed on it.
type stubDriver struct {
	results     []stubResult
	calls       int
	identities  []identity.Identity
	identifyErr error
}

type stubResult struct {
	rows []models.RawRow
	err  error
}

func (s *stubDriver) Identify(id identity.Identity) error {
	s.identities = append(s.identities, id)
	return s.identifyErr
}

func (s *stubDriver) FetchRows(ctx context.Context, src *models.Source) ([]models.RawRow, error) {
	if s.calls >= len(s.results) {
		return nil, errors.New("stub exhausted: unexpected extra attempt")
	}
	r := s.results[s.calls]
	s.calls++
	return r.rows, r.err
}

func TestFetch_SucceedsAfterRetries(t *testing.T) {
	drv := &stubDriver{results: []stubResult{
		{err: models.NewScrapeError(models.ErrCodeNavigation, "reset", nil)},
		{err: models.NewScrapeError(models.ErrCodeTimeout, "slow", nil)},
		{rows: []models.RawRow{{"ok"}}},
	}}

	f := NewFetcher(drv, loopOpts(), rand.New(rand.NewSource(7)), discardLogger())
	rs, err := f.Fetch(context.Background(), loopSource())
	if err != nil {
		t.Fatalf("Fetch() error = %v, want success on third attempt", err)
	}

	if rs.Len() != 1 || rs.Records[0][0] != "ok" {
		t.Errorf("record set = %+v, want the third attempt's row", rs)
	}
	if drv.calls != 3 {
		t.Errorf("attempts = %d, want 3", drv.calls)
	}
}

func TestFetch_ExhaustsAttempts(t *testing.T) {
	cause := models.NewScrapeError(models.ErrCodeNavigation, "reset", nil)
	drv := &stubDriver{results: []stubResult{{err: cause}, {err: cause}, {err: cause}}}

	f := NewFetcher(drv, loopOpts(), rand.New(rand.NewSource(7)), discardLogger())
	rs, err := f.Fetch(context.Background(), loopSource())
	if err == nil {
		t.Fatal("Fetch() should fail once every attempt is spent")
	}
	if rs != nil {
		t.Errorf("record set should be nil on failure, got %+v", rs)
	}

	var serr *models.ScrapeError
	if !errors.As(err, &serr) {
		t.Fatalf("error should be a ScrapeError, got %T", err)
	}
	if serr.Code != models.ErrCodeExhausted {
		t.Errorf("code = %q, want %q", serr.Code, models.ErrCodeExhausted)
	}
	if serr.Kind() != models.KindTerminal {
		t.Errorf("exhaustion must be terminal, got %v", serr.Kind())
	}
	if !errors.Is(err, cause) {
		t.Error("exhaustion should wrap the last attempt's error")
	}
	if drv.calls != 3 {
		t.Errorf("attempts = %d, want 3", drv.calls)
	}
}

func TestFetch_FatalAbortsImmediately(t *testing.T) {
	drv := &stubDriver{results: []stubResult{
		{err: models.NewScrapeError(models.ErrCodeDriverUnavailable, "no binary", nil)},
	}}

	f := NewFetcher(drv, loopOpts(), rand.New(rand.NewSource(7)), discardLogger())
	_, err := f.Fetch(context.Background(), loopSource())

	var serr *models.ScrapeError
	if !errors.As(err, &serr) || serr.Code != models.ErrCodeDriverUnavailable {
		t.Fatalf("error = %v, want the fatal error passed through", err)
	}
	if drv.calls != 1 {
		t.Errorf("attempts = %d, fatal errors must not be retried", drv.calls)
	}
}

func TestFetch_EmptyPageRetries(t *testing.T) {
	drv := &stubDriver{results: []stubResult{
		{rows: nil},                          // loaded, no rows at all
		{rows: []models.RawRow{{}, nil}},     // rows below MinColumns
		{rows: []models.RawRow{{"finally"}}}, // usable
	}}

	f := NewFetcher(drv, loopOpts(), rand.New(rand.NewSource(7)), discardLogger())
	rs, err := f.Fetch(context.Background(), loopSource())
	if err != nil {
		t.Fatalf("Fetch() error = %v, want success on third attempt", err)
	}
	if drv.calls != 3 {
		t.Errorf("attempts = %d, want hollow pages to burn attempts", drv.calls)
	}
	if rs.Records[0][0] != "finally" {
		t.Errorf("record = %v", rs.Records[0])
	}
}

func TestFetch_AllEmptyReportsEmptyCause(t *testing.T) {
	drv := &stubDriver{results: []stubResult{{}, {}, {}}}

	f := NewFetcher(drv, loopOpts(), rand.New(rand.NewSource(7)), discardLogger())
	_, err := f.Fetch(context.Background(), loopSource())

	var serr *models.ScrapeError
	if !errors.As(err, &serr) || serr.Code != models.ErrCodeExhausted {
		t.Fatalf("error = %v, want exhaustion", err)
	}
	var inner *models.ScrapeError
	if !errors.As(serr.Err, &inner) || inner.Code != models.ErrCodeEmptyResult {
		t.Errorf("wrapped cause = %v, want EMPTY_RESULT", serr.Err)
	}
}

func TestFetch_CanceledWhilePausing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := loopOpts()
	opts.JitterMin = 50 * time.Millisecond
	opts.JitterMax = 100 * time.Millisecond

	drv := &stubDriver{}
	f := NewFetcher(drv, opts, rand.New(rand.NewSource(7)), discardLogger())
	_, err := f.Fetch(ctx, loopSource())
	if err == nil {
		t.Fatal("Fetch() should fail when the context is already canceled")
	}
	if drv.calls != 0 {
		t.Errorf("attempts = %d, cancellation during the pause must not fetch", drv.calls)
	}
}

func TestFetch_FreshIdentityPerAttempt(t *testing.T) {
	drv := &stubDriver{results: []stubResult{
		{err: models.NewScrapeError(models.ErrCodeNavigation, "reset", nil)},
		{err: models.NewScrapeError(models.ErrCodeNavigation, "reset", nil)},
		{rows: []models.RawRow{{"ok"}}},
	}}

	f := NewFetcher(drv, loopOpts(), rand.New(rand.NewSource(7)), discardLogger())
	if _, err := f.Fetch(context.Background(), loopSource()); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(drv.identities) != 3 {
		t.Errorf("identities installed = %d, want one per attempt", len(drv.identities))
	}
	for i, id := range drv.identities {
		if id.UserAgent == "" {
			t.Errorf("identity %d is empty", i)
		}
	}
}

func TestFetch_IdentifyFailureBurnsAttempt(t *testing.T) {
	drv := &stubDriver{identifyErr: errors.New("cdp session gone")}

	f := NewFetcher(drv, loopOpts(), rand.New(rand.NewSource(7)), discardLogger())
	_, err := f.Fetch(context.Background(), loopSource())

	var serr *models.ScrapeError
	if !errors.As(err, &serr) || serr.Code != models.ErrCodeExhausted {
		t.Fatalf("error = %v, want exhaustion", err)
	}
	if drv.calls != 0 {
		t.Errorf("FetchRows calls = %d, want none when identity install fails", drv.calls)
	}
	if len(drv.identities) != 3 {
		t.Errorf("identify calls = %d, want one per attempt", len(drv.identities))
	}
}

func TestJitterDuration(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	tests := []struct {
		name     string
		min, max time.Duration
	}{
		{"normal window", 2 * time.Second, 5 * time.Second},
		{"collapsed window", 5 * time.Second, 5 * time.Second},
		{"inverted window", 5 * time.Second, 2 * time.Second},
		{"zero window", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 1000; i++ {
				d := jitterDuration(rng, tt.min, tt.max)
				if tt.max <= tt.min {
					if d != tt.min {
						t.Fatalf("jitterDuration(%v, %v) = %v, want %v", tt.min, tt.max, d, tt.min)
					}
					continue
				}
				if d < tt.min || d >= tt.max {
					t.Fatalf("jitterDuration(%v, %v) = %v, outside [min, max)", tt.min, tt.max, d)
				}
			}
		})
	}
}
