package scraper

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/chartfetch/config"
	"github.com/use-agent/chartfetch/identity"
	"github.com/use-agent/chartfetch/models"
	"github.com/ysmood/gson"
)

// Session owns one headless browser and the single page all attempts of a
// job run in. It is single-flight: one navigation at a time, owned by one
// job. Callers must defer Close on every exit path.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	log      *slog.Logger
}

// OpenSession resolves a browser binary, launches it with the automation
// fingerprint suppressed, and prepares one page with masking installed.
// A missing or unlaunchable binary is DRIVER_UNAVAILABLE: fail fast, the
// retry loop must never see it twice.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Resolve binary       – explicit override or host lookup
//  2. Launch               – stealth flags set before the process starts
//  3. Connect + page       – one tab for the whole job
//  4. Stealth injection    – mask webdriver/plugins/languages (before navigation!)
//  5. Hijack mount         – block images/CSS/fonts/media (before navigation!)
func OpenSession(cfg config.BrowserConfig, log *slog.Logger) (*Session, error) {
	// ── 1. Resolve browser binary ───────────────────────────────────
	bin := cfg.BrowserBin
	if bin == "" {
		path, has := launcher.LookPath()
		if !has {
			return nil, models.NewScrapeError(
				models.ErrCodeDriverUnavailable,
				"no chromium binary found; install one or set CHARTFETCH_BROWSER_BIN",
				nil,
			)
		}
		bin = path
	}

	// ── 2. Launch with stealth flags ────────────────────────────────
	l := launcher.New().
		Bin(bin).
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("window-size"), cfg.WindowSize)
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-notifications"))
	l.Set(flags.Flag("disable-infobars"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeDriverUnavailable,
			"failed to launch browser",
			err,
		)
	}
	log.Info("browser launched", "bin", bin, "controlURL", controlURL)

	// ── 3. Connect and open the job's page ──────────────────────────
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(
			models.ErrCodeDriverUnavailable,
			"failed to connect to browser",
			err,
		)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, models.NewScrapeError(
			models.ErrCodeDriverUnavailable,
			"failed to open page",
			err,
		)
	}

	// ── 4. Stealth injection (before any navigation) ────────────────
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		log.Warn("stealth injection failed, proceeding without masking",
			"error", evalErr,
		)
	}

	// ── 5. Mount hijack router (blocks Image/Stylesheet/Font/Media) ─
	router := setupHijack(page, cfg.BlockedResourceTypes)

	return &Session{
		launcher: l,
		browser:  browser,
		page:     page,
		router:   router,
		log:      log,
	}, nil
}

// Identify installs a client identity into the live session: a CDP override
// for navigator.userAgent / navigator.platform / Accept-Language plus the
// identity's extra headers, so document-level and network-level fingerprints
// agree. Called before every navigation attempt; the override replaces the
// previous one.
func (s *Session) Identify(id identity.Identity) error {
	if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      id.UserAgent,
		AcceptLanguage: id.AcceptLanguage,
		Platform:       id.Platform,
	}); err != nil {
		return models.NewScrapeError(
			models.ErrCodeNavigation,
			"failed to install user agent override",
			err,
		)
	}
	if err := (proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(id.Headers()),
	}).Call(s.page); err != nil {
		return models.NewScrapeError(
			models.ErrCodeNavigation,
			"failed to install extra headers",
			err,
		)
	}
	s.log.Debug("identity installed", "userAgent", id.UserAgent, "platform", id.Platform)
	return nil
}

// FetchRows performs one navigation attempt: go to the source URL, wait for
// its readiness marker, then slice every matched row into ordered cell text.
// The returned rows carry no schema yet; extraction decides what survives.
func (s *Session) FetchRows(ctx context.Context, src *models.Source) ([]models.RawRow, error) {
	// ── 1. Bind the attempt deadline to all page operations ─────────
	p := s.page.Context(ctx)

	// ── 2. Navigate ─────────────────────────────────────────────────
	if err := p.Navigate(src.URL); err != nil {
		return nil, categorizeError(err, "navigation to "+src.URL+" failed")
	}

	// ── 3. Let the DOM settle (best effort) ─────────────────────────
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		s.log.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr,
		)
	}
	s.log.Info("page loaded",
		"source", src.Name,
		"title", evalStringOrEmpty(p, `() => document.title`),
	)

	// ── 4. Readiness probe ──────────────────────────────────────────
	if err := p.WaitElementsMoreThan(src.ReadySelector, 0); err != nil {
		return nil, categorizeError(err, "readiness marker "+src.ReadySelector+" never appeared")
	}

	// ── 5. Harvest rows ─────────────────────────────────────────────
	elems, err := p.Elements(src.RowSelector)
	if err != nil {
		return nil, categorizeError(err, "row query "+src.RowSelector+" failed")
	}

	rows := make([]models.RawRow, 0, len(elems))
	for _, el := range elems {
		rows = append(rows, harvestCells(el, src))
	}
	s.log.Debug("rows harvested", "source", src.Name, "rows", len(rows))
	return rows, nil
}

// Close releases the page and kills the browser process. Teardown errors
// are logged and swallowed so they never mask the scrape outcome.
func (s *Session) Close() {
	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			s.log.Warn("session close: hijack router stop failed", "error", err)
		}
	}
	if err := s.page.Close(); err != nil {
		s.log.Warn("session close: page close failed", "error", err)
	}
	if err := s.browser.Close(); err != nil {
		s.log.Warn("session close: browser close failed", "error", err)
	}
	s.launcher.Kill()
	s.log.Info("session closed")
}

// harvestCells slices one row element into ordered, trimmed cell text.
// With CellSelector every match counts as a cell; with CellSelectors each
// listed sub-element fills one position, and the first missing one truncates
// the row there (the extractor then drops it as too short).
func harvestCells(el *rod.Element, src *models.Source) models.RawRow {
	if src.CellSelector != "" {
		cells, err := el.Elements(src.CellSelector)
		if err != nil {
			return nil
		}
		row := make(models.RawRow, 0, len(cells))
		for _, c := range cells {
			row = append(row, elementText(c))
		}
		return row
	}

	row := make(models.RawRow, 0, len(src.CellSelectors))
	for _, sel := range src.CellSelectors {
		c, err := el.Element(sel)
		if err != nil {
			break
		}
		row = append(row, elementText(c))
	}
	return row
}

func elementText(el *rod.Element) string {
	txt, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(txt)
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ScrapeErrors so the fetch
// loop can classify them by kind.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
