package main

import (
	"context"
	"log/slog"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/use-agent/chartfetch/config"
	"github.com/use-agent/chartfetch/identity"
	"github.com/use-agent/chartfetch/models"
	"github.com/use-agent/chartfetch/opencritic"
	"github.com/use-agent/chartfetch/scraper"
	"github.com/use-agent/chartfetch/sink"
)

// jobFunc is one named acquisition run.
type jobFunc func(ctx context.Context, cfg *config.Config, log *slog.Logger) error

// jobOrder is the default run order when no jobs are named on the command
// line: scrape jobs first, API pull last.
var jobOrder = []string{"vgchartz-games", "vgchartz-consoles", "metacritic", "opencritic"}

var jobs = map[string]jobFunc{
	"vgchartz-games":    runVGChartzGames,
	"vgchartz-consoles": runVGChartzConsoles,
	"metacritic":        runMetacritic,
	"opencritic":        runOpenCritic,
}

// nintendoConsoles marks the hardware kept from the platform totals chart.
// Matched as substrings of the scraped name, so "Nintendo DS" hits "DS".
var nintendoConsoles = []string{
	"Switch", "Wii", "Wii U", "3DS", "DS", "GameCube", "N64",
	"SNES", "NES", "Game Boy", "Game Boy Advance", "Virtual Boy",
}

func isNintendoConsole(name string) bool {
	for _, c := range nintendoConsoles {
		if strings.Contains(name, c) {
			return true
		}
	}
	return false
}

// vgchartzGamesSource reads the per-game sales chart. Cell 0 is the rank;
// cells 1..6 carry the fields. The header row has no td cells but is skipped
// positionally anyway.
func vgchartzGamesSource(url string) *models.Source {
	return &models.Source{
		Name:          "vgchartz-games",
		URL:           url,
		ReadySelector: "table.chart",
		RowSelector:   "table.chart tr",
		CellSelector:  "td",
		SkipRows:      1,
		MinColumns:    7,
		Fields: []models.FieldSpec{
			{Name: "Game", Cell: 1},
			{Name: "Platform", Cell: 2},
			{Name: "Publisher", Cell: 3},
			{Name: "Developer", Cell: 4},
			{Name: "Total Sales (M)", Cell: 5},
			{Name: "Release Date", Cell: 6},
		},
	}
}

// vgchartzConsolesSource reads the lifetime platform totals chart, which
// shares its markup with the games chart.
func vgchartzConsolesSource(url string) *models.Source {
	return &models.Source{
		Name:          "vgchartz-consoles",
		URL:           url,
		ReadySelector: "table.chart",
		RowSelector:   "table.chart tr",
		CellSelector:  "td",
		SkipRows:      1,
		MinColumns:    7,
		Fields: []models.FieldSpec{
			{Name: "Console", Cell: 1},
			{Name: "North America (M)", Cell: 2},
			{Name: "Europe (M)", Cell: 3},
			{Name: "Japan (M)", Cell: 4},
			{Name: "Rest of World (M)", Cell: 5},
			{Name: "Total Sales (M)", Cell: 6},
		},
	}
}

// metacriticSource reads the browse listing, which is a card list rather
// than a table; each card yields one row via named sub-selectors.
func metacriticSource(url string) *models.Source {
	return &models.Source{
		Name:          "metacritic",
		URL:           url,
		ReadySelector: ".c-productList",
		RowSelector:   ".c-productListItem",
		CellSelectors: []string{
			".c-productListItem_title",
			".c-siteReviewScore",
			".c-productListItem_date",
		},
		MinColumns: 3,
		Fields: []models.FieldSpec{
			{Name: "Game", Cell: 0},
			{Name: "Metascore", Cell: 1},
			{Name: "Release Date", Cell: 2},
		},
	}
}

func runVGChartzGames(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	src := vgchartzGamesSource(cfg.Sources.VGChartzGamesURL)
	rs, err := fetchWithBrowser(ctx, cfg, src, log)
	if err != nil {
		return err
	}
	return sink.WriteCSV(filepath.Join(cfg.Output.DataDir, "nintendo_game_sales.csv"), rs, log)
}

func runMetacritic(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	src := metacriticSource(cfg.Sources.MetacriticURL)
	rs, err := fetchWithBrowser(ctx, cfg, src, log)
	if err != nil {
		return err
	}
	return sink.WriteCSV(filepath.Join(cfg.Output.DataDir, "nintendo_game_scores.csv"), rs, log)
}

// runVGChartzConsoles pulls the platform totals chart over plain HTTP; the
// page is server-rendered, so no browser session is needed. Non-Nintendo
// hardware is filtered out after extraction.
func runVGChartzConsoles(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	src := vgchartzConsolesSource(cfg.Sources.VGChartzConsolesURL)
	if err := scraper.ValidateSource(src); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	drv := scraper.NewHTTPFetcher(identity.Pick(rng), cfg.Browser.DefaultProxy, cfg.HTTP.Timeout, log)
	rs, err := scraper.NewFetcher(drv, cfg.Fetch, rng, log).Fetch(ctx, src)
	if err != nil {
		return err
	}

	before := rs.Len()
	rs.Filter(func(rec models.Record) bool { return isNintendoConsole(rec[0]) })
	log.Info("filtered to nintendo hardware", "kept", rs.Len(), "dropped", before-rs.Len())
	if rs.Empty() {
		return models.NewScrapeError(
			models.ErrCodeEmptyResult,
			"platform totals held no nintendo consoles",
			nil,
		)
	}

	return sink.WriteCSV(filepath.Join(cfg.Output.DataDir, "nintendo_console_sales.csv"), rs, log)
}

func runOpenCritic(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	client := opencritic.NewClient(cfg.API, rng, log)
	rs, err := client.TopGames(ctx)
	if err != nil {
		return err
	}
	return sink.WriteCSV(filepath.Join(cfg.Output.DataDir, "nintendo_game_scores.csv"), rs, log)
}

// fetchWithBrowser owns one browser session for the duration of a single
// source fetch.
func fetchWithBrowser(ctx context.Context, cfg *config.Config, src *models.Source, log *slog.Logger) (*models.RecordSet, error) {
	if err := scraper.ValidateSource(src); err != nil {
		return nil, err
	}

	sess, err := scraper.OpenSession(cfg.Browser, log)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return scraper.NewFetcher(sess, cfg.Fetch, rng, log).Fetch(ctx, src)
}
