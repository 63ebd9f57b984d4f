// Package opencritic pulls review aggregates from the OpenCritic API.
package opencritic

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/use-agent/chartfetch/config"
	"github.com/use-agent/chartfetch/identity"
	"github.com/use-agent/chartfetch/models"
	"golang.org/x/time/rate"
)

// listedGame is one entry of the /game listing.
type listedGame struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// gameDetail is the subset of /game/{id} the pipeline keeps.
type gameDetail struct {
	Name             string  `json:"name"`
	TopCriticScore   float64 `json:"topCriticScore"`
	FirstReleaseDate string  `json:"firstReleaseDate"`
}

// Client queries OpenCritic with a browser-shaped header set and a paced
// detail loop. The API sits behind Cloudflare, so the transport carries the
// bypass round tripper.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	cfg     config.APIConfig
	log     *slog.Logger
}

// NewClient builds an OpenCritic client. The identity drawn from rng fixes
// the User-Agent for the client's lifetime.
func NewClient(cfg config.APIConfig, rng *rand.Rand, log *slog.Logger) *Client {
	id := identity.Pick(rng)

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", id.UserAgent).
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Language", id.AcceptLanguage).
		SetHeader("Origin", "https://opencritic.com").
		SetHeader("Referer", "https://opencritic.com/").
		SetHeader("Sec-Fetch-Dest", "empty").
		SetHeader("Sec-Fetch-Mode", "cors").
		SetHeader("Sec-Fetch-Site", "same-site")

	httpClient := client.GetClient()
	httpClient.Transport = cloudflarebp.AddCloudFlareByPass(httpClient.Transport)

	return &Client{
		http:    client,
		limiter: rate.NewLimiter(rate.Every(cfg.DetailEvery), 1),
		cfg:     cfg,
		log:     log,
	}
}

// TopGames lists the platform's top-scored games and resolves each one's
// detail record. Detail fetches are paced by the limiter; a failed detail
// drops that game rather than the batch.
func (c *Client) TopGames(ctx context.Context) (*models.RecordSet, error) {
	var listing []listedGame
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"platforms": c.cfg.Platform,
			"sort":      "score",
			"order":     "desc",
			"limit":     strconv.Itoa(c.cfg.Limit),
		}).
		SetResult(&listing).
		Get("/game")
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "game listing request failed", err)
	}
	if resp.IsError() {
		return nil, models.NewScrapeError(
			models.ErrCodeNavigation,
			fmt.Sprintf("game listing returned HTTP %d", resp.StatusCode()),
			nil,
		)
	}
	c.log.Info("game listing fetched", "games", len(listing))

	rs := &models.RecordSet{Columns: []string{"Game", "OpenCritic Score", "Release Date"}}
	skipped := 0
	for _, g := range listing {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, models.NewScrapeError(models.ErrCodeTimeout, "detail loop canceled", err)
		}

		detail, err := c.gameDetail(ctx, g.ID)
		if err != nil {
			skipped++
			c.log.Warn("skipping game detail", "game", g.Name, "id", g.ID, "error", err)
			continue
		}

		name := detail.Name
		if name == "" {
			name = g.Name
		}
		rs.Records = append(rs.Records, models.Record{
			name,
			strconv.FormatFloat(detail.TopCriticScore, 'f', -1, 64),
			releaseDay(detail.FirstReleaseDate),
		})
	}
	if skipped > 0 {
		c.log.Info("dropped game details", "dropped", skipped, "kept", rs.Len())
	}

	if rs.Len() == 0 {
		return nil, models.NewScrapeError(
			models.ErrCodeEmptyResult,
			"game listing yielded no usable records",
			nil,
		)
	}
	return rs, nil
}

func (c *Client) gameDetail(ctx context.Context, id int) (*gameDetail, error) {
	var detail gameDetail
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&detail).
		Get("/game/" + strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode())
	}
	return &detail, nil
}

// releaseDay reduces an RFC 3339 timestamp to its calendar day. Unparseable
// input yields an empty cell rather than an error.
func releaseDay(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}
