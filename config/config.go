package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Browser BrowserConfig
	Fetch   FetchConfig
	HTTP    HTTPConfig
	API     APIConfig
	Sources SourcesConfig
	Output  OutputConfig
	Log     LogConfig
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path. When empty, the
	// binary is resolved from the host's installed browsers.
	BrowserBin string

	// DefaultProxy is the proxy URL for browser and static fetches.
	DefaultProxy string

	// WindowSize is the fixed browser window geometry.
	WindowSize string // default: "1920,1080"

	// BlockedResourceTypes lists resource types to block during scrapes.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// FetchConfig controls the retry loop around page acquisition.
type FetchConfig struct {
	// MaxAttempts is the number of navigation attempts before giving up.
	MaxAttempts int // default: 3

	// AttemptTimeout bounds one attempt: navigate, settle, readiness
	// wait and row harvest together.
	AttemptTimeout time.Duration // default: 30s

	// JitterMin and JitterMax bound the randomized pause taken before
	// every attempt, the first included.
	JitterMin time.Duration // default: 2s
	JitterMax time.Duration // default: 5s
}

// HTTPConfig controls the static-document fetch path.
type HTTPConfig struct {
	// Timeout bounds one static document fetch.
	Timeout time.Duration // default: 20s
}

// APIConfig controls the OpenCritic API client.
type APIConfig struct {
	// BaseURL is the API root.
	BaseURL string // default: "https://api.opencritic.com/api"

	// Timeout bounds each API request.
	Timeout time.Duration // default: 15s

	// Platform filters the listing (OpenCritic platform short name).
	Platform string // default: "switch"

	// Limit is the listing page size.
	Limit int // default: 100

	// DetailEvery paces the per-game detail requests.
	DetailEvery time.Duration // default: 1s
}

// SourcesConfig carries the scrape target URLs. Overridable mainly for
// pointing jobs at local fixtures.
type SourcesConfig struct {
	VGChartzGamesURL    string
	VGChartzConsolesURL string
	MetacriticURL       string
}

// OutputConfig controls where collected tables land.
type OutputConfig struct {
	// DataDir is the destination directory for CSV output.
	DataDir string // default: "data/raw"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:     envBoolOr("CHARTFETCH_HEADLESS", true),
			NoSandbox:    envBoolOr("CHARTFETCH_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("CHARTFETCH_BROWSER_BIN"),
			DefaultProxy: os.Getenv("CHARTFETCH_PROXY"),
			WindowSize:   envOr("CHARTFETCH_WINDOW_SIZE", "1920,1080"),
			BlockedResourceTypes: envSliceOr("CHARTFETCH_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Fetch: FetchConfig{
			MaxAttempts:    envIntOr("CHARTFETCH_MAX_ATTEMPTS", 3),
			AttemptTimeout: envDurationOr("CHARTFETCH_ATTEMPT_TIMEOUT", 30*time.Second),
			JitterMin:      envDurationOr("CHARTFETCH_JITTER_MIN", 2*time.Second),
			JitterMax:      envDurationOr("CHARTFETCH_JITTER_MAX", 5*time.Second),
		},
		HTTP: HTTPConfig{
			Timeout: envDurationOr("CHARTFETCH_HTTP_TIMEOUT", 20*time.Second),
		},
		API: APIConfig{
			BaseURL:     envOr("CHARTFETCH_API_BASE_URL", "https://api.opencritic.com/api"),
			Timeout:     envDurationOr("CHARTFETCH_API_TIMEOUT", 15*time.Second),
			Platform:    envOr("CHARTFETCH_API_PLATFORM", "switch"),
			Limit:       envIntOr("CHARTFETCH_API_LIMIT", 100),
			DetailEvery: envDurationOr("CHARTFETCH_API_DETAIL_EVERY", time.Second),
		},
		Sources: SourcesConfig{
			VGChartzGamesURL: envOr("CHARTFETCH_VGCHARTZ_GAMES_URL",
				"https://www.vgchartz.com/games/games.php?console=Nintendo+Switch&region=All&order=Sales&showtotalsales=1&showpalsales=0&showjapansales=0&showothersales=0&showpublisher=0&showdeveloper=0&showreleasedate=1&showlastupdate=1&showvgchartzscore=1&showcriticscore=1&showuserscore=1&showshipped=1&results=200"),
			VGChartzConsolesURL: envOr("CHARTFETCH_VGCHARTZ_CONSOLES_URL",
				"https://www.vgchartz.com/analysis/platform_totals/"),
			MetacriticURL: envOr("CHARTFETCH_METACRITIC_URL",
				"https://www.metacritic.com/browse/games/score/metascore/all/switch/filtered?sort=desc"),
		},
		Output: OutputConfig{
			DataDir: envOr("CHARTFETCH_DATA_DIR", "data/raw"),
		},
		Log: LogConfig{
			Level:  envOr("CHARTFETCH_LOG_LEVEL", "info"),
			Format: envOr("CHARTFETCH_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
