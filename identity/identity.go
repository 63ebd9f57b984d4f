// Package identity supplies plausible browser signatures for scrape
// sessions. One identity is chosen per navigation attempt, so consecutive
// attempts against a hostile target may look like different visitors.
package identity

import "math/rand"

// Identity is one immutable browser signature. All fields describe the same
// browser, so document-level and network-level fingerprints agree.
type Identity struct {
	// UserAgent is the full User-Agent string.
	UserAgent string

	// Platform is the navigator.platform value matching the User-Agent.
	Platform string

	// AcceptLanguage is the Accept-Language header value and locale.
	AcceptLanguage string

	// SecChUA is the Sec-Ch-Ua client-hint value. Empty for signatures
	// whose browser sends no client hints (Firefox).
	SecChUA string

	// SecChUAPlatform is the Sec-Ch-Ua-Platform client-hint value.
	SecChUAPlatform string
}

// candidates is the fixed signature pool. Keep it small and current; stale
// browser versions are themselves a fingerprint.
var candidates = []Identity{
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.7151.68 Safari/537.36",
		Platform:        "Win32",
		AcceptLanguage:  "en-US,en;q=0.9",
		SecChUA:         `"Google Chrome";v="137", "Chromium";v="137", "Not/A)Brand";v="24"`,
		SecChUAPlatform: `"Windows"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
		Platform:        "Win32",
		AcceptLanguage:  "en-US,en;q=0.9",
		SecChUA:         `"Chromium";v="136", "Google Chrome";v="136", "Not.A/Brand";v="99"`,
		SecChUAPlatform: `"Windows"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.7151.68 Safari/537.36",
		Platform:        "MacIntel",
		AcceptLanguage:  "en-US,en;q=0.9",
		SecChUA:         `"Google Chrome";v="137", "Chromium";v="137", "Not/A)Brand";v="24"`,
		SecChUAPlatform: `"macOS"`,
	},
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0",
		Platform:       "Win32",
		AcceptLanguage: "en-US,en;q=0.9",
	},
}

// Pick returns one identity from the candidate pool. The caller owns the
// randomness source, so selection is reproducible in tests.
func Pick(rng *rand.Rand) Identity {
	return candidates[rng.Intn(len(candidates))]
}

// Headers returns the transport-level header set this identity presents on
// a top-level navigation, mirroring what the matching real browser sends.
// Client-hint headers appear only for Chromium signatures.
func (id Identity) Headers() map[string]string {
	h := map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           id.AcceptLanguage,
		"Cache-Control":             "no-cache",
		"Pragma":                    "no-cache",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
	}
	if id.SecChUA != "" {
		h["Sec-Ch-Ua"] = id.SecChUA
		h["Sec-Ch-Ua-Mobile"] = "?0"
		h["Sec-Ch-Ua-Platform"] = id.SecChUAPlatform
	}
	return h
}
