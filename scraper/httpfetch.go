package scraper

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	tls2 "github.com/refraction-networking/utls"
	"github.com/use-agent/chartfetch/identity"
	"github.com/use-agent/chartfetch/models"
	"golang.org/x/net/html"
)

// HTTPFetcher retrieves server-rendered pages without a browser, presenting
// a Chrome TLS fingerprint (utls) so TLS-level bot filters see a real
// client. It serves listing pages whose tables arrive fully rendered, and
// implements RowFetcher so the fetch loop drives it like a live session.
type HTTPFetcher struct {
	id      identity.Identity
	proxy   string
	timeout time.Duration
	rootCAs *x509.CertPool // nil means system roots
	log     *slog.Logger
}

// chromeH1Spec is a Chrome ClientHello with the ALPN extension rewritten to
// offer http/1.1 only. net/http cannot read the negotiated protocol back
// from a utls connection, so a server that picks h2 would get HTTP/1.1
// frames on an h2 stream and drop it. Built once, reused for every dial.
var chromeH1Spec tls2.ClientHelloSpec

func init() {
	spec, err := tls2.UTLSIdToSpec(tls2.HelloChrome_Auto)
	if err != nil {
		// Unreachable with a valid utls build.
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls2.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPFetcher builds a static fetcher presenting the given identity.
func NewHTTPFetcher(id identity.Identity, proxy string, timeout time.Duration, log *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{id: id, proxy: proxy, timeout: timeout, log: log}
}

// Identify swaps the identity presented on subsequent fetches.
func (f *HTTPFetcher) Identify(id identity.Identity) error {
	f.id = id
	return nil
}

// FetchRows GETs the source URL and slices the document into rows and cells
// with the source's selectors. The readiness marker must be present in the
// static document; its absence means the table never rendered server-side
// and this target needs the browser path instead.
func (f *HTTPFetcher) FetchRows(ctx context.Context, src *models.Source) ([]models.RawRow, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	body, err := f.get(ctx, src.URL)
	if err != nil {
		return nil, categorizeError(err, "static fetch of "+src.URL+" failed")
	}
	if title := extractTitle(body); title != "" {
		f.log.Info("document fetched", "source", src.Name, "title", title)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeNavigation,
			"failed to parse document",
			err,
		)
	}

	if doc.Find(src.ReadySelector).Length() == 0 {
		return nil, models.NewScrapeError(
			models.ErrCodeEmptyResult,
			"readiness marker "+src.ReadySelector+" absent from document",
			nil,
		)
	}

	var rows []models.RawRow
	doc.Find(src.RowSelector).Each(func(_ int, sel *goquery.Selection) {
		rows = append(rows, harvestStaticCells(sel, src))
	})
	f.log.Debug("rows harvested", "source", src.Name, "rows", len(rows))
	return rows, nil
}

// harvestStaticCells mirrors harvestCells for goquery selections.
func harvestStaticCells(sel *goquery.Selection, src *models.Source) models.RawRow {
	if src.CellSelector != "" {
		var row models.RawRow
		sel.Find(src.CellSelector).Each(func(_ int, c *goquery.Selection) {
			row = append(row, strings.TrimSpace(c.Text()))
		})
		return row
	}

	row := make(models.RawRow, 0, len(src.CellSelectors))
	for _, cs := range src.CellSelectors {
		c := sel.Find(cs)
		if c.Length() == 0 {
			break
		}
		row = append(row, strings.TrimSpace(c.First().Text()))
	}
	return row
}

// get retrieves the URL via plain HTTP with a Chrome TLS fingerprint and
// the fetcher's identity headers. The body is capped at 10 MB.
func (f *HTTPFetcher) get(ctx context.Context, targetURL string) ([]byte, error) {
	transport := &http.Transport{
		DialTLSContext:    f.dialTLS,
		ForceAttemptHTTP2: false,
	}
	if f.proxy != "" {
		proxyURL, err := url.Parse(f.proxy)
		if err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	client := &http.Client{Transport: transport}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.id.UserAgent)
	for k, v := range f.id.Headers() {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("httpfetch: HTTP %d for %s", resp.StatusCode, targetURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024)) // 10 MB cap
	if err != nil {
		return nil, fmt.Errorf("httpfetch: read body: %w", err)
	}

	return body, nil
}

// dialTLS establishes a TLS connection presenting the pinned Chrome hello.
func (f *HTTPFetcher) dialTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{
		ServerName: host,
		RootCAs:    f.rootCAs,
	}, tls2.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("httpfetch: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// extractTitle extracts the <title> content from raw HTML bytes.
func extractTitle(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				if tokenizer.Next() == html.TextToken {
					return strings.TrimSpace(string(tokenizer.Text()))
				}
				return ""
			}
		}
	}
}
