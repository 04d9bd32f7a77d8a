// Package webpage provides the scrape_page tool,
// extracting the title and the readable text of a web page.
package webpage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/xlog"
	"github.com/go-shiori/go-readability"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge/tools", "webpage")

// ToolName is the name of the tool
const ToolName = "scrape_page"

const (
	userAgent = "Mozilla/5.0 (compatible; toolbridge/1.0)"
	// DefaultMaxBodySize limits the downloaded page
	DefaultMaxBodySize = 5 << 20
)

// ScrapeRequest is the input of scrape_page
type ScrapeRequest struct {
	URL string `json:"url" jsonschema:"description=The URL to scrape data from."`
}

// ScrapeResult is the extracted page
type ScrapeResult struct {
	Title    string `json:"title" yaml:"title"`
	BodyText string `json:"body_text" yaml:"body_text"`
	URL      string `json:"url" yaml:"url"`
}

// Scraper downloads pages and extracts their text
type Scraper struct {
	httpClient  *http.Client
	maxBodySize int64
}

// New returns a scraper with the HTTP client,
// nil uses a client with a 30s timeout.
func New(httpClient *http.Client) *Scraper {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Scraper{
		httpClient:  httpClient,
		maxBodySize: DefaultMaxBodySize,
	}
}

// Tool returns the scrape_page tool
func (s *Scraper) Tool() registry.ITool {
	return registry.MustTyped[ScrapeRequest, *ScrapeResult](ToolName,
		"Scrapes a web page and returns its title and body text.",
		s.Scrape)
}

// Scrape downloads the page and extracts the title and the readable text
func (s *Scraper) Scrape(ctx context.Context, req *ScrapeRequest) (*ScrapeResult, error) {
	pageURL, err := validateURL(req.URL)
	if err != nil {
		return nil, errors.WithMessage(err, "URL validation failed")
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	hreq.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(hreq)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", req.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.Errorf("failed to fetch %s: %s", req.URL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", req.URL)
	}

	res := &ScrapeResult{URL: resp.Request.URL.String()}
	ctype := resp.Header.Get("Content-Type")
	if strings.Contains(ctype, "text/html") || isHTMLPrefix(body) {
		article, err := readability.FromReader(bytes.NewReader(body), pageURL)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", req.URL)
		}
		res.Title = article.Title
		res.BodyText = strings.TrimSpace(article.TextContent)
	} else {
		res.BodyText = strings.TrimSpace(string(body))
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"tool", ToolName,
		"url", res.URL,
		"status", resp.StatusCode,
		"length", len(res.BodyText))
	return res, nil
}

func validateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("missing domain in URL")
	}
	return u, nil
}

// isHTMLPrefix returns true if the body starts with an HTML declaration
func isHTMLPrefix(b []byte) bool {
	prefix := strings.ToLower(strings.TrimSpace(string(b[:min(256, len(b))])))
	return strings.HasPrefix(prefix, "<!doctype") || strings.HasPrefix(prefix, "<html")
}
