// Package wikipedia implements watch.WikiSource against the MediaWiki API
// served by each regional Wikipedia.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"wikiwatch/internal/config"
	"wikiwatch/internal/watch"
)

const defaultUserAgent = "wikiwatch/1.0"

// Client fetches revision metadata over HTTPS.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	logger    watch.Logger
}

var _ watch.WikiSource = (*Client)(nil)

// NewClient wraps httpClient. An empty baseURL means
// https://<code>.wikipedia.org for each region; tests point it at a local server.
func NewClient(httpClient *http.Client, baseURL, userAgent string, logger watch.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if logger == nil {
		logger = watch.NewNopLogger()
	}
	return &Client{
		http:      httpClient,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
		logger:    logger,
	}
}

// NewClientFromConfig creates a Client from the [wiki] config section.
func NewClientFromConfig(cfg config.WikiConfig, logger watch.Logger) *Client {
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return NewClient(&http.Client{Timeout: timeout}, cfg.BaseURL, cfg.UserAgent, logger)
}

func (c *Client) root(region watch.Region) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "https://" + region.Host()
}

// Exists issues a GET for the article page and reports whether it returned 200.
func (c *Client) Exists(ctx context.Context, title string, region watch.Region) bool {
	if !region.Valid() || strings.TrimSpace(title) == "" {
		return false
	}

	pageURL := c.root(region) + "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	resp, err := c.get(ctx, pageURL)
	if err != nil {
		c.logger.Debug("existence check failed", "article", title, "region", region.Code(), "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// FetchRevisions queries the most recent limit revisions of title.
func (c *Client) FetchRevisions(ctx context.Context, title string, region watch.Region, limit int) ([]watch.RawRevision, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("%w: invalid region %d", watch.ErrFetchFailed, int(region))
	}
	if limit <= 0 {
		limit = watch.DefaultPageSize
	}

	resp, err := c.get(ctx, c.revisionsURL(title, region, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", watch.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", watch.ErrFetchFailed, region.Host(), resp.Status)
	}

	var payload queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", watch.ErrFetchFailed, err)
	}

	page, ok := payload.firstPage()
	if !ok || page.Revisions == nil {
		return nil, fmt.Errorf("%w: no revision data for %q", watch.ErrFetchFailed, title)
	}

	out := make([]watch.RawRevision, 0, len(*page.Revisions))
	for i, r := range *page.Revisions {
		rev, err := r.toRaw(region)
		if err != nil {
			c.logger.Debug("skipping revision record", "article", title, "index", i, "error", err)
			continue
		}
		out = append(out, rev)
	}
	return out, nil
}

func (c *Client) revisionsURL(title string, region watch.Region, limit int) string {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("prop", "revisions")
	q.Set("titles", title)
	q.Set("rvslots", "*")
	q.Set("rvprop", "timestamp|user|parsedcomment|flags|size")
	q.Set("format", "json")
	q.Set("rvlimit", strconv.Itoa(limit))
	return c.root(region) + "/w/api.php?" + q.Encode()
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.URL.Host, err)
	}
	return resp, nil
}

type queryResponse struct {
	Query struct {
		Pages map[string]page `json:"pages"`
	} `json:"query"`
}

type page struct {
	Title     string         `json:"title"`
	Revisions *[]revisionRow `json:"revisions"`
}

// firstPage returns the page with the lowest key. A single-title query
// yields exactly one.
func (q queryResponse) firstPage() (page, bool) {
	if len(q.Query.Pages) == 0 {
		return page{}, false
	}
	keys := make([]string, 0, len(q.Query.Pages))
	for k := range q.Query.Pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return q.Query.Pages[keys[0]], true
}

// revisionRow uses pointers so absent fields can be told apart from zero values.
type revisionRow struct {
	User          *string `json:"user"`
	Timestamp     *string `json:"timestamp"`
	Size          *int64  `json:"size"`
	ParsedComment *string `json:"parsedcomment"`
}

func (r revisionRow) toRaw(region watch.Region) (watch.RawRevision, error) {
	switch {
	case r.User == nil:
		return watch.RawRevision{}, fmt.Errorf("missing user")
	case r.Timestamp == nil:
		return watch.RawRevision{}, fmt.Errorf("missing timestamp")
	case r.Size == nil:
		return watch.RawRevision{}, fmt.Errorf("missing size")
	case r.ParsedComment == nil:
		return watch.RawRevision{}, fmt.Errorf("missing parsedcomment")
	}

	ts, err := time.Parse(time.RFC3339, *r.Timestamp)
	if err != nil {
		return watch.RawRevision{}, fmt.Errorf("invalid timestamp %q: %w", *r.Timestamp, err)
	}

	comment, err := AbsoluteLinks(*r.ParsedComment, region)
	if err != nil {
		return watch.RawRevision{}, err
	}

	return watch.RawRevision{
		User:      *r.User,
		Timestamp: ts.UTC(),
		Size:      *r.Size,
		Comment:   comment,
	}, nil
}
