package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/xhad/labtest/internal/models"
	"golang.org/x/time/rate"
)

type WebConfig struct {
	MaxDepth          int
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	Logger            *log.Logger
}

// WebFetcher crawls documentation pages on the same host as each start URL
// and turns their main content into documents.
type WebFetcher struct {
	config  WebConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

type crawl struct {
	baseHost string
	visited  map[string]bool
	docs     []models.Document
}

func NewWebFetcher(config WebConfig) *WebFetcher {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", ".md", "/"}
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &WebFetcher{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logger,
	}
}

// Fetch crawls every start URL in order. MaxDepth 0 fetches only the start
// pages themselves.
func (f *WebFetcher) Fetch(ctx context.Context, urls []string) ([]models.Document, error) {
	var docs []models.Document
	for _, u := range urls {
		parsed, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("%w: bad url %q: %v", ErrInvalidSource, u, err)
		}

		c := &crawl{baseHost: parsed.Host, visited: make(map[string]bool)}
		if err := f.fetchRecursive(ctx, c, u, 0); err != nil {
			return nil, err
		}
		docs = append(docs, c.docs...)
	}
	return docs, nil
}

func (f *WebFetcher) shouldProcessURL(c *crawl, urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsedURL.Host != c.baseHost {
		return false
	}

	p := strings.ToLower(parsedURL.Path)
	// extensionless paths are pages
	validExt := path.Ext(p) == ""
	for _, allowedExt := range f.config.AllowedExtensions {
		if strings.HasSuffix(p, allowedExt) {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range f.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

func cleanContent(content string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(content), " "))
}

func extractMainContent(doc *goquery.Document) string {
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	if content == "" {
		content = doc.Find("body").Text()
	}

	return cleanContent(content)
}

func (f *WebFetcher) fetchRecursive(ctx context.Context, c *crawl, urlStr string, depth int) error {
	if depth > f.config.MaxDepth || c.visited[urlStr] {
		return nil
	}
	if !f.shouldProcessURL(c, urlStr) {
		return nil
	}
	c.visited[urlStr] = true

	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return err
	}

	f.logger.Debug("fetched page", "url", urlStr, "depth", depth)
	c.docs = append(c.docs, models.Document{
		ID:      urlStr,
		URL:     urlStr,
		Title:   strings.TrimSpace(doc.Find("title").Text()),
		Content: extractMainContent(doc),
		Metadata: map[string]interface{}{
			"depth":        depth,
			"contentType":  resp.Header.Get("Content-Type"),
			"lastModified": resp.Header.Get("Last-Modified"),
		},
	})

	if depth == f.config.MaxDepth {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			f.logger.Warn("skipping link", "href", href, "err", err)
			return
		}
		base, _ := url.Parse(urlStr)
		resolved := base.ResolveReference(ref)
		resolved.Fragment = ""
		links = append(links, resolved.String())
	})

	for _, link := range links {
		if err := f.fetchRecursive(ctx, c, link, depth+1); err != nil {
			f.logger.Warn("error fetching page", "url", link, "err", err)
		}
	}

	return nil
}
