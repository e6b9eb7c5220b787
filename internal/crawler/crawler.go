package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"skyquery-bot/internal/logger"
	"skyquery-bot/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/chromedp/chromedp"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

var (
	// Global HTTP transport with compression enabled
	httpTransport = &http.Transport{
		Proxy:              http.ProxyFromEnvironment,
		DisableCompression: false,
	}
)

// CrawlConfig holds configuration for a crawl job
type CrawlConfig struct {
	Targets        []string
	AllowedDomains []string
	// OutputDir receives pages.json, files.json, failures.json and downloads/
	OutputDir       string
	MaxPages        int
	MaxDepth        int
	FollowLinks     bool
	Timeout         time.Duration
	DownloadTimeout time.Duration
	Delay           time.Duration
	RandomDelay     time.Duration
	// Optional JS rendering for the first target
	RenderJS         bool
	RenderTimeout    time.Duration
	WaitSelector     string
	NetworkIdleAfter time.Duration
}

// DefaultCrawlConfig mirrors the production crawl of the portal.
func DefaultCrawlConfig(outputDir string) CrawlConfig {
	return CrawlConfig{
		Targets:         DefaultTargets,
		OutputDir:       outputDir,
		MaxPages:        200,
		MaxDepth:        2,
		FollowLinks:     true,
		Timeout:         60 * time.Second,
		DownloadTimeout: 10 * time.Second,
		Delay:           2 * time.Second,
		RandomDelay:     1 * time.Second,
	}
}

// CrawlResult holds the result of a crawl operation
type CrawlResult struct {
	Pages      []models.CrawledPage    `json:"pages"`
	Files      []models.DownloadedFile `json:"files"`
	Failures   []models.CrawlFailure   `json:"failures"`
	PagesFound int                     `json:"pages_found"`
}

// crawlState is the mutable state shared by colly callbacks.
type crawlState struct {
	mu        sync.Mutex
	result    *CrawlResult
	processed map[string]bool
	queued    map[string]bool
	documents []string
	docSeen   map[string]bool
}

func newCrawlState() *crawlState {
	return &crawlState{
		result:    &CrawlResult{},
		processed: make(map[string]bool),
		queued:    make(map[string]bool),
		docSeen:   make(map[string]bool),
	}
}

func (s *crawlState) fail(rawURL, kind string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result.Failures = append(s.result.Failures, models.CrawlFailure{URL: rawURL, Kind: kind, Reason: err.Error()})
}

// addDocument queues a document link for download; returns false for repeats.
func (s *crawlState) addDocument(docURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docSeen[docURL] {
		return false
	}
	s.docSeen[docURL] = true
	s.documents = append(s.documents, docURL)
	return true
}

// markQueued reports whether the URL was newly queued.
func (s *crawlState) markQueued(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queued[u] || s.processed[u] {
		return false
	}
	s.queued[u] = true
	return true
}

// CrawlSite visits every target, follows in-domain links up to MaxDepth,
// downloads linked documents and persists the result under OutputDir.
// Per-URL failures are recorded in the result and never abort the crawl.
func CrawlSite(ctx context.Context, cfg CrawlConfig) (*CrawlResult, error) {
	if cfg.OutputDir == "" {
		return nil, errors.New("crawl: output directory is required")
	}
	if len(cfg.Targets) == 0 {
		return nil, errors.New("crawl: no target URLs")
	}

	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 50
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 2
	}

	state := newCrawlState()

	var pageTargets []string
	for _, target := range cfg.Targets {
		normalized, err := normalizeURL(target)
		if err != nil {
			state.fail(target, "page", fmt.Errorf("invalid URL: %w", err))
			continue
		}
		if isExcluded(normalized) {
			continue
		}
		if isDocumentURL(normalized) {
			state.addDocument(normalized)
			continue
		}
		pageTargets = append(pageTargets, normalized)
	}

	allowedDomains := cfg.AllowedDomains
	if len(allowedDomains) == 0 {
		allowedDomains = domainsOf(cfg.Targets)
	}

	c := newCollector(cfg, allowedDomains, maxDepth)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		setBrowserHeaders(r)
	})

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
			return
		}
		r.Body = decodeBody(r.Body, r.Headers.Get("Content-Encoding"), contentType)

		state.mu.Lock()
		state.result.PagesFound++
		state.mu.Unlock()
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		pageURL, err := normalizeURL(e.Request.URL.String())
		if err != nil {
			return
		}

		state.mu.Lock()
		seen := state.processed[pageURL]
		state.processed[pageURL] = true
		full := len(state.result.Pages) >= maxPages
		state.mu.Unlock()

		if !seen && !full {
			if page, ok := pageFromSelection(pageURL, e.DOM, e.Response.StatusCode); ok {
				state.mu.Lock()
				state.result.Pages = append(state.result.Pages, page)
				state.mu.Unlock()
			}
		}

		links := DiscoverLinks(e.DOM, e.Request.URL)
		for _, doc := range links.Documents {
			if isURLAllowed(doc, allowedDomains) && state.addDocument(doc) {
				logger.Debug("Document link found", "url", doc, "page", pageURL)
			}
		}

		if !cfg.FollowLinks {
			return
		}
		followed := 0
		for _, link := range links.Pages {
			if followed >= maxLinksPerPage {
				break
			}
			state.mu.Lock()
			full := len(state.result.Pages) >= maxPages
			state.mu.Unlock()
			if full {
				break
			}
			if !isURLAllowed(link, allowedDomains) || !state.markQueued(link) {
				continue
			}
			followed++
			_ = e.Request.Visit(link)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if strings.Contains(err.Error(), "already visited") {
			return
		}
		requestURL := r.Request.URL.String()
		switch {
		case r.StatusCode == http.StatusForbidden:
			err = fmt.Errorf("access forbidden (403): %w", err)
		case r.StatusCode == http.StatusTooManyRequests:
			err = fmt.Errorf("rate limited (429): %w", err)
		case r.StatusCode >= 500:
			err = fmt.Errorf("server error (%d): %w", r.StatusCode, err)
		}
		logger.Warn("Page fetch failed", "url", requestURL, "status", r.StatusCode, "error", err)
		state.fail(requestURL, "page", err)
	})

	if cfg.RenderJS && len(pageTargets) > 0 {
		first := pageTargets[0]
		page, err := renderFirstPage(ctx, first, cfg)
		if err != nil {
			logger.Warn("JS render failed, falling back to static fetch", "url", first, "error", err)
		} else if page != nil {
			state.mu.Lock()
			state.result.Pages = append(state.result.Pages, *page)
			state.processed[first] = true
			state.mu.Unlock()
		}
	}

	logger.Info("Starting crawl", "targets", len(pageTargets), "documents", len(state.documents), "domains", allowedDomains)
	for _, target := range pageTargets {
		if ctx.Err() != nil {
			break
		}
		state.mu.Lock()
		state.queued[target] = true
		state.mu.Unlock()
		if err := c.Visit(target); err != nil && !strings.Contains(err.Error(), "already visited") {
			state.fail(target, "page", err)
		}
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("crawl cancelled: %w", err)
	}

	downloadDir := filepath.Join(cfg.OutputDir, models.DownloadsDir)
	files, failures := downloadDocuments(ctx, state.documents, downloadDir, cfg.DownloadTimeout)
	result := state.result
	result.Files = files
	result.Failures = append(result.Failures, failures...)
	sort.Slice(result.Pages, func(i, j int) bool { return result.Pages[i].URL < result.Pages[j].URL })

	if err := SaveResult(cfg.OutputDir, result); err != nil {
		return nil, err
	}

	logger.Info("Crawl completed",
		"pages", len(result.Pages),
		"files", len(result.Files),
		"failures", len(result.Failures),
	)
	return result, nil
}

func newCollector(cfg CrawlConfig, allowedDomains []string, maxDepth int) *colly.Collector {
	options := []colly.CollectorOption{
		colly.Async(true),
		colly.MaxDepth(maxDepth),
	}
	if len(allowedDomains) > 0 {
		options = append(options, colly.AllowedDomains(allowedDomains...))
	}

	c := colly.NewCollector(options...)
	c.WithTransport(httpTransport)
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	} else {
		c.SetRequestTimeout(60 * time.Second)
	}
	c.UserAgent = userAgent

	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	})
	return c
}

// setBrowserHeaders adds browser-like headers to avoid 403 responses
func setBrowserHeaders(r *colly.Request) {
	r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
	r.Headers.Set("Connection", "keep-alive")
	r.Headers.Set("Upgrade-Insecure-Requests", "1")
	r.Headers.Set("Sec-Fetch-Dest", "document")
	r.Headers.Set("Sec-Fetch-Mode", "navigate")
	r.Headers.Set("Sec-Fetch-Site", "none")
	r.Headers.Set("Sec-Fetch-User", "?1")

	referer := fmt.Sprintf("%s://%s/", r.URL.Scheme, r.URL.Host)
	r.Headers.Set("Referer", referer)

	r.Headers.Del("Cache-Control")
	r.Headers.Del("Pragma")
}

// decodeBody undoes brotli compression, which the standard transport does
// not handle, and converts the body to UTF-8.
func decodeBody(body []byte, contentEncoding, contentType string) []byte {
	if len(body) == 0 {
		return body
	}
	if strings.Contains(contentEncoding, "br") {
		if decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body))); err == nil {
			body = decompressed
		}
	}
	utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(utf8Reader)
	if err != nil || len(decoded) == 0 {
		return body
	}
	return decoded
}

// pageFromSelection extracts title and main content; pages with fewer than
// minPageWords words are skipped.
func pageFromSelection(pageURL string, sel *goquery.Selection, status int) (models.CrawledPage, bool) {
	title := strings.TrimSpace(sel.Find("title").First().Text())
	content := extractMainContentFromSelection(sel)
	if len(content) < 50 {
		content = strings.TrimSpace(sel.Find("body").Text())
	}
	content = strings.Map(printableOrSpace, content)

	wordCount := len(strings.Fields(content))
	if wordCount < minPageWords {
		return models.CrawledPage{}, false
	}
	return models.CrawledPage{
		URL:        pageURL,
		Title:      title,
		Content:    content,
		CrawledAt:  time.Now().UTC(),
		StatusCode: status,
		Size:       int64(len(content)),
		WordCount:  wordCount,
	}, true
}

func printableOrSpace(r rune) rune {
	if r == '\n' || r == '\t' {
		return r
	}
	if r < 0x20 || r == 0x7f || r == '\ufffd' {
		return ' '
	}
	return r
}

func renderFirstPage(ctx context.Context, pageURL string, cfg CrawlConfig) (*models.CrawledPage, error) {
	renderTimeout := cfg.RenderTimeout
	if renderTimeout <= 0 {
		renderTimeout = 45 * time.Second
	}
	networkIdle := cfg.NetworkIdleAfter
	if networkIdle <= 0 {
		networkIdle = 1200 * time.Millisecond
	}

	html, err := renderPageHTML(ctx, pageURL, renderTimeout, cfg.WaitSelector, networkIdle)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered page: %w", err)
	}
	page, ok := pageFromSelection(pageURL, doc.Selection, http.StatusOK)
	if !ok {
		return nil, nil
	}
	return &page, nil
}

// renderPageHTML launches a headless browser, waits for readiness and network idle, then returns HTML
func renderPageHTML(parent context.Context, urlStr string, timeout time.Duration, waitSelector string, networkIdleAfter time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(urlStr)); err != nil {
		return "", err
	}

	// Readiness, selector and idle waits are soft failures.
	readyCtx, cancelReady := context.WithTimeout(browserCtx, 10*time.Second)
	_ = chromedp.Run(readyCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	cancelReady()

	if waitSelector != "" {
		selCtx, cancelSel := context.WithTimeout(browserCtx, 15*time.Second)
		_ = chromedp.Run(selCtx, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))
		cancelSel()
	}

	if networkIdleAfter > 0 {
		idleCap := networkIdleAfter
		if idleCap > 5*time.Second {
			idleCap = 5 * time.Second
		}
		idleCtx, cancelIdle := context.WithTimeout(browserCtx, idleCap+time.Second)
		_ = chromedp.Run(idleCtx, waitForNetworkIdle(idleCap))
		cancelIdle()
	}

	var html string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// waitForNetworkIdle waits until no network requests are in flight for the given duration
func waitForNetworkIdle(d time.Duration) chromedp.ActionFunc {
	js := `(function(waitMs){
      return new Promise((resolve)=>{
        if (!('PerformanceObserver' in window)) {
          setTimeout(resolve, waitMs);
          return;
        }
        let last = Date.now();
        const obs = new PerformanceObserver(()=>{ last = Date.now(); });
        try { obs.observe({entryTypes:['resource','navigation']}); } catch(e) {}
        const tick = () => {
          if (Date.now()-last >= waitMs) { try { obs.disconnect(); } catch(e){} resolve(); return; }
          setTimeout(tick, 100);
        };
        tick();
      });
    })(%d);`
	return func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(js, int(d.Milliseconds())), nil))
	}
}

// extractMainContentFromSelection extracts main content from a goquery Selection
func extractMainContentFromSelection(selection *goquery.Selection) string {
	doc := selection.Clone()

	doc.Find("script, style, noscript, nav, footer, header, aside, .nav, .navbar, .footer, .header, .sidebar, .skip-link, .breadcrumb").Remove()

	contentSelectors := []string{
		"main",
		"article",
		"[role='main']",
		"#main-content",
		".main-content",
		".region-content",
		".content",
		"#content",
		"body",
	}

	var content strings.Builder
	contentFound := false

	for _, selector := range contentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 100 {
				content.WriteString(text)
				content.WriteString("\n\n")
				contentFound = true
			}
		})

		if contentFound {
			break
		}
	}

	if !contentFound {
		content.WriteString(doc.Find("body").Text())
	}

	lines := strings.Split(strings.TrimSpace(content.String()), "\n")
	var cleanedLines []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleanedLines = append(cleanedLines, line)
		}
	}

	return strings.Join(cleanedLines, "\n")
}

// SaveResult writes pages.json, files.json and failures.json into dir.
func SaveResult(dir string, result *CrawlResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create crawl dir: %w", err)
	}
	outputs := []struct {
		name  string
		value any
	}{
		{models.PagesFile, nonNil(result.Pages)},
		{models.FilesFile, nonNil(result.Files)},
		{models.FailuresFile, nonNil(result.Failures)},
	}
	for _, out := range outputs {
		data, err := json.MarshalIndent(out.value, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", out.name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, out.name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out.name, err)
		}
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
