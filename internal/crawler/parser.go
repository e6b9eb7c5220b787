package crawler

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	minPageWords    = 10
	maxLinksPerPage = 20
)

// DocumentExtensions are downloaded instead of crawled.
var DocumentExtensions = []string{".pdf", ".docx", ".xlsx"}

// ExcludedPatterns are substrings that keep a URL out of the crawl.
var ExcludedPatterns = []string{
	"/signup",
	"/auth/",
	"/sso/",
	"redirect_uri",
	"logout",
	"language=",
	"openid-connect",
	"/feed",
	".xml",
	"rss",
	"/internal/",
	"/logout",
	"/uops",
	"/taxonomy/term/",
}

// assetExtensions are never pages.
var assetExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".tif", ".ico",
	".css", ".js", ".zip", ".gz", ".mp4",
}

// Links holds the page and document links found on a page.
type Links struct {
	Pages     []string
	Documents []string
}

// DiscoverLinks resolves every anchor against base, normalizes it and sorts
// it into page or document links. Excluded and non-http links are dropped.
func DiscoverLinks(sel *goquery.Selection, base *url.URL) Links {
	var links Links
	seen := make(map[string]bool)

	sel.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		hrefLower := strings.ToLower(href)
		if strings.HasPrefix(hrefLower, "javascript:") ||
			strings.HasPrefix(hrefLower, "mailto:") ||
			strings.HasPrefix(hrefLower, "tel:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		absolute := ref.String()
		if base != nil {
			absolute = base.ResolveReference(ref).String()
		}

		normalized, err := normalizeURL(absolute)
		if err != nil || seen[normalized] || isExcluded(normalized) {
			return
		}
		seen[normalized] = true

		scheme := strings.SplitN(normalized, ":", 2)[0]
		if scheme != "http" && scheme != "https" {
			return
		}

		if isDocumentURL(normalized) {
			links.Documents = append(links.Documents, normalized)
			return
		}
		links.Pages = append(links.Pages, normalized)
	})

	return links
}

// normalizeURL normalizes a URL to a canonical form for duplicate detection:
// lower-case scheme and host, no fragment, no default port, sorted query
// parameters and no trailing slash except for the root path.
func normalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("not an absolute URL: %q", rawURL)
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	if (parsed.Port() == "80" && parsed.Scheme == "http") || (parsed.Port() == "443" && parsed.Scheme == "https") {
		parsed.Host = parsed.Hostname()
	}

	p := parsed.Path
	if p == "" {
		p = "/"
	} else if p != "/" {
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			p = "/"
		}
	}
	if p != parsed.Path {
		parsed.Path = p
		parsed.RawPath = ""
	}

	parsed.RawQuery = sortedQuery(parsed.RawQuery)
	parsed.ForceQuery = false

	return parsed.String(), nil
}

// sortedQuery orders query pairs by key then value and drops empty pairs.
func sortedQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return raw
	}
	for key, vals := range values {
		if key == "" {
			delete(values, key)
			continue
		}
		sort.Strings(vals)
	}
	return values.Encode()
}

func isExcluded(u string) bool {
	lower := strings.ToLower(u)
	for _, pattern := range ExcludedPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func isDocumentURL(u string) bool {
	return hasExtension(u, DocumentExtensions)
}

func hasExtension(u string, exts []string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// isURLAllowed checks scheme, domain, exclusion patterns and asset
// extensions.
func isURLAllowed(urlStr string, allowedDomains []string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	if len(allowedDomains) > 0 {
		hostname := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
		domainAllowed := false
		for _, allowedDomain := range allowedDomains {
			allowedDomain = strings.ToLower(strings.TrimPrefix(allowedDomain, "www."))
			if hostname == allowedDomain || strings.HasSuffix(hostname, "."+allowedDomain) {
				domainAllowed = true
				break
			}
		}
		if !domainAllowed {
			return false
		}
	}

	if isExcluded(urlStr) {
		return false
	}
	return !hasExtension(urlStr, assetExtensions)
}

// domainsOf derives colly's allowed domains from the target hosts, with and
// without the www prefix.
func domainsOf(targets []string) []string {
	seen := make(map[string]bool)
	var domains []string
	add := func(d string) {
		if d != "" && !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}
	for _, target := range targets {
		parsed, err := url.Parse(strings.TrimSpace(target))
		if err != nil {
			continue
		}
		host := strings.ToLower(parsed.Hostname())
		if host == "" {
			continue
		}
		bare := strings.TrimPrefix(host, "www.")
		add(host)
		add(bare)
		add("www." + bare)
	}
	return domains
}

// LoadTargets reads one URL per line; blank lines and # comments are
// ignored.
func LoadTargets(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open targets: %w", err)
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	return targets, nil
}

// DefaultTargets are the portal sections crawled when no targets file is
// configured.
var DefaultTargets = []string{
	"https://www.mosdac.gov.in",
	"https://www.mosdac.gov.in/about-us",
	"https://www.mosdac.gov.in/announcements",
	"https://www.mosdac.gov.in/atlases",
	"https://www.mosdac.gov.in/calibration-reports",
	"https://www.mosdac.gov.in/contact-us",
	"https://www.mosdac.gov.in/data-access-policy",
	"https://www.mosdac.gov.in/data-quality",
	"https://www.mosdac.gov.in/faq-page",
	"https://www.mosdac.gov.in/global-ocean-surface-current",
	"https://www.mosdac.gov.in/gps-derived-integrated-water-vapour",
	"https://www.mosdac.gov.in/gsmap-isro-rain",
	"https://www.mosdac.gov.in/help",
	"https://www.mosdac.gov.in/high-resolution-sea-surface-salinity",
	"https://www.mosdac.gov.in/indian-mainland-coastal-product",
	"https://www.mosdac.gov.in/inland-water-height",
	"https://www.mosdac.gov.in/insat-3a",
	"https://www.mosdac.gov.in/insat-3d",
	"https://www.mosdac.gov.in/insat-3dr",
	"https://www.mosdac.gov.in/insat-3ds",
	"https://www.mosdac.gov.in/insitu",
	"https://www.mosdac.gov.in/kalpana-1",
	"https://www.mosdac.gov.in/megha-tropiques",
	"https://www.mosdac.gov.in/meteosat8-cloud-properties",
	"https://www.mosdac.gov.in/ocean-subsurface",
	"https://www.mosdac.gov.in/oceanic-eddies-detection",
	"https://www.mosdac.gov.in/oceansat-2",
	"https://www.mosdac.gov.in/oceansat-3",
	"https://www.mosdac.gov.in/river-discharge",
	"https://www.mosdac.gov.in/saral-altika",
	"https://www.mosdac.gov.in/scatsat-1",
	"https://www.mosdac.gov.in/sea-ice-occurrence-probability",
	"https://www.mosdac.gov.in/sitemap",
	"https://www.mosdac.gov.in/soil-moisture-0",
	"https://www.mosdac.gov.in/tools",
	"https://www.mosdac.gov.in/validation-reports",
	"https://www.mosdac.gov.in/wave-based-renewable-energy",
	"https://www.mosdac.gov.in/weather-reports",
	"https://www.mosdac.gov.in/docs/STQC.pdf",
	"https://www.mosdac.gov.in/sites/default/files/docs/INSAT_Product_Version_information_V01.pdf",
	"https://www.mosdac.gov.in/sites/default/files/docs/Onset%20Prediction%202023.pdf",
	"https://www.mosdac.gov.in/sites/default/files/docs/Onset%20Prediction%202024.pdf",
	"https://www.mosdac.gov.in/sites/default/files/docs/sftp-mosdac_0.pdf",
}
