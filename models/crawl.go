package models

import "time"

// Crawl directory layout shared by the crawler and chunk preparation.
const (
	PagesFile    = "pages.json"
	FilesFile    = "files.json"
	FailuresFile = "failures.json"
	DownloadsDir = "downloads"
)

// CrawledPage represents a single crawled HTML page
type CrawledPage struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CrawledAt  time.Time `json:"crawled_at"`
	StatusCode int       `json:"status_code"`
	Size       int64     `json:"size"`
	WordCount  int       `json:"word_count,omitempty"`
}

// DownloadedFile is a document fetched from a link found while crawling.
type DownloadedFile struct {
	Filename  string    `json:"filename"`
	SourceURL string    `json:"source_url"`
	FileType  string    `json:"file_type"`
	Size      int64     `json:"size"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CrawlFailure records a page or file that could not be fetched.
type CrawlFailure struct {
	URL    string `json:"url"`
	Kind   string `json:"kind"` // page, file, text
	Reason string `json:"reason"`
}
