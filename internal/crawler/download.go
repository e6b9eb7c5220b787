package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"skyquery-bot/internal/logger"
	"skyquery-bot/models"
)

// maxDownloadBytes caps a single document download.
const maxDownloadBytes = 200 << 20

// downloadDocuments fetches each document into dir, one at a time. Repeated
// file names are fetched once.
func downloadDocuments(ctx context.Context, docs []string, dir string, timeout time.Duration) ([]models.DownloadedFile, []models.CrawlFailure) {
	if len(docs) == 0 {
		return nil, nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		failures := make([]models.CrawlFailure, 0, len(docs))
		for _, doc := range docs {
			failures = append(failures, models.CrawlFailure{URL: doc, Kind: "file", Reason: err.Error()})
		}
		return nil, failures
	}

	client := &http.Client{Timeout: timeout, Transport: httpTransport}
	seen := make(map[string]bool)

	var (
		files    []models.DownloadedFile
		failures []models.CrawlFailure
	)
	for _, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		name := documentFilename(doc)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		logger.Info("Downloading document", "url", doc, "file", name)
		size, err := downloadFile(ctx, client, doc, filepath.Join(dir, name))
		if err != nil {
			logger.Warn("Document download failed", "url", doc, "error", err)
			failures = append(failures, models.CrawlFailure{URL: doc, Kind: "file", Reason: err.Error()})
			continue
		}
		files = append(files, models.DownloadedFile{
			Filename:  name,
			SourceURL: doc,
			FileType:  strings.ToLower(filepath.Ext(name)),
			Size:      size,
			FetchedAt: time.Now().UTC(),
		})
	}
	return files, failures
}

func downloadFile(ctx context.Context, client *http.Client, docURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxDownloadBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, err
	}
	if n > maxDownloadBytes {
		return 0, fmt.Errorf("document exceeds %d bytes", maxDownloadBytes)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, err
	}
	return n, nil
}

// documentFilename is the decoded last path segment of the URL.
func documentFilename(docURL string) string {
	parsed, err := url.Parse(docURL)
	if err != nil {
		return ""
	}
	name := filepath.Base(filepath.Clean(path.Base(parsed.Path)))
	if name == "." || name == "/" || name == ".." || name == "" {
		return ""
	}
	return name
}
