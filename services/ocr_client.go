package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"skyquery-bot/internal/logger"
)

const ocrMethod = "ocr"

// OCRClient sends scanned PDFs to an external OCR service. It is used only
// when the local PDF readers return text of unusable quality.
type OCRClient struct {
	httpClient *http.Client
	baseURL    string
}

type ocrResponse struct {
	Success      bool    `json:"success"`
	Text         string  `json:"text"`
	Pages        int     `json:"pages"`
	QualityScore float64 `json:"quality_score"`
	Error        string  `json:"error,omitempty"`
}

type ocrHealth struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// NewOCRClient returns nil for an empty baseURL, which disables OCR.
func NewOCRClient(baseURL string, timeout time.Duration) *OCRClient {
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &OCRClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// IsHealthy checks if the OCR service is up with its model loaded
func (c *OCRClient) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("OCR service unhealthy: status %d", resp.StatusCode)
	}

	var health ocrHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, fmt.Errorf("failed to decode health response: %w", err)
	}
	return health.Status == "healthy" && health.ModelLoaded, nil
}

// ExtractPDF uploads the document and returns the recognized text.
func (c *OCRClient) ExtractPDF(ctx context.Context, filename string, content []byte) (*ExtractionResult, error) {
	healthy, err := c.IsHealthy(ctx)
	if err != nil {
		return nil, err
	}
	if !healthy {
		return nil, fmt.Errorf("OCR service is not ready")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to copy file data: %w", err)
	}
	_ = writer.WriteField("extract_tables", "true")
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr/extract", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("OCR request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode OCR response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("OCR processing failed: %s", out.Error)
	}

	logger.Debug("OCR extraction finished",
		"file", filename,
		"pages", out.Pages,
		"quality", out.QualityScore,
	)

	quality := out.QualityScore
	if quality == 0 {
		quality = evaluateTextQuality(out.Text)
	}
	return &ExtractionResult{
		Text:         out.Text,
		Pages:        out.Pages,
		Method:       ocrMethod,
		QualityScore: quality,
	}, nil
}
