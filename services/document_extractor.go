package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"skyquery-bot/internal/logger"
	"skyquery-bot/models"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedDocument = errors.New("unsupported document type")

// maxDocumentSize caps in-memory extraction
const maxDocumentSize = 200 << 20

// DocumentExtractor pulls plain text out of downloaded PDF, DOCX and XLSX files.
type DocumentExtractor struct {
	pdftotextTimeout time.Duration
	ocr              *OCRClient
}

func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{pdftotextTimeout: 30 * time.Second}
}

// WithOCR enables the OCR fallback for scanned PDFs. A nil client leaves it off.
func (e *DocumentExtractor) WithOCR(client *OCRClient) *DocumentExtractor {
	e.ocr = client
	return e
}

// ExtractionResult contains the result of document text extraction
type ExtractionResult struct {
	Text         string
	Type         models.ChunkType
	Pages        int
	Method       string
	QualityScore float64
	WordCount    int
}

// ExtractFile extracts the text of the file at path, choosing the parser by
// extension.
func (e *DocumentExtractor) ExtractFile(ctx context.Context, path string) (*ExtractionResult, error) {
	docType, ok := models.ChunkTypeFromExt(filepath.Ext(path))
	if !ok {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedDocument)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat document: %w", err)
	}
	if stat.Size() > maxDocumentSize {
		return nil, fmt.Errorf("document too large for in-memory extraction: %d bytes", stat.Size())
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	return e.Extract(ctx, docType, content)
}

// Extract extracts text from raw document bytes.
func (e *DocumentExtractor) Extract(ctx context.Context, docType models.ChunkType, content []byte) (*ExtractionResult, error) {
	var (
		result *ExtractionResult
		err    error
	)
	switch docType {
	case models.ChunkTypePDF:
		result, err = e.extractPDF(ctx, content)
	case models.ChunkTypeDOCX:
		result, err = extractDOCX(content)
	case models.ChunkTypeXLSX:
		result, err = extractXLSX(content)
	default:
		return nil, fmt.Errorf("%q: %w", docType, ErrUnsupportedDocument)
	}
	if err != nil {
		return nil, err
	}

	result.Type = docType
	result.WordCount = len(strings.Fields(result.Text))
	return result, nil
}

// extractPDF tries pdftotext first when installed, then the pure Go reader,
// and keeps the first result of acceptable quality.
func (e *DocumentExtractor) extractPDF(ctx context.Context, content []byte) (*ExtractionResult, error) {
	methods := []struct {
		name    string
		extract func(context.Context, []byte) (*ExtractionResult, error)
	}{
		{"poppler", e.extractWithPoppler},
		{"go-pdf", extractWithGoPDF},
	}

	var lastErr error
	var bestResult *ExtractionResult

	for _, method := range methods {
		result, err := method.extract(ctx, content)
		if err != nil {
			logger.Debug("PDF extraction method failed", "method", method.name, "error", err)
			lastErr = err
			continue
		}

		result.Method = method.name
		result.QualityScore = evaluateTextQuality(result.Text)

		if result.QualityScore >= 0.7 {
			return result, nil
		}
		if bestResult == nil || result.QualityScore > bestResult.QualityScore {
			bestResult = result
		}
	}

	if e.ocr != nil {
		result, err := e.ocr.ExtractPDF(ctx, "document.pdf", content)
		if err != nil {
			logger.Warn("OCR fallback failed", "error", err)
			lastErr = err
		} else if bestResult == nil || result.QualityScore > bestResult.QualityScore {
			bestResult = result
		}
	}

	if bestResult != nil && bestResult.QualityScore >= 0.3 {
		return bestResult, nil
	}
	if lastErr == nil {
		lastErr = errors.New("extracted text quality too low")
	}
	return nil, fmt.Errorf("all PDF extraction methods failed: %w", lastErr)
}

func (e *DocumentExtractor) extractWithPoppler(ctx context.Context, content []byte) (*ExtractionResult, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil, fmt.Errorf("pdftotext not available")
	}

	extractCtx, cancel := context.WithTimeout(ctx, e.pdftotextTimeout)
	defer cancel()

	cmd := exec.CommandContext(extractCtx, "pdftotext", "-layout", "-", "-")
	cmd.Stdin = bytes.NewReader(content)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftotext failed: %v, stderr: %s", err, stderr.String())
	}

	text := stdout.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text extracted by pdftotext")
	}

	return &ExtractionResult{Text: text, Pages: strings.Count(text, "\f")}, nil
}

func extractWithGoPDF(ctx context.Context, content []byte) (*ExtractionResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var sb strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Debug("Failed to extract PDF page", "page", i, "error", err)
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}

	if strings.TrimSpace(sb.String()) == "" {
		return nil, fmt.Errorf("no text extracted by go-pdf")
	}

	return &ExtractionResult{Text: sb.String(), Pages: pages}, nil
}

func extractDOCX(content []byte) (*ExtractionResult, error) {
	r, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx archive: %w", err)
	}

	var docFile *zip.File
	for _, f := range r.File {
		if strings.EqualFold(f.Name, "word/document.xml") {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("docx has no word/document.xml")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(rc)
	if err != nil {
		return nil, err
	}
	return &ExtractionResult{Text: strings.Join(paragraphs, "\n"), Method: "docx"}, nil
}

// docxParagraphs returns the text of every w:p element, one entry per
// paragraph, including empty ones.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var paragraphs []string
	var current strings.Builder
	inParagraph := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
			case "t":
				var text string
				if err := dec.DecodeElement(&text, &t); err == nil {
					current.WriteString(text)
				}
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "p" && inParagraph {
				paragraphs = append(paragraphs, current.String())
				inParagraph = false
			}
		}
	}
	return paragraphs, nil
}

func extractXLSX(content []byte) (*ExtractionResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sheets []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			logger.Debug("Failed to read sheet", "sheet", sheet, "error", err)
			continue
		}
		var lines []string
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			sheets = append(sheets, strings.Join(lines, "\n"))
		}
	}

	return &ExtractionResult{Text: strings.Join(sheets, "\n"), Pages: len(sheets), Method: "excelize"}, nil
}

var goodTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z][a-z]+\b`),
	regexp.MustCompile(`\b\d{1,3}[,.]?\d{3}\b`),
	regexp.MustCompile(`[.!?]\s+[A-Z]`),
	regexp.MustCompile(`\b(the|and|or|of|to|in|for|with|on|at|by|from)\b`),
}

// evaluateTextQuality scores extracted text between 0 and 1 from the share
// of printable and alphanumeric characters, penalising replacement runes.
func evaluateTextQuality(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	if len(text) < 10 {
		return 0.1
	}

	var alphanumeric, printable, corrupted, total int
	for _, r := range text {
		total++
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			alphanumeric++
			printable++
		case r == '�':
			corrupted++
		case r >= 32 && r <= 126, r == '\n', r == '\t':
			printable++
		case r > 127:
			printable++
		}
	}

	alphanumericRatio := float64(alphanumeric) / float64(total)
	score := float64(printable) / float64(total) * 0.4
	if alphanumericRatio >= 0.3 {
		score += 0.3
	} else {
		score += alphanumericRatio
	}
	score -= float64(corrupted) / float64(total) * 2.0
	if len(text) > 100 {
		score += 0.1
	}

	good := 0
	for _, p := range goodTextPatterns {
		if p.MatchString(text) {
			good++
		}
	}
	if good >= 3 {
		score += 0.2
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
