package rag_service

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"

	"github.com/serisow/smartdoc/rag_type"
)

var ErrUnsupportedFileType = errors.New("unsupported file type")

const (
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeDoc  = "application/msword"
)

// SupportedExtensions lists the accepted upload types, lower case with dot.
var SupportedExtensions = []string{".pdf", ".docx", ".doc", ".html", ".htm", ".md", ".txt"}

func IsSupportedFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

type DocumentExtractor struct {
	logger *slog.Logger
}

func NewDocumentExtractor(logger *slog.Logger) *DocumentExtractor {
	return &DocumentExtractor{
		logger: logger,
	}
}

// ExtractPages dispatches on the file extension. PDFs keep their page
// structure; every other format is returned as a single page.
func (e *DocumentExtractor) ExtractPages(filename string, data []byte) ([]rag_type.Page, error) {
	var (
		text string
		err  error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return e.extractPDF(data)
	case ".docx":
		text, err = e.extractWord(data, mimeDocx)
	case ".doc":
		text, err = e.extractWord(data, mimeDoc)
	case ".html", ".htm":
		text, err = extractHTML(data)
	case ".md":
		text, err = extractMarkdown(data)
	case ".txt":
		text = string(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filename)
	}
	if err != nil {
		return nil, err
	}

	return []rag_type.Page{{Number: 1, Text: text}}, nil
}

// CountPages reports the page count shown at upload time.
func (e *DocumentExtractor) CountPages(filename string, data []byte) (int, error) {
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		if !IsSupportedFile(filename) {
			return 0, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filename)
		}
		return 1, nil
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to create PDF reader: %w", err)
	}
	return reader.NumPage(), nil
}

func (e *DocumentExtractor) extractPDF(data []byte) (pages []rag_type.Page, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		e.logger.Error("Failed to create PDF reader",
			slog.String("error", err.Error()),
			slog.Int("data_size", len(data)))
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	totalPage := reader.NumPage()
	e.logger.Debug("Starting PDF text extraction",
		slog.Int("total_pages", totalPage))

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			e.logger.Warn("Null page encountered",
				slog.Int("page_number", pageIndex))
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", pageIndex, err)
		}
		pages = append(pages, rag_type.Page{Number: pageIndex, Text: text})
	}

	return pages, nil
}

func (e *DocumentExtractor) extractWord(data []byte, mimeType string) (string, error) {
	result, err := docconv.Convert(bytes.NewReader(data), mimeType, false)
	if err != nil {
		e.logger.Error("Failed to convert Word document",
			slog.String("error", err.Error()),
			slog.Int("data_size", len(data)))
		return "", fmt.Errorf("failed to convert Word document: %w", err)
	}
	return result.Body, nil
}

func extractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Text(), nil
}

func extractMarkdown(data []byte) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert(data, &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return extractHTML(buf.Bytes())
}
