package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"document-extraction-platform/internal/ai"
	"document-extraction-platform/internal/logger"
	"document-extraction-platform/models"

	"github.com/ledongthuc/pdf"
)

// PDFClassifierConfig holds the routing thresholds between cheap text
// extraction and OCR.
type PDFClassifierConfig struct {
	MinCharsPerPage          int
	TextPageThresholdPercent int
	OCREnabled               bool
}

// PDFConverter extracts text PDFs directly and routes scanned PDFs to the
// provider's vision path.
type PDFConverter struct {
	provider ai.Provider
	model    string
	cfg      PDFClassifierConfig
}

func NewPDFConverter(provider ai.Provider, model string, cfg PDFClassifierConfig) *PDFConverter {
	if cfg.MinCharsPerPage <= 0 {
		cfg.MinCharsPerPage = 50
	}
	if cfg.TextPageThresholdPercent <= 0 {
		cfg.TextPageThresholdPercent = 70
	}
	return &PDFConverter{provider: provider, model: model, cfg: cfg}
}

func (p *PDFConverter) Name() string { return "pdf" }

func (p *PDFConverter) Supports(filename string) bool {
	return hasExtension(filename, ".pdf")
}

// pageTexts holds the per-page plain text gathered during classification so
// the text route does not read the file twice.
type pageTexts struct {
	pages     []string
	textPages int
}

func (p *PDFConverter) Convert(ctx context.Context, entry models.FileEntry) models.ConversionResult {
	content, err := os.ReadFile(entry.Path)
	if err != nil {
		return models.FailedConversion(entry, models.ErrKindInternal,
			fmt.Errorf("failed to read PDF file: %w", err))
	}

	texts, err := p.classify(content)
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return models.FailedConversion(entry, models.ErrKindPasswordRequired,
				errors.New("PDF is password-protected"))
		}
		return models.FailedConversion(entry, models.ErrKindExtractionFailed,
			fmt.Errorf("failed to parse PDF: %w", err))
	}

	total := len(texts.pages)
	useText := total > 0 && texts.textPages*100 >= total*p.cfg.TextPageThresholdPercent
	logger.Debug("classified PDF",
		"file", entry.DisplayName, "pages", total, "text_pages", texts.textPages, "text_route", useText)

	if useText {
		return models.ConversionResult{Entry: entry, OK: true, Markdown: renderPages(texts.pages)}
	}

	if !p.cfg.OCREnabled {
		return models.FailedConversion(entry, models.ErrKindOCRUnavailable,
			errors.New("document needs OCR but OCR is disabled"))
	}

	markdown, err := p.provider.TranscribeFile(ctx, entry.Path, "application/pdf",
		"Extract all text content from this PDF document as Markdown. Maintain original formatting and structure.", p.model)
	if err != nil {
		if ctx.Err() != nil {
			return models.FailedConversion(entry, models.ErrKindTimeout, ctx.Err())
		}
		return models.FailedConversion(entry, models.ErrKindExtractionFailed,
			fmt.Errorf("OCR conversion failed: %w", err))
	}
	return models.ConversionResult{Entry: entry, OK: true, Markdown: markdown}
}

// classify extracts per-page text and counts pages that carry at least
// MinCharsPerPage non-whitespace characters.
func (p *PDFConverter) classify(content []byte) (*pageTexts, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	texts := &pageTexts{}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			texts.pages = append(texts.pages, "")
			continue
		}
		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("failed to extract text from PDF page", "page", i, "error", err)
			texts.pages = append(texts.pages, "")
			continue
		}
		texts.pages = append(texts.pages, text)
		if countNonWhitespace(text) >= p.cfg.MinCharsPerPage {
			texts.textPages++
		}
	}
	return texts, nil
}

func countNonWhitespace(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func renderPages(pages []string) string {
	var b strings.Builder
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## Page %d\n\n%s", i+1, text)
	}
	return b.String()
}
