// -----------------------------------------------------------------------
// Text extraction - format-specific extraction for the ingestion pipeline
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
)

// extractor turns raw document bytes into plain text for chunking
type extractor struct {
	tempDir string
	logger  arbor.ILogger
}

func newExtractor(logger arbor.ILogger) *extractor {
	tempDir := filepath.Join(os.TempDir(), "memoria-pdf")
	os.MkdirAll(tempDir, 0755)

	return &extractor{
		tempDir: tempDir,
		logger:  logger,
	}
}

// ExtractFile dispatches on file extension
func (e *extractor) ExtractFile(filename string, content []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return e.extractPDF(filename, content)
	case ".txt", ".md":
		return e.extractPlainText(content)
	default:
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
}

// extractPlainText validates encoding and returns the text as-is
func (e *extractor) extractPlainText(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("file content is not valid UTF-8")
	}
	return string(content), nil
}

// workDir creates a private directory for one extraction. Extractions run
// concurrently and must never share page output.
func (e *extractor) workDir() (string, error) {
	return os.MkdirTemp(e.tempDir, "extract-")
}

// extractPDF extracts page text via pdfcpu. Content extraction failures on
// individual pages degrade to empty text rather than failing the document.
func (e *extractor) extractPDF(filename string, content []byte) (string, error) {
	workDir, err := e.workDir()
	if err != nil {
		return "", fmt.Errorf("failed to create extraction dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	tempFile := filepath.Join(workDir, filepath.Base(filename))
	if err := os.WriteFile(tempFile, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir := filepath.Join(workDir, "pages")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create extraction dir: %w", err)
	}

	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		e.logger.Warn().Err(err).Str("filename", filename).Msg("PDF content extraction failed, document will have no text")
		return "", nil
	}

	// pdfcpu writes one content file per page
	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(data)
		} else if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(data)
		}
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := strings.TrimSpace(pageTexts[pageNum])
		if text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(text)
	}

	return builder.String(), nil
}

// ExtractHTML converts a captured web page to markdown and pulls its title.
// The markdown becomes the site's stored content.
func (e *extractor) ExtractHTML(html string) (title string, markdown string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	// Strip non-content elements before conversion
	doc.Find("script, style, noscript, iframe").Remove()

	converter := md.NewConverter("", true, nil)
	body, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(body) == "" {
		body = html
	}

	markdown, err = converter.ConvertString(body)
	if err != nil {
		return "", "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}

	return title, strings.TrimSpace(markdown), nil
}
