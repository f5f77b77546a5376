package ingest

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"github.com/mltutor/backend/internal/models"
)

// ExtractPages reads a PDF and returns one Page per readable page. A page
// that fails text extraction is logged and skipped rather than failing the
// whole document.
func ExtractPages(filePath, source string) ([]models.Page, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	var pages []models.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn().Err(err).Str("source", source).Int("page", i).Msg("page extraction failed, skipping")
			continue
		}
		pages = append(pages, models.Page{Text: text, Number: i, Source: source})
	}

	return pages, nil
}
