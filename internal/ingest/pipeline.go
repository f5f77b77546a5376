package ingest

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mltutor/backend/internal/models"
)

// Pipeline turns a source document into retrievable chunks:
// extract -> classify -> clean -> split -> merge.
type Pipeline struct {
	splitter *Splitter
}

func NewPipeline(chunkSize, chunkOverlap int) *Pipeline {
	return &Pipeline{splitter: NewSplitter(chunkSize, chunkOverlap)}
}

// ProcessFile runs the full pipeline over a PDF file.
func (p *Pipeline) ProcessFile(filePath, source string) ([]models.Chunk, error) {
	pages, err := ExtractPages(filePath, source)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", source, err)
	}
	log.Info().Str("source", source).Int("pages", len(pages)).Msg("pages extracted")

	return p.ProcessPages(pages, source)
}

// ProcessPages classifies, cleans and splits already-extracted pages.
func (p *Pipeline) ProcessPages(pages []models.Page, source string) ([]models.Chunk, error) {
	cleaned := CleanPages(pages)
	log.Info().Str("source", source).Int("kept", len(cleaned)).Int("dropped", len(pages)-len(cleaned)).Msg("pages cleaned")

	chunks, err := p.splitter.SplitPages(cleaned)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", source, err)
	}

	content := 0
	for _, c := range chunks {
		if !c.IsSpecialPage {
			content++
		}
	}
	log.Info().Str("source", source).Int("chunks", len(chunks)).Int("content_chunks", content).Msg("document chunked")

	return chunks, nil
}
