package ingest

import (
	"regexp"
	"strings"

	"github.com/mltutor/backend/internal/models"
)

// Page classification runs on raw extracted text, before any cleaning.
// Front/back-matter pages (contents, glossary, references) survive the
// pipeline but are excluded from question generation and dense indexing.

var (
	tocDotsPattern  = regexp.MustCompile(`\.\s*\.\s*\.\s*\.\s*\d+`)
	tocEntryPattern = regexp.MustCompile(`[\p{Han}\w\s]+\.\s*\.\s*\.\s*\d+`)

	glossaryEntryPattern = regexp.MustCompile(`[\w\p{Han}]+\s+\d+(,\s*\d+|–\d+){3,}`)
	glossaryWordPattern  = regexp.MustCompile(`\b[A-Za-z]+\s+[A-Za-z\s]+\d+`)

	referencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\[\d+\]\s*[A-Z]`),
		regexp.MustCompile(`et\s+al\.`),
		regexp.MustCompile(`\([12]\d{3}\)\.`),
		regexp.MustCompile(`^[A-Z][a-z]+,\s*[A-Z\.]`),
	}
)

// ClassifyPage labels a raw page as content, toc, glossary, or reference.
func ClassifyPage(text string) models.PageType {
	switch {
	case isTableOfContents(text):
		return models.PageTOC
	case isGlossaryOrIndex(text):
		return models.PageGlossary
	case isReferencePage(text):
		return models.PageReference
	default:
		return models.PageContent
	}
}

func isTableOfContents(text string) bool {
	if len(tocDotsPattern.FindAllString(text, -1)) > 5 {
		return true
	}
	return len(tocEntryPattern.FindAllString(text, -1)) > 5
}

func isGlossaryOrIndex(text string) bool {
	if len(glossaryEntryPattern.FindAllString(text, -1)) > 10 {
		return true
	}
	return len(glossaryWordPattern.FindAllString(text, -1)) > 15
}

func isReferencePage(text string) bool {
	lines := strings.Split(text, "\n")
	matches := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, p := range referencePatterns {
			if p.MatchString(trimmed) {
				matches++
				break
			}
		}
	}

	if len(lines) == 0 {
		return false
	}
	ratio := float64(matches) / float64(len(lines))
	return matches > 5 || (ratio > 0.3 && len(lines) > 5)
}
