package models

import "strconv"

type PageType string

const (
	PageContent   PageType = "content"
	PageTOC       PageType = "toc"
	PageGlossary  PageType = "glossary"
	PageReference PageType = "reference"
)

var ValidPageTypes = map[PageType]bool{
	PageContent:   true,
	PageTOC:       true,
	PageGlossary:  true,
	PageReference: true,
}

// Page is one extracted page of a source document, before cleaning.
type Page struct {
	Text   string `json:"text"`
	Number int    `json:"number"`
	Source string `json:"source"`
}

// Chunk is a retrievable fragment of a processed document.
type Chunk struct {
	Content       string   `json:"content"`
	Source        string   `json:"source"`
	Page          int      `json:"page"`
	PageType      PageType `json:"page_type"`
	IsSpecialPage bool     `json:"is_special_page"`
	Truncated     bool     `json:"truncated,omitempty"`
	ChapterID     string   `json:"chapter_id,omitempty"`
}

// Metadata flattens the chunk's provenance fields for vector-store storage.
func (c Chunk) Metadata() map[string]string {
	m := map[string]string{
		"source":    c.Source,
		"page":      strconv.Itoa(c.Page),
		"page_type": string(c.PageType),
	}
	if c.ChapterID != "" {
		m["chapter_id"] = c.ChapterID
	}
	if c.IsSpecialPage {
		m["special"] = "true"
	}
	if c.Truncated {
		m["truncated"] = "true"
	}
	return m
}
