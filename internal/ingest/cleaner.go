package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mltutor/backend/internal/models"
)

const minPageChars = 100

var (
	cjkGapPattern      = regexp.MustCompile(`(\p{Han})\s+(\p{Han})`)
	formulaRefPattern  = regexp.MustCompile(`\(\s*(\d+\.\d+)\s*\)`)
	theoremWordPattern = regexp.MustCompile(`(定理|引理|证明|推论|命题)\s*(\d+\.\d+)?`)
	markerPattern      = regexp.MustCompile(`【(定理|引理|证明|推论|命题)[^】]*】`)
	extraNewlines      = regexp.MustCompile(`\n{3,}`)
	extraSpaces        = regexp.MustCompile(` {2,}`)
	relationOpPattern  = regexp.MustCompile(` *([=≈≠≤≥<>]) *`)
	chapterLinePattern = regexp.MustCompile(`(?m)^\s*第 \d+ 章.*\n`)
	pageNumberPattern  = regexp.MustCompile(`(?m)^\s*\d+\s*$`)
)

// Scanned-text artifacts that show up verbatim in the PDFs we ingest.
var ocrFixes = map[string]string{
	"BA": "为",
	"ME": "使",
	"sk": "求",
}

var ocrFixPatterns = buildOCRFixPatterns()

func buildOCRFixPatterns() map[*regexp.Regexp]string {
	m := make(map[*regexp.Regexp]string, len(ocrFixes))
	for wrong, correct := range ocrFixes {
		m[regexp.MustCompile(`\b`+wrong+`\b`)] = correct
	}
	return m
}

// CleanPage normalizes one page of extracted text. The rules reach a fixed
// point: cleaning already-clean text returns it unchanged.
func CleanPage(text string, pageType models.PageType) string {
	text = collapseCJKGaps(text)

	if pageType == models.PageContent {
		text = markFormulas(text)
		text = markTheorems(text)
	}
	if pageType == models.PageTOC {
		text = markerPattern.ReplaceAllString(text, "")
	}

	text = extraNewlines.ReplaceAllString(text, "\n\n")

	if pageType == models.PageContent {
		for p, correct := range ocrFixPatterns {
			text = p.ReplaceAllString(text, correct)
		}
		text = padRelationOps(text)
	}

	text = extraSpaces.ReplaceAllString(text, " ")
	text = chapterLinePattern.ReplaceAllString(text, "")
	text = pageNumberPattern.ReplaceAllString(text, "")

	return strings.TrimSpace(text)
}

// collapseCJKGaps removes whitespace between adjacent CJK characters.
// The capture-group replacement consumes the second character, so runs of
// spaced characters need repeated passes until stable.
func collapseCJKGaps(text string) string {
	for {
		next := cjkGapPattern.ReplaceAllString(text, "$1$2")
		if next == text {
			return next
		}
		text = next
	}
}

// markFormulas rewrites numbered equation references like (3.12) into an
// explicit 【公式3.12】 marker so the splitter can keep equations intact.
func markFormulas(text string) string {
	return formulaRefPattern.ReplaceAllString(text, "【公式$1】")
}

// markTheorems wraps theorem-like keywords in block markers. A keyword is
// skipped when it is already inside a marker (preceded by 【), directly
// follows a period or whitespace-free context that suggests a cross
// reference, or is itself followed by a period (e.g. "见定理 3.1.").
func markTheorems(text string) string {
	locs := theoremWordPattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(locs)*8)
	prev := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		if !shouldMarkTheoremAt(text, start, end) {
			continue
		}
		word := text[loc[2]:loc[3]]
		number := ""
		if loc[4] >= 0 {
			number = text[loc[4]:loc[5]]
		}
		b.WriteString(text[prev:start])
		b.WriteString("\n\n【")
		b.WriteString(word)
		b.WriteString(number)
		b.WriteString("】\n")
		prev = end
	}
	b.WriteString(text[prev:])
	return b.String()
}

func shouldMarkTheoremAt(text string, start, end int) bool {
	if start > 0 {
		switch text[start-1] {
		case '.', ' ', '\t', '\n', '\r':
			return false
		}
		// Already marked
		if strings.HasSuffix(text[:start], "【") {
			return false
		}
	}
	rest := strings.TrimLeft(text[end:], " \t")
	if strings.HasPrefix(rest, ".") {
		return false
	}
	return true
}

// padRelationOps spaces out relational operators, collapsing any existing
// spacing first so repeated cleaning does not widen the gap.
func padRelationOps(text string) string {
	return relationOpPattern.ReplaceAllString(text, " $1 ")
}

// CleanPages runs classification and cleaning over extracted pages, dropping
// pages whose cleaned text is too short to be useful.
func CleanPages(pages []models.Page) []cleanedPage {
	var out []cleanedPage
	for _, p := range pages {
		pageType := ClassifyPage(p.Text)
		cleaned := CleanPage(p.Text, pageType)
		if utf8.RuneCountInString(cleaned) <= minPageChars {
			continue
		}
		out = append(out, cleanedPage{
			Page:     models.Page{Text: cleaned, Number: p.Number, Source: p.Source},
			PageType: pageType,
			Chapter:  detectChapter(p.Text),
		})
	}
	return out
}

var chapterIDPattern = regexp.MustCompile(`第\s*(\d+)\s*章`)

// detectChapter pulls a chapter number out of the raw page text, before the
// cleaner strips heading lines.
func detectChapter(rawText string) string {
	m := chapterIDPattern.FindStringSubmatch(rawText)
	if m == nil {
		return ""
	}
	return m[1]
}

type cleanedPage struct {
	Page     models.Page
	PageType models.PageType
	Chapter  string
}
