package generator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mltutor/backend/internal/models"
)

const minStemRunes = 8

// Stems naming datasets or raw experiment numbers make trivia questions, not
// comprehension questions.
var stemBlacklist = []string{
	"MNIST",
	"CIFAR",
	"ImageNet",
	"实验",
	"实验结果",
	"准确率达到",
	"多少%",
	"具体数值",
}

var numericOptionPattern = regexp.MustCompile(`^[0-9.%]+$`)

// ValidateQuality applies the acceptance gates to a parsed question. It does
// not check the boolean truth schedule; the generation loop owns that.
func ValidateQuality(q *GeneratedQuestion) error {
	var errs []string

	if utf8.RuneCountInString(q.Question) < minStemRunes {
		errs = append(errs, "stem too short")
	}

	for _, w := range stemBlacklist {
		if strings.Contains(q.Question, w) {
			errs = append(errs, fmt.Sprintf("stem contains blacklisted term %q", w))
			break
		}
	}

	if q.Type == string(models.QuestionChoice) {
		if len(q.Options) < 2 {
			errs = append(errs, "too few options")
		}
		numeric := 0
		for _, o := range q.Options {
			if numericOptionPattern.MatchString(strings.TrimSpace(o)) {
				numeric++
			}
		}
		if numeric >= 3 {
			errs = append(errs, "options are mostly bare numbers")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ── Source Chunk Filtering ─────────────────────────────────

// Boilerplate markers: chunks dominated by these are front matter, figure
// captions, or link dumps rather than teachable content.
var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`版权`),
	regexp.MustCompile(`版权所有`),
	regexp.MustCompile(`作者简历`),
	regexp.MustCompile(`封面`),
	regexp.MustCompile(`扉页`),
	regexp.MustCompile(`目录`),
	regexp.MustCompile(`前言`),
	regexp.MustCompile(`致谢`),
	regexp.MustCompile(`勘误`),
	regexp.MustCompile(`索引`),
	regexp.MustCompile(`参考文献`),
	regexp.MustCompile(`附录`),
	regexp.MustCompile(`谢辞`),
	regexp.MustCompile(`鸣谢`),
	regexp.MustCompile(`序言`),
	regexp.MustCompile(`封底`),
	regexp.MustCompile(`https?://`),
	regexp.MustCompile(`www\.`),
	regexp.MustCompile(`第\s*\d+\s*章\s*$`),
	regexp.MustCompile(`第\s*\d+\s*节\s*$`),
	regexp.MustCompile(`图\s*\d+[-．.]\d+`),
	regexp.MustCompile(`表\s*\d+[-．.]\d+`),
	regexp.MustCompile(`例\s*\d+[-．.]\d+`),
}

const (
	minQuizableChars = 150
	maxDigitRatio    = 0.15
)

// IsQuizableChunk decides whether a chunk is substantial enough to generate
// a question from.
func IsQuizableChunk(content string) bool {
	if utf8.RuneCountInString(strings.TrimSpace(content)) < 30 {
		return false
	}

	hits := 0
	for _, p := range boilerplatePatterns {
		if p.MatchString(content) {
			hits++
		}
	}
	if hits >= 2 {
		return false
	}

	digits := 0
	total := 0
	for _, r := range content {
		total++
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if total > 0 && float64(digits)/float64(total) > maxDigitRatio {
		return false
	}

	return utf8.RuneCountInString(content) >= minQuizableChars
}

// FilterQuizable keeps the chunks worth generating questions from: content
// pages only, deduplicated, boilerplate removed.
func FilterQuizable(chunks []models.Chunk) []models.Chunk {
	seen := make(map[string]bool, len(chunks))
	var out []models.Chunk
	for _, c := range chunks {
		if c.IsSpecialPage || seen[c.Content] {
			seen[c.Content] = true
			continue
		}
		seen[c.Content] = true
		if IsQuizableChunk(c.Content) {
			out = append(out, c)
		}
	}
	return out
}
