package quiz

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/mltutor/backend/internal/models"
)

// answerPrefixPattern strips the option-letter prefix users and models like
// to echo back ("A. xxx", "ｂ、xxx"). Case-insensitive so "c. C" resolves to
// the option "C".
var answerPrefixPattern = regexp.MustCompile(`^[A-Da-dＡ-Ｄａ-ｄ]\s*[\.．、]\s*`)

var (
	gapCJKPattern   = regexp.MustCompile(`[\p{Han}]{2,}`)
	gapLatinPattern = regexp.MustCompile(`[A-Za-z]{3,}`)
)

const maxGapKeywords = 5

// Grade scores a submitted quiz. The answer slice must line up with the
// question slice; a count mismatch is an input error, not a zero score.
func Grade(questions []models.QuizQuestion, answers []string) (*models.QuizGrade, error) {
	if len(questions) != len(answers) {
		return nil, fmt.Errorf("answer count %d does not match question count %d", len(answers), len(questions))
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("nothing to grade")
	}

	grade := &models.QuizGrade{
		Total: len(questions),
		Items: make([]models.QuizResultItem, 0, len(questions)),
	}

	typeTotal := make(map[string]int)
	typeCorrect := make(map[string]int)

	for i, q := range questions {
		resolved := resolveAnswer(answers[i], q.Options)
		correct := resolved == q.CorrectIndex && resolved != -1

		item := models.QuizResultItem{
			Index:         i,
			Stem:          q.Stem,
			UserAnswer:    answers[i],
			ResolvedIndex: resolved,
			CorrectIndex:  q.CorrectIndex,
			IsCorrect:     correct,
			Unanswered:    resolved == -1,
			Explanation:   q.Explanation,
			ConceptKey:    q.ConceptKey,
		}
		if q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options) {
			item.CorrectText = q.Options[q.CorrectIndex]
		}
		grade.Items = append(grade.Items, item)

		typeTotal[string(q.Type)]++
		if correct {
			grade.Correct++
			typeCorrect[string(q.Type)]++
		}
		if resolved == -1 {
			grade.Unanswered++
		}
	}

	grade.Score = math.Round(float64(grade.Correct)/float64(grade.Total)*10000) / 100
	grade.DifficultyLabel = difficultyLabel(grade.Correct, grade.Total)

	grade.AccuracyByType = make(map[string]float64, len(typeTotal))
	for t, total := range typeTotal {
		grade.AccuracyByType[t] = math.Round(float64(typeCorrect[t])/float64(total)*10000) / 100
	}

	grade.KnowledgeGaps = describeGaps(grade.Items, questions)

	return grade, nil
}

// resolveAnswer maps a free-form answer string onto an option index. Exact
// match wins; otherwise both sides are normalized (letter prefix stripped,
// trimmed, lowercased). Anything unresolvable, including the empty string,
// counts as unanswered.
func resolveAnswer(answer string, options []string) int {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return -1
	}

	for i, opt := range options {
		if answer == opt {
			return i
		}
	}

	normalized := normalizeAnswer(answer)
	if normalized == "" {
		return -1
	}
	for i, opt := range options {
		if normalized == normalizeAnswer(opt) {
			return i
		}
	}
	return -1
}

func normalizeAnswer(s string) string {
	s = strings.TrimSpace(s)
	s = answerPrefixPattern.ReplaceAllString(s, "")
	return strings.ToLower(strings.TrimSpace(s))
}

func difficultyLabel(correct, total int) string {
	rate := float64(correct) / float64(total)
	switch {
	case rate >= 0.8:
		return "简单"
	case rate >= 0.5:
		return "中等"
	default:
		return "困难"
	}
}

// GapKeywords extracts the concepts behind the wrong (not unanswered)
// answers: CJK terms of two or more characters plus latin words of three or
// more letters, ranked by how often they recur across the missed stems.
func GapKeywords(items []models.QuizResultItem, max int) []string {
	counts := make(map[string]int)
	var order []string

	for _, item := range items {
		if item.IsCorrect || item.Unanswered {
			continue
		}
		terms := gapCJKPattern.FindAllString(item.Stem, -1)
		terms = append(terms, gapLatinPattern.FindAllString(item.Stem, -1)...)
		for _, term := range terms {
			if counts[term] == 0 {
				order = append(order, term)
			}
			counts[term]++
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})
	if len(order) > max {
		order = order[:max]
	}
	return order
}

// describeGaps turns the missed questions into short review hints: the
// recurring concepts, then the per-type miss counts.
func describeGaps(items []models.QuizResultItem, questions []models.QuizQuestion) []string {
	var gaps []string

	if keywords := GapKeywords(items, maxGapKeywords); len(keywords) > 0 {
		gaps = append(gaps, "涉及以下概念："+strings.Join(keywords, ", "))
	}

	wrongChoice, wrongBoolean := 0, 0
	for i, item := range items {
		if item.IsCorrect || item.Unanswered {
			continue
		}
		if questions[i].Type == models.QuestionBoolean {
			wrongBoolean++
		} else {
			wrongChoice++
		}
	}
	if wrongChoice > 0 {
		gaps = append(gaps, fmt.Sprintf("选择题错误较多（%d题）", wrongChoice))
	}
	if wrongBoolean > 0 {
		gaps = append(gaps, fmt.Sprintf("判断题错误较多（%d题）", wrongBoolean))
	}

	return gaps
}
