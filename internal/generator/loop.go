package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"

	"github.com/mltutor/backend/internal/models"
)

// Loop drives bounded-retry question generation. Each accepted question
// costs one attempt; so does every rejected, unparseable, or refused
// response. The budget is target count times the attempt multiplier.
type Loop struct {
	llm        LLMClient
	rng        *rand.Rand
	multiplier int

	// ConceptKey, when set, stamps each accepted question with a stable
	// identifier derived from its source chunk.
	ConceptKey func(models.Chunk) string
}

func NewLoop(llm LLMClient, multiplier int, seed int64) *Loop {
	if multiplier <= 0 {
		multiplier = 6
	}
	return &Loop{
		llm:        llm,
		rng:        rand.New(rand.NewSource(seed)),
		multiplier: multiplier,
	}
}

// TruthSchedule fixes the answer distribution for a boolean batch before
// generation starts: half the questions false (at least one), the rest true,
// in shuffled order.
func TruthSchedule(n int, rng *rand.Rand) []bool {
	if n <= 0 {
		return nil
	}
	numFalse := n / 2
	if numFalse < 1 {
		numFalse = 1
	}

	schedule := make([]bool, n)
	for i := numFalse; i < n; i++ {
		schedule[i] = true
	}
	rng.Shuffle(n, func(i, j int) {
		schedule[i], schedule[j] = schedule[j], schedule[i]
	})
	return schedule
}

// Generate produces up to numChoice choice questions and numBoolean boolean
// questions from the chunk pool. Falling short of the target is reported in
// the warning, not as an error.
func (l *Loop) Generate(ctx context.Context, pool []models.Chunk, numChoice, numBoolean int, difficulty models.Difficulty) ([]models.QuizQuestion, string, error) {
	pool = FilterQuizable(pool)
	if len(pool) == 0 {
		return nil, "", fmt.Errorf("no quizable chunks in pool")
	}

	var questions []models.QuizQuestion

	if numChoice > 0 {
		batch, err := l.generateBatch(ctx, pool, models.QuestionChoice, numChoice, difficulty, nil)
		if err != nil {
			return nil, "", err
		}
		questions = append(questions, batch...)
	}

	if numBoolean > 0 {
		schedule := TruthSchedule(numBoolean, l.rng)
		batch, err := l.generateBatch(ctx, pool, models.QuestionBoolean, numBoolean, difficulty, schedule)
		if err != nil {
			return nil, "", err
		}
		questions = append(questions, batch...)
	}

	warning := ""
	if len(questions) < numChoice+numBoolean {
		warning = fmt.Sprintf("quality filtering kept %d of %d requested questions", len(questions), numChoice+numBoolean)
		log.Warn().Int("generated", len(questions)).Int("requested", numChoice+numBoolean).Msg("quiz generation under-filled")
	}

	return questions, warning, nil
}

func (l *Loop) generateBatch(ctx context.Context, pool []models.Chunk, qType models.QuestionType, target int, difficulty models.Difficulty, schedule []bool) ([]models.QuizQuestion, error) {
	var accepted []models.QuizQuestion
	maxAttempts := target * l.multiplier

	for attempts := 0; len(accepted) < target && attempts < maxAttempts; attempts++ {
		if err := ctx.Err(); err != nil {
			return accepted, err
		}

		chunk := pool[l.rng.Intn(len(pool))]

		var expectTrue *bool
		if qType == models.QuestionBoolean && len(accepted) < len(schedule) {
			v := schedule[len(accepted)]
			expectTrue = &v
		}

		systemPrompt := QuestionSystemPrompt(qType, difficulty, expectTrue)
		userPrompt := BuildQuestionUserPrompt(chunk.Content)

		resp, err := l.llm.Generate(ctx, systemPrompt, userPrompt)
		if err != nil {
			// Service failures burn an attempt but not the batch.
			log.Warn().Err(err).Str("type", string(qType)).Msg("generation call failed")
			continue
		}

		q, err := ParseQuestion(resp.Content)
		if err != nil {
			if errors.Is(err, ErrNotSuitable) {
				log.Debug().Int("page", chunk.Page).Msg("chunk refused by model")
			} else {
				log.Warn().Err(err).Msg("unusable generation response")
			}
			continue
		}

		if expectTrue != nil {
			expectedIdx := 1
			if *expectTrue {
				expectedIdx = 0
			}
			if q.CorrectIndex != expectedIdx {
				log.Debug().Int("expected", expectedIdx).Int("got", q.CorrectIndex).Msg("boolean truth mismatch, discarding")
				continue
			}
		}

		if err := ValidateQuality(q); err != nil {
			log.Debug().Err(err).Msg("question rejected by quality gate")
			continue
		}

		question := models.QuizQuestion{
			Stem:         q.Question,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			Explanation:  q.Explanation,
			Type:         qType,
			Difficulty:   difficulty,
			Source:       chunk.Source,
			Page:         chunk.Page,
		}
		if l.ConceptKey != nil {
			question.ConceptKey = l.ConceptKey(chunk)
		}
		if qType == models.QuestionChoice {
			l.shuffleOptions(&question)
		}

		accepted = append(accepted, question)
	}

	return accepted, nil
}

// shuffleOptions permutes the options while tracking where the correct one
// lands.
func (l *Loop) shuffleOptions(q *models.QuizQuestion) {
	correct := q.Options[q.CorrectIndex]
	l.rng.Shuffle(len(q.Options), func(i, j int) {
		q.Options[i], q.Options[j] = q.Options[j], q.Options[i]
	})
	for i, o := range q.Options {
		if o == correct {
			q.CorrectIndex = i
			return
		}
	}
}
