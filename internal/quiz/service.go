package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mltutor/backend/internal/config"
	"github.com/mltutor/backend/internal/generator"
	"github.com/mltutor/backend/internal/models"
)

const maxQuestionsPerType = 20

// samplePoolFactor sizes the stratified sample handed to the generation
// loop: a few candidate chunks per requested question.
const samplePoolFactor = 3

var ErrEmptyCorpus = errors.New("knowledge base is empty, upload a document first")

// CorpusProvider exposes the current chunk corpus, optionally narrowed to a
// single source document.
type CorpusProvider interface {
	Docs(source string) []models.Chunk
}

type Service struct {
	corpus     CorpusProvider
	llm        generator.LLMClient
	store      *Store
	multiplier int
	clusters   int
}

func NewService(corpus CorpusProvider, llm generator.LLMClient, store *Store, cfg config.QuizConfig) *Service {
	return &Service{
		corpus:     corpus,
		llm:        llm,
		store:      store,
		multiplier: cfg.AttemptMultiplier,
		clusters:   cfg.SampleClusters,
	}
}

// ── Generation ──────────────────────────────────────────

// Generate builds a quiz from the current corpus, or the chunks of a single
// source when the request names one. A partially filled quiz is a success
// with a warning, not an error.
func (s *Service) Generate(ctx context.Context, req models.GenerateQuizRequest) (*models.GenerateQuizResponse, error) {
	if req.NumChoice < 0 || req.NumBoolean < 0 {
		return nil, fmt.Errorf("question counts must not be negative")
	}
	total := req.NumChoice + req.NumBoolean
	if total == 0 {
		return nil, fmt.Errorf("at least one question must be requested")
	}
	if req.NumChoice > maxQuestionsPerType || req.NumBoolean > maxQuestionsPerType {
		return nil, fmt.Errorf("at most %d questions per type", maxQuestionsPerType)
	}

	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyMedium
	}
	if !models.ValidDifficulties[difficulty] {
		return nil, fmt.Errorf("unknown difficulty %q", req.Difficulty)
	}

	pool := s.corpus.Docs(req.Source)
	if len(pool) == 0 {
		return nil, ErrEmptyCorpus
	}

	quizable := generator.FilterQuizable(pool)
	if len(quizable) == 0 {
		return nil, fmt.Errorf("no chunk in the knowledge base is suitable for question generation")
	}

	seed := time.Now().UnixNano()
	sampled := NewSampler(s.clusters, seed).Sample(quizable, total*samplePoolFactor)

	loop := generator.NewLoop(s.llm, s.multiplier, seed)
	loop.ConceptKey = ConceptKey

	questions, warning, err := loop.Generate(ctx, sampled, req.NumChoice, req.NumBoolean, difficulty)
	if err != nil {
		return nil, fmt.Errorf("generate quiz: %w", err)
	}

	log.Info().
		Int("requested", total).
		Int("generated", len(questions)).
		Str("difficulty", string(difficulty)).
		Str("source", req.Source).
		Msg("quiz generated")

	return &models.GenerateQuizResponse{
		Questions: questions,
		Requested: total,
		Generated: len(questions),
		Warning:   warning,
	}, nil
}

// ── Grading and History ─────────────────────────────────

// Submit grades the answers against the submitted questions and records the
// attempt. A history write failure is logged, not surfaced: the student still
// gets their grade.
func (s *Service) Submit(userID int64, req models.SubmitQuizRequest) (*models.QuizGrade, error) {
	grade, err := Grade(req.Questions, req.Answers)
	if err != nil {
		return nil, err
	}

	difficulty := models.DifficultyMedium
	if len(req.Questions) > 0 && models.ValidDifficulties[req.Questions[0].Difficulty] {
		difficulty = req.Questions[0].Difficulty
	}

	attempt := &models.QuizAttempt{
		ID:            uuid.NewString(),
		UserID:        userID,
		Source:        req.Source,
		Total:         grade.Total,
		Correct:       grade.Correct,
		Score:         grade.Score,
		Difficulty:    difficulty,
		KnowledgeGaps: GapKeywords(grade.Items, topGapTags),
	}
	if err := s.store.RecordAttempt(attempt); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to record quiz attempt")
	}

	return grade, nil
}

// Overview reports score trends over the user's retained attempt history.
func (s *Service) Overview(userID int64) (*models.ReportOverview, error) {
	return s.store.Overview(userID)
}
