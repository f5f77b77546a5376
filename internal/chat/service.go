package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mltutor/backend/internal/generator"
	"github.com/mltutor/backend/internal/models"
	"github.com/mltutor/backend/internal/retrieval"
)

const (
	maxContextDocs = 10
	// Dialogue turns are truncated so old answers do not crowd out the
	// retrieved material.
	maxHistoryPairs = 3
	maxTurnRunes    = 150
)

// Service answers questions over the knowledge base: retrieve, rank, build a
// grounded prompt with dialogue history, call the model.
type Service struct {
	expanded retrieval.Retriever
	plain    retrieval.Retriever
	llm      generator.LLMClient
	maxDocs  int
}

// NewService takes two retrievers over the same indexes: one with query
// expansion, one without, so the flag can vary per request.
func NewService(expanded, plain retrieval.Retriever, llm generator.LLMClient, maxDocs int) *Service {
	if maxDocs <= 0 {
		maxDocs = 4
	}
	return &Service{expanded: expanded, plain: plain, llm: llm, maxDocs: maxDocs}
}

func (s *Service) Answer(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	retriever := s.expanded
	if req.Expand != nil && !*req.Expand {
		retriever = s.plain
	}

	docs, err := retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	if req.Source != "" {
		docs = filterBySource(docs, req.Source)
	}

	maxDocs := s.maxDocs
	if req.TopK > 0 && req.TopK <= maxContextDocs {
		maxDocs = req.TopK
	}
	docs = retrieval.Rank(question, docs, maxDocs)

	contextBlock, sources := BuildContext(docs)
	dialogue := DialogueContext(req.History)

	userPrompt := generator.BuildChatUserPrompt(contextBlock, question, dialogue, true)
	resp, err := s.llm.Generate(ctx, generator.ChatSystemPrompt(), userPrompt)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("context_docs", len(docs)).
		Bool("history", dialogue != "").
		Str("source", req.Source).
		Msg("chat answered")

	return &models.ChatResponse{
		Answer:  strings.TrimSpace(resp.Content),
		Sources: sources,
	}, nil
}

// BuildContext renders ranked chunks as numbered reference blocks and a
// parallel list of human-readable source labels.
func BuildContext(docs []models.Chunk) (string, []string) {
	parts := make([]string, 0, len(docs))
	sources := make([]string, 0, len(docs))

	for i, doc := range docs {
		parts = append(parts, fmt.Sprintf("[文档 %d]\n%s", i+1, doc.Content))

		source := doc.Source
		if source == "" {
			source = "Unknown"
		}
		sources = append(sources, fmt.Sprintf("%s (页码: %d)", source, doc.Page))
	}

	return strings.Join(parts, "\n\n"), sources
}

// DialogueContext condenses prior turns into at most three Q/A pairs, each
// side truncated. Conversations shorter than three messages carry no usable
// history.
func DialogueContext(turns []models.ChatTurn) string {
	if len(turns) < 3 {
		return ""
	}

	recent := turns
	if max := 2 * maxHistoryPairs; len(recent) > max {
		recent = recent[len(recent)-max:]
	}

	var pairs []string
	for i := 0; i+1 < len(recent); i += 2 {
		q := truncateRunes(recent[i].Content, maxTurnRunes)
		a := truncateRunes(recent[i+1].Content, maxTurnRunes)
		pairs = append(pairs, fmt.Sprintf("Q: %s\nA: %s", q, a))
	}
	return strings.Join(pairs, "\n\n")
}

func filterBySource(docs []models.Chunk, source string) []models.Chunk {
	var out []models.Chunk
	for _, d := range docs {
		if d.Source == source {
			out = append(out, d)
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
