package models

import "time"

type QuestionType string

const (
	QuestionChoice  QuestionType = "choice"
	QuestionBoolean QuestionType = "boolean"
)

var ValidQuestionTypes = map[QuestionType]bool{
	QuestionChoice:  true,
	QuestionBoolean: true,
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var ValidDifficulties = map[Difficulty]bool{
	DifficultyEasy:   true,
	DifficultyMedium: true,
	DifficultyHard:   true,
}

// ── Core Structs ───────────────────────────────────────

type QuizQuestion struct {
	Stem         string       `json:"stem"`
	Options      []string     `json:"options"`
	CorrectIndex int          `json:"correct_index"`
	Explanation  string       `json:"explanation"`
	Type         QuestionType `json:"type"`
	Difficulty   Difficulty   `json:"difficulty"`
	ConceptKey   string       `json:"concept_key,omitempty"`
	Source       string       `json:"source,omitempty"`
	Page         int          `json:"page,omitempty"`
}

// QuizResultItem is the per-question outcome of grading.
type QuizResultItem struct {
	Index         int    `json:"index"`
	Stem          string `json:"stem"`
	UserAnswer    string `json:"user_answer"`
	ResolvedIndex int    `json:"resolved_index"`
	CorrectIndex  int    `json:"correct_index"`
	CorrectText   string `json:"correct_text"`
	IsCorrect     bool   `json:"is_correct"`
	Unanswered    bool   `json:"unanswered"`
	Explanation   string `json:"explanation"`
	ConceptKey    string `json:"concept_key,omitempty"`
}

type QuizGrade struct {
	Total           int              `json:"total"`
	Correct         int              `json:"correct"`
	Unanswered      int              `json:"unanswered"`
	Score           float64          `json:"score"`
	DifficultyLabel string           `json:"difficulty_label"`
	AccuracyByType  map[string]float64 `json:"accuracy_by_type"`
	KnowledgeGaps   []string         `json:"knowledge_gaps"`
	Items           []QuizResultItem `json:"items"`
}

type QuizAttempt struct {
	ID            string    `json:"id"`
	UserID        int64     `json:"user_id"`
	Source        string    `json:"source,omitempty"`
	Total         int       `json:"total"`
	Correct       int       `json:"correct"`
	Score         float64   `json:"score"`
	Difficulty    Difficulty `json:"difficulty"`
	KnowledgeGaps []string  `json:"knowledge_gaps"`
	CreatedAt     time.Time `json:"created_at"`
}

// ── Request Types ─────────────────────────────────────

type GenerateQuizRequest struct {
	NumChoice  int        `json:"num_choice"`
	NumBoolean int        `json:"num_boolean"`
	Difficulty Difficulty `json:"difficulty"`
	Source     string     `json:"source,omitempty"`
}

type SubmitQuizRequest struct {
	Questions []QuizQuestion `json:"questions"`
	Answers   []string       `json:"answers"`
	Source    string         `json:"source,omitempty"`
}

// ── Response Types ────────────────────────────────────

type GenerateQuizResponse struct {
	Questions []QuizQuestion `json:"questions"`
	Requested int            `json:"requested"`
	Generated int            `json:"generated"`
	Warning   string         `json:"warning,omitempty"`
}

type ReportOverview struct {
	Attempts            int                `json:"attempts"`
	AverageScore        float64            `json:"average_score"`
	BestScore           float64            `json:"best_score"`
	RecentScore         float64            `json:"recent_score"`
	AverageByDifficulty map[string]float64 `json:"average_by_difficulty"`
	TopKnowledgeGaps    []string           `json:"top_knowledge_gaps"`
}
