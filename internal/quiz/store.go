package quiz

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mltutor/backend/internal/models"
)

// historyLimit bounds how many attempts are retained per user. Older rows
// are pruned on every insert.
const historyLimit = 200

const topGapTags = 6

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ── Attempt History ─────────────────────────────────────

func (s *Store) RecordAttempt(attempt *models.QuizAttempt) error {
	gaps, err := json.Marshal(attempt.KnowledgeGaps)
	if err != nil {
		return fmt.Errorf("encode knowledge gaps: %w", err)
	}

	err = s.db.QueryRow(
		`INSERT INTO quiz_attempts (id, user_id, source, total, correct, score, difficulty, knowledge_gaps)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		attempt.ID, attempt.UserID, attempt.Source, attempt.Total,
		attempt.Correct, attempt.Score, attempt.Difficulty, gaps,
	).Scan(&attempt.CreatedAt)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}

	// Keep only the most recent rows per user.
	_, err = s.db.Exec(
		`DELETE FROM quiz_attempts
		 WHERE user_id = $1 AND id NOT IN (
		     SELECT id FROM quiz_attempts
		     WHERE user_id = $1
		     ORDER BY created_at DESC
		     LIMIT $2
		 )`,
		attempt.UserID, historyLimit,
	)
	if err != nil {
		return fmt.Errorf("prune attempt history: %w", err)
	}
	return nil
}

// ListAttempts returns a user's attempts in chronological order, oldest
// first, up to the retention limit.
func (s *Store) ListAttempts(userID int64) ([]models.QuizAttempt, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, source, total, correct, score, difficulty, knowledge_gaps, created_at
		 FROM quiz_attempts
		 WHERE user_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		userID, historyLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.QuizAttempt
	for rows.Next() {
		var a models.QuizAttempt
		var source sql.NullString
		var gaps []byte
		if err := rows.Scan(&a.ID, &a.UserID, &source, &a.Total, &a.Correct,
			&a.Score, &a.Difficulty, &gaps, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Source = source.String
		if len(gaps) > 0 {
			if err := json.Unmarshal(gaps, &a.KnowledgeGaps); err != nil {
				return nil, fmt.Errorf("decode knowledge gaps: %w", err)
			}
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// ── Report Aggregation ──────────────────────────────────

// Overview summarizes a user's retained history: score trends, weak-spot
// tags, and per-difficulty averages.
func (s *Store) Overview(userID int64) (*models.ReportOverview, error) {
	attempts, err := s.ListAttempts(userID)
	if err != nil {
		return nil, err
	}

	overview := &models.ReportOverview{
		Attempts:            len(attempts),
		AverageByDifficulty: make(map[string]float64),
		TopKnowledgeGaps:    []string{},
	}
	if len(attempts) == 0 {
		return overview, nil
	}

	var sum float64
	diffScores := make(map[string][]float64)
	tagCounts := make(map[string]int)
	var tagOrder []string

	for _, a := range attempts {
		sum += a.Score
		if a.Score > overview.BestScore {
			overview.BestScore = a.Score
		}
		diffScores[string(a.Difficulty)] = append(diffScores[string(a.Difficulty)], a.Score)
		for _, tag := range a.KnowledgeGaps {
			if tag == "" {
				continue
			}
			if tagCounts[tag] == 0 {
				tagOrder = append(tagOrder, tag)
			}
			tagCounts[tag]++
		}
	}

	overview.AverageScore = sum / float64(len(attempts))
	overview.RecentScore = attempts[len(attempts)-1].Score

	for diff, scores := range diffScores {
		var total float64
		for _, v := range scores {
			total += v
		}
		overview.AverageByDifficulty[diff] = total / float64(len(scores))
	}

	sort.SliceStable(tagOrder, func(a, b int) bool {
		return tagCounts[tagOrder[a]] > tagCounts[tagOrder[b]]
	})
	if len(tagOrder) > topGapTags {
		tagOrder = tagOrder[:topGapTags]
	}
	overview.TopKnowledgeGaps = tagOrder

	return overview, nil
}
