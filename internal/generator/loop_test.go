package generator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/mltutor/backend/internal/models"
)

// scriptedClient returns canned responses in order, cycling when exhausted.
type scriptedClient struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	i := s.calls % len(s.responses)
	s.calls++
	if s.errs != nil && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return &LLMResponse{Content: s.responses[i]}, nil
}

func choiceJSON(stem string) string {
	return fmt.Sprintf(`{"valid": true, "question": %q, "type": "choice", "options": ["选项甲内容", "选项乙内容", "选项丙内容", "选项丁内容"], "correct_answer_index": 1, "explanation": "解析"}`, stem)
}

func booleanJSON(idx int) string {
	return fmt.Sprintf(`{"valid": true, "question": "这是一道判断题的陈述内容？", "type": "boolean", "options": ["正确", "错误"], "correct_answer_index": %d, "explanation": "解析"}`, idx)
}

func testPool() []models.Chunk {
	content := strings.Repeat("支持向量机通过最大化分类间隔来确定决策边界。", 10)
	return []models.Chunk{
		{Content: content, Source: "book.pdf", Page: 12},
		{Content: content + "核技巧将样本映射到高维空间。", Source: "book.pdf", Page: 13},
	}
}

func TestTruthScheduleDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		n         int
		wantFalse int
	}{
		{1, 1},
		{2, 1},
		{4, 2},
		{5, 2},
		{6, 3},
	}

	for _, tt := range tests {
		schedule := TruthSchedule(tt.n, rng)
		if len(schedule) != tt.n {
			t.Fatalf("TruthSchedule(%d) has length %d", tt.n, len(schedule))
		}
		falseCount := 0
		for _, v := range schedule {
			if !v {
				falseCount++
			}
		}
		if falseCount != tt.wantFalse {
			t.Errorf("TruthSchedule(%d): %d false, want %d", tt.n, falseCount, tt.wantFalse)
		}
	}

	if got := TruthSchedule(0, rng); got != nil {
		t.Errorf("TruthSchedule(0) = %v, want nil", got)
	}
}

func TestGenerateChoiceQuota(t *testing.T) {
	client := &scriptedClient{responses: []string{choiceJSON("下列哪一项关于支持向量机的说法是正确的？")}}
	loop := NewLoop(client, 6, 42)

	questions, warning, err := loop.Generate(context.Background(), testPool(), 3, 0, models.DifficultyMedium)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(questions))
	}
	if warning != "" {
		t.Errorf("unexpected warning: %q", warning)
	}
	for _, q := range questions {
		if q.Type != models.QuestionChoice || len(q.Options) != 4 {
			t.Errorf("bad question shape: %+v", q)
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			t.Errorf("correct index out of range: %d", q.CorrectIndex)
		}
		// The shuffle must keep tracking the correct option text
		if q.Options[q.CorrectIndex] != "选项乙内容" {
			t.Errorf("correct option lost in shuffle: %+v", q)
		}
		if q.Source != "book.pdf" {
			t.Errorf("source not carried: %+v", q)
		}
	}
}

func TestGenerateBooleanRespectsSchedule(t *testing.T) {
	// The client always answers "true" (index 0); half the schedule expects
	// false, so those slots keep retrying until the budget runs out.
	client := &scriptedClient{responses: []string{booleanJSON(0)}}
	loop := NewLoop(client, 6, 7)

	questions, warning, err := loop.Generate(context.Background(), testPool(), 0, 4, models.DifficultyEasy)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	trueCount := 0
	for _, q := range questions {
		if q.Type != models.QuestionBoolean {
			t.Fatalf("wrong type: %+v", q)
		}
		if q.CorrectIndex == 0 {
			trueCount++
		}
	}
	// Only the scheduled true slots can accept an always-true client; the
	// two false slots go unfilled.
	if trueCount != len(questions) {
		t.Errorf("accepted boolean with mismatched truth: %+v", questions)
	}
	if len(questions) >= 4 {
		t.Errorf("schedule ignored: %d questions accepted", len(questions))
	}
	if warning == "" {
		t.Error("under-fill produced no warning")
	}
}

func TestGenerateRefusalsDoNotFillQuota(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"valid": false}`}}
	loop := NewLoop(client, 6, 3)

	questions, warning, err := loop.Generate(context.Background(), testPool(), 2, 0, models.DifficultyMedium)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(questions) != 0 {
		t.Errorf("refusals produced questions: %+v", questions)
	}
	if warning == "" {
		t.Error("under-fill produced no warning")
	}
	// Budget is target * multiplier
	if client.calls != 12 {
		t.Errorf("attempt budget = %d calls, want 12", client.calls)
	}
}

func TestGenerateSurvivesServiceErrors(t *testing.T) {
	client := &scriptedClient{
		responses: []string{"", choiceJSON("服务恢复后生成的支持向量机题目？")},
		errs:      []error{&ServiceError{Op: "call", Err: fmt.Errorf("boom")}, nil},
	}
	loop := NewLoop(client, 6, 9)

	questions, _, err := loop.Generate(context.Background(), testPool(), 1, 0, models.DifficultyHard)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(questions) != 1 {
		t.Errorf("got %d questions, want 1", len(questions))
	}
}

func TestGenerateEmptyPool(t *testing.T) {
	client := &scriptedClient{responses: []string{choiceJSON("题干内容足够长吗？")}}
	loop := NewLoop(client, 6, 5)

	// Special pages and boilerplate filter down to nothing
	pool := []models.Chunk{
		{Content: strings.Repeat("目录条目", 50), IsSpecialPage: true},
		{Content: "短", IsSpecialPage: false},
	}
	if _, _, err := loop.Generate(context.Background(), pool, 1, 0, models.DifficultyEasy); err == nil {
		t.Error("empty quizable pool should error")
	}
}

func TestMockClientHonorsTruthHint(t *testing.T) {
	loop := NewLoop(NewMockClient(), 6, 11)

	questions, warning, err := loop.Generate(context.Background(), testPool(), 2, 4, models.DifficultyMedium)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if warning != "" {
		t.Errorf("mock generation under-filled: %q", warning)
	}

	var trueCount, falseCount int
	for _, q := range questions {
		if q.Type != models.QuestionBoolean {
			continue
		}
		if q.CorrectIndex == 0 {
			trueCount++
		} else {
			falseCount++
		}
	}
	if trueCount != 2 || falseCount != 2 {
		t.Errorf("boolean schedule for 4 questions = %d true / %d false, want 2/2", trueCount, falseCount)
	}
}
