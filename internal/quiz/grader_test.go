package quiz

import (
	"strings"
	"testing"

	"github.com/mltutor/backend/internal/models"
)

func choiceQuestion(stem string, options []string, correct int) models.QuizQuestion {
	return models.QuizQuestion{
		Stem:         stem,
		Options:      options,
		CorrectIndex: correct,
		Type:         models.QuestionChoice,
		Difficulty:   models.DifficultyMedium,
	}
}

func booleanQuestion(stem string, correct int) models.QuizQuestion {
	return models.QuizQuestion{
		Stem:         stem,
		Options:      []string{"正确", "错误"},
		CorrectIndex: correct,
		Type:         models.QuestionBoolean,
		Difficulty:   models.DifficultyMedium,
	}
}

func TestGradeAnswerCountMismatch(t *testing.T) {
	questions := []models.QuizQuestion{
		choiceQuestion("梯度下降沿什么方向更新参数？", []string{"负梯度方向", "正梯度方向", "随机方向", "零方向"}, 0),
	}

	if _, err := Grade(questions, []string{"负梯度方向", "正梯度方向"}); err == nil {
		t.Fatal("expected error for mismatched answer count")
	}
	if _, err := Grade(nil, nil); err == nil {
		t.Fatal("expected error for empty quiz")
	}
}

func TestResolveAnswer(t *testing.T) {
	options := []string{"A", "B", "C", "D"}

	tests := []struct {
		name   string
		answer string
		want   int
	}{
		{"exact match", "C", 2},
		{"prefix with dot", "c. C", 2},
		{"prefix uppercase", "C. C", 2},
		{"fullwidth prefix", "Ｃ．C", 2},
		{"chinese enumerator", "c、C", 2},
		{"case insensitive body", "b. b", 1},
		{"surrounding whitespace", "  D  ", 3},
		{"empty is unanswered", "", -1},
		{"whitespace only is unanswered", "   ", -1},
		{"unknown text is unanswered", "E", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveAnswer(tt.answer, options); got != tt.want {
				t.Errorf("resolveAnswer(%q) = %d, want %d", tt.answer, got, tt.want)
			}
		})
	}
}

func TestResolveAnswerPrefersExactMatch(t *testing.T) {
	// An option that itself looks like a lettered item must win by exact
	// match before any prefix stripping happens.
	options := []string{"A. 过拟合", "B. 欠拟合"}

	if got := resolveAnswer("A. 过拟合", options); got != 0 {
		t.Errorf("exact match = %d, want 0", got)
	}
	if got := resolveAnswer("过拟合", options); got != 0 {
		t.Errorf("normalized match = %d, want 0", got)
	}
}

func TestGradeScoring(t *testing.T) {
	questions := []models.QuizQuestion{
		choiceQuestion("什么是过拟合？", []string{"训练误差低而泛化误差高", "训练误差高", "两者都低", "两者都高"}, 0),
		choiceQuestion("正则化的作用是什么？", []string{"加速训练", "约束模型复杂度", "增大学习率", "减少数据"}, 1),
		booleanQuestion("Dropout 在推理阶段仍然随机丢弃神经元。", 1),
		booleanQuestion("批量归一化可以缓解内部协变量偏移。", 0),
	}
	answers := []string{
		"训练误差低而泛化误差高", // correct
		"加速训练",        // wrong
		"",            // unanswered
		"正确",          // correct
	}

	grade, err := Grade(questions, answers)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}

	if grade.Total != 4 || grade.Correct != 2 || grade.Unanswered != 1 {
		t.Errorf("totals = %d/%d correct, %d unanswered", grade.Correct, grade.Total, grade.Unanswered)
	}
	if grade.Score != 50.0 {
		t.Errorf("score = %.2f, want 50.00", grade.Score)
	}
	if grade.DifficultyLabel != "中等" {
		t.Errorf("difficulty label = %q, want 中等", grade.DifficultyLabel)
	}
	if got := grade.AccuracyByType["choice"]; got != 50.0 {
		t.Errorf("choice accuracy = %.2f, want 50.00", got)
	}
	if got := grade.AccuracyByType["boolean"]; got != 50.0 {
		t.Errorf("boolean accuracy = %.2f, want 50.00", got)
	}

	// The unanswered boolean must not be marked incorrect.
	item := grade.Items[2]
	if !item.Unanswered || item.IsCorrect {
		t.Errorf("unanswered item: unanswered=%v correct=%v", item.Unanswered, item.IsCorrect)
	}
	if item.ResolvedIndex != -1 {
		t.Errorf("unanswered resolved index = %d, want -1", item.ResolvedIndex)
	}
}

func TestGradeDifficultyLabels(t *testing.T) {
	tests := []struct {
		correct, total int
		want           string
	}{
		{4, 5, "简单"},
		{5, 5, "简单"},
		{3, 5, "中等"},
		{2, 5, "困难"},
		{0, 5, "困难"},
	}
	for _, tt := range tests {
		if got := difficultyLabel(tt.correct, tt.total); got != tt.want {
			t.Errorf("difficultyLabel(%d, %d) = %q, want %q", tt.correct, tt.total, got, tt.want)
		}
	}
}

func TestGapKeywordsFromWrongAnswersOnly(t *testing.T) {
	items := []models.QuizResultItem{
		{Stem: "反向传播算法如何计算梯度？", IsCorrect: false, Unanswered: false},
		{Stem: "反向传播需要链式法则。", IsCorrect: false, Unanswered: false},
		{Stem: "什么是 SGD 优化器？", IsCorrect: true},
		{Stem: "卷积核的作用是什么？", IsCorrect: false, Unanswered: true},
	}

	keywords := GapKeywords(items, 5)
	if len(keywords) == 0 {
		t.Fatal("expected keywords from wrong answers")
	}
	// Han runs are extracted whole; punctuation bounds the terms.
	want := map[string]bool{
		"反向传播算法如何计算梯度": true,
		"反向传播需要链式法则":   true,
	}
	for term := range want {
		found := false
		for _, kw := range keywords {
			if kw == term {
				found = true
			}
		}
		if !found {
			t.Errorf("keywords %v missing %q", keywords, term)
		}
	}
	for _, kw := range keywords {
		if kw == "SGD" {
			t.Error("keyword from a correct answer leaked into gaps")
		}
		if strings.Contains(kw, "卷积") {
			t.Error("keyword from an unanswered question leaked into gaps")
		}
	}
}

func TestGradeKnowledgeGapDescriptions(t *testing.T) {
	questions := []models.QuizQuestion{
		choiceQuestion("损失函数的梯度为零意味着什么？", []string{"到达驻点", "到达最优", "过拟合", "欠拟合"}, 0),
		booleanQuestion("学习率越大收敛越快且越稳定。", 1),
	}
	answers := []string{"过拟合", "正确"}

	grade, err := Grade(questions, answers)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if len(grade.KnowledgeGaps) == 0 {
		t.Fatal("expected knowledge gap descriptions for an all-wrong quiz")
	}
	if !strings.HasPrefix(grade.KnowledgeGaps[0], "涉及以下概念：") {
		t.Errorf("first gap = %q, want concept summary", grade.KnowledgeGaps[0])
	}

	var sawChoice, sawBoolean bool
	for _, gap := range grade.KnowledgeGaps {
		if strings.Contains(gap, "选择题错误较多") {
			sawChoice = true
		}
		if strings.Contains(gap, "判断题错误较多") {
			sawBoolean = true
		}
	}
	if !sawChoice || !sawBoolean {
		t.Errorf("per-type miss counts missing: choice=%v boolean=%v", sawChoice, sawBoolean)
	}
}

func TestGradeAllCorrectHasNoGaps(t *testing.T) {
	questions := []models.QuizQuestion{
		booleanQuestion("交叉熵常用于分类任务。", 0),
	}
	grade, err := Grade(questions, []string{"正确"})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if len(grade.KnowledgeGaps) != 0 {
		t.Errorf("gaps = %v, want none", grade.KnowledgeGaps)
	}
	if grade.Score != 100.0 || grade.DifficultyLabel != "简单" {
		t.Errorf("score=%.2f label=%q", grade.Score, grade.DifficultyLabel)
	}
}
