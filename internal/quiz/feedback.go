package quiz

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mltutor/backend/internal/models"
)

const maxFeedbackItems = 5

const feedbackSystemPrompt = `你是一位高级教学顾问。请生成一份排版清晰的学习诊断报告。

必须包含以下4个部分（严格保留标题）：

### 1. 整体评价
(简明扼要地评价学生的当前水平，100字以内)

### 2. 整体薄弱点
(列出2个最关键的知识漏洞)

### 3. 针对性建议
(给出2条具体可执行的学习建议)

### 4. 下一步行动
(推荐3个值得向AI助教提问的问题，用双引号包裹)
`

// Feedback produces a study-diagnosis write-up for a graded quiz. A perfect
// score gets a canned congratulation; model failures degrade to a minimal
// fallback instead of an error, the grade itself is already delivered.
func (s *Service) Feedback(ctx context.Context, grade *models.QuizGrade) string {
	wrong := wrongItems(grade.Items)
	if len(wrong) == 0 {
		return perfectScoreFeedback(grade.Score)
	}

	userPrompt := buildFeedbackContext(grade, wrong) + "\n请根据以上信息生成诊断报告，注意语言简洁、结构清晰。"

	resp, err := s.llm.Generate(ctx, feedbackSystemPrompt, userPrompt)
	if err != nil {
		log.Warn().Err(err).Msg("study feedback generation failed, using fallback")
		return fallbackFeedback()
	}
	return strings.TrimSpace(resp.Content)
}

func wrongItems(items []models.QuizResultItem) []models.QuizResultItem {
	var wrong []models.QuizResultItem
	for _, item := range items {
		if !item.IsCorrect {
			wrong = append(wrong, item)
		}
	}
	return wrong
}

// buildFeedbackContext summarizes the score and lists up to five missed
// questions with the student's answer and the correct one.
func buildFeedbackContext(grade *models.QuizGrade, wrong []models.QuizResultItem) string {
	if len(wrong) > maxFeedbackItems {
		wrong = wrong[:maxFeedbackItems]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "概况：得分%.1f%%，错%d题。下面是部分错题：\n\n", grade.Score, grade.Total-grade.Correct-grade.Unanswered)

	for i, item := range wrong {
		fmt.Fprintf(&b, "【题目%d】%s\n", i+1, item.Stem)
		answer := item.UserAnswer
		if item.Unanswered {
			answer = "未作答"
		}
		fmt.Fprintf(&b, "学生作答：%s\n", answer)
		fmt.Fprintf(&b, "正确答案：%s\n", item.CorrectText)
		if item.Explanation != "" {
			fmt.Fprintf(&b, "解析：%s\n", item.Explanation)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func perfectScoreFeedback(score float64) string {
	return fmt.Sprintf(`### 1. 整体评价
本次测验你取得了 %.1f%% 的高分，说明你对当前章节的理解非常扎实。

### 2. 核心薄弱点
在统计的范围内，没有明显的薄弱知识点。不过仍建议保持适度练习，巩固已有优势。

### 3. 针对性建议
- 继续按照当前的节奏进行复习和刷题，保持状态。
- 可以尝试做一些综合性更强的题目，模拟真实考试情境。

### 4. 下一步行动
- "请帮我出几道综合难度稍高的练习题"
- "如何检查自己在模型泛化能力上的理解是否深入？"
- "在现有水平下，如何规划未来两周的复习安排？"`, score)
}

func fallbackFeedback() string {
	return "### 1. 整体评价\n请复习错题。\n### 2. 核心薄弱点\n基础概念。\n### 3. 针对性建议\n多看书。\n### 4. 下一步行动\n无。"
}
