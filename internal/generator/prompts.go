package generator

import (
	"fmt"
	"strings"

	"github.com/mltutor/backend/internal/models"
)

// Prompt context is capped so one oversized chunk cannot blow the token
// budget.
const maxPromptContextChars = 1500

const choiceJSONTemplate = `{
    "valid": true,
    "question": "题目内容",
    "type": "choice",
    "options": ["选项1", "选项2", "选项3", "选项4"],
    "correct_answer_index": 0,
    "explanation": "解析"
}`

const booleanJSONTemplate = `{
    "valid": true,
    "question": "题目内容",
    "type": "boolean",
    "options": ["正确", "错误"],
    "correct_answer_index": 0,
    "explanation": "解析"
}`

// QuestionSystemPrompt builds the system prompt for one question request.
// expectTrue is only consulted for boolean questions; nil means no
// constraint on the statement's truth.
func QuestionSystemPrompt(qType models.QuestionType, difficulty models.Difficulty, expectTrue *bool) string {
	var taskDesc, jsonTemplate, truthHint string

	if qType == models.QuestionChoice {
		taskDesc = "设计一道四选一的选择题"
		jsonTemplate = choiceJSONTemplate
	} else {
		taskDesc = "设计一道判断题"
		jsonTemplate = booleanJSONTemplate
		if expectTrue != nil {
			if *expectTrue {
				truthHint = "\n- 本题的陈述必须是**真实命题**，使得根据教材内容判断时，标准答案为“正确”（即 correct_answer_index 必须为 0）。"
			} else {
				truthHint = "\n- 本题的陈述必须是**错误命题**，使得根据教材内容判断时，标准答案为“错误”（即 correct_answer_index 必须为 1）。" +
					"\n  你可以在教材中的某个正确结论基础上做适度改动，使其变为错误（例如混淆条件、范围、顺序等），但不要凭空编造与教材完全无关的内容。"
			}
		}
	}

	return fmt.Sprintf(`你是一位严苛的计算机科学考试出题专家。

目标：基于给定的教材片段，%s（机器学习 / 深度学习 / 统计学习 相关）。

【重要出题原则】：
1. **必须与教材内容强相关**，不要凭空编造知识点。
2. 避免出“过于细枝末节”的题目（例如只问某个具体数字/百分比）。
3. 避免出“纯记忆型”的题目（例如：某人是谁、在哪一年提出）。
4. 尽量考察「概念理解」「原理机制」「优缺点对比」「适用场景」等。
5. 题干要清晰完整，语言简洁，避免多重否定。
6. 若文本只包含版权信息、纯实验数据、公式堆砌、目录等，判定为不适合出题。

【难度要求】：
- 如果 difficulty = "easy"：偏基础概念，题目直白。
- 如果 difficulty = "medium"：适度考察理解与推理。
- 如果 difficulty = "hard"：可以结合多个概念，同步考察「理解 + 应用」。

当前 difficulty = %q。

【判断题特殊要求】：%s

【输出要求】：
- 必须输出 **JSON 格式**，符合以下字段定义：
%s

- 其中：
  - "valid": 当文本不适合出题时，必须返回 false。
  - "question": 用中文描述题干，不要超过 80 字。
  - "options": 对于 choice 题，保证只有 4 个选项；对于 boolean 题，必须为 ["正确","错误"]。
  - "correct_answer_index": 对应 options 中的正确项下标（0-based）。
  - "explanation": 给出 1-3 句简明解析。
`, taskDesc, string(difficulty), truthHint, jsonTemplate)
}

// BuildQuestionUserPrompt wraps the chunk content for one generation call.
func BuildQuestionUserPrompt(content string) string {
	return fmt.Sprintf(`**参考文本：**
%s

---

请执行任务。如果你认为这段文本不包含有价值的考点（例如只是版权信息或纯实验数据），请务必返回 `+"`{ \"valid\": false }`"+`。`, truncateRunes(content, maxPromptContextChars))
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ── Chat Prompts ───────────────────────────────────────────

// ChatSystemPrompt is the tutoring persona used for retrieval-grounded
// question answering.
func ChatSystemPrompt() string {
	return `你是一位经验丰富的机器学习与深度学习专家教师。你的使命是帮助学习者深入理解复杂的技术概念。

**教学原则：**

1. **准确性是基础**
   - 严格基于提供的参考资料回答
   - 不编造或臆测超出资料范围的内容
   - 遇到资料不足时，诚实说明并建议查阅方向

2. **结构化表达**
   - 使用清晰的标题和层次组织内容
   - 先概述核心概念，再展开细节
   - 善用**加粗**、编号列表、分点说明

3. **深入浅出**
   - 复杂概念先给出直观解释
   - 适时使用类比和实例帮助理解
   - 必要时指出数学原理，但保持可读性

4. **理论联系实践**
   - 说明概念的实际应用场景
   - 指出常见误区和注意事项
   - 提供进一步学习的方向

5. **对话连贯性**（多轮对话时）
   - 参考之前讨论的内容
   - 逐步深入，避免重复`
}

const chatFewShot = `**回答示例：**

问：什么是过拟合？
答：**过拟合**指模型在训练数据上表现很好、但在未见过的数据上表现明显变差的现象。

直观理解：模型"背下了"训练样本的细节和噪声，而不是学到可泛化的规律。

常见应对方法：
1. 增加训练数据
2. 正则化（L1/L2、Dropout）
3. 早停（Early Stopping）
4. 简化模型结构`

// BuildChatUserPrompt assembles context, optional dialogue history, and the
// question into one user message.
func BuildChatUserPrompt(context, question, dialogueContext string, useFewShot bool) string {
	var b strings.Builder

	if useFewShot {
		b.WriteString(chatFewShot)
		b.WriteString("\n\n---\n\n")
	}

	if dialogueContext != "" {
		b.WriteString("**此前的对话：**\n")
		b.WriteString(dialogueContext)
		b.WriteString("\n\n---\n\n")
	}

	b.WriteString("**参考资料：**\n")
	b.WriteString(context)
	b.WriteString("\n\n---\n\n**当前问题：**\n")
	b.WriteString(question)
	b.WriteString("\n\n请基于参考资料作答。")

	return b.String()
}
