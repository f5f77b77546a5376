package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/mltutor/backend/internal/generator"
	"github.com/mltutor/backend/internal/models"
)

type fakeRetriever struct {
	docs   []models.Chunk
	called int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) ([]models.Chunk, error) {
	f.called++
	return f.docs, nil
}

type capturingClient struct {
	systemPrompt string
	userPrompt   string
	answer       string
}

func (c *capturingClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (*generator.LLMResponse, error) {
	c.systemPrompt = systemPrompt
	c.userPrompt = userPrompt
	return &generator.LLMResponse{Content: c.answer}, nil
}

func TestBuildContext(t *testing.T) {
	docs := []models.Chunk{
		{Content: "梯度下降沿负梯度方向更新参数。", Source: "dl.pdf", Page: 12},
		{Content: "学习率控制每次更新的步长。", Source: "dl.pdf", Page: 13},
	}

	contextBlock, sources := BuildContext(docs)

	if !strings.Contains(contextBlock, "[文档 1]\n梯度下降沿负梯度方向更新参数。") {
		t.Errorf("context missing first block:\n%s", contextBlock)
	}
	if !strings.Contains(contextBlock, "[文档 2]\n学习率控制每次更新的步长。") {
		t.Errorf("context missing second block:\n%s", contextBlock)
	}
	if len(sources) != 2 || sources[0] != "dl.pdf (页码: 12)" || sources[1] != "dl.pdf (页码: 13)" {
		t.Errorf("sources = %v", sources)
	}
}

func TestBuildContextUnknownSource(t *testing.T) {
	_, sources := BuildContext([]models.Chunk{{Content: "x", Page: 3}})
	if sources[0] != "Unknown (页码: 3)" {
		t.Errorf("source label = %q", sources[0])
	}
}

func TestDialogueContext(t *testing.T) {
	long := strings.Repeat("权", 200)

	tests := []struct {
		name  string
		turns []models.ChatTurn
		want  func(t *testing.T, got string)
	}{
		{
			name:  "too short for history",
			turns: []models.ChatTurn{{Role: "user", Content: "什么是过拟合？"}, {Role: "assistant", Content: "……"}},
			want: func(t *testing.T, got string) {
				if got != "" {
					t.Errorf("got %q, want empty", got)
				}
			},
		},
		{
			name: "pairs rendered in order",
			turns: []models.ChatTurn{
				{Role: "user", Content: "什么是过拟合？"},
				{Role: "assistant", Content: "模型记住了噪声。"},
				{Role: "user", Content: "如何缓解？"},
				{Role: "assistant", Content: "正则化与早停。"},
			},
			want: func(t *testing.T, got string) {
				wantStr := "Q: 什么是过拟合？\nA: 模型记住了噪声。\n\nQ: 如何缓解？\nA: 正则化与早停。"
				if got != wantStr {
					t.Errorf("got:\n%q\nwant:\n%q", got, wantStr)
				}
			},
		},
		{
			name: "only last three pairs kept",
			turns: []models.ChatTurn{
				{Role: "user", Content: "第一问"}, {Role: "assistant", Content: "第一答"},
				{Role: "user", Content: "第二问"}, {Role: "assistant", Content: "第二答"},
				{Role: "user", Content: "第三问"}, {Role: "assistant", Content: "第三答"},
				{Role: "user", Content: "第四问"}, {Role: "assistant", Content: "第四答"},
			},
			want: func(t *testing.T, got string) {
				if strings.Contains(got, "第一问") {
					t.Error("oldest pair should be dropped")
				}
				if !strings.Contains(got, "第二问") || !strings.Contains(got, "第四答") {
					t.Errorf("recent pairs missing: %q", got)
				}
			},
		},
		{
			name: "long turns truncated",
			turns: []models.ChatTurn{
				{Role: "user", Content: long},
				{Role: "assistant", Content: long},
				{Role: "user", Content: "追问"},
				{Role: "assistant", Content: "回答"},
			},
			want: func(t *testing.T, got string) {
				if strings.Contains(got, strings.Repeat("权", 151)) {
					t.Error("turn content not truncated to 150 runes")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want(t, DialogueContext(tt.turns))
		})
	}
}

func TestAnswerBuildsGroundedPrompt(t *testing.T) {
	retriever := &fakeRetriever{docs: []models.Chunk{
		{Content: "Dropout 随机丢弃神经元以减少共适应。", Source: "dl.pdf", Page: 88},
	}}
	llm := &capturingClient{answer: "  Dropout 是一种正则化方法。  "}
	svc := NewService(retriever, retriever, llm, 4)

	resp, err := svc.Answer(context.Background(), models.ChatRequest{
		Question: "Dropout 的作用是什么？",
		History: []models.ChatTurn{
			{Role: "user", Content: "什么是正则化？"},
			{Role: "assistant", Content: "约束模型复杂度的手段。"},
			{Role: "user", Content: "有哪些方法？"},
			{Role: "assistant", Content: "L2、Dropout、早停。"},
		},
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if resp.Answer != "Dropout 是一种正则化方法。" {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0] != "dl.pdf (页码: 88)" {
		t.Errorf("sources = %v", resp.Sources)
	}
	if !strings.Contains(llm.userPrompt, "[文档 1]") {
		t.Error("user prompt missing context block")
	}
	if !strings.Contains(llm.userPrompt, "Q: 什么是正则化？") {
		t.Error("user prompt missing dialogue history")
	}
	if !strings.Contains(llm.userPrompt, "Dropout 的作用是什么？") {
		t.Error("user prompt missing the question")
	}
	if !strings.Contains(llm.systemPrompt, "机器学习") {
		t.Error("system prompt is not the teaching persona")
	}
}

func TestAnswerSourceFilterIsRequestScoped(t *testing.T) {
	retriever := &fakeRetriever{docs: []models.Chunk{
		{Content: "统计学习理论。", Source: "stats.pdf", Page: 1},
		{Content: "深度学习优化。", Source: "dl.pdf", Page: 2},
	}}
	llm := &capturingClient{answer: "ok"}
	svc := NewService(retriever, retriever, llm, 4)

	resp, err := svc.Answer(context.Background(), models.ChatRequest{
		Question: "请总结参考资料。",
		Source:   "dl.pdf",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(resp.Sources) != 1 || !strings.HasPrefix(resp.Sources[0], "dl.pdf") {
		t.Errorf("filtered sources = %v", resp.Sources)
	}

	// The next request without a filter sees everything again.
	resp, err = svc.Answer(context.Background(), models.ChatRequest{Question: "请总结参考资料。"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(resp.Sources) != 2 {
		t.Errorf("unfiltered sources = %v", resp.Sources)
	}
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	svc := NewService(&fakeRetriever{}, &fakeRetriever{}, &capturingClient{}, 4)
	if _, err := svc.Answer(context.Background(), models.ChatRequest{Question: "   "}); err == nil {
		t.Error("expected error for empty question")
	}
}

func TestAnswerExpandFlagSelectsRetriever(t *testing.T) {
	expanded := &fakeRetriever{}
	plain := &fakeRetriever{}
	svc := NewService(expanded, plain, &capturingClient{answer: "ok"}, 4)

	off := false
	if _, err := svc.Answer(context.Background(), models.ChatRequest{Question: "问题一", Expand: &off}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if plain.called != 1 || expanded.called != 0 {
		t.Errorf("expand=false used retrievers expanded=%d plain=%d", expanded.called, plain.called)
	}

	if _, err := svc.Answer(context.Background(), models.ChatRequest{Question: "问题二"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if expanded.called != 1 {
		t.Errorf("default did not use expansion retriever")
	}
}
