package retrieval

import (
	"context"
	"testing"

	"github.com/mltutor/backend/internal/models"
)

type fakeDense struct {
	byQuery map[string][]models.Chunk
	calls   []string
}

func (f *fakeDense) Search(_ context.Context, _, query string, _ int) ([]models.Chunk, error) {
	f.calls = append(f.calls, query)
	return f.byQuery[query], nil
}

type fakeKeyword struct {
	results []models.Chunk
}

func (f *fakeKeyword) Search(query string, n int) []models.Chunk {
	return f.results
}

func TestHybridDedupAcrossVariants(t *testing.T) {
	shared := models.Chunk{Content: "梯度消失是深层网络训练中的常见问题。", Page: 1}
	dense := &fakeDense{byQuery: map[string][]models.Chunk{
		"梯度消失":    {shared, {Content: "仅密集索引返回的文档。", Page: 2}},
		"什么是梯度消失": {shared},
		"请解释梯度消失": {{Content: "  梯度消失是深层网络训练中的常见问题。  ", Page: 9}},
	}}
	keyword := &fakeKeyword{results: []models.Chunk{shared, {Content: "仅关键词索引返回的文档。", Page: 3}}}

	h := NewHybrid(dense, keyword, "kb", 5, 2, true)
	got, err := h.Retrieve(context.Background(), "梯度消失")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	// shared appears once despite surfacing from three variants and two
	// indexes, and whitespace-only differences hash identically.
	if len(got) != 3 {
		t.Fatalf("Retrieve returned %d chunks, want 3: %+v", len(got), got)
	}
	if got[0].Page != 1 {
		t.Errorf("first-seen order broken: first chunk page = %d, want 1", got[0].Page)
	}
}

func TestHybridExpansionDisabled(t *testing.T) {
	dense := &fakeDense{byQuery: map[string][]models.Chunk{}}
	h := NewHybrid(dense, nil, "kb", 5, 2, false)

	if _, err := h.Retrieve(context.Background(), "过拟合"); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(dense.calls) != 1 || dense.calls[0] != "过拟合" {
		t.Errorf("expansion ran while disabled: calls = %v", dense.calls)
	}
}

func TestHybridQueriesAllVariants(t *testing.T) {
	dense := &fakeDense{byQuery: map[string][]models.Chunk{}}
	h := NewHybrid(dense, nil, "kb", 5, 2, true)

	if _, err := h.Retrieve(context.Background(), "梯度消失"); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(dense.calls) != 3 {
		t.Errorf("dense index saw %d variants, want 3: %v", len(dense.calls), dense.calls)
	}
}
