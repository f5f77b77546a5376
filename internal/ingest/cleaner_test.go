package ingest

import (
	"strings"
	"testing"

	"github.com/mltutor/backend/internal/models"
)

func TestCleanPageCollapsesCJKGaps(t *testing.T) {
	got := CleanPage("机 器 学 习 是 一 门 学 科", models.PageContent)
	if !strings.Contains(got, "机器学习是一门学科") {
		t.Errorf("CJK gaps not collapsed: %q", got)
	}
}

func TestCleanPageMarksFormulas(t *testing.T) {
	got := CleanPage("损失函数定义如 ( 3.12 ) 所示", models.PageContent)
	if !strings.Contains(got, "【公式3.12】") {
		t.Errorf("formula reference not marked: %q", got)
	}
}

func TestCleanPageMarksTheorems(t *testing.T) {
	got := CleanPage("由此可得定理3.1的结论", models.PageContent)
	if !strings.Contains(got, "【定理3.1】") {
		t.Errorf("theorem not marked: %q", got)
	}

	// A keyword already inside a marker stays single-wrapped
	again := CleanPage(got, models.PageContent)
	if strings.Count(again, "【定理3.1】") != strings.Count(got, "【定理3.1】") {
		t.Errorf("theorem marker duplicated on re-clean: %q", again)
	}
}

func TestCleanPageStripsMarkersOnTOC(t *testing.T) {
	got := CleanPage("目录【定理3.1】第一章", models.PageTOC)
	if strings.Contains(got, "【定理") {
		t.Errorf("marker not stripped on toc page: %q", got)
	}
}

func TestCleanPageOCRFixes(t *testing.T) {
	got := CleanPage("设 BA 目标函数，sk 最小值", models.PageContent)
	if strings.Contains(got, "BA") || strings.Contains(got, "sk") {
		t.Errorf("OCR artifacts not fixed: %q", got)
	}
	if !strings.Contains(got, "为") || !strings.Contains(got, "求") {
		t.Errorf("OCR replacements missing: %q", got)
	}
}

func TestCleanPagePadsOperators(t *testing.T) {
	got := CleanPage("y=wx+b", models.PageContent)
	if !strings.Contains(got, "y = wx+b") {
		t.Errorf("operator not padded: %q", got)
	}
}

func TestCleanPageStripsChapterHeadingsAndPageNumbers(t *testing.T) {
	text := "第 3 章 线性模型\nLASSO 回归试图学得一个稀疏的线性组合预测函数。\n42\n"
	got := CleanPage(text, models.PageContent)
	if strings.Contains(got, "第 3 章") {
		t.Errorf("chapter heading not stripped: %q", got)
	}
	if strings.Contains(got, "42") {
		t.Errorf("standalone page number not stripped: %q", got)
	}
	if !strings.Contains(got, "LASSO") {
		t.Errorf("body text lost: %q", got)
	}
}

func TestCleanPageIdempotent(t *testing.T) {
	texts := []string{
		"机 器 学 习 中，若 y=wx+b，则由定理2.3可知损失收敛。\n\n\n结论如 ( 2.4 ) 所示。",
		"这是 一段 普通 的 中文 内容，没有 特殊 标记。",
	}
	for _, text := range texts {
		once := CleanPage(text, models.PageContent)
		twice := CleanPage(once, models.PageContent)
		if once != twice {
			t.Errorf("cleaning is not a fixed point:\n once: %q\ntwice: %q", once, twice)
		}
	}
}

func TestCleanPagesDropsShortPages(t *testing.T) {
	long := strings.Repeat("梯度下降沿负梯度方向迭代更新参数。", 10)
	// 45 characters but over 100 bytes: the page minimum counts characters,
	// not bytes.
	shortCJK := strings.Repeat("卷积核提取局部特征", 5)
	pages := []models.Page{
		{Text: "太短", Number: 1, Source: "book.pdf"},
		{Text: shortCJK, Number: 2, Source: "book.pdf"},
		{Text: long, Number: 3, Source: "book.pdf"},
	}
	cleaned := CleanPages(pages)
	if len(cleaned) != 1 {
		t.Fatalf("CleanPages kept %d pages, want 1", len(cleaned))
	}
	if cleaned[0].Page.Number != 3 {
		t.Errorf("kept page %d, want 3", cleaned[0].Page.Number)
	}
}

func TestDetectChapter(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"第 3 章 线性模型\n正文内容", "3"},
		{"第12章 强化学习", "12"},
		{"没有章节标记的正文", ""},
	}
	for _, tt := range tests {
		if got := detectChapter(tt.text); got != tt.want {
			t.Errorf("detectChapter(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
