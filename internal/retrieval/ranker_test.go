package retrieval

import (
	"strings"
	"testing"

	"github.com/mltutor/backend/internal/models"
)

func TestRankSkipsSmallPool(t *testing.T) {
	docs := []models.Chunk{
		{Content: "first", Page: 1},
		{Content: "second", Page: 2},
	}
	got := Rank("anything", docs, 4)
	if len(got) != 2 || got[0].Page != 1 || got[1].Page != 2 {
		t.Errorf("small pool reordered or truncated: %+v", got)
	}
}

func TestRankPrefersKeywordHits(t *testing.T) {
	docs := []models.Chunk{
		{Content: "completely unrelated text about cooking recipes", Page: 1},
		{Content: "gradient descent updates parameters along the negative gradient", Page: 2},
		{Content: "another unrelated passage on travel destinations", Page: 3},
	}
	got := Rank("gradient descent", docs, 2)
	if len(got) != 2 {
		t.Fatalf("Rank returned %d docs, want 2", len(got))
	}
	if got[0].Page != 2 {
		t.Errorf("top doc page = %d, want 2", got[0].Page)
	}
}

func TestRankLengthBonusCapped(t *testing.T) {
	short := models.Chunk{Content: "gradient " + strings.Repeat("x", 100), Page: 1}
	long := models.Chunk{Content: strings.Repeat("y", 5000), Page: 2}
	huge := models.Chunk{Content: strings.Repeat("z", 9000), Page: 3}

	// Keyword match (2.0) beats any length advantage once the length bonus
	// saturates at 2.0.
	got := Rank("gradient", []models.Chunk{long, huge, short}, 1)
	if got[0].Page != 1 {
		t.Errorf("length bonus outweighed keyword match: top page = %d", got[0].Page)
	}
}

func TestRankIgnoresRepeatedQueryTerms(t *testing.T) {
	short := models.Chunk{Content: "gradient " + strings.Repeat("x", 100), Page: 1}
	long := models.Chunk{Content: "convolution " + strings.Repeat("y", 5000), Page: 2}

	// One unique hit each; the repeated term must not double-count, so the
	// length bonus decides.
	got := Rank("gradient gradient convolution", []models.Chunk{short, long}, 1)
	if got[0].Page != 2 {
		t.Errorf("repeated query term double-counted: top page = %d", got[0].Page)
	}
}

func TestRankStableOnTies(t *testing.T) {
	a := models.Chunk{Content: strings.Repeat("a", 500), Page: 1}
	b := models.Chunk{Content: strings.Repeat("b", 500), Page: 2}
	c := models.Chunk{Content: strings.Repeat("c", 500), Page: 3}

	got := Rank("nomatch", []models.Chunk{a, b, c}, 2)
	if got[0].Page != 1 || got[1].Page != 2 {
		t.Errorf("tied docs reordered: %+v", got)
	}
}
