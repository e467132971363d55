package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ternarybob/memoria/internal/models"
)

func result(id string, similarity float64, content string) *models.RetrievalResult {
	return &models.RetrievalResult{
		Chunk: &models.Chunk{
			ID:      id,
			Content: content,
		},
		Similarity: similarity,
	}
}

func defaultOpts() BudgetOptions {
	return BudgetOptions{
		MinSimilarity: 0.7,
		MaxChunks:     5,
		CharBudget:    4000,
	}
}

func TestBudgetDropsBelowThreshold(t *testing.T) {
	results := []*models.RetrievalResult{
		result("c1", 0.9, "high"),
		result("c2", 0.69, "below"),
		result("c3", 0.7, "exactly at threshold"),
	}

	selected, stats := Budget(results, defaultOpts())

	if len(selected) != 2 {
		t.Fatalf("got %d selected, want 2", len(selected))
	}
	if stats.TotalRelevant != 2 {
		t.Errorf("TotalRelevant = %d, want 2", stats.TotalRelevant)
	}
	for _, r := range selected {
		if r.Chunk.ID == "c2" {
			t.Error("below-threshold chunk was selected")
		}
	}
}

func TestBudgetSortsByScoreDescending(t *testing.T) {
	results := []*models.RetrievalResult{
		result("c1", 0.75, "a"),
		result("c2", 0.95, "b"),
		result("c3", 0.85, "c"),
	}

	selected, _ := Budget(results, defaultOpts())

	if len(selected) != 3 {
		t.Fatalf("got %d selected, want 3", len(selected))
	}
	for i := 1; i < len(selected); i++ {
		if selected[i].Similarity > selected[i-1].Similarity {
			t.Errorf("selection not sorted descending at %d", i)
		}
	}
}

func TestBudgetCapsChunkCount(t *testing.T) {
	var results []*models.RetrievalResult
	for i := 0; i < 10; i++ {
		results = append(results, result("c", 0.9, "short content"))
	}

	selected, stats := Budget(results, defaultOpts())

	if len(selected) != 5 {
		t.Errorf("got %d selected, want 5", len(selected))
	}
	if stats.TotalRelevant != 10 {
		t.Errorf("TotalRelevant = %d, want 10 (pre-cap)", stats.TotalRelevant)
	}
}

func TestBudgetTruncatesIntoMeaningfulSpace(t *testing.T) {
	opts := BudgetOptions{MinSimilarity: 0.7, MaxChunks: 5, CharBudget: 1000}
	results := []*models.RetrievalResult{
		result("c1", 0.95, strings.Repeat("a", 600)),
		result("c2", 0.90, strings.Repeat("b", 600)),
		result("c3", 0.85, strings.Repeat("c", 600)),
	}

	selected, _ := Budget(results, opts)

	// 600 fits; second 600 overflows but 400 chars remain, so it is truncated
	if len(selected) != 2 {
		t.Fatalf("got %d selected, want 2", len(selected))
	}
	if !selected[1].Truncated {
		t.Error("second chunk should be marked truncated")
	}
	if !strings.HasSuffix(selected[1].Chunk.Content, "...") {
		t.Error("truncated chunk should end with ellipsis")
	}
	if len(selected[1].Chunk.Content) > 400 {
		t.Errorf("truncated content too long: %d", len(selected[1].Chunk.Content))
	}
}

func TestBudgetTotalNeverExceedsCharBudget(t *testing.T) {
	opts := BudgetOptions{MinSimilarity: 0.7, MaxChunks: 5, CharBudget: 1000}
	results := []*models.RetrievalResult{
		result("c1", 0.95, strings.Repeat("a", 700)),
		result("c2", 0.90, strings.Repeat("b", 600)),
	}

	selected, _ := Budget(results, opts)

	total := 0
	for _, r := range selected {
		total += len(r.Chunk.Content)
	}
	// The truncated tail's ellipsis counts against the budget too
	if total > opts.CharBudget {
		t.Errorf("selected content totals %d chars, budget is %d", total, opts.CharBudget)
	}
}

func TestBudgetTruncatesOnRuneBoundary(t *testing.T) {
	opts := BudgetOptions{MinSimilarity: 0.7, MaxChunks: 5, CharBudget: 1000}
	results := []*models.RetrievalResult{
		result("c1", 0.95, strings.Repeat("a", 650)),
		result("c2", 0.90, strings.Repeat("ü", 400)), // two bytes per rune
	}

	selected, _ := Budget(results, opts)

	if len(selected) != 2 {
		t.Fatalf("got %d selected, want 2", len(selected))
	}
	if !utf8.ValidString(selected[1].Chunk.Content) {
		t.Error("truncation split a multi-byte rune")
	}
	total := len(selected[0].Chunk.Content) + len(selected[1].Chunk.Content)
	if total > opts.CharBudget {
		t.Errorf("selected content totals %d chars, budget is %d", total, opts.CharBudget)
	}
}

func TestBudgetStopsWhenRemainingSpaceTooSmall(t *testing.T) {
	opts := BudgetOptions{MinSimilarity: 0.7, MaxChunks: 5, CharBudget: 1000}
	results := []*models.RetrievalResult{
		result("c1", 0.95, strings.Repeat("a", 900)),
		result("c2", 0.90, strings.Repeat("b", 600)),
	}

	selected, _ := Budget(results, opts)

	// Only 100 chars left after the first chunk, below the truncation floor
	if len(selected) != 1 {
		t.Fatalf("got %d selected, want 1", len(selected))
	}
}

func TestBudgetNoFurtherChunksAfterTruncation(t *testing.T) {
	opts := BudgetOptions{MinSimilarity: 0.7, MaxChunks: 5, CharBudget: 1000}
	results := []*models.RetrievalResult{
		result("c1", 0.95, strings.Repeat("a", 600)),
		result("c2", 0.90, strings.Repeat("b", 600)),
		result("c3", 0.85, "tiny"), // would fit, but selection stops at truncation
	}

	selected, _ := Budget(results, opts)

	if len(selected) != 2 {
		t.Fatalf("got %d selected, want 2", len(selected))
	}
}

func TestBudgetAverageSimilarity(t *testing.T) {
	results := []*models.RetrievalResult{
		result("c1", 0.8, "a"),
		result("c2", 0.9, "b"),
	}

	_, stats := Budget(results, defaultOpts())

	want := 0.85
	if diff := stats.AverageSimilarity - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("AverageSimilarity = %v, want %v", stats.AverageSimilarity, want)
	}
}

func TestBudgetEmptyInput(t *testing.T) {
	selected, stats := Budget(nil, defaultOpts())

	if len(selected) != 0 {
		t.Errorf("got %d selected, want 0", len(selected))
	}
	if stats.TotalRelevant != 0 || stats.AverageSimilarity != 0 {
		t.Errorf("stats not zero: %+v", stats)
	}
}
