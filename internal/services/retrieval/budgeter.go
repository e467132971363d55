package retrieval

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/memoria/internal/models"
)

// minTruncationSpace is the smallest remaining budget worth filling with a
// truncated chunk; anything less produces an unreadable fragment.
const minTruncationSpace = 200

// ellipsis marks a truncated chunk; its length counts against the budget
const ellipsis = "..."

// BudgetOptions control how ranked results are fit to the prompt budget
type BudgetOptions struct {
	// MinSimilarity drops results scoring below it
	MinSimilarity float64

	// MaxChunks caps how many results are selected
	MaxChunks int

	// CharBudget caps the total selected content length in characters
	CharBudget int
}

// BudgetStats describes the selection for retrieval metadata
type BudgetStats struct {
	// TotalRelevant counts results above the threshold before the cap
	TotalRelevant int

	// AverageSimilarity is the mean score of the selected set
	AverageSimilarity float64
}

// Budget filters ranked results to those above the relevance threshold and
// greedily packs whole chunks into the character budget. When the next chunk
// would overflow but meaningful space remains, a truncated copy ending in an
// ellipsis is included and selection stops there.
func Budget(results []*models.RetrievalResult, opts BudgetOptions) ([]*models.RetrievalResult, BudgetStats) {
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = 5
	}
	if opts.CharBudget <= 0 {
		opts.CharBudget = 4000
	}

	relevant := make([]*models.RetrievalResult, 0, len(results))
	for _, r := range results {
		if r.Similarity >= opts.MinSimilarity {
			relevant = append(relevant, r)
		}
	}

	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].Similarity > relevant[j].Similarity
	})

	stats := BudgetStats{TotalRelevant: len(relevant)}

	var selected []*models.RetrievalResult
	used := 0

	for _, r := range relevant {
		if len(selected) >= opts.MaxChunks {
			break
		}

		content := r.Chunk.Content
		if used+len(content) <= opts.CharBudget {
			selected = append(selected, r)
			used += len(content)
			continue
		}

		// Chunk would overflow; truncate into the remaining space if it is
		// still meaningful, then stop either way. The ellipsis counts
		// against the budget and the cut lands on a rune boundary.
		remaining := opts.CharBudget - used
		if remaining > minTruncationSpace {
			cut := remaining - len(ellipsis)
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			truncated := *r.Chunk
			truncated.Content = strings.TrimSpace(content[:cut]) + ellipsis
			selected = append(selected, &models.RetrievalResult{
				Chunk:      &truncated,
				Similarity: r.Similarity,
				Truncated:  true,
			})
		}
		break
	}

	if len(selected) > 0 {
		var sum float64
		for _, r := range selected {
			sum += r.Similarity
		}
		stats.AverageSimilarity = sum / float64(len(selected))
	}

	return selected, stats
}
