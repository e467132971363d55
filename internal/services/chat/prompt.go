package chat

import (
	"fmt"
	"strings"

	"github.com/ternarybob/memoria/internal/models"
)

// groundedInstructions direct the model to answer from the provided sources
const groundedInstructions = `You are a helpful AI assistant answering questions from the user's saved knowledge.

When answering:
1. Answer primarily from the source material provided below
2. Cite sources by name when you use them
3. If the sources do not cover part of the question, say so clearly
4. Be concise and accurate
5. Format your responses in clear, readable Markdown`

// ungroundedInstructions are used when retrieval found nothing relevant.
// The disclosure that no saved context matched is mandatory so the user can
// tell grounded answers from ungrounded ones.
const ungroundedInstructions = `You are a helpful AI assistant.

No relevant saved context was found for this query. Answer from your general knowledge, and begin your response by noting that nothing in the user's saved knowledge matched this question.`

// ComposePrompt builds the system prompt for a chat turn. With context, each
// selected chunk becomes a labeled source block with its relevance score;
// without, the prompt instructs the model to disclose the missing grounding.
func ComposePrompt(selected []*models.RetrievalResult, hasContext bool) string {
	if !hasContext || len(selected) == 0 {
		return ungroundedInstructions
	}

	var sb strings.Builder
	sb.WriteString(groundedInstructions)
	sb.WriteString("\n\nSource material:\n\n")

	for i, r := range selected {
		name := r.Chunk.SourceName
		if name == "" {
			name = "Unknown source"
		}

		sb.WriteString(fmt.Sprintf("[Source %d: %s] (Relevance: %.1f%%)\n", i+1, name, r.Similarity*100))
		sb.WriteString(r.Chunk.Content)
		sb.WriteString("\n\n---\n\n")
	}

	return strings.TrimSuffix(sb.String(), "\n\n---\n\n")
}
