package chat

import (
	"strings"
	"testing"

	"github.com/ternarybob/memoria/internal/models"
)

func selectedResult(name, content string, similarity float64) *models.RetrievalResult {
	return &models.RetrievalResult{
		Chunk: &models.Chunk{
			ID:         "chunk_test",
			SourceName: name,
			Content:    content,
		},
		Similarity: similarity,
	}
}

func TestComposePromptWithSources(t *testing.T) {
	selected := []*models.RetrievalResult{
		selectedResult("notes.md", "First chunk text.", 0.95),
		selectedResult("report.pdf", "Second chunk text.", 0.812),
	}

	prompt := ComposePrompt(selected, true)

	if !strings.Contains(prompt, "[Source 1: notes.md] (Relevance: 95.0%)") {
		t.Errorf("missing first source block:\n%s", prompt)
	}
	if !strings.Contains(prompt, "[Source 2: report.pdf] (Relevance: 81.2%)") {
		t.Errorf("missing second source block:\n%s", prompt)
	}
	if !strings.Contains(prompt, "First chunk text.") || !strings.Contains(prompt, "Second chunk text.") {
		t.Error("chunk contents missing from prompt")
	}
	if !strings.Contains(prompt, "---") {
		t.Error("source blocks not separated by horizontal rule")
	}
}

func TestComposePromptUnknownSource(t *testing.T) {
	selected := []*models.RetrievalResult{
		selectedResult("", "Anonymous chunk.", 0.9),
	}

	prompt := ComposePrompt(selected, true)

	if !strings.Contains(prompt, "[Source 1: Unknown source]") {
		t.Errorf("unnamed source not labeled Unknown source:\n%s", prompt)
	}
}

func TestComposePromptNoContextDisclosure(t *testing.T) {
	for _, tc := range []struct {
		name       string
		selected   []*models.RetrievalResult
		hasContext bool
	}{
		{"hasContext false", []*models.RetrievalResult{selectedResult("a", "b", 0.9)}, false},
		{"empty selection", nil, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			prompt := ComposePrompt(tc.selected, tc.hasContext)

			if !strings.Contains(prompt, "No relevant saved context was found") {
				t.Errorf("missing no-context disclosure:\n%s", prompt)
			}
			if strings.Contains(prompt, "[Source") {
				t.Error("ungrounded prompt should not contain source blocks")
			}
		})
	}
}

func TestComposePromptNoTrailingSeparator(t *testing.T) {
	prompt := ComposePrompt([]*models.RetrievalResult{selectedResult("a", "text", 0.9)}, true)

	if strings.HasSuffix(prompt, "---") || strings.HasSuffix(prompt, "\n\n") {
		t.Errorf("prompt has trailing separator: %q", prompt[len(prompt)-20:])
	}
}
