package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/common"
	"github.com/ternarybob/memoria/internal/interfaces"
)

// NewLLMService creates the chat completion service for the configured
// default provider.
func NewLLMService(config *common.Config, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (interfaces.LLMService, error) {
	switch config.LLM.DefaultProvider {
	case common.LLMProviderGemini:
		return NewGeminiService(config, kvStorage, logger)
	case common.LLMProviderClaude:
		return NewClaudeService(&config.Claude, kvStorage, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", config.LLM.DefaultProvider)
	}
}

// NewEmbeddingLLM creates the provider used for embeddings. Claude has no
// embedding API, so embeddings always run through Gemini regardless of the
// default chat provider.
func NewEmbeddingLLM(config *common.Config, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (interfaces.LLMService, error) {
	return NewGeminiService(config, kvStorage, logger)
}
