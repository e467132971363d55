package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/common"
	"github.com/ternarybob/memoria/internal/interfaces"
	"google.golang.org/genai"
)

// GeminiService implements the LLMService interface using the Google genai
// SDK. It provides both embeddings and chat completions.
type GeminiService struct {
	config    *common.GeminiConfig
	embedDim  int
	logger    arbor.ILogger
	client    *genai.Client
	timeout   time.Duration
	maxTokens int
}

// convertMessagesToGemini converts []interfaces.Message to Gemini Content format.
// System messages are extracted separately for use with SystemInstruction.
// Returns the user/model messages, the first system message content (if any),
// and an error when no user message is present.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		var geminiRole string
		switch msg.Role {
		case "assistant":
			geminiRole = genai.RoleModel
		case "user":
			geminiRole = genai.RoleUser
		default:
			geminiRole = genai.RoleUser
		}

		part := genai.NewPartFromText(msg.Content)
		contents = append(contents, &genai.Content{
			Role:  geminiRole,
			Parts: []*genai.Part{part},
		})
	}

	return contents, systemText, nil
}

// NewGeminiService creates a new Gemini LLM service instance.
//
// API key resolution order: environment -> KV store -> config. The embedding
// dimension is taken from the embeddings configuration so the provider output
// always matches what the chunk store expects.
func NewGeminiService(config *common.Config, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (*GeminiService, error) {
	ctx := context.Background()
	apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "gemini_api_key", config.Gemini.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Gemini API key is required (set via GEMINI_API_KEY, MEMORIA_GEMINI_API_KEY, or gemini.api_key in config): %w", err)
	}

	// Set default model names if not specified
	if config.Gemini.EmbedModel == "" {
		config.Gemini.EmbedModel = "gemini-embedding-001"
	}
	if config.Gemini.Model == "" {
		config.Gemini.Model = "gemini-2.5-flash"
	}

	timeout, err := time.ParseDuration(config.Gemini.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Gemini.Timeout, err)
	}

	maxTokens := config.Gemini.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:    &config.Gemini,
		embedDim:  config.Embeddings.Dimension,
		logger:    logger,
		client:    client,
		timeout:   timeout,
		maxTokens: maxTokens,
	}

	logger.Info().
		Str("embed_model", config.Gemini.EmbedModel).
		Str("chat_model", config.Gemini.Model).
		Int("embed_dimension", service.embedDim).
		Dur("timeout", timeout).
		Msg("Gemini LLM service initialized successfully")

	return service, nil
}

// Embed generates an embedding vector for the given text at the configured
// output dimensionality.
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewProviderError("gemini", OpEmbed, fmt.Errorf("text cannot be empty"))
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()

	embedding, err := s.generateEmbedding(timeoutCtx, text)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("text_length", len(text)).
			Msg("Embedding generation failed")
		return nil, NewProviderError("gemini", OpEmbed, err)
	}

	s.logger.Debug().
		Int("text_length", len(text)).
		Int("embedding_dim", len(embedding)).
		Dur("duration", time.Since(startTime)).
		Msg("Embedding generation completed")

	return embedding, nil
}

// Chat generates a completion response based on the conversation history.
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", NewProviderError("gemini", OpCompletion, fmt.Errorf("messages cannot be empty"))
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()

	response, err := s.generateCompletion(timeoutCtx, messages)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("message_count", len(messages)).
			Msg("Chat completion failed")
		return "", NewProviderError("gemini", OpCompletion, err)
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", len(response)).
		Dur("duration", time.Since(startTime)).
		Msg("Chat completion completed")

	return response, nil
}

// ChatStream issues a streaming completion. Deltas are forwarded as they
// arrive; a provider error terminates the channel with a single Err delta.
// Cancelling ctx aborts the underlying call.
func (s *GeminiService) ChatStream(ctx context.Context, messages []interfaces.Message) (<-chan interfaces.StreamDelta, error) {
	if len(messages) == 0 {
		return nil, NewProviderError("gemini", OpCompletion, fmt.Errorf("messages cannot be empty"))
	}

	geminiContents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return nil, NewProviderError("gemini", OpCompletion, err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(s.config.Temperature),
		MaxOutputTokens: int32(s.maxTokens),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	out := make(chan interfaces.StreamDelta)

	common.SafeGo(s.logger, "geminiChatStream", func() {
		defer close(out)

		for resp, err := range s.client.Models.GenerateContentStream(ctx, s.config.Model, geminiContents, config) {
			if err != nil {
				sendDelta(ctx, out, interfaces.StreamDelta{Err: NewProviderError("gemini", OpCompletion, err)})
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !sendDelta(ctx, out, interfaces.StreamDelta{Text: text}) {
				return
			}
		}
	})

	return out, nil
}

// HealthCheck verifies the service can reach both models with short probes.
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("genai client is not initialized")
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	embedding, err := s.generateEmbedding(healthCtx, "health check probe")
	if err != nil {
		return fmt.Errorf("embedding probe failed: %w", err)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding probe returned empty vector")
	}

	response, err := s.generateCompletion(healthCtx, []interfaces.Message{{Role: "user", Content: "ping"}})
	if err != nil {
		return fmt.Errorf("chat probe failed: %w", err)
	}
	if len(strings.TrimSpace(response)) == 0 {
		return fmt.Errorf("chat probe returned empty response")
	}

	s.logger.Debug().
		Str("embed_model", s.config.EmbedModel).
		Str("chat_model", s.config.Model).
		Msg("Gemini LLM service health check passed")

	return nil
}

// GetProvider returns the provider identity
func (s *GeminiService) GetProvider() interfaces.LLMProvider {
	return interfaces.LLMProviderGemini
}

// Close releases the client reference. The genai client needs no explicit
// shutdown beyond this.
func (s *GeminiService) Close() error {
	s.logger.Debug().Msg("Closing Gemini LLM service")
	s.client = nil
	return nil
}

// generateEmbedding calls the embedding model with the configured output
// dimensionality and validates the returned vector length.
func (s *GeminiService) generateEmbedding(ctx context.Context, text string) ([]float32, error) {
	outputDim := int32(s.embedDim)
	embeddingConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	result, err := s.client.Models.EmbedContent(ctx, s.config.EmbedModel, []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, embeddingConfig)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	var embedding []float32
	if result != nil && len(result.Embeddings) > 0 {
		embedding = result.Embeddings[0].Values
	}

	if embedding == nil {
		return nil, fmt.Errorf("no embedding returned from API")
	}

	if len(embedding) != s.embedDim {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.embedDim, len(embedding))
	}

	return embedding, nil
}

// generateCompletion calls the chat model and extracts the first candidate's
// text parts.
func (s *GeminiService) generateCompletion(ctx context.Context, messages []interfaces.Message) (string, error) {
	geminiContents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(s.config.Temperature),
		MaxOutputTokens: int32(s.maxTokens),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.config.Model, geminiContents, config)
	if err != nil {
		return "", fmt.Errorf("chat generation failed: %w", err)
	}

	var response strings.Builder
	if resp != nil && len(resp.Candidates) > 0 {
		for _, candidate := range resp.Candidates {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from chat model")
	}

	return response.String(), nil
}
