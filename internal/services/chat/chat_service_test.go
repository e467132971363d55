package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/memoria/internal/common"
	"github.com/ternarybob/memoria/internal/interfaces"
	"github.com/ternarybob/memoria/internal/models"
)

// fakeLLM streams canned deltas and records the messages it was given
type fakeLLM struct {
	deltas    []string
	streamErr error // delivered as trailing Err delta
	startErr  error // returned from ChatStream itself

	mu       sync.Mutex
	received []interfaces.Message
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return strings.Join(f.deltas, ""), nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, messages []interfaces.Message) (<-chan interfaces.StreamDelta, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}

	f.mu.Lock()
	f.received = messages
	f.mu.Unlock()

	out := make(chan interfaces.StreamDelta)
	go func() {
		defer close(out)
		for _, d := range f.deltas {
			out <- interfaces.StreamDelta{Text: d}
		}
		if f.streamErr != nil {
			out <- interfaces.StreamDelta{Err: f.streamErr}
		}
	}()
	return out, nil
}

func (f *fakeLLM) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeLLM) GetProvider() interfaces.LLMProvider { return interfaces.LLMProviderGemini }

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) systemPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.received {
		if m.Role == "system" {
			return m.Content
		}
	}
	return ""
}

// fakeEmbedder returns a fixed query vector or fails
type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

func (f *fakeEmbedder) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	return f.vector, f.err
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEmbedder) ModelName() string { return "fake" }

func (f *fakeEmbedder) Dimension() int { return len(f.vector) }

func (f *fakeEmbedder) IsAvailable(ctx context.Context) bool { return f.err == nil }

// fakeRetriever serves fixed results
type fakeRetriever struct {
	results []*models.RetrievalResult
	err     error
}

func (f *fakeRetriever) Search(ctx context.Context, contextID string, queryVector []float32, topK int) ([]*models.RetrievalResult, error) {
	return f.results, f.err
}

// memMessages is an in-memory MessageStorage
type memMessages struct {
	mu       sync.Mutex
	messages map[string]*models.Message
}

func newMemMessages() *memMessages {
	return &memMessages{messages: make(map[string]*models.Message)}
}

func (m *memMessages) SaveMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *msg
	if existing, ok := m.messages[msg.ID]; ok {
		clone.CreatedAt = existing.CreatedAt
	} else if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	m.messages[msg.ID] = &clone
	return nil
}

func (m *memMessages) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, errors.New("message not found")
	}
	return msg, nil
}

func (m *memMessages) ListMessagesByContext(ctx context.Context, contextID string, limit int) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Message
	for _, msg := range m.messages {
		if msg.ContextID == contextID {
			result = append(result, msg)
		}
	}
	return result, nil
}

func (m *memMessages) DeleteMessage(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, id)
	return nil
}

func (m *memMessages) DeleteMessagesByContext(ctx context.Context, contextID string) error {
	return nil
}

func (m *memMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func ragConfig() *common.RAGConfig {
	return &common.RAGConfig{
		MinSimilarity: 0.7,
		MaxChunks:     5,
		CharBudget:    4000,
		OverFetch:     2,
	}
}

func relevantResult(name string, similarity float64) *models.RetrievalResult {
	return &models.RetrievalResult{
		Chunk: &models.Chunk{
			ID:         "chunk_1",
			SourceName: name,
			Content:    "Relevant chunk content.",
			Embedding:  []float32{1, 0, 0},
		},
		Similarity: similarity,
	}
}

func drain(t *testing.T, deltas <-chan interfaces.StreamDelta) (string, error) {
	t.Helper()
	var sb strings.Builder
	for d := range deltas {
		if d.Err != nil {
			return sb.String(), d.Err
		}
		sb.WriteString(d.Text)
	}
	return sb.String(), nil
}

func TestAnswerGrounded(t *testing.T) {
	llm := &fakeLLM{deltas: []string{"Grounded ", "answer."}}
	store := newMemMessages()
	svc := NewService(
		llm,
		&fakeEmbedder{vector: []float32{1, 0, 0}},
		&fakeRetriever{results: []*models.RetrievalResult{relevantResult("notes.md", 0.92)}},
		store,
		ragConfig(),
		nil,
	)

	stream, err := svc.Answer(context.Background(), &interfaces.AnswerRequest{
		ContextID: "ctx_1",
		UserID:    "user_1",
		Message:   "What do my notes say?",
		History:   []interfaces.Message{},
	})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	// Meta is present before reading any delta
	if !stream.Meta.HasContext {
		t.Error("expected grounded meta")
	}
	if len(stream.Meta.Chunks) != 1 || stream.Meta.Chunks[0].SourceName != "notes.md" {
		t.Errorf("unexpected meta chunks: %+v", stream.Meta.Chunks)
	}

	answer, err := drain(t, stream.Deltas)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if answer != "Grounded answer." {
		t.Errorf("answer = %q", answer)
	}

	if !strings.Contains(llm.systemPrompt(), "[Source 1: notes.md]") {
		t.Error("system prompt missing source block")
	}

	// User message and completed assistant message are both persisted
	assistant, err := store.GetMessage(context.Background(), stream.MessageID)
	if err != nil {
		t.Fatalf("assistant message not persisted: %v", err)
	}
	if assistant.Content != "Grounded answer." {
		t.Errorf("assistant content = %q", assistant.Content)
	}
	if store.count() != 2 {
		t.Errorf("message count = %d, want 2", store.count())
	}
}

func TestAnswerNoRelevantChunks(t *testing.T) {
	llm := &fakeLLM{deltas: []string{"Ungrounded answer."}}
	svc := NewService(
		llm,
		&fakeEmbedder{vector: []float32{1, 0, 0}},
		&fakeRetriever{results: []*models.RetrievalResult{relevantResult("notes.md", 0.3)}},
		newMemMessages(),
		ragConfig(),
		nil,
	)

	stream, err := svc.Answer(context.Background(), &interfaces.AnswerRequest{
		ContextID: "ctx_1",
		Message:   "Unrelated question",
		History:   []interfaces.Message{},
	})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	if stream.Meta.HasContext {
		t.Error("expected empty meta for below-threshold results")
	}
	if len(stream.Meta.Chunks) != 0 {
		t.Errorf("meta chunks = %d, want 0", len(stream.Meta.Chunks))
	}

	if _, err := drain(t, stream.Deltas); err != nil {
		t.Fatalf("stream error: %v", err)
	}

	if !strings.Contains(llm.systemPrompt(), "No relevant saved context was found") {
		t.Error("system prompt missing no-context disclosure")
	}
}

func TestAnswerEmbeddingFailureFallsBack(t *testing.T) {
	llm := &fakeLLM{deltas: []string{"Still ", "answered."}}
	svc := NewService(
		llm,
		&fakeEmbedder{err: errors.New("embedding endpoint down")},
		&fakeRetriever{},
		newMemMessages(),
		ragConfig(),
		nil,
	)

	stream, err := svc.Answer(context.Background(), &interfaces.AnswerRequest{
		ContextID: "ctx_1",
		Message:   "hello",
		History:   []interfaces.Message{},
	})
	if err != nil {
		t.Fatalf("Answer must not fail on retrieval errors: %v", err)
	}

	if stream.Meta.HasContext || len(stream.Meta.Chunks) != 0 {
		t.Errorf("expected explicit empty meta, got %+v", stream.Meta)
	}
	if stream.Meta.TotalRelevantChunks != 0 || stream.Meta.AverageSimilarity != 0 {
		t.Errorf("empty meta has non-zero stats: %+v", stream.Meta)
	}

	answer, err := drain(t, stream.Deltas)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if answer != "Still answered." {
		t.Errorf("answer = %q", answer)
	}
}

func TestAnswerSearchFailureFallsBack(t *testing.T) {
	llm := &fakeLLM{deltas: []string{"ok"}}
	svc := NewService(
		llm,
		&fakeEmbedder{vector: []float32{1, 0, 0}},
		&fakeRetriever{err: errors.New("store down")},
		newMemMessages(),
		ragConfig(),
		nil,
	)

	stream, err := svc.Answer(context.Background(), &interfaces.AnswerRequest{
		ContextID: "ctx_1",
		Message:   "hello",
		History:   []interfaces.Message{},
	})
	if err != nil {
		t.Fatalf("Answer must not fail on search errors: %v", err)
	}
	if stream.Meta.HasContext {
		t.Error("expected empty meta")
	}
	drain(t, stream.Deltas)
}

func TestAnswerStreamFailureDeletesAssistantMessage(t *testing.T) {
	llm := &fakeLLM{deltas: []string{"partial "}, streamErr: errors.New("provider dropped")}
	store := newMemMessages()
	svc := NewService(
		llm,
		&fakeEmbedder{vector: []float32{1, 0, 0}},
		&fakeRetriever{},
		store,
		ragConfig(),
		nil,
	)

	stream, err := svc.Answer(context.Background(), &interfaces.AnswerRequest{
		ContextID: "ctx_1",
		Message:   "hello",
		History:   []interfaces.Message{},
	})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	_, streamErr := drain(t, stream.Deltas)
	if streamErr == nil {
		t.Fatal("expected stream error")
	}

	// Only the user message survives
	if _, err := store.GetMessage(context.Background(), stream.MessageID); err == nil {
		t.Error("incomplete assistant message was not deleted")
	}
	if store.count() != 1 {
		t.Errorf("message count = %d, want 1", store.count())
	}
}

func TestAnswerStartFailure(t *testing.T) {
	store := newMemMessages()
	svc := NewService(
		&fakeLLM{startErr: errors.New("no provider")},
		&fakeEmbedder{vector: []float32{1, 0, 0}},
		&fakeRetriever{},
		store,
		ragConfig(),
		nil,
	)

	_, err := svc.Answer(context.Background(), &interfaces.AnswerRequest{
		ContextID: "ctx_1",
		Message:   "hello",
		History:   []interfaces.Message{},
	})
	if err == nil {
		t.Fatal("expected error when stream cannot start")
	}

	// Assistant placeholder cleaned up, user message kept
	if store.count() != 1 {
		t.Errorf("message count = %d, want 1", store.count())
	}
}

func TestAnswerValidation(t *testing.T) {
	svc := NewService(&fakeLLM{}, &fakeEmbedder{}, &fakeRetriever{}, newMemMessages(), ragConfig(), nil)

	if _, err := svc.Answer(context.Background(), &interfaces.AnswerRequest{ContextID: "ctx_1"}); err == nil {
		t.Error("expected error for empty message")
	}
	if _, err := svc.Answer(context.Background(), &interfaces.AnswerRequest{Message: "hi"}); err == nil {
		t.Error("expected error for empty context ID")
	}
}
