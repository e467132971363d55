package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/common"
	"github.com/ternarybob/memoria/internal/interfaces"
	"github.com/ternarybob/memoria/internal/models"
	"github.com/ternarybob/memoria/internal/services/chunker"
)

// ---- in-memory fakes ----

type memStore struct {
	mu       sync.Mutex
	contexts map[string]*models.Context
	files    map[string]*models.File
	sites    map[string]*models.Site
	chunks   map[string]*models.Chunk
}

func newMemStore() *memStore {
	return &memStore{
		contexts: map[string]*models.Context{},
		files:    map[string]*models.File{},
		sites:    map[string]*models.Site{},
		chunks:   map[string]*models.Chunk{},
	}
}

func (m *memStore) ContextStorage() interfaces.ContextStorage { return m }
func (m *memStore) FileStorage() interfaces.FileStorage       { return m }
func (m *memStore) SiteStorage() interfaces.SiteStorage       { return m }
func (m *memStore) ChunkStorage() interfaces.ChunkStorage     { return m }
func (m *memStore) MessageStorage() interfaces.MessageStorage { return nil }
func (m *memStore) KVStorage() interfaces.KeyValueStorage     { return nil }
func (m *memStore) DB() interface{}                           { return nil }
func (m *memStore) Close() error                              { return nil }

func (m *memStore) SaveContext(ctx context.Context, c *models.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[c.ID] = c
	return nil
}

func (m *memStore) GetContext(ctx context.Context, id string) (*models.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contexts[id]
	if !ok {
		return nil, errors.New("context not found")
	}
	return c, nil
}

func (m *memStore) ListContexts(ctx context.Context, userID string) ([]*models.Context, error) {
	return nil, nil
}

func (m *memStore) DeleteContext(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contexts, id)
	return nil
}

func (m *memStore) CountContexts(ctx context.Context) (int, error) { return 0, nil }

func (m *memStore) SaveFile(ctx context.Context, f *models.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *f
	m.files[f.ID] = &clone
	return nil
}

func (m *memStore) GetFile(ctx context.Context, id string) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	clone := *f
	return &clone, nil
}

func (m *memStore) ListFilesByContext(ctx context.Context, contextID string) ([]*models.File, error) {
	return nil, nil
}

func (m *memStore) ListFilesByStatus(ctx context.Context, status models.ProcessingStatus) ([]*models.File, error) {
	return nil, nil
}

func (m *memStore) UpdateFileStatus(ctx context.Context, id string, status models.ProcessingStatus, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return errors.New("file not found")
	}
	f.Status = status
	f.ErrorMessage = errorMessage
	return nil
}

func (m *memStore) CompleteFile(ctx context.Context, id string, content string, chunkCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return errors.New("file not found")
	}
	f.Status = models.StatusCompleted
	f.ErrorMessage = ""
	f.Content = content
	f.ChunkCount = chunkCount
	now := time.Now()
	f.ProcessedAt = &now
	return nil
}

func (m *memStore) DeleteFile(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, id)
	return nil
}

func (m *memStore) DeleteFilesByContext(ctx context.Context, contextID string) error { return nil }
func (m *memStore) CountFilesByContext(ctx context.Context, contextID string) (int, error) {
	return 0, nil
}

func (m *memStore) SaveSite(ctx context.Context, s *models.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *s
	m.sites[s.ID] = &clone
	return nil
}

func (m *memStore) GetSite(ctx context.Context, id string) (*models.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sites[id]
	if !ok {
		return nil, errors.New("site not found")
	}
	clone := *s
	return &clone, nil
}

func (m *memStore) ListSitesByContext(ctx context.Context, contextID string) ([]*models.Site, error) {
	return nil, nil
}

func (m *memStore) ListSitesByStatus(ctx context.Context, status models.ProcessingStatus) ([]*models.Site, error) {
	return nil, nil
}

func (m *memStore) UpdateSiteStatus(ctx context.Context, id string, status models.ProcessingStatus, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sites[id]
	if !ok {
		return errors.New("site not found")
	}
	s.Status = status
	s.ErrorMessage = errorMessage
	return nil
}

func (m *memStore) CompleteSite(ctx context.Context, id string, chunkCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sites[id]
	if !ok {
		return errors.New("site not found")
	}
	s.Status = models.StatusCompleted
	s.ErrorMessage = ""
	s.ChunkCount = chunkCount
	now := time.Now()
	s.ProcessedAt = &now
	return nil
}

func (m *memStore) DeleteSite(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sites, id)
	return nil
}

func (m *memStore) DeleteSitesByContext(ctx context.Context, contextID string) error { return nil }
func (m *memStore) CountSitesByContext(ctx context.Context, contextID string) (int, error) {
	return 0, nil
}

func (m *memStore) SaveChunks(ctx context.Context, chunks []*models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		if (c.FileID == "") == (c.SiteID == "") {
			return errors.New("chunk must reference exactly one parent")
		}
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *memStore) GetChunksByContext(ctx context.Context, contextID string) ([]*models.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Chunk
	for _, c := range m.chunks {
		if c.ContextID == contextID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) GetChunksByFile(ctx context.Context, fileID string) ([]*models.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Chunk
	for _, c := range m.chunks {
		if c.FileID == fileID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) GetChunksBySite(ctx context.Context, siteID string) ([]*models.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Chunk
	for _, c := range m.chunks {
		if c.SiteID == siteID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) DeleteChunksByFile(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.FileID == fileID {
			delete(m.chunks, id)
		}
	}
	return nil
}

func (m *memStore) DeleteChunksBySite(ctx context.Context, siteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.SiteID == siteID {
			delete(m.chunks, id)
		}
	}
	return nil
}

func (m *memStore) DeleteChunksByContext(ctx context.Context, contextID string) error { return nil }

func (m *memStore) CountChunksByContext(ctx context.Context, contextID string) (int, error) {
	return 0, nil
}

// memBlobs is an in-memory blob store enforcing key uniqueness
type memBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: map[string][]byte{}}
}

func (b *memBlobs) Upload(ctx context.Context, key string, r io.Reader) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.blobs[key]; exists {
		return fmt.Errorf("blob already exists: %s", key)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.blobs[key] = data
	return nil
}

func (b *memBlobs) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	return nil
}

func (b *memBlobs) PublicURL(key string) string { return "/blobs/" + key }

// fakeEmbedder returns fixed-dimension vectors, optionally failing
type fakeEmbedder struct {
	dim int
	err error
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, f.dim), nil
}

func (f *fakeEmbedder) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	return f.GenerateEmbedding(ctx, query)
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func (f *fakeEmbedder) ModelName() string                    { return "fake" }
func (f *fakeEmbedder) Dimension() int                       { return f.dim }
func (f *fakeEmbedder) IsAvailable(ctx context.Context) bool { return f.err == nil }

// blockingEmbedder parks the batch call until released so tests can
// interleave other operations with an in-flight pipeline
type blockingEmbedder struct {
	fakeEmbedder
	enterOnce sync.Once
	entered   chan struct{}
	release   chan struct{}
}

func newBlockingEmbedder(dim int) *blockingEmbedder {
	return &blockingEmbedder{
		fakeEmbedder: fakeEmbedder{dim: dim},
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (b *blockingEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	b.enterOnce.Do(func() { close(b.entered) })
	<-b.release
	return b.fakeEmbedder.GenerateEmbeddings(ctx, texts)
}

// statusRecorder captures published status events
type statusRecorder struct {
	mu     sync.Mutex
	events []interfaces.StatusEvent
}

func (r *statusRecorder) Publish(event interfaces.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *statusRecorder) statuses(docID string) []models.ProcessingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ProcessingStatus
	for _, e := range r.events {
		if e.DocumentID == docID {
			out = append(out, e.Status)
		}
	}
	return out
}

// ---- helpers ----

func ingestConfig() *common.IngestConfig {
	return &common.IngestConfig{
		MaxFileSize:  1 << 20,
		AllowedTypes: []string{".txt", ".md", ".pdf"},
		ChunkSize:    200,
		ChunkOverlap: 40,
	}
}

func newTestService(store *memStore, blobs *memBlobs, embedder interfaces.EmbeddingService, status interfaces.StatusPublisher) interfaces.IngestService {
	logger := arbor.NewLogger()
	return NewService(store, blobs, chunker.NewChunker(nil), embedder, status, ingestConfig(), logger)
}

func waitForTerminal(t *testing.T, get func() (models.ProcessingStatus, error)) models.ProcessingStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := get()
		if err == nil && status.IsTerminal() {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("document never reached a terminal status")
	return ""
}

func upload(name, content string) interfaces.FileUpload {
	return interfaces.FileUpload{
		Filename:    name,
		ContentType: "text/plain",
		Size:        int64(len(content)),
		Reader:      strings.NewReader(content),
	}
}

// ---- tests ----

func TestIngestFileCompletes(t *testing.T) {
	store := newMemStore()
	store.SaveContext(context.Background(), &models.Context{ID: "ctx_1", UserID: "user_1"})
	status := &statusRecorder{}
	svc := newTestService(store, newMemBlobs(), &fakeEmbedder{dim: 4}, status)

	text := strings.Repeat("This is a sentence about the topic. ", 30)
	file, err := svc.IngestFile(context.Background(), "ctx_1", "user_1", upload("notes.txt", text))
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if file.Status != models.StatusPending {
		t.Errorf("initial status = %s, want pending", file.Status)
	}
	if file.BlobKey != "user_1/contexts/ctx_1/notes.txt" {
		t.Errorf("blob key = %s", file.BlobKey)
	}

	final := waitForTerminal(t, func() (models.ProcessingStatus, error) {
		f, err := store.GetFile(context.Background(), file.ID)
		if err != nil {
			return "", err
		}
		return f.Status, nil
	})
	if final != models.StatusCompleted {
		t.Fatalf("final status = %s, want completed", final)
	}

	stored, _ := store.GetFile(context.Background(), file.ID)
	if stored.ChunkCount == 0 {
		t.Error("completed file has zero chunk count")
	}
	if stored.Content != text {
		t.Error("extracted text not cached on the completed record")
	}

	chunks, _ := store.GetChunksByFile(context.Background(), file.ID)
	if len(chunks) != stored.ChunkCount {
		t.Errorf("chunk count %d != stored chunks %d", stored.ChunkCount, len(chunks))
	}
	for _, c := range chunks {
		if c.SourceName != "notes.txt" {
			t.Errorf("chunk source name = %q", c.SourceName)
		}
		if len(c.Embedding) != 4 {
			t.Errorf("chunk embedding dim = %d", len(c.Embedding))
		}
	}

	// pending -> processing -> completed, no skipped transition. The
	// completed event lands just after the record write, so poll briefly.
	want := []models.ProcessingStatus{models.StatusPending, models.StatusProcessing, models.StatusCompleted}
	var seen []models.ProcessingStatus
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		seen = status.statuses(file.ID)
		if len(seen) >= len(want) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(seen) != len(want) {
		t.Fatalf("status events = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("status event %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestIngestFileEmbeddingFailureMarksFailed(t *testing.T) {
	store := newMemStore()
	store.SaveContext(context.Background(), &models.Context{ID: "ctx_1"})
	status := &statusRecorder{}
	svc := newTestService(store, newMemBlobs(), &fakeEmbedder{dim: 4, err: errors.New("quota exhausted")}, status)

	file, err := svc.IngestFile(context.Background(), "ctx_1", "user_1", upload("notes.txt", "Some sentence. Another sentence."))
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}

	final := waitForTerminal(t, func() (models.ProcessingStatus, error) {
		f, err := store.GetFile(context.Background(), file.ID)
		if err != nil {
			return "", err
		}
		return f.Status, nil
	})
	if final != models.StatusFailed {
		t.Fatalf("final status = %s, want failed", final)
	}

	stored, _ := store.GetFile(context.Background(), file.ID)
	if !strings.Contains(stored.ErrorMessage, "embedding failed") {
		t.Errorf("error message = %q", stored.ErrorMessage)
	}
}

func TestIngestFileValidation(t *testing.T) {
	store := newMemStore()
	store.SaveContext(context.Background(), &models.Context{ID: "ctx_1"})
	svc := newTestService(store, newMemBlobs(), &fakeEmbedder{dim: 4}, nil)

	tests := []struct {
		name   string
		upload interfaces.FileUpload
	}{
		{"disallowed type", upload("binary.exe", "content")},
		{"empty filename", upload("", "content")},
		{"path traversal", upload("../../etc/passwd.txt", "content")},
		{"oversized", interfaces.FileUpload{Filename: "big.txt", Size: 10 << 20, Reader: strings.NewReader("x")}},
		{"empty content", upload("empty.txt", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.IngestFile(context.Background(), "ctx_1", "user_1", tt.upload); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestIngestFileUnknownContext(t *testing.T) {
	svc := newTestService(newMemStore(), newMemBlobs(), &fakeEmbedder{dim: 4}, nil)

	if _, err := svc.IngestFile(context.Background(), "ctx_missing", "user_1", upload("notes.txt", "content.")); err == nil {
		t.Error("expected error for unknown context")
	}
}

func TestIngestFileDuplicateBlobKey(t *testing.T) {
	store := newMemStore()
	store.SaveContext(context.Background(), &models.Context{ID: "ctx_1"})
	svc := newTestService(store, newMemBlobs(), &fakeEmbedder{dim: 4}, nil)

	if _, err := svc.IngestFile(context.Background(), "ctx_1", "user_1", upload("notes.txt", "First version. More text.")); err != nil {
		t.Fatalf("first upload failed: %v", err)
	}
	if _, err := svc.IngestFile(context.Background(), "ctx_1", "user_1", upload("notes.txt", "Second version. More text.")); err == nil {
		t.Error("expected error for duplicate filename in same context")
	}
}

func TestIngestFilesIsolatesFailures(t *testing.T) {
	store := newMemStore()
	store.SaveContext(context.Background(), &models.Context{ID: "ctx_1"})
	svc := newTestService(store, newMemBlobs(), &fakeEmbedder{dim: 4}, nil)

	files, errs := svc.IngestFiles(context.Background(), "ctx_1", "user_1", []interfaces.FileUpload{
		upload("good.txt", "Valid content here."),
		upload("bad.exe", "nope"),
		upload("also-good.txt", "More valid content."),
	})

	if errs[0] != nil || errs[2] != nil {
		t.Errorf("valid uploads failed: %v, %v", errs[0], errs[2])
	}
	if errs[1] == nil {
		t.Error("invalid upload did not fail")
	}
	if files[0] == nil || files[2] == nil {
		t.Error("valid uploads returned no file records")
	}
}

func TestIngestPageCompletes(t *testing.T) {
	store := newMemStore()
	store.SaveContext(context.Background(), &models.Context{ID: "ctx_1"})
	svc := newTestService(store, newMemBlobs(), &fakeEmbedder{dim: 4}, nil)

	html := `<html><head><title>Interesting Article</title></head>
<body><h1>Heading</h1><p>First paragraph of the article. It has sentences.</p>
<script>ignore.me();</script></body></html>`

	sites, errs := svc.IngestPage(context.Background(), []string{"ctx_1"}, "user_1", "https://example.com/article", "", html)
	if errs[0] != nil {
		t.Fatalf("IngestPage failed: %v", errs[0])
	}
	site := sites[0]
	if site.Title != "Interesting Article" {
		t.Errorf("title = %q", site.Title)
	}
	if strings.Contains(site.ContentMarkdown, "ignore.me") {
		t.Error("script content leaked into markdown")
	}

	final := waitForTerminal(t, func() (models.ProcessingStatus, error) {
		s, err := store.GetSite(context.Background(), site.ID)
		if err != nil {
			return "", err
		}
		return s.Status, nil
	})
	if final != models.StatusCompleted {
		t.Fatalf("final status = %s, want completed", final)
	}

	chunks, _ := store.GetChunksBySite(context.Background(), site.ID)
	if len(chunks) == 0 {
		t.Error("no chunks persisted for site")
	}
	for _, c := range chunks {
		if c.SourceName != "Interesting Article" {
			t.Errorf("chunk source name = %q", c.SourceName)
		}
	}
}

func TestIngestPageMultipleContexts(t *testing.T) {
	store := newMemStore()
	store.SaveContext(context.Background(), &models.Context{ID: "ctx_1"})
	store.SaveContext(context.Background(), &models.Context{ID: "ctx_2"})
	svc := newTestService(store, newMemBlobs(), &fakeEmbedder{dim: 4}, nil)

	html := `<html><head><title>Shared Article</title></head>
<body><p>A paragraph worth keeping. It has sentences.</p></body></html>`

	sites, errs := svc.IngestPage(context.Background(), []string{"ctx_1", "ctx_missing", "ctx_2"}, "user_1", "https://example.com/shared", "", html)

	if errs[0] != nil || errs[2] != nil {
		t.Fatalf("valid contexts failed: %v, %v", errs[0], errs[2])
	}
	if errs[1] == nil {
		t.Error("unknown context did not fail")
	}
	if sites[0] == nil || sites[2] == nil {
		t.Fatal("valid contexts returned no site records")
	}
	if sites[0].ID == sites[2].ID {
		t.Error("contexts share a site record")
	}
	if sites[0].ContextID != "ctx_1" || sites[2].ContextID != "ctx_2" {
		t.Errorf("site context ids = %s, %s", sites[0].ContextID, sites[2].ContextID)
	}

	for _, site := range []*models.Site{sites[0], sites[2]} {
		siteID := site.ID
		final := waitForTerminal(t, func() (models.ProcessingStatus, error) {
			s, err := store.GetSite(context.Background(), siteID)
			if err != nil {
				return "", err
			}
			return s.Status, nil
		})
		if final != models.StatusCompleted {
			t.Errorf("site %s final status = %s, want completed", siteID, final)
		}
		chunks, _ := store.GetChunksBySite(context.Background(), siteID)
		if len(chunks) == 0 {
			t.Errorf("no chunks persisted for site %s", siteID)
		}
	}
}

func TestIngestFileContextDeletedMidFlight(t *testing.T) {
	store := newMemStore()
	store.SaveContext(context.Background(), &models.Context{ID: "ctx_1"})
	status := &statusRecorder{}
	embedder := newBlockingEmbedder(4)
	svc := newTestService(store, newMemBlobs(), embedder, status)

	file, err := svc.IngestFile(context.Background(), "ctx_1", "user_1", upload("notes.txt", "A sentence. Another sentence."))
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}

	// Delete the file and its context while the pipeline is embedding,
	// then let processing finish.
	<-embedder.entered
	store.DeleteFile(context.Background(), file.ID)
	store.DeleteContext(context.Background(), "ctx_1")
	close(embedder.release)

	deadline := time.Now().Add(5 * time.Second)
	var failed bool
	for time.Now().Before(deadline) && !failed {
		for _, s := range status.statuses(file.ID) {
			if s == models.StatusFailed {
				failed = true
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !failed {
		t.Fatal("document never surfaced a failed status")
	}

	if _, err := store.GetFile(context.Background(), file.ID); err == nil {
		t.Error("deleted file record was recreated")
	}
	chunks, _ := store.GetChunksByContext(context.Background(), "ctx_1")
	if len(chunks) != 0 {
		t.Errorf("%d chunks written under deleted context", len(chunks))
	}
}

func TestReprocessFileClearsOldChunks(t *testing.T) {
	store := newMemStore()
	store.SaveContext(context.Background(), &models.Context{ID: "ctx_1"})
	svc := newTestService(store, newMemBlobs(), &fakeEmbedder{dim: 4}, nil)

	file, err := svc.IngestFile(context.Background(), "ctx_1", "user_1", upload("notes.txt", "A sentence. Another sentence. A third one."))
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}

	waitForTerminal(t, func() (models.ProcessingStatus, error) {
		f, err := store.GetFile(context.Background(), file.ID)
		if err != nil {
			return "", err
		}
		return f.Status, nil
	})

	before, _ := store.GetChunksByFile(context.Background(), file.ID)
	if len(before) == 0 {
		t.Fatal("no chunks from initial ingestion")
	}

	if err := svc.ReprocessFile(context.Background(), file.ID); err != nil {
		t.Fatalf("ReprocessFile failed: %v", err)
	}

	waitForTerminal(t, func() (models.ProcessingStatus, error) {
		f, err := store.GetFile(context.Background(), file.ID)
		if err != nil {
			return "", err
		}
		return f.Status, nil
	})

	after, _ := store.GetChunksByFile(context.Background(), file.ID)
	if len(after) != len(before) {
		t.Errorf("reprocess produced %d chunks, initial run produced %d", len(after), len(before))
	}
	// No chunk from the first run survives
	firstRun := map[string]bool{}
	for _, c := range before {
		firstRun[c.ID] = true
	}
	for _, c := range after {
		if firstRun[c.ID] {
			t.Errorf("chunk %s from first run was not cleared", c.ID)
		}
	}
}
