package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/common"
	"github.com/ternarybob/memoria/internal/interfaces"
	"github.com/ternarybob/memoria/internal/models"
	"github.com/ternarybob/memoria/internal/services/chunker"
)

// Service implements IngestService. Uploads are validated and stored
// synchronously; extraction, chunking, embedding, and chunk persistence run
// in an independent background task per document. One document's failure
// never affects another's.
type Service struct {
	contexts  interfaces.ContextStorage
	files     interfaces.FileStorage
	sites     interfaces.SiteStorage
	chunks    interfaces.ChunkStorage
	blobs     interfaces.BlobStorage
	chunker   *chunker.Chunker
	embedder  interfaces.EmbeddingService
	status    interfaces.StatusPublisher
	extractor *extractor
	config    *common.IngestConfig
	logger    arbor.ILogger
}

// NewService creates a new ingestion service
func NewService(
	storage interfaces.StorageManager,
	blobs interfaces.BlobStorage,
	textChunker *chunker.Chunker,
	embedder interfaces.EmbeddingService,
	status interfaces.StatusPublisher,
	config *common.IngestConfig,
	logger arbor.ILogger,
) interfaces.IngestService {
	return &Service{
		contexts:  storage.ContextStorage(),
		files:     storage.FileStorage(),
		sites:     storage.SiteStorage(),
		chunks:    storage.ChunkStorage(),
		blobs:     blobs,
		chunker:   textChunker,
		embedder:  embedder,
		status:    status,
		extractor: newExtractor(logger),
		config:    config,
		logger:    logger,
	}
}

// IngestFile validates and stores one upload. The returned File is in
// pending state; processing continues in the background.
func (s *Service) IngestFile(ctx context.Context, contextID, userID string, upload interfaces.FileUpload) (*models.File, error) {
	if err := s.validateUpload(upload); err != nil {
		return nil, err
	}

	// Parent must exist before any side effects
	if _, err := s.contexts.GetContext(ctx, contextID); err != nil {
		return nil, fmt.Errorf("context not found: %w", err)
	}

	content, err := s.readUpload(upload)
	if err != nil {
		return nil, err
	}

	file := &models.File{
		ID:          common.NewFileID(),
		ContextID:   contextID,
		UserID:      userID,
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		SizeBytes:   int64(len(content)),
		BlobKey:     fmt.Sprintf("%s/contexts/%s/%s", userID, contextID, upload.Filename),
		Status:      models.StatusPending,
	}

	if err := s.blobs.Upload(ctx, file.BlobKey, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	if err := s.files.SaveFile(ctx, file); err != nil {
		// Roll back the blob so a retried upload does not collide with it
		if delErr := s.blobs.Delete(ctx, file.BlobKey); delErr != nil {
			s.logger.Warn().Err(delErr).Str("blob_key", file.BlobKey).Msg("Failed to clean up blob after record save failure")
		}
		return nil, fmt.Errorf("failed to save file record: %w", err)
	}

	s.publish(interfaces.StatusEvent{
		DocumentID: file.ID,
		Kind:       interfaces.DocumentKindFile,
		ContextID:  contextID,
		Status:     models.StatusPending,
	})

	s.logger.Info().
		Str("file_id", file.ID).
		Str("context_id", contextID).
		Str("filename", file.Filename).
		Int64("size_bytes", file.SizeBytes).
		Msg("File accepted for ingestion")

	common.SafeGo(s.logger, "processFile:"+file.ID, func() {
		s.processFile(context.Background(), file, content)
	})

	return file, nil
}

// IngestFiles processes uploads sequentially. Each file's errors are
// reported positionally; a failed upload does not abort the rest.
func (s *Service) IngestFiles(ctx context.Context, contextID, userID string, uploads []interfaces.FileUpload) ([]*models.File, []error) {
	files := make([]*models.File, len(uploads))
	errs := make([]error, len(uploads))

	for i, upload := range uploads {
		files[i], errs[i] = s.IngestFile(ctx, contextID, userID, upload)
	}

	return files, errs
}

// IngestPage captures a web page into one or more contexts. The HTML is
// extracted once; each target context gets its own independently ingested
// Site. Results and errors are positional, matching contextIDs.
func (s *Service) IngestPage(ctx context.Context, contextIDs []string, userID, pageURL, title, html string) ([]*models.Site, []error) {
	sites := make([]*models.Site, len(contextIDs))
	errs := make([]error, len(contextIDs))

	fail := func(err error) ([]*models.Site, []error) {
		for i := range errs {
			errs[i] = err
		}
		return sites, errs
	}

	if pageURL == "" {
		return fail(fmt.Errorf("page URL is required"))
	}
	if strings.TrimSpace(html) == "" {
		return fail(fmt.Errorf("page HTML is required"))
	}

	extractedTitle, markdown, err := s.extractor.ExtractHTML(html)
	if err != nil {
		return fail(fmt.Errorf("failed to extract page content: %w", err))
	}
	if title == "" {
		title = extractedTitle
	}

	for i, contextID := range contextIDs {
		sites[i], errs[i] = s.capturePage(ctx, contextID, userID, pageURL, title, markdown)
	}
	return sites, errs
}

// capturePage saves one Site under one context and starts its processing.
func (s *Service) capturePage(ctx context.Context, contextID, userID, pageURL, title, markdown string) (*models.Site, error) {
	if _, err := s.contexts.GetContext(ctx, contextID); err != nil {
		return nil, fmt.Errorf("context not found: %w", err)
	}

	site := &models.Site{
		ID:              common.NewSiteID(),
		ContextID:       contextID,
		UserID:          userID,
		URL:             pageURL,
		Title:           title,
		ContentMarkdown: markdown,
		Status:          models.StatusPending,
	}

	if err := s.sites.SaveSite(ctx, site); err != nil {
		return nil, fmt.Errorf("failed to save site record: %w", err)
	}

	s.publish(interfaces.StatusEvent{
		DocumentID: site.ID,
		Kind:       interfaces.DocumentKindSite,
		ContextID:  contextID,
		Status:     models.StatusPending,
	})

	s.logger.Info().
		Str("site_id", site.ID).
		Str("context_id", contextID).
		Str("url", pageURL).
		Msg("Page accepted for ingestion")

	common.SafeGo(s.logger, "processSite:"+site.ID, func() {
		s.processSite(context.Background(), site)
	})

	return site, nil
}

// ReprocessFile re-runs the pipeline for a file. Old chunks are deleted
// first so the re-run cannot duplicate them.
func (s *Service) ReprocessFile(ctx context.Context, fileID string) error {
	file, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return err
	}

	reader, err := s.blobs.Download(ctx, file.BlobKey)
	if err != nil {
		return fmt.Errorf("failed to load stored file: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read stored file: %w", err)
	}

	if err := s.chunks.DeleteChunksByFile(ctx, fileID); err != nil {
		return fmt.Errorf("failed to clear existing chunks: %w", err)
	}

	if err := s.files.UpdateFileStatus(ctx, fileID, models.StatusPending, ""); err != nil {
		return err
	}
	s.publish(interfaces.StatusEvent{
		DocumentID: file.ID,
		Kind:       interfaces.DocumentKindFile,
		ContextID:  file.ContextID,
		Status:     models.StatusPending,
	})

	common.SafeGo(s.logger, "reprocessFile:"+file.ID, func() {
		s.processFile(context.Background(), file, content)
	})

	return nil
}

// ReprocessSite re-runs the pipeline for a saved page from its stored
// markdown.
func (s *Service) ReprocessSite(ctx context.Context, siteID string) error {
	site, err := s.sites.GetSite(ctx, siteID)
	if err != nil {
		return err
	}

	if err := s.chunks.DeleteChunksBySite(ctx, siteID); err != nil {
		return fmt.Errorf("failed to clear existing chunks: %w", err)
	}

	if err := s.sites.UpdateSiteStatus(ctx, siteID, models.StatusPending, ""); err != nil {
		return err
	}
	s.publish(interfaces.StatusEvent{
		DocumentID: site.ID,
		Kind:       interfaces.DocumentKindSite,
		ContextID:  site.ContextID,
		Status:     models.StatusPending,
	})

	common.SafeGo(s.logger, "reprocessSite:"+site.ID, func() {
		s.processSite(context.Background(), site)
	})

	return nil
}

// processFile drives one file through processing -> completed|failed.
// Partial chunk writes from a failed attempt stay in place; reprocessing
// clears them before the next run.
func (s *Service) processFile(ctx context.Context, file *models.File, content []byte) {
	s.transitionFile(ctx, file, models.StatusProcessing, "")

	text, err := s.extractor.ExtractFile(file.Filename, content)
	if err != nil {
		s.failFile(ctx, file, fmt.Errorf("extraction failed: %w", err))
		return
	}

	count, err := s.persistChunks(ctx, text, file.ContextID, fileParent(file.ID), file.SourceName())
	if err != nil {
		s.failFile(ctx, file, err)
		return
	}

	file.Status = models.StatusCompleted
	file.ErrorMessage = ""
	file.Content = text
	file.ChunkCount = count
	if err := s.files.CompleteFile(ctx, file.ID, text, count); err != nil {
		s.logger.Error().Err(err).Str("file_id", file.ID).Msg("Failed to mark file completed")
		return
	}

	s.publish(interfaces.StatusEvent{
		DocumentID: file.ID,
		Kind:       interfaces.DocumentKindFile,
		ContextID:  file.ContextID,
		Status:     models.StatusCompleted,
		ChunkCount: count,
	})

	s.logger.Info().
		Str("file_id", file.ID).
		Int("chunks", count).
		Msg("File processing completed")
}

// processSite drives one saved page through processing -> completed|failed
func (s *Service) processSite(ctx context.Context, site *models.Site) {
	s.transitionSite(ctx, site, models.StatusProcessing, "")

	count, err := s.persistChunks(ctx, site.ContentMarkdown, site.ContextID, siteParent(site.ID), site.SourceName())
	if err != nil {
		s.failSite(ctx, site, err)
		return
	}

	site.Status = models.StatusCompleted
	site.ErrorMessage = ""
	site.ChunkCount = count
	if err := s.sites.CompleteSite(ctx, site.ID, count); err != nil {
		s.logger.Error().Err(err).Str("site_id", site.ID).Msg("Failed to mark site completed")
		return
	}

	s.publish(interfaces.StatusEvent{
		DocumentID: site.ID,
		Kind:       interfaces.DocumentKindSite,
		ContextID:  site.ContextID,
		Status:     models.StatusCompleted,
		ChunkCount: count,
	})

	s.logger.Info().
		Str("site_id", site.ID).
		Int("chunks", count).
		Msg("Site processing completed")
}

// chunkParent identifies the one document a chunk batch belongs to.
type chunkParent struct {
	fileID string
	siteID string
}

func fileParent(id string) chunkParent { return chunkParent{fileID: id} }
func siteParent(id string) chunkParent { return chunkParent{siteID: id} }

// exists reports whether the parent document record is still present.
func (p chunkParent) exists(ctx context.Context, files interfaces.FileStorage, sites interfaces.SiteStorage) error {
	if p.fileID != "" {
		_, err := files.GetFile(ctx, p.fileID)
		return err
	}
	_, err := sites.GetSite(ctx, p.siteID)
	return err
}

// persistChunks chunks text, embeds each piece, and saves the chunk records.
func (s *Service) persistChunks(ctx context.Context, text, contextID string, parent chunkParent, sourceName string) (int, error) {
	pieces, err := s.chunker.Chunk(text, chunker.Options{
		TargetSize: s.config.ChunkSize,
		Overlap:    s.config.ChunkOverlap,
	})
	if err != nil {
		return 0, fmt.Errorf("chunking failed: %w", err)
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Content
	}

	vectors, err := s.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding failed: %w", err)
	}

	// The context or document may have been deleted while embedding ran;
	// chunks must never be written under a deleted parent.
	if _, err := s.contexts.GetContext(ctx, contextID); err != nil {
		return 0, fmt.Errorf("context deleted during processing: %w", err)
	}
	if err := parent.exists(ctx, s.files, s.sites); err != nil {
		return 0, fmt.Errorf("document deleted during processing: %w", err)
	}

	chunks := make([]*models.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = &models.Chunk{
			ID:         common.NewChunkID(),
			ContextID:  contextID,
			FileID:     parent.fileID,
			SiteID:     parent.siteID,
			Content:    p.Content,
			Embedding:  vectors[i],
			ChunkIndex: p.Index,
			WordCount:  p.WordCount,
			SourceName: sourceName,
		}
	}

	if err := s.chunks.SaveChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to persist chunks: %w", err)
	}

	return len(chunks), nil
}

func (s *Service) validateUpload(upload interfaces.FileUpload) error {
	if upload.Filename == "" {
		return fmt.Errorf("filename is required")
	}
	if strings.Contains(upload.Filename, "/") || strings.Contains(upload.Filename, "\\") {
		return fmt.Errorf("invalid filename: %s", upload.Filename)
	}

	ext := strings.ToLower(filepath.Ext(upload.Filename))
	allowed := false
	for _, t := range s.config.AllowedTypes {
		if ext == strings.ToLower(t) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("file type %s is not allowed (allowed: %s)", ext, strings.Join(s.config.AllowedTypes, ", "))
	}

	if upload.Size > s.config.MaxFileSize {
		return fmt.Errorf("file size %d exceeds limit of %d bytes", upload.Size, s.config.MaxFileSize)
	}

	return nil
}

// readUpload reads the payload, enforcing the size cap even when the
// declared size was wrong.
func (s *Service) readUpload(upload interfaces.FileUpload) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(upload.Reader, s.config.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(content)) > s.config.MaxFileSize {
		return nil, fmt.Errorf("file size exceeds limit of %d bytes", s.config.MaxFileSize)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	return content, nil
}

func (s *Service) transitionFile(ctx context.Context, file *models.File, status models.ProcessingStatus, errMsg string) {
	file.Status = status
	file.ErrorMessage = errMsg
	if err := s.files.UpdateFileStatus(ctx, file.ID, status, errMsg); err != nil {
		s.logger.Warn().Err(err).Str("file_id", file.ID).Str("status", string(status)).Msg("Failed to update file status")
	}
	s.publish(interfaces.StatusEvent{
		DocumentID: file.ID,
		Kind:       interfaces.DocumentKindFile,
		ContextID:  file.ContextID,
		Status:     status,
		Error:      errMsg,
	})
}

func (s *Service) transitionSite(ctx context.Context, site *models.Site, status models.ProcessingStatus, errMsg string) {
	site.Status = status
	site.ErrorMessage = errMsg
	if err := s.sites.UpdateSiteStatus(ctx, site.ID, status, errMsg); err != nil {
		s.logger.Warn().Err(err).Str("site_id", site.ID).Str("status", string(status)).Msg("Failed to update site status")
	}
	s.publish(interfaces.StatusEvent{
		DocumentID: site.ID,
		Kind:       interfaces.DocumentKindSite,
		ContextID:  site.ContextID,
		Status:     status,
		Error:      errMsg,
	})
}

func (s *Service) failFile(ctx context.Context, file *models.File, err error) {
	s.logger.Error().Err(err).Str("file_id", file.ID).Msg("File processing failed")
	s.transitionFile(ctx, file, models.StatusFailed, err.Error())
}

func (s *Service) failSite(ctx context.Context, site *models.Site, err error) {
	s.logger.Error().Err(err).Str("site_id", site.ID).Msg("Site processing failed")
	s.transitionSite(ctx, site, models.StatusFailed, err.Error())
}

func (s *Service) publish(event interfaces.StatusEvent) {
	if s.status != nil {
		s.status.Publish(event)
	}
}
