package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/common"
	"github.com/ternarybob/memoria/internal/handlers"
	"github.com/ternarybob/memoria/internal/interfaces"
	"github.com/ternarybob/memoria/internal/services/chat"
	"github.com/ternarybob/memoria/internal/services/chunker"
	"github.com/ternarybob/memoria/internal/services/contexts"
	"github.com/ternarybob/memoria/internal/services/embeddings"
	"github.com/ternarybob/memoria/internal/services/ingest"
	"github.com/ternarybob/memoria/internal/services/llm"
	"github.com/ternarybob/memoria/internal/services/retrieval"
	"github.com/ternarybob/memoria/internal/services/scheduler"
	badgerstore "github.com/ternarybob/memoria/internal/storage/badger"
	"github.com/ternarybob/memoria/internal/storage/blob"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	BlobStorage    interfaces.BlobStorage

	// Pipeline services
	LLMService       interfaces.LLMService
	EmbeddingLLM     interfaces.LLMService
	EmbeddingService interfaces.EmbeddingService
	RetrievalService interfaces.RetrievalService
	ChatService      interfaces.ChatService
	IngestService    interfaces.IngestService
	ContextService   interfaces.ContextService
	SchedulerService interfaces.SchedulerService

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	ChatHandler      *handlers.ChatHandler
	ContextHandler   *handlers.ContextHandler
	DocumentHandler  *handlers.DocumentHandler
	PageHandler      *handlers.PageHandler
	SchedulerHandler *handlers.SchedulerHandler
	WSHandler        *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	return app, nil
}

// initStorage initializes the Badger storage layer and the blob store
func (a *App) initStorage() error {
	storageManager, err := badgerstore.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = storageManager

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	blobStorage, err := blob.NewFilesystemStore(a.Config.Storage.Blob.Path, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create blob store: %w", err)
	}
	a.BlobStorage = blobStorage

	return nil
}

// initServices initializes business services in dependency order
func (a *App) initServices() error {
	var err error

	// WebSocket handler doubles as the status publisher; the ingestion
	// pipeline needs it, so it is created with the services.
	a.WSHandler = handlers.NewWebSocketHandler(&a.Config.WebSocket, a.Logger)

	kvStorage := a.StorageManager.KVStorage()

	a.LLMService, err = llm.NewLLMService(a.Config, kvStorage, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM service: %w", err)
	}

	// Embeddings always go through Gemini regardless of the chat provider
	a.EmbeddingLLM, err = llm.NewEmbeddingLLM(a.Config, kvStorage, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	a.EmbeddingService = embeddings.NewService(a.EmbeddingLLM, &a.Config.Embeddings, a.Logger)
	a.RetrievalService = retrieval.NewService(a.StorageManager.ChunkStorage(), a.Logger)

	a.ChatService = chat.NewService(
		a.LLMService,
		a.EmbeddingService,
		a.RetrievalService,
		a.StorageManager.MessageStorage(),
		&a.Config.RAG,
		a.Logger,
	)

	a.IngestService = ingest.NewService(
		a.StorageManager,
		a.BlobStorage,
		chunker.NewChunker(a.Logger),
		a.EmbeddingService,
		a.WSHandler,
		&a.Config.Ingest,
		a.Logger,
	)

	a.ContextService = contexts.NewService(a.StorageManager, a.BlobStorage, a.Logger)

	a.SchedulerService, err = scheduler.NewService(a.StorageManager, a.IngestService, &a.Config.Scheduler, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	return nil
}

// initHandlers initializes HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.ChatHandler = handlers.NewChatHandler(a.ChatService, a.Logger)
	a.ContextHandler = handlers.NewContextHandler(a.ContextService, a.Logger)
	a.DocumentHandler = handlers.NewDocumentHandler(a.IngestService, a.ContextService, a.StorageManager, a.Logger)
	a.PageHandler = handlers.NewPageHandler(a.IngestService, a.Logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService, a.Logger)
}

// Start launches background services
func (a *App) Start() error {
	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Close shuts down services in reverse dependency order
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.EmbeddingLLM != nil {
		if err := a.EmbeddingLLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close embedding provider")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		} else {
			a.Logger.Info().Msg("LLM service closed")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
