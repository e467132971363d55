package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/common"
	"github.com/ternarybob/memoria/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	contexts interfaces.ContextStorage
	files    interfaces.FileStorage
	sites    interfaces.SiteStorage
	chunks   interfaces.ChunkStorage
	messages interfaces.MessageStorage
	kv       interfaces.KeyValueStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		contexts: NewContextStorage(db, logger),
		files:    NewFileStorage(db, logger),
		sites:    NewSiteStorage(db, logger),
		chunks:   NewChunkStorage(db, logger),
		messages: NewMessageStorage(db, logger),
		kv:       NewKVStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// ContextStorage returns the Context storage interface
func (m *Manager) ContextStorage() interfaces.ContextStorage {
	return m.contexts
}

// FileStorage returns the File storage interface
func (m *Manager) FileStorage() interfaces.FileStorage {
	return m.files
}

// SiteStorage returns the Site storage interface
func (m *Manager) SiteStorage() interfaces.SiteStorage {
	return m.sites
}

// ChunkStorage returns the Chunk storage interface
func (m *Manager) ChunkStorage() interfaces.ChunkStorage {
	return m.chunks
}

// MessageStorage returns the Message storage interface
func (m *Manager) MessageStorage() interfaces.MessageStorage {
	return m.messages
}

// KVStorage returns the KeyValue storage interface
func (m *Manager) KVStorage() interfaces.KeyValueStorage {
	return m.kv
}

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	return m.db
}

// Close closes the storage manager and database connection
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing Badger storage manager")
	return m.db.Close()
}
