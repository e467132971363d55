package common

import (
	"github.com/google/uuid"
)

// NewContextID generates a unique context ID with the "ctx_" prefix
func NewContextID() string {
	return "ctx_" + uuid.New().String()
}

// NewFileID generates a unique file ID with the "file_" prefix
func NewFileID() string {
	return "file_" + uuid.New().String()
}

// NewSiteID generates a unique site ID with the "site_" prefix
func NewSiteID() string {
	return "site_" + uuid.New().String()
}

// NewChunkID generates a unique chunk ID with the "chunk_" prefix
func NewChunkID() string {
	return "chunk_" + uuid.New().String()
}

// NewMessageID generates a unique message ID with the "msg_" prefix
func NewMessageID() string {
	return "msg_" + uuid.New().String()
}
