package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// EmbeddingVector is a dense embedding. JSON decoding accepts either a
// native float array or a legacy comma-delimited string; a value that
// parses as neither decodes to nil (vector absent) rather than failing
// the whole document.
type EmbeddingVector []float32

// UnmarshalJSON implements json.Unmarshaler.
func (v *EmbeddingVector) UnmarshalJSON(data []byte) error {
	var floats []float32
	if err := json.Unmarshal(data, &floats); err == nil {
		*v = floats
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*v = nil
		return nil
	}
	*v = ParseEmbeddingString(s)
	return nil
}

// ParseEmbeddingString parses a comma-delimited float string into a vector.
// Returns nil if the string is empty or any element fails to parse.
func ParseEmbeddingString(s string) EmbeddingVector {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	vec := make(EmbeddingVector, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil
		}
		vec = append(vec, float32(f))
	}
	return vec
}

// Chunk is a retrievable slice of a document with its embedding.
// Exactly one of FileID or SiteID is set.
type Chunk struct {
	ID        string `json:"id" badgerhold:"key"` // chunk_{uuid}
	ContextID string `json:"context_id" badgerhold:"index"`
	FileID    string `json:"file_id,omitempty" badgerhold:"index"`
	SiteID    string `json:"site_id,omitempty" badgerhold:"index"`

	Content    string          `json:"content"`
	Embedding  EmbeddingVector `json:"embedding,omitempty"`
	ChunkIndex int             `json:"chunk_index"`
	WordCount  int             `json:"word_count"`

	// SourceName is denormalized from the parent document for prompt citations
	SourceName string `json:"source_name"`

	CreatedAt time.Time `json:"created_at"`
}

// HasEmbedding reports whether this chunk carries a usable vector.
func (c *Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}
