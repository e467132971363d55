package models

// RetrievalResult pairs a chunk with its similarity score for one query.
// Transient: produced per-query, never persisted.
type RetrievalResult struct {
	Chunk      *Chunk  `json:"chunk"`
	Similarity float64 `json:"similarity"`

	// Truncated is set when the budgeter shortened the chunk content to fit
	// the character budget.
	Truncated bool `json:"truncated,omitempty"`
}

// RetrievalMeta summarizes what grounded an assistant answer.
// On any retrieval failure it is present but empty so the caller can
// distinguish "no context used" from a missing field.
type RetrievalMeta struct {
	Chunks              []RetrievedChunk `json:"chunks"`
	TotalRelevantChunks int              `json:"total_relevant_chunks"`
	AverageSimilarity   float64          `json:"average_similarity"`
	HasContext          bool             `json:"has_context"`
}

// RetrievedChunk is the citation-facing view of a selected chunk.
type RetrievedChunk struct {
	ChunkID    string  `json:"chunk_id"`
	SourceName string  `json:"source_name"`
	Similarity float64 `json:"similarity"`
	Truncated  bool    `json:"truncated,omitempty"`
}

// EmptyRetrievalMeta returns the explicit empty meta reported when the
// retrieval path fails or finds nothing relevant.
func EmptyRetrievalMeta() *RetrievalMeta {
	return &RetrievalMeta{
		Chunks:              []RetrievedChunk{},
		TotalRelevantChunks: 0,
		AverageSimilarity:   0,
		HasContext:          false,
	}
}
