package chunker

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
)

// ErrNoContent is returned when the input text contains nothing to chunk.
// Callers must treat this as their own error, not an empty result.
var ErrNoContent = errors.New("no content to process")

// Piece is one chunk of a larger text, tagged with its position
type Piece struct {
	Content   string
	Index     int
	WordCount int
}

// Options control chunk sizing
type Options struct {
	// TargetSize is the soft character limit per chunk
	TargetSize int

	// Overlap is the approximate number of trailing characters carried from
	// one chunk into the next, approximated at a word boundary
	Overlap int
}

// Chunker splits document text into sentence-aligned, overlapping chunks.
// Chunking is deterministic: identical input and options produce identical
// output.
type Chunker struct {
	splitter *regexp.Regexp
	logger   arbor.ILogger
}

// NewChunker creates a sentence-based chunker
func NewChunker(logger arbor.ILogger) *Chunker {
	return &Chunker{
		splitter: regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
		logger:   logger,
	}
}

// Chunk splits text into ordered pieces. Sentences are never broken: a
// single sentence longer than the target size is emitted whole rather than
// truncated. Empty input returns ErrNoContent.
func (c *Chunker) Chunk(text string, opts Options) ([]Piece, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoContent
	}

	if opts.TargetSize <= 0 {
		opts.TargetSize = 1000
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}

	sentences := c.splitter.FindAllString(text, -1)
	if len(sentences) == 0 {
		// No terminal punctuation at all; treat the whole text as one sentence
		sentences = []string{strings.TrimSpace(text)}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	var pieces []Piece
	var buffer string

	emit := func(content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		pieces = append(pieces, Piece{
			Content:   content,
			Index:     len(pieces),
			WordCount: len(strings.Fields(content)),
		})
	}

	for _, sentence := range sentences {
		if sentence == "" {
			continue
		}

		if buffer != "" && len(buffer)+1+len(sentence) > opts.TargetSize {
			emit(buffer)
			// Seed the next buffer with the tail of the previous chunk so
			// adjacent chunks share context
			buffer = joinNonEmpty(trailingWords(buffer, opts.Overlap), sentence)
			continue
		}

		buffer = joinNonEmpty(buffer, sentence)
	}

	emit(buffer)

	if c.logger != nil {
		c.logger.Debug().
			Int("sentences", len(sentences)).
			Int("chunks", len(pieces)).
			Int("target_size", opts.TargetSize).
			Msg("Text chunked")
	}

	return pieces, nil
}

func joinNonEmpty(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + " " + b
}

// trailingWords returns the suffix of s closest to maxChars characters long
// without splitting a word.
func trailingWords(s string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if len(s) <= maxChars {
		return s
	}

	words := strings.Fields(s)
	var tail []string
	total := 0
	for i := len(words) - 1; i >= 0; i-- {
		w := words[i]
		cost := len(w)
		if total > 0 {
			cost++ // separating space
		}
		if total+cost > maxChars {
			break
		}
		tail = append([]string{w}, tail...)
		total += cost
	}
	return strings.Join(tail, " ")
}
