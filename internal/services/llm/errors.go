package llm

import "fmt"

// Op identifies which provider operation failed
type Op string

const (
	OpEmbed      Op = "embed"
	OpCompletion Op = "completion"
)

// ProviderError wraps a provider failure with enough context to tell an
// embedding failure apart from a completion failure. The chat orchestrator
// degrades differently for the two: embedding failures fall back to an
// ungrounded answer, completion failures fail the request.
type ProviderError struct {
	Provider string
	Op       Op
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err as a typed provider failure
func NewProviderError(provider string, op Op, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}
