package llm

import (
	"context"

	"github.com/ternarybob/memoria/internal/interfaces"
)

// sendDelta forwards one stream delta unless the consumer has gone away.
// It reports whether the delta was delivered. Consumers that stop reading
// on cancellation would otherwise strand the provider goroutine on its
// final error send.
func sendDelta(ctx context.Context, out chan<- interfaces.StreamDelta, delta interfaces.StreamDelta) bool {
	select {
	case out <- delta:
		return true
	case <-ctx.Done():
		return false
	}
}
