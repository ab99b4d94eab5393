// Package oracle wraps the external text-generation service that turns a
// prompt transcript into candidate source text. The oracle is treated as
// untrusted and possibly wrong: callers own parsing, validation, and
// fallbacks; this package owns transport, timeouts, and resilience.
package oracle

import (
	"context"
	"fmt"

	"github.com/apiforge/apiforge/internal/config"
)

// Turn is one message in the transcript sent to the oracle.
type Turn struct {
	Role    string // "user", "assistant", or "system"
	Content string
}

// Request is a single completion request.
type Request struct {
	System      string
	Transcript  []Turn
	Temperature float64
	MaxTokens   int
}

// Chunk is one piece of a streamed completion.
type Chunk struct {
	Text string
	Err  error // terminal; the channel closes after a chunk with Err set
}

// Oracle is the blocking request/response interface to the generation
// service. Stream is optional sugar; adapters without native streaming
// deliver the whole completion as a single chunk.
type Oracle interface {
	Complete(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
	Close() error
}

// New creates an oracle from provider configuration.
func New(name string, cfg config.ProviderConfig, pm *ProcessManager) (Oracle, error) {
	switch cfg.Type {
	case "http":
		return NewHTTPClient(name, cfg)
	case "cli":
		return NewCLIAdapter(cfg, pm)
	default:
		return nil, fmt.Errorf("unknown oracle provider type: %s", cfg.Type)
	}
}
