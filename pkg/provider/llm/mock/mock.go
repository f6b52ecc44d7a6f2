// Package mock provides test doubles for the llm package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/llm"
)

// Provider is a mock implementation of llm.Provider. Responses are handed
// out in order, one per Complete (or StreamCompletion) call; when the list
// is exhausted the last response repeats.
type Provider struct {
	mu sync.Mutex

	// Responses are the completion texts to return, in call order.
	Responses []string

	// Err, if non-nil, is returned by Complete and StreamCompletion.
	Err error

	// Requests records every request received.
	Requests []llm.CompletionRequest
}

// Complete implements llm.Provider.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.Requests)
	p.Requests = append(p.Requests, req)
	if p.Err != nil {
		return nil, p.Err
	}
	return &llm.CompletionResponse{Content: p.response(n)}, nil
}

// StreamCompletion implements llm.Provider by emitting the whole response as
// a single chunk followed by a "stop" chunk.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	n := len(p.Requests)
	p.Requests = append(p.Requests, req)
	err := p.Err
	text := p.response(n)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.Chunk, 2)
	ch <- llm.Chunk{Text: text}
	ch <- llm.Chunk{FinishReason: "stop"}
	close(ch)
	_ = ctx
	return ch, nil
}

// RequestCount returns the number of requests received so far. Thread-safe.
func (p *Provider) RequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

// response must be called with p.mu held (or on a private copy).
func (p *Provider) response(n int) string {
	if len(p.Responses) == 0 {
		return ""
	}
	if n >= len(p.Responses) {
		n = len(p.Responses) - 1
	}
	return p.Responses[n]
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
