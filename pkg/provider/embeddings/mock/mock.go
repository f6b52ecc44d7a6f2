// Package mock provides a deterministic test double for the embeddings
// package interfaces.
package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/embeddings"
)

// Provider is a mock embeddings.Provider producing deterministic vectors
// derived from an FNV hash of the input text. Equal inputs yield equal
// vectors, which is enough for similarity-ranking tests.
type Provider struct {
	mu sync.Mutex

	// Dim is the vector dimensionality. Defaults to 8 when zero.
	Dim int

	// Err, if non-nil, is returned by Embed and EmbedBatch.
	Err error

	// EmbedCalls records every text passed to Embed or EmbedBatch.
	EmbedCalls []string
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.vector(text), nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, texts...)
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vector(t)
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.Dim > 0 {
		return p.Dim
	}
	return 8
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return "mock-embeddings" }

func (p *Provider) vector(text string) []float32 {
	dim := p.Dim
	if dim <= 0 {
		dim = 8
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()
	v := make([]float32, dim)
	for i := range v {
		seed = seed*1664525 + 1013904223
		v[i] = float32(seed%1000)/1000 - 0.5
	}
	return v
}

// Ensure Provider implements embeddings.Provider at compile time.
var _ embeddings.Provider = (*Provider)(nil)
