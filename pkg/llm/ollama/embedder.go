package ollama

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"
)

// Embedder produces query embeddings through Ollama's /api/embed endpoint.
type Embedder struct {
	client     *api.Client
	model      string
	dimensions int
}

// NewEmbedder creates an embedder for model. Replies are zero padded or
// truncated to dimensions, the vector length the catalog was indexed with.
func NewEmbedder(model, baseURL string, dimensions int) (*Embedder, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama embedder: model is required")
	}
	client, err := newAPIClient(baseURL)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model, dimensions: dimensions}, nil
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama embed: empty response")
	}

	raw := resp.Embeddings[0]
	if e.dimensions <= 0 || len(raw) == e.dimensions {
		return raw, nil
	}

	vec := make([]float32, e.dimensions)
	copy(vec, raw)
	return vec, nil
}

// Dimensions reports the configured vector length.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
