package retrieval

import (
	"context"
	"crypto/sha256"
	"fmt"

	"salesagent/pkg/catalog"
)

// DefaultDimensions is the vector length of catalog embeddings.
const DefaultDimensions = 1536

// Embedder maps text to a vector of fixed length.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// HashEmbedder derives a deterministic vector from the SHA-256 digest of
// the text: each digest byte scaled to [0,1], zero padded to the declared
// length. It carries no semantic meaning.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, h.dims)
	for i := 0; i < len(sum) && i < h.dims; i++ {
		vec[i] = float32(sum[i]) / 255.0
	}
	return vec, nil
}

func (h *HashEmbedder) Dimensions() int {
	return h.dims
}

// Normalize zero pads or truncates v to dims.
func Normalize(v []float32, dims int) []float32 {
	if len(v) == dims {
		return v
	}
	out := make([]float32, dims)
	copy(out, v)
	return out
}

// Index embeds the document of every entry lacking an embedding and
// returns the updated copies. Existing embeddings are normalized.
func Index(ctx context.Context, embedder Embedder, entries []catalog.Entry) ([]catalog.Entry, error) {
	out := make([]catalog.Entry, len(entries))
	for i, entry := range entries {
		if len(entry.Embedding) == 0 {
			vec, err := embedder.Embed(ctx, entry.Document())
			if err != nil {
				return nil, fmt.Errorf("embed %s: %w", entry.ID, err)
			}
			entry.Embedding = vec
		}
		entry.Embedding = Normalize(entry.Embedding, embedder.Dimensions())
		out[i] = entry
	}
	return out, nil
}
