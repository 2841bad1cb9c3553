// Package retrieval ranks catalog entries against a query by cosine
// similarity of their embeddings.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"salesagent/pkg/catalog"
)

// Provenance tags where search results came from.
type Provenance string

const (
	ProvenanceReal     Provenance = "real"
	ProvenanceFallback Provenance = "fallback"
)

// RankedResult is a catalog entry with its similarity to the query.
type RankedResult struct {
	Entry catalog.Entry
	Score float64
}

// SearchResult is the outcome of one Search. Warning is set when the
// results are degraded.
type SearchResult struct {
	Results    []RankedResult
	Provenance Provenance
	Warning    string
}

// Similarity returns the cosine similarity of a and b over their common
// length, or 0 when either vector is empty or has zero magnitude.
func Similarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	// A single square root keeps the self-similarity of any vector at exactly 1.
	sim := dot / math.Sqrt(magA*magB)
	return max(-1, min(1, sim))
}

// Engine embeds queries and ranks the catalog.
type Engine struct {
	store    catalog.Store
	embedder Embedder
	fallback []catalog.Entry
}

// NewEngine creates an engine over store. The fallback set is served when
// the store cannot be listed.
func NewEngine(store catalog.Store, embedder Embedder) *Engine {
	return &Engine{
		store:    store,
		embedder: embedder,
		fallback: catalog.FallbackEntries(),
	}
}

// Live reports whether searches are expected to hit a real catalog.
func (e *Engine) Live() bool {
	return catalog.Live(e.store)
}

// Rank embeds query once and returns the topK entries by descending
// similarity. Entries without an embedding are skipped; equal scores keep
// catalog order.
func (e *Engine) Rank(ctx context.Context, query string, entries []catalog.Entry, topK int) ([]RankedResult, error) {
	if topK <= 0 {
		return []RankedResult{}, nil
	}

	qv, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	qv = Normalize(qv, e.embedder.Dimensions())

	ranked := make([]RankedResult, 0, len(entries))
	for _, entry := range entries {
		if len(entry.Embedding) == 0 {
			continue
		}
		ranked = append(ranked, RankedResult{
			Entry: entry,
			Score: Similarity(qv, Normalize(entry.Embedding, e.embedder.Dimensions())),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

// Search ranks the live catalog. A store failure degrades to the fallback
// set, tagged ProvenanceFallback with a warning; it is never returned as an
// error. Embedding failures are.
func (e *Engine) Search(ctx context.Context, query string, topK int) (SearchResult, error) {
	entries, err := e.store.List(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Catalog unavailable, serving fallback products", "error", err)
		return SearchResult{
			Results:    e.fallbackResults(topK),
			Provenance: ProvenanceFallback,
			Warning:    fmt.Sprintf("catalog unavailable, using fallback products: %v", err),
		}, nil
	}

	results, err := e.Rank(ctx, query, entries, topK)
	if err != nil {
		return SearchResult{}, err
	}

	slog.DebugContext(ctx, "Catalog search", "query", query, "catalog", len(entries), "results", len(results))
	return SearchResult{Results: results, Provenance: ProvenanceReal}, nil
}

// fallbackResults returns the sample set with its preset match scores.
func (e *Engine) fallbackResults(topK int) []RankedResult {
	if topK <= 0 {
		return []RankedResult{}
	}
	out := make([]RankedResult, 0, len(e.fallback))
	for _, entry := range e.fallback {
		score, _ := entry.Attributes["match"].(float64)
		out = append(out, RankedResult{Entry: entry, Score: score})
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}
