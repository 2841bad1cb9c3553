package tools

import (
	"context"
	"fmt"

	"salesagent/pkg/retrieval"
)

// Searcher is the retrieval capability behind search_products.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) (retrieval.SearchResult, error)
}

// SearchTool ranks catalog products against a free-text query.
type SearchTool struct {
	searcher Searcher
}

func NewSearchTool(s Searcher) *SearchTool {
	return &SearchTool{searcher: s}
}

func (t *SearchTool) Schema() Schema {
	return Schema{
		Name:        SearchProducts,
		Description: "Search for relevant products using semantic vector search.",
		Required: []Param{
			{Name: "query", Type: TypeString, Description: "What products is the customer looking for?"},
		},
		Optional: []Param{
			{Name: "num_results", Type: TypeInteger, Description: "How many product recommendations to return (default: 5)", Default: 5},
		},
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (Output, error) {
	query := args["query"].(string)
	topK := args["num_results"].(int)

	sr, err := t.searcher.Search(ctx, query, topK)
	if err != nil {
		return Output{}, fmt.Errorf("%w: search %q: %v", ErrToolExecution, query, err)
	}

	note := "[REAL DATA]"
	if sr.Provenance == retrieval.ProvenanceFallback {
		note = "[DUMMY DATA]"
	}

	results := make([]map[string]any, 0, len(sr.Results))
	for _, r := range sr.Results {
		item := make(map[string]any, len(r.Entry.Attributes)+2)
		for k, v := range r.Entry.Attributes {
			item[k] = v
		}
		item["id"] = r.Entry.ID
		item["similarity_score"] = r.Score
		results = append(results, item)
	}

	out := Output{
		Payload: map[string]any{
			"results":    results,
			"provenance": string(sr.Provenance),
			"note":       note,
		},
		Summary: fmt.Sprintf("Got %d results %s", len(results), note),
	}
	if sr.Warning != "" {
		out.Warnings = []string{sr.Warning}
	}
	return out, nil
}
