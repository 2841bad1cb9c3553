package tools

import (
	"context"
	"errors"
	"testing"

	"salesagent/pkg/catalog"
	"salesagent/pkg/inventory"
	"salesagent/pkg/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	gotQuery string
	gotTopK  int
	result   retrieval.SearchResult
	err      error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, topK int) (retrieval.SearchResult, error) {
	f.gotQuery, f.gotTopK = query, topK
	return f.result, f.err
}

type fakeInventory struct {
	rec inventory.Record
	err error
}

func (f *fakeInventory) Lookup(ctx context.Context, name string) (inventory.Record, error) {
	return f.rec, f.err
}

func TestSearchToolRealData(t *testing.T) {
	s := &fakeSearcher{result: retrieval.SearchResult{
		Provenance: retrieval.ProvenanceReal,
		Results: []retrieval.RankedResult{
			{Entry: catalog.Entry{ID: "p1", Attributes: map[string]any{"name": "Wax"}}, Score: 0.9},
		},
	}}
	r := NewRegistry()
	require.NoError(t, r.Register(NewSearchTool(s)))

	res := r.Dispatch(context.Background(), string(SearchProducts), map[string]any{"query": "wax"})
	require.False(t, res.IsError(), res.Message)
	assert.Equal(t, "wax", s.gotQuery)
	assert.Equal(t, 5, s.gotTopK)
	assert.Equal(t, "[REAL DATA]", res.Payload["note"])
	assert.Equal(t, "real", res.Payload["provenance"])
	assert.Equal(t, "Got 1 results [REAL DATA]", res.Summary)
	assert.Empty(t, res.Warnings)

	items := res.Payload["results"].([]map[string]any)
	assert.Equal(t, "p1", items[0]["id"])
	assert.Equal(t, "Wax", items[0]["name"])
	assert.Equal(t, 0.9, items[0]["similarity_score"])
}

func TestSearchToolFallbackData(t *testing.T) {
	s := &fakeSearcher{result: retrieval.SearchResult{
		Provenance: retrieval.ProvenanceFallback,
		Warning:    "catalog unavailable",
	}}
	r := NewRegistry()
	require.NoError(t, r.Register(NewSearchTool(s)))

	res := r.Dispatch(context.Background(), string(SearchProducts), map[string]any{"query": "wax", "num_results": float64(2)})
	require.False(t, res.IsError())
	assert.Equal(t, 2, s.gotTopK)
	assert.Equal(t, "[DUMMY DATA]", res.Payload["note"])
	assert.Equal(t, []string{"catalog unavailable"}, res.Warnings)
}

func TestSearchToolError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewSearchTool(&fakeSearcher{err: errors.New("embed failed")})))

	res := r.Dispatch(context.Background(), string(SearchProducts), map[string]any{"query": "wax"})
	assert.True(t, res.IsError())
	assert.ErrorIs(t, res.Err, ErrToolExecution)
	assert.Contains(t, res.Message, "embed failed")
}

func TestInventoryTool(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewInventoryTool(&fakeInventory{rec: inventory.Record{"stock": float64(4)}})))

	res := r.Dispatch(context.Background(), string(GetCurrentInventory), map[string]any{"product_name": "Wax"})
	require.False(t, res.IsError())
	assert.Equal(t, "Inventory check complete", res.Summary)
	assert.JSONEq(t, `{"status":"success","inventory":{"stock":4}}`, res.Content())
}

func TestInventoryToolTimeout(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewInventoryTool(&fakeInventory{err: context.DeadlineExceeded})))

	res := r.Dispatch(context.Background(), string(GetCurrentInventory), map[string]any{"product_name": "Wax"})
	assert.True(t, res.IsError())
	assert.Contains(t, res.Message, "Failed to fetch inventory for Wax")
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}
